package source

// Record is a map-backed Object as scanned from a row.
type Record struct {
	pkName string
	values map[string]any
}

// NewRecord builds a Record whose primary key lives under pkName in values.
// The stored key value must already be normalized (see PrepareIdentifier).
func NewRecord(pkName string, values map[string]any) Record {
	return Record{pkName: pkName, values: values}
}

func (r Record) PrimaryKey() any {
	return r.values[r.pkName]
}

func (r Record) Attribute(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Values returns the underlying column map. Callers must not mutate it.
func (r Record) Values() map[string]any {
	return r.values
}
