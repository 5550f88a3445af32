package preload

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"relation-preload/internal/source"
)

// Fingerprint derives the cache key for a relation target from the canonical
// text of its current filter state. Equal filter states map to one key, so
// identifier sets aggregated for equivalently-filtered collections merge into
// a single batch fetch. The key is a same-pass cache key only; it is not
// required to be stable across releases. Fingerprints are recomputed on every
// resolution because the filter state can depend on per-request context.
func Fingerprint(src source.Source) string {
	sum := blake2b.Sum256([]byte(src.FilterState()))
	return hex.EncodeToString(sum[:])
}
