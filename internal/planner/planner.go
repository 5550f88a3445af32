// Package planner computes the query shape for reading a serializer tree:
// which relation paths can be fetched eagerly in the parent query via joins,
// and which must be batch-prefetched in separate indexed queries. It walks
// the declared field tree only; no payload is involved.
package planner
