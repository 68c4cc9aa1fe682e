// Package doccache is a content-addressed cache of processed document
// results with TTL expiry.
//
// Keys are derived from a BLAKE3 hash of the source file's bytes, not its
// path or name, so identical content always maps to the same entry no matter
// where the file sits on disk. Entries are persisted in an embedded SQLite
// database in the cache directory; SQLite provides the single-process
// multi-reader/writer safety the cache relies on.
//
// Expiry is lazy on read (an entry past its TTL is a miss even while still
// physically present) plus a periodic ClearExpired sweep driven by the
// cleanup scheduler. Infrastructure failures degrade to cache misses rather
// than failing the request.
package doccache
