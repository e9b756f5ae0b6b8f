// Package cache implements a filesystem-backed key/value storage backend
// whose entries expire after a per-entry TTL.
//
// The TTL is not stored next to the payload. It lives in the cache file's
// timestamps: the modification time is the last write or live probe, the
// access time is the absolute expiry instant. Expiry is lazy and happens on
// the next Exists call.
package cache
