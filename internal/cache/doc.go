// Package cache defines the disk-backed store that maps proxied URLs to
// StoragePath/<flattened-url> files. The file's modification time is the
// entry timestamp; there is no separate metadata record and no index, the
// directory itself is the index. Writes go through a temp file + rename so
// readers never observe a partial body, and writes for the same URL are
// serialized with a per-key lock. Freshness is probabilistic: an entry of age
// a under a TTL t is treated as stale with probability log2(a/t + 1), and
// always once a >= t.
package cache
