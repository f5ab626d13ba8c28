package cache

import "errors"

// ErrCacheNotFound is returned by DiskCache.Get when it finds no live entry
// for the key. DiskCache.Delete of a missing key returns nil instead.
var ErrCacheNotFound = errors.New("cache: not found")

// ErrEntryTooLarge is returned by Cache.Put when PerEntryCap is set and the
// admitted bytes exceed it (A-image's admission rule, spec §4.1).
var ErrEntryTooLarge = errors.New("cache: entry exceeds per-entry cap")
