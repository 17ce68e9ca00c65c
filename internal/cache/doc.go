// Package cache memoizes slow provider lookups and records provider
// availability across runs.
//
// A Cache is constructed once at process start (see Open), passed explicitly
// to providers and the pool, and closed at shutdown. Values are stored as
// JSON under versioned keys built by Key, so bumping Version orphans every
// older entry. Three backends are available: an in-memory map, a SQLite file
// and a bbolt file.
package cache
