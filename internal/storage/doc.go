// Package storage persists the last-observed value of each calendar unit so
// that rollover triggers survive process restarts.
//
// Drivers:
//   - "file": a single JSON object (default path ".atrange") with the keys
//     second, minute, day, month, year
//   - "sqlite": a clock_state table in a SQLite database file
//   - "memory": process-local map (tests, ephemeral runs)
//
// Callers can plug their own backend with Funcs. Every driver serializes its
// Get/Set calls so concurrent triggers never interleave a read-modify-write.
package storage
