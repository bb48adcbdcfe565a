// Package trigger runs callbacks periodically.
//
// A trigger fires either every fixed interval (Every) or whenever a calendar
// unit changes value (OnRollover). Calendar triggers compare the current
// reading with the last value persisted in a storage.Store, so a restart
// never repeats a rollover that has already fired.
//
// Register triggers on a Registry, then hand it to an Emitter and call Start
// once the host is up. Each trigger runs in its own supervised goroutine
// until Stop.
package trigger
