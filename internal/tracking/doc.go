// Package tracking routes decoded sensor records to per-device trackers.
//
// A Registry owns one Tracker per DeviceKey, created on first sight. Each
// Tracker keeps the full ordered history of entries it has handled. Both
// publish notifications on buffered channels obtained with Subscribe; a
// subscriber that falls behind misses notifications but never blocks
// ingestion, and history is unaffected.
package tracking
