// Package storage keeps the operator audit trail: one entry per handled bot
// command. Backends are a JSON Lines file or a SQLite database; the driver
// "none" disables persistence entirely.
//
// Subscriptions and timers are intentionally absent: they live only in memory.
package storage
