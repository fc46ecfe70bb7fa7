// Package storage is the durable document store behind the bot's state.
//
// Documents are opaque byte slices addressed by key. Every backend
// serializes access per key and replaces a document atomically, so a Load
// never observes a partially written Save. An append-only audit log records
// executed actions.
package storage
