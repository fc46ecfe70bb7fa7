// Package state defines the bot's persisted documents and the repository
// that reads and writes them through storage.
//
// Three documents exist: the follow book (records plus aggregate stats), the
// post history and the bot state (mode, quota, cooldown and next-fire times).
// Reads never fail: a missing or unreadable document yields its empty default.
package state
