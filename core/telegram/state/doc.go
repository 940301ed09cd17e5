// Package state stores per-chat conversation sessions: the current step of a
// dialog plus a small bag of string scratch values.
package state
