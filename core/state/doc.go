// Package state keeps per-user conversation sessions in memory.
// Sessions are typed: each bot decides what a session value looks like, so
// invalid field combinations can be ruled out by the session type itself.
package state
