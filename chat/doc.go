// Package chat holds the per-process chat state: the shared user arena, per-channel viewer
// directories, moderation settings and message timelines, and the cosmetic catalogs layered
// on top of them.
//
// Every type here is safe for concurrent use. Event sources run on their own goroutines and
// may touch the same channel; each component guards its own state and never holds a lock
// across a lookup.
package chat
