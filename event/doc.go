// Package event provides a synchronous, in-process event dispatcher.
//
// Listeners subscribe with a kind pattern using filepath.Match syntax, so
// "extension.*" receives every extension lifecycle event and "*" receives
// everything. Dispatch delivers to matching listeners in the order they were
// registered and returns the joined listener errors.
package event
