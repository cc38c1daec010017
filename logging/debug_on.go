//go:build debug

package logging

// Debug gates debug-level call sites.
const Debug = true
