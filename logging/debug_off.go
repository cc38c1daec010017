//go:build !debug

package logging

// Debug gates debug-level call sites. Build with -tags debug to keep them.
const Debug = false
