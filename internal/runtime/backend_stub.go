//go:build !rwkv

package runtime

// Compiled when the 'rwkv' build tag is NOT set, keeping default builds and CI
// CGO-free. No backend registers itself, so Load fails fast with a load error
// instead of mocking execution. The native kernel bindings live in a tagged
// counterpart and call Register from their init.

// NativeBuilt indicates whether this binary carries real kernel bindings.
var NativeBuilt = false
