// Package version reports build information for the extkit binary.
//
// Version, commit and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/extkit/version.Version=1.2.0" ./cmd/extkit
//
// Unset values fall back to the VCS stamps recorded by the Go toolchain.
package version
