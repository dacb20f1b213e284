// Package version exposes build information for the /info endpoint and the
// CLI's version command.
//
// Values are injected at link time and fall back to the module's embedded
// VCS settings:
//
//	go build -ldflags "-X github.com/kbukum/qprofile/version.Version=1.2.0" ./cmd/qprofile
package version
