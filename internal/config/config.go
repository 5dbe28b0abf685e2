// Package config defines the static configuration for the info service:
// its chunk size, the process-wide registry's application tag, and the
// bound a caller waits for a late-registering service.
package config

import "time"

// Config defines behavior and resource limits for a running info service.
type Config struct {
	// ApplicationTag is the first component of a registry.Key, scoping
	// lookups to this application among others that might share a
	// registry.
	ApplicationTag string

	// ChunkSize is the download chunk (block request) size consumers
	// should assume absent other information. It does not affect the
	// BEP-9 metadata block size, which is always 16384 (see
	// internal/metablock).
	ChunkSize int

	// MetadataBlockSize mirrors internal/metablock.BlockSize; kept here
	// so callers that only import config can see the constant without
	// reaching into metablock.
	MetadataBlockSize int

	// AwaitTimeout bounds how long a consumer's registry.Await call
	// waits for a service to register before failing.
	AwaitTimeout time.Duration
}

// DefaultConfig returns sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		ApplicationTag:    "tormeta",
		ChunkSize:         16384,
		MetadataBlockSize: 16384,
		AwaitTimeout:      10 * time.Second,
	}
}
