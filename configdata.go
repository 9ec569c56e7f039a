// Package codecord provides embedded assets for the Codecord daemon.
//
// The root package exists solely to embed [config.default.toml] via
// [DefaultConfigTOML]. Commands copy it to the data directory on first
// run to seed defaults.
package codecord

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, embedded at
// build time. Regenerate with go generate ./internal/config after changing
// defaults or ConfigDocs.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
