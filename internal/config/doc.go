// Package config loads courier's runtime configuration.
//
// # Sources
//
// Load merges, highest precedence first:
//
//  1. COURIER_* environment variables (key "poll-interval" reads
//     COURIER_POLL_INTERVAL)
//  2. the legacy EVOLUTION_API_URL, EVOLUTION_API_KEY and EVOLUTION_INSTANCE
//     variables
//  3. the TOML file given with -config, or ~/.config/courier/config.toml
//  4. built-in defaults
//
// A missing config file is not an error. A malformed one is.
//
// # Keys
//
//	gateway-url      = "http://127.0.0.1:8080"
//	api-key          = ""            # required, never defaulted
//	instance         = "agente"
//	poll-interval    = "5s"
//	request-timeout  = "10s"
//	artifact-source  = "connect"     # or "qrcode"
//	data-dir         = "~/.local/share/courier"
//	log-level        = "info"
//
// The API key has no default on purpose: keep it in the environment or in a
// file readable only by the operator.
//
// # Path Expansion
//
// data-dir and the config path accept "~" for the home directory; relative
// paths are made absolute against the working directory.
package config
