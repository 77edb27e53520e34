// Package config loads and validates the update manager configuration.
//
// Configuration is a single YAML document describing the OS to update, the
// remote repository, the refs to pull, and the ambient settings (journal,
// policy, telemetry, daemon). Struct-tag validation catches missing or
// malformed fields before any collaborator is touched.
package config
