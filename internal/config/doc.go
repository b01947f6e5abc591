// Package config loads and validates the gateway's YAML configuration,
// applying environment overrides for credentials and refiner settings.
package config
