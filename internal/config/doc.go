// Package config loads, normalizes, and validates SoundSketch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and validates the worker pool, upload, and
// engine settings the daemon needs. The Config type centralizes every knob
// the daemon and CLI use, so downstream code receives sanitized paths and
// clear validation errors.
package config
