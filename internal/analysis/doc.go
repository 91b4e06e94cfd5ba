// Package analysis extracts descriptive audio features. The daemon picks an
// implementation once at startup: the script-backed extractor when a python
// interpreter is available, otherwise a degraded metadata-only fallback.
// Extraction never decides a job's fate; a failed extraction just means no
// analysis artifact.
package analysis
