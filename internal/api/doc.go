// Package api defines the wire types of the conversion HTTP API and the
// client used by the command line tools. The daemon handlers and the client
// share these types so the two sides cannot drift.
package api
