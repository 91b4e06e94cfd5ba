// Package daemon hosts the long-running conversion service: the HTTP API,
// the workflow worker pool, the startup reconcile of artifact snapshots into
// the job store, and the flock that keeps a machine down to one instance.
package daemon
