// Package server implements the admin backend's HTTP API. It wires the
// upload manager, the audit recorder and the health checks onto a chi router
// and provides lifecycle helpers used by tests and the production binary.
package server
