// Package relay provides the browser-facing HTTP server of the console. It
// opens execution streams against the backend and re-emits the normalized
// events to the browser as server-sent events.
package relay

import "github.com/prometheus/client_golang/prometheus"

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// Gatherer is served on /metrics. Defaults to the prometheus default
	// gatherer.
	Gatherer prometheus.Gatherer
}
