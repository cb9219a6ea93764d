package config

const (
	// ModeDirect reads the event type from explicit "event:" lines.
	ModeDirect = "direct"

	// ModeGateway infers the event type from the JSON body.
	ModeGateway = "gateway"
)

const (
	defaultBackendURL = "http://localhost:8000"
	defaultGatewayURL = "http://localhost:8080"
	defaultTimeout    = "10m"

	defaultRelayListen = ":8090"

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "switchboard.run.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Backend: BackendConfig{
			URL:        defaultBackendURL,
			GatewayURL: defaultGatewayURL,
			Mode:       ModeDirect,
			Timeout:    defaultTimeout,
		},
		Relay: RelayConfig{
			Listen: defaultRelayListen,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
