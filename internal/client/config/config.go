package config

import "time"

// Config holds runtime settings for the health probe.
//
// Fields:
//   - ServerEndpointAddr: host:port of the gRPC health endpoint.
//   - Timeout: upper bound for one health check.
//   - Service: health service name to ask about; empty means the whole server.
type Config struct {
	ServerEndpointAddr string
	Timeout            time.Duration
	Service            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.Timeout = 3 * time.Second
	c.Service = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
