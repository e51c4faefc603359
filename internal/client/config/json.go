package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the probe's view of the shared JSON config file. The server
// address comes from the server's own endpoint_addr_grpc key.
type JsonConfig struct {
	GRPCAddr     string         `json:"endpoint_addr_grpc"`
	ProbeTimeout timex.Duration `json:"probe_timeout"`
}

// parseJson overlays Config with the keys present in the JSON file named by
// -c/-config or GOPHAUTH_CONFIG. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.GRPCAddr != "" {
		cfg.ServerEndpointAddr = jc.GRPCAddr
	}
	if jc.ProbeTimeout.Duration > 0 {
		cfg.Timeout = jc.ProbeTimeout.Duration
	}
}
