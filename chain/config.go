package chain

import "fmt"

// RPCConfig holds the connection parameters for a BSV node's JSON-RPC interface.
type RPCConfig struct {
	URL        string `yaml:"url" json:"url"`
	User       string `yaml:"user" json:"user"`
	Password   string `yaml:"password" json:"password"`
	Network    string `yaml:"network" json:"network"`
	MaxRetries uint64 `yaml:"max_retries" json:"max_retries"`
}

// NetworkPresets contains default RPC configurations for known networks.
// Mainnet is intentionally omitted to require explicit configuration.
var NetworkPresets = map[string]RPCConfig{
	"regtest": {URL: "http://localhost:18332", User: "filepay", Password: "filepay"},
	"testnet": {URL: "http://localhost:18332", User: "filepay", Password: "filepay"},
}

// ResolveConfig merges RPC configuration from three sources with decreasing priority:
//  1. explicit settings (config file or flags)
//  2. environment variables (FILEPAY_RPC_URL, FILEPAY_RPC_USER, FILEPAY_RPC_PASS)
//  3. network presets (regtest/testnet only)
func ResolveConfig(explicit *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}

	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if env != nil {
		if v := env["FILEPAY_RPC_URL"]; v != "" {
			result.URL = v
		}
		if v := env["FILEPAY_RPC_USER"]; v != "" {
			result.User = v
		}
		if v := env["FILEPAY_RPC_PASS"]; v != "" {
			result.Password = v
		}
	}

	if explicit != nil {
		if explicit.URL != "" {
			result.URL = explicit.URL
		}
		if explicit.User != "" {
			result.User = explicit.User
		}
		if explicit.Password != "" {
			result.Password = explicit.Password
		}
		result.MaxRetries = explicit.MaxRetries
	}

	if result.URL == "" {
		return nil, fmt.Errorf("chain: %s requires explicit RPC configuration (set rpc.url or FILEPAY_RPC_URL)", network)
	}
	return &result, nil
}
