package config

import (
	"github.com/spf13/pflag"

	"swappiIndexer/internal/network"
)

// ApplyConfig holds configuration for the apply command.
type ApplyConfig struct {
	Network     network.Network
	RPCURL      string
	Input       string
	PGDSN       string
	BatchSize   int
	StateFile   string
	OnError     string
	Errors      string
	MetricsAddr string
	LogLevel    string
}

// LoadApply merges config file, environment variables, and flags into ApplyConfig.
func LoadApply(cfgFile string, flags *pflag.FlagSet) (ApplyConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size": 1000,
		"on-error":   "abort",
		"errors":     "./data/apply_errors.jsonl",
	})
	if err != nil {
		return ApplyConfig{}, err
	}
	n, err := network.Parse(v.GetString("network"))
	if err != nil {
		return ApplyConfig{}, err
	}

	return ApplyConfig{
		Network:     n,
		RPCURL:      v.GetString("rpc"),
		Input:       v.GetString("in"),
		PGDSN:       v.GetString("pg-dsn"),
		BatchSize:   v.GetInt("batch-size"),
		StateFile:   v.GetString("state-file"),
		OnError:     v.GetString("on-error"),
		Errors:      v.GetString("errors"),
		MetricsAddr: v.GetString("metrics-addr"),
		LogLevel:    v.GetString("log-level"),
	}, nil
}

// LookupConfig holds configuration for the token and pair commands.
type LookupConfig struct {
	Network  network.Network
	RPCURL   string
	LogLevel string
}

// LoadLookup merges config file, environment variables, and flags into LookupConfig.
func LoadLookup(cfgFile string, flags *pflag.FlagSet) (LookupConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return LookupConfig{}, err
	}
	n, err := network.Parse(v.GetString("network"))
	if err != nil {
		return LookupConfig{}, err
	}
	return LookupConfig{
		Network:  n,
		RPCURL:   v.GetString("rpc"),
		LogLevel: v.GetString("log-level"),
	}, nil
}
