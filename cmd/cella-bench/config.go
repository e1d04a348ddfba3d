package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config specifies the file format of config files.
type Config struct {
	Engine       string `yaml:"engine"`       // mmr, smt, smt-live, or smt-archive.
	DatabaseFile string `yaml:"database"`     // Empty means an in-memory database.
	MetricsAddr  string `yaml:"metrics-addr"` // Empty disables the metrics server.

	Blocks       int `yaml:"blocks"`
	TxsPerBlock  int `yaml:"txs-per-block"`
	OutputsPerTx int `yaml:"outputs-per-tx"`
	InputsPerTx  int `yaml:"inputs-per-tx"`

	CommitEvery int   `yaml:"commit-every"` // Blocks per database transaction.
	ProveEvery  int   `yaml:"prove-every"`  // Blocks between proof samples, 0 disables.
	ProveCount  int   `yaml:"prove-count"`  // Elements per proof sample.
	Seed        int64 `yaml:"seed"`
}

func ReadConfig(filename string) (*Config, error) {
	// Read from file and parse.
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var parsed Config
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}

	// Check that all required fields are populated.
	switch parsed.Engine {
	case "mmr", "smt", "smt-live", "smt-archive":
	case "":
		return nil, fmt.Errorf("field not provided: engine")
	default:
		return nil, fmt.Errorf("unknown engine: %v", parsed.Engine)
	}

	// Fill in defaults.
	if parsed.Blocks == 0 {
		parsed.Blocks = 100
	}
	if parsed.TxsPerBlock == 0 {
		parsed.TxsPerBlock = 50
	}
	if parsed.OutputsPerTx == 0 {
		parsed.OutputsPerTx = 2
	}
	if parsed.InputsPerTx == 0 {
		parsed.InputsPerTx = 1
	}
	if parsed.CommitEvery == 0 {
		parsed.CommitEvery = 10
	}
	if parsed.ProveCount == 0 {
		parsed.ProveCount = 5
	}
	if parsed.Seed == 0 {
		parsed.Seed = 42
	}

	return &parsed, nil
}
