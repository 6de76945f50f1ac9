package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvEngineBinary = "HRUNNER_LOCUST_BIN"
	EnvMasterHost   = "HRUNNER_MASTER_HOST"
	EnvMasterPort   = "HRUNNER_MASTER_PORT"
)

// EngineConfig describes how to invoke the external load-generation engine
// and how its master and workers find each other.
type EngineConfig struct {
	Binary        string `yaml:"binary"`
	MasterFlag    string `yaml:"master_flag"`
	WorkerFlag    string `yaml:"worker_flag"`
	MasterHost    string `yaml:"master_host"`
	MasterPort    int    `yaml:"master_port"`
	LocustfileDir string `yaml:"locustfile_dir"`
}

// DefaultEngineConfig returns settings for a stock locust installation.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Binary:     "locust",
		MasterFlag: "--master",
		WorkerFlag: "--worker",
		MasterHost: "127.0.0.1",
		MasterPort: 5557,
	}
}

// LoadEngineConfig reads an engine config file. An empty path returns the
// defaults; fields absent from the file keep their default values.
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading engine config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing engine config: %w", err)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from environment variables, looked up through
// getenv so tests need not touch the process environment.
func (c *EngineConfig) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvEngineBinary); v != "" {
		c.Binary = v
	}
	if v := getenv(EnvMasterHost); v != "" {
		c.MasterHost = v
	}
	if v := getenv(EnvMasterPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMasterPort, err)
		}
		c.MasterPort = port
	}
	return c.Validate()
}

// Validate checks that the engine can be invoked and addressed.
func (c EngineConfig) Validate() error {
	var errs []error
	if c.Binary == "" {
		errs = append(errs, errors.New("engine binary is empty"))
	}
	if c.MasterFlag == "" || c.WorkerFlag == "" {
		errs = append(errs, errors.New("master and worker flags are required"))
	}
	if c.MasterHost == "" {
		errs = append(errs, errors.New("master host is empty"))
	}
	if c.MasterPort < 1 || c.MasterPort > 65535 {
		errs = append(errs, fmt.Errorf("master port %d out of range", c.MasterPort))
	}
	return errors.Join(errs...)
}

// MasterArgs returns the role flags appended to the master's invocation.
func (c EngineConfig) MasterArgs() []string {
	return []string{
		c.MasterFlag,
		"--master-bind-host", c.MasterHost,
		"--master-bind-port", strconv.Itoa(c.MasterPort),
	}
}

// WorkerArgs returns the role flags appended to each worker's invocation.
func (c EngineConfig) WorkerArgs() []string {
	return []string{
		c.WorkerFlag,
		"--master-host", c.MasterHost,
		"--master-port", strconv.Itoa(c.MasterPort),
	}
}
