package commands

import (
	"fmt"
	"os"

	"icp-pipeline/internal/backend"
	"icp-pipeline/internal/common/config"
	"icp-pipeline/internal/common/logger"
)

// Env is filled from the persistent flags before any subcommand runs.
type Env struct {
	ConfigPath string
	BackendURL string
	LogLevel   string

	Config *config.Config
	Logger logger.Logger
	API    *backend.Client
}

// Init loads configuration and builds the backend client. Logs go to stderr
// so that prompts and results on stdout stay readable.
func (e *Env) Init() error {
	if e.BackendURL != "" {
		if err := os.Setenv("BACKEND_BASE_URL", e.BackendURL); err != nil {
			return err
		}
	}

	var (
		cfg *config.Config
		err error
	)
	if e.ConfigPath != "" {
		cfg, err = config.LoadFromFile(e.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	e.Config = cfg
	e.Logger = logger.NewZapAdapter(logger.NewWithOptions(logger.Options{
		Level:  e.LogLevel,
		Format: "console",
		Output: "stderr",
	}))
	e.API = backend.NewClient(
		cfg.Backend.BaseURL,
		config.GetDuration(cfg.Backend.Timeout),
		cfg.Backend.MaxConcurrentRequests,
		e.Logger,
	)
	return nil
}
