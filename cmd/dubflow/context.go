package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"dubflow/internal/config"
	"dubflow/internal/logging"
	"dubflow/internal/pipeline"
	"dubflow/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	format := cfg.Logging.Format
	if format == "" {
		// Pretty output for terminals, JSON when piped.
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "console"
		} else {
			format = "json"
		}
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: format,
	})
}

// withOrchestrator opens the store, builds the orchestrator, and runs fn,
// closing the store afterwards.
func (c *commandContext) withOrchestrator(fn func(*config.Config, *store.Store, *pipeline.Orchestrator) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	orch, err := pipeline.Build(cfg, logger, st)
	if err != nil {
		return err
	}
	if _, err := orch.Recover(context.Background()); err != nil {
		return err
	}
	return fn(cfg, st, orch)
}
