package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"quill/internal/config"
	"quill/internal/journal"
	"quill/internal/logging"
	"quill/internal/pipeline"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
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
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.loggerOnce.Do(func() {
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			OutputPaths: []string{
				"stdout",
				filepath.Join(cfg.Paths.LogDir, "quill.log"),
			},
		})
	})
	return c.logger, c.loggerErr
}

// newPipeline builds a pipeline with an open journal. The caller owns the
// returned store and must close it.
func (c *commandContext) newPipeline() (*pipeline.Pipeline, *journal.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	store, err := journal.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(cfg, logger, store), store, nil
}
