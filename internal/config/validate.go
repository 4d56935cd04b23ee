package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.validateGateway(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.ImagesDir == "" {
		return errors.New("paths.images_dir must be set")
	}
	if c.Paths.NotesDir == "" {
		return errors.New("paths.notes_dir must be set")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.StagingDir == c.Paths.DataDir {
		return errors.New("paths.staging_dir must not equal paths.data_dir")
	}
	return nil
}

func (c *Config) validateDevice() error {
	if c.Device.Host == "" {
		return errors.New("device.host must be set")
	}
	if c.Device.Port <= 0 || c.Device.Port > 65535 {
		return fmt.Errorf("device.port %d out of range", c.Device.Port)
	}
	if c.Device.TimeoutSeconds <= 0 {
		return errors.New("device.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateModels() error {
	if c.Models.Extraction == "" {
		return errors.New("models.extraction must be set")
	}
	if c.Models.Metadata == "" {
		return errors.New("models.metadata must be set")
	}
	for _, id := range []string{c.Models.Extraction, c.Models.Metadata} {
		if c.LocalModel(id) {
			if c.Ollama.BaseURL == "" {
				return fmt.Errorf("ollama.base_url must be set for local model %q", id)
			}
			continue
		}
		if strings.TrimSpace(c.Remote.APIKey) == "" {
			return fmt.Errorf("remote.api_key must be set for model %q (or list it under ollama.models)", id)
		}
	}
	return nil
}

func (c *Config) validateGateway() error {
	if c.Gateway.MaxRetries < 0 {
		return errors.New("gateway.max_retries must not be negative")
	}
	if c.Gateway.RetryDelaySeconds < 0 {
		return errors.New("gateway.retry_delay_seconds must not be negative")
	}
	if c.Gateway.PacingDelaySeconds < 0 {
		return errors.New("gateway.pacing_delay_seconds must not be negative")
	}
	if c.Gateway.ConvertWorkers < 0 {
		return errors.New("gateway.convert_workers must not be negative")
	}
	if c.Gateway.RemoteCallWorkers < 0 {
		return errors.New("gateway.remote_call_workers must not be negative")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.CheckIntervalSeconds <= 0 {
		return errors.New("watch.check_interval_seconds must be positive")
	}
	if c.Watch.SyncDelayMinutes < 0 {
		return errors.New("watch.sync_delay_minutes must not be negative")
	}
	if c.Watch.ProbeTimeoutSeconds <= 0 {
		return errors.New("watch.probe_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json", "":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
