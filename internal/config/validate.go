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
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateEngines(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.APIBind) == "" {
		return errors.New("server.api_bind must be set")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	if len(c.Server.AllowedExtensions) == 0 {
		return errors.New("server.allowed_extensions must not be empty")
	}
	for _, ext := range c.Server.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("server.allowed_extensions entry %q is not a file extension", ext)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.WorkerCount <= 0 {
		return errors.New("workflow.worker_count must be positive")
	}
	if c.Workflow.QueueCapacity <= 0 {
		return errors.New("workflow.queue_capacity must be positive")
	}
	for name, value := range map[string]int{
		"workflow.separation_timeout":    c.Workflow.SeparationTimeout,
		"workflow.transcription_timeout": c.Workflow.TranscriptionTimeout,
		"workflow.notation_timeout":      c.Workflow.NotationTimeout,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Workflow.PersistRetries < 0 {
		return errors.New("workflow.persist_retries must not be negative")
	}
	return nil
}

func (c *Config) validateEngines() error {
	if strings.TrimSpace(c.Separation.Command) == "" {
		return errors.New("separation.command must be set")
	}
	if strings.TrimSpace(c.Separation.Model) == "" {
		return errors.New("separation.model must be set")
	}
	if strings.TrimSpace(c.Transcription.Command) == "" {
		return errors.New("transcription.command must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use console or json)", c.Logging.Format)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}
