package main

import (
	"strings"

	"soundsketch/internal/api"
	"soundsketch/internal/config"
)

// commandContext carries lazily resolved configuration and the API client
// shared by all subcommands.
type commandContext struct {
	addrFlag   *string
	configFlag *string

	cfg *config.Config
}

func newCommandContext(addrFlag, configFlag *string) *commandContext {
	return &commandContext{addrFlag: addrFlag, configFlag: configFlag}
}

// ensureConfig loads the configuration once. Missing files are not an error;
// defaults apply.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// apiClient resolves the daemon address (flag wins over config) and returns
// a client for it.
func (c *commandContext) apiClient() (*api.Client, error) {
	addr := ""
	if c.addrFlag != nil {
		addr = strings.TrimSpace(*c.addrFlag)
	}
	if addr == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		addr = cfg.Server.APIBind
	}
	return api.NewClient(addr), nil
}
