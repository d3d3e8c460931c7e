/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/bubblebox/bubbles"
)

func validConfig() *Config {
	return &Config{
		bind:   "127.0.0.1",
		port:   8080,
		engine: bubbles.DefaultConfig(),
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port too low", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 70000 }, "invalid port"},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, "--tls-key"},
		{"negative scene timeout", func(c *Config) { c.sceneTimeout = -time.Second }, "scene timeout"},
		{"bad engine", func(c *Config) { c.engine.WaveSize = 0 }, "wave size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScheme(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestNewCmdDefaults(t *testing.T) {
	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, time.Hour, cfg.sceneTimeout)
	assert.Equal(t, bubbles.DefaultConfig(), cfg.engine)
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("BUBBLEBOX_PORT", "9090")
	t.Setenv("BUBBLEBOX_WAVE_SIZE", "2")
	t.Setenv("BUBBLEBOX_STAGGER", "250ms")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, 2, cfg.engine.WaveSize)
	assert.Equal(t, 250*time.Millisecond, cfg.engine.Stagger)
}

func TestNewCmdRejectsInvalidFlags(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	cmd.SetArgs([]string{"--port", "0"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}
