//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads the apstream YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-actionpacket-go/log"
)

// Config is the apstream configuration file.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Feed      FeedConfig      `yaml:"feed"`
	Replay    ReplayConfig    `yaml:"replay"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LogConfig configures the log package.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	Trace bool   `yaml:"trace"`
}

// ServerConfig configures apstream serve.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// FeedConfig configures the stream pumps.
type FeedConfig struct {
	ChunkSize  int `yaml:"chunk_size"`
	MaxPending int `yaml:"max_pending"`
}

// ReplayConfig configures apstream replay.
type ReplayConfig struct {
	Workers int `yaml:"workers"`
}

// TelemetryConfig configures the OTLP exporters. Both are off by default.
type TelemetryConfig struct {
	Metrics  bool   `yaml:"metrics"`
	Traces   bool   `yaml:"traces"`
	Protocol string `yaml:"protocol"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: log.LevelInfo},
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
		},
		Feed: FeedConfig{
			ChunkSize:  32 << 10,
			MaxPending: 16 << 20,
		},
		Replay:    ReplayConfig{Workers: 4},
		Telemetry: TelemetryConfig{Protocol: "grpc"},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that have no safe fallback.
func (c *Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Feed.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("feed.chunk_size must be positive, got %d", c.Feed.ChunkSize))
	}
	if c.Replay.Workers <= 0 {
		errs = append(errs, fmt.Errorf("replay.workers must be positive, got %d", c.Replay.Workers))
	}
	switch c.Telemetry.Protocol {
	case "grpc", "http":
	default:
		errs = append(errs, fmt.Errorf("telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol))
	}
	return errors.Join(errs...)
}
