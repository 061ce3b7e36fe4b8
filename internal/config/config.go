// Copyright 2026 Agora Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "agora.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	// BackendURL is the indexer REST API the client reconciles against
	BackendURL string `yaml:"backendUrl"      split_words:"true"`
	// BackendToken is an optional bearer token for backend requests
	BackendToken string `yaml:"backendToken"    split_words:"true"`
	// Caller is the address governance actions are performed as
	Caller       string `yaml:"caller"`
	DatabasePath string `yaml:"databasePath"    split_words:"true"`
	BindAddr     string `yaml:"bindAddr"        split_words:"true"`
	// ConfirmTimeout bounds how long actions wait for backend confirmation
	ConfirmTimeout  string `yaml:"confirmTimeout"  split_words:"true"`
	ConfirmInterval string `yaml:"confirmInterval" split_words:"true"`
	ApiPort         uint   `yaml:"apiPort"         split_words:"true"`
	MetricsPort     uint   `yaml:"metricsPort"     split_words:"true"`
	Tracing         bool   `yaml:"tracing"`
	TracingStdout   bool   `yaml:"tracingStdout"   split_words:"true"`
	// Dev runs against the built-in mock chain instead of a live node
	Dev bool `yaml:"dev"`
}

var globalConfig = &Config{
	BackendURL:      "http://localhost:8090",
	DatabasePath:    ".agora",
	BindAddr:        "0.0.0.0",
	ConfirmTimeout:  "10s",
	ConfirmInterval: "1s",
	ApiPort:         8090,
	MetricsPort:     12798,
}

func LoadConfig(configFile string) (*Config, error) {
	// Check well-known locations when no config file is given
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".agora", "agora.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/agora/agora.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	if err := envconfig.Process("agora", globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if _, err := globalConfig.ConfirmTimeoutDuration(); err != nil {
		return nil, err
	}
	if _, err := globalConfig.ConfirmIntervalDuration(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

func (c *Config) ConfirmTimeoutDuration() (time.Duration, error) {
	ret, err := time.ParseDuration(c.ConfirmTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid confirm timeout: %w", err)
	}
	return ret, nil
}

func (c *Config) ConfirmIntervalDuration() (time.Duration, error) {
	ret, err := time.ParseDuration(c.ConfirmInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid confirm interval: %w", err)
	}
	return ret, nil
}
