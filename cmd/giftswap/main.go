// Copyright 2026 The Giftswap Authors
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

// Command giftswap runs the gift exchange API.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/giftswap/giftswap/internal/config"
	"github.com/giftswap/giftswap/internal/observability/logger"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "giftswap",
		Short:         "Gift exchange groups with resource-scoped permissions",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to YAML config file (overrides "+config.EnvConfigFile+")")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newBootstrapCmd(), newResetCmd())
	return root
}

// loadConfig reads configuration and initializes the global logger.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		if err := os.Setenv(config.EnvConfigFile, cfgFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTEL:        cfg.Observability.OTELEnabled,
	})
	slog.Debug("configuration loaded", logger.String("store_driver", cfg.Store.Driver))
	return cfg, nil
}
