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

package main

import (
	"fmt"

	"github.com/giftswap/giftswap/internal/config"
	"github.com/giftswap/giftswap/internal/identity"
	"github.com/spf13/cobra"
)

func newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first admin account",
		Long: "Create the first admin account from " + identity.EnvBootstrapAdminEmail + ", " +
			identity.EnvBootstrapAdminPassword + " and " + identity.EnvBootstrapAdminName +
			". Nothing is done if an admin already exists.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.DriverPostgres {
				return fmt.Errorf("bootstrap needs a persistent store; the %s driver bootstraps on serve", cfg.Store.Driver)
			}
			ctx := cmd.Context()

			b, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			return bootstrapAdmin(ctx, b, cfg)
		},
	}
}
