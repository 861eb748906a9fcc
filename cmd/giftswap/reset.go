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
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all data from the database (development only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to reset without --yes")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := openPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "Cleaning database...")
			if err := db.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database cleaned.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm that all data will be deleted")
	return cmd
}
