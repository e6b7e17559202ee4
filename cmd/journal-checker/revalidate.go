// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var revalidateCmd = &cobra.Command{
	Use:   "revalidate",
	Short: "Refetch the journal table and rewrite the durable snapshot",
	Long: `Revalidate performs the same forced refresh as POST /revalidate-journals:
the full table is refetched and written to the key-value store under
journals-data, where running servers can warm from it.

The secret defaults to the configured REVALIDATE_SECRET.`,
	RunE: runRevalidate,
}

func init() {
	revalidateCmd.Flags().String("secret", "", "revalidation secret (default: configured revalidate_secret)")
	rootCmd.AddCommand(revalidateCmd)
}

func runRevalidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), true)
	if err != nil {
		return err
	}

	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		secret = cfg.RevalidateSecret
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.svc.Revalidate(cmd.Context(), secret); err != nil {
		return err
	}
	st := a.cache.Stats()
	fmt.Printf("revalidated %d journals at %s\n", st.Journals, st.FetchedAt.Format(time.RFC3339))
	return nil
}
