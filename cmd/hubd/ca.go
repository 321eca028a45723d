package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sondehub/hub/pkg/config"
	"github.com/sondehub/hub/pkg/store"
)

func newCACommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ca",
		Short: "Manage the hub's certificate authority",
	}
	root.AddCommand(newCAInitCommand())
	return root
}

func newCAInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate the hub CA if one does not already exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, envPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			ctx := context.Background()
			if _, err := st.GetHubCA(ctx); err == nil {
				fmt.Println("hub CA already initialized")
				return nil
			}

			ca, err := loadOrInitCA(ctx, st, cfg)
			if err != nil {
				return fmt.Errorf("initialize hub ca: %w", err)
			}

			fmt.Print(string(ca.CertPEM()))
			return nil
		},
	}
}
