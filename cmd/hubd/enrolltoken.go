package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sondehub/hub/pkg/config"
	"github.com/sondehub/hub/pkg/enrollment"
	"github.com/sondehub/hub/pkg/store"
)

func newEnrollTokenCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "enroll-token",
		Short: "Manage agent enrollment tokens",
	}
	root.AddCommand(newEnrollTokenCreateCommand())
	return root
}

func newEnrollTokenCreateCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint a one-shot enrollment token for a new agent",
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
			ca, err := loadOrInitCA(ctx, st, cfg)
			if err != nil {
				return fmt.Errorf("load hub ca: %w", err)
			}

			if ttl <= 0 {
				ttl = cfg.Enrollment.DefaultTTL
			}

			svc := enrollment.New(st, ca, cfg.Enrollment.HubURL)
			token, err := svc.CreateToken(ctx, ttl)
			if err != nil {
				return fmt.Errorf("create enrollment token: %w", err)
			}

			fmt.Println(token.Token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to the configured enrollment.default_ttl)")
	return cmd
}
