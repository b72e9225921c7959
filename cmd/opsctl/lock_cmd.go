package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/infrastructure/lock"
)

type releaseResult struct {
	Key     string `json:"key"`
	Existed bool   `json:"existed"`
}

func NewLockCommand(rootOpts *RootOptions, deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Manage generation locks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "release <key>",
		Short: "Force-delete a stuck generation lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !strings.HasPrefix(key, cache.GenerationLockKeyPrefix+":") {
				return fmt.Errorf("%q is not a generation lock key", key)
			}
			cacheService := deps.NewCache()
			defer cacheService.Close()

			existed, err := cacheService.Exists(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", key, err)
			}
			if err := lock.ForceRelease(cmd.Context(), cacheService, key); err != nil {
				return fmt.Errorf("release %s: %w", key, err)
			}
			text := "released " + key
			if !existed {
				text = "no lock held at " + key
			}
			return printResult(cmd.OutOrStdout(), rootOpts, releaseResult{Key: key, Existed: existed}, text)
		},
	})
	return cmd
}
