package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"solara.ai/insights-gateway/app/domain/budget"
)

func NewBudgetCommand(rootOpts *RootOptions, deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect the daily generation budget",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show today's used, limit and remaining spend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBudgetStatus(cmd, rootOpts, deps)
		},
	})
	return cmd
}

func runBudgetStatus(cmd *cobra.Command, opts *RootOptions, deps *Deps) error {
	pricing, err := deps.NewPricing()
	if err != nil {
		return err
	}
	cacheService := deps.NewCache()
	defer cacheService.Close()

	governor := budget.NewGovernorWithConfig(cacheService, deps.Clock, pricing, deps.BudgetConfig(), nil)
	status, err := governor.CheckBudget(cmd.Context())
	if err != nil {
		return fmt.Errorf("read budget: %w", err)
	}

	state := "open"
	if !status.Allowed {
		state = "exhausted"
	}
	text := fmt.Sprintf("day=%s used=%.4f limit=%.4f remaining=%.4f state=%s prices=%s",
		status.Day, status.Used, status.Limit, status.Remaining, state, pricing.Version)
	return printResult(cmd.OutOrStdout(), opts, status, text)
}
