package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"solara.ai/insights-gateway/app/domain/budget"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/utils/clock"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string
}

var ValidFormats = []string{"text", "json"}

// Deps builds the backends a command talks to. Constructors are called
// lazily so that --help never dials the cache.
type Deps struct {
	NewCache     func() cache.CacheService
	NewPricing   func() (*budget.PricingTable, error)
	BudgetConfig func() budget.Config
	Clock        clock.Clock
}

func NewEnvDeps() *Deps {
	return &Deps{
		NewCache:     cache.NewCacheService,
		NewPricing:   budget.NewPricingTableFromEnv,
		BudgetConfig: budget.ConfigFromEnv,
		Clock:        clock.NewSystemClock(),
	}
}

func NewRootCommand(deps *Deps) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "opsctl",
		Short: "Operator tooling for the insights gateway",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewBudgetCommand(opts, deps))
	cmd.AddCommand(NewCacheCommand(opts, deps))
	cmd.AddCommand(NewLockCommand(opts, deps))
	return cmd
}

// printResult writes v as indented JSON, or the text line otherwise.
func printResult(w io.Writer, opts *RootOptions, v any, text string) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
