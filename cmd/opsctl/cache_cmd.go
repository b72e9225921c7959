package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"solara.ai/insights-gateway/app/domain/subject"
	"solara.ai/insights-gateway/app/infrastructure/cache"
)

type invalidateResult struct {
	SubjectID string `json:"subject_id"`
	Pattern   string `json:"pattern"`
}

func NewCacheCommand(rootOpts *RootOptions, deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached generated content",
	}

	var subjectID string
	invalidate := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop every cached entry of one subject",
		Long: `Unlinks all cached generated content of a subject. Durable records
are kept, so stable kinds are served again from the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !subject.ValidPublicID(subjectID) {
				return fmt.Errorf("invalid subject id %q", subjectID)
			}
			cacheService := deps.NewCache()
			defer cacheService.Close()

			pattern := cache.SubjectContentPattern(subjectID)
			if err := cacheService.DeletePattern(cmd.Context(), pattern); err != nil {
				return fmt.Errorf("invalidate %s: %w", subjectID, err)
			}
			return printResult(cmd.OutOrStdout(), rootOpts,
				invalidateResult{SubjectID: subjectID, Pattern: pattern},
				"invalidated "+pattern)
		},
	}
	invalidate.Flags().StringVar(&subjectID, "subject", "", "public subject id")
	_ = invalidate.MarkFlagRequired("subject")

	cmd.AddCommand(invalidate)
	return cmd
}
