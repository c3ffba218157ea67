package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stemsi/prairie-backend/internal/database"
	"github.com/stemsi/prairie-backend/internal/questiontype"
	"github.com/stemsi/prairie-backend/internal/render"
	"github.com/stemsi/prairie-backend/internal/repository"
	"github.com/stemsi/prairie-backend/internal/service"
)

func newGradingCmd() *cobra.Command {
	gradingCmd := &cobra.Command{
		Use:   "grading",
		Short: "External grading helpers",
	}

	gradingCmd.AddCommand(&cobra.Command{
		Use:   "notify <grading_job_id>",
		Short: "Re-publish the submission status of a grading job to its variant subscribers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0])
			if err != nil {
				return err
			}
			cfg, log := setup(cmd)
			ctx := commandContext(cmd)

			pool, err := database.NewPostgresPool(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			rdb, err := database.NewRedisClient(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rdb.Close()

			tokens, err := service.NewTokenService(cfg, log)
			if err != nil {
				return err
			}

			submissions := repository.NewSubmissionRepository(pool)
			variants := service.NewVariantService(
				repository.NewVariantRepository(pool),
				repository.NewQuestionRepository(pool),
				repository.NewCourseRepository(pool),
				service.NewIssueService(repository.NewIssueRepository(pool), log),
				questiontype.NewDefaultRegistry(),
				log,
			)
			bridge := service.NewGradingBridgeService(
				submissions, render.NewHTMLRenderer(variants, submissions), tokens, rdb, log,
			)

			if err := bridge.GradingJobStatusUpdated(ctx, jobID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "notified grading job %d\n", jobID)
			return nil
		},
	})

	return gradingCmd
}
