package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stemsi/prairie-backend/internal/database"
	"github.com/stemsi/prairie-backend/internal/model"
	"github.com/stemsi/prairie-backend/internal/questiontype"
	"github.com/stemsi/prairie-backend/internal/repository"
	"github.com/stemsi/prairie-backend/internal/service"
)

type variantPreview struct {
	Issues  []model.CourseIssue `json:"issues"`
	Variant *model.Variant      `json:"variant"`
}

func newVariantCmd() *cobra.Command {
	variantCmd := &cobra.Command{
		Use:   "variant",
		Short: "Variant generation helpers",
	}

	makeCmd := &cobra.Command{
		Use:   "make <question_id>",
		Short: "Generate a variant without storing it and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			questionID, err := parseID(args[0])
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

			variants := service.NewVariantService(
				repository.NewVariantRepository(pool),
				repository.NewQuestionRepository(pool),
				repository.NewCourseRepository(pool),
				service.NewIssueService(repository.NewIssueRepository(pool), log),
				questiontype.NewDefaultRegistry(),
				log,
			)

			question, err := variants.GetQuestion(ctx, questionID)
			if err != nil {
				return err
			}
			course, err := variants.GetQuestionCourse(ctx, question, nil)
			if err != nil {
				return err
			}

			var opts service.VariantOptions
			if seed, _ := cmd.Flags().GetString("seed"); seed != "" {
				opts.VariantSeed = &seed
			}

			issues, variant, err := variants.MakeVariant(ctx, question, course, opts)
			if err != nil {
				return err
			}
			variant.QuestionID = question.ID
			variant.CourseID = course.ID

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(variantPreview{Issues: issues, Variant: variant})
		},
	}
	makeCmd.Flags().String("seed", "", "Use this variant seed instead of a random one")

	countCmd := &cobra.Command{
		Use:   "count <instance_question_id>",
		Short: "Print how many variants an instance question has",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iqID, err := parseID(args[0])
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

			n, err := repository.NewVariantRepository(pool).CountByInstanceQuestion(ctx, iqID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	variantCmd.AddCommand(makeCmd, countCmd)
	return variantCmd
}
