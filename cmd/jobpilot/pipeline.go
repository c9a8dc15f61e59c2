package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jobpilot/internal/delivery/http/dto"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	promptYes = "Yes"
	promptNo  = "No"
)

var errAborted = errors.New("aborted")

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape one job board with the saved preferences and analyze new postings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		source, _ := cmd.Flags().GetString("source")
		return withSession(cmd, func(ctx context.Context, s session) error {
			summary, err := s.c.Orchestrator.ScrapeBoard(ctx, s.userID, strings.ToLower(strings.TrimSpace(source)))
			if perr := printJSON(cmd, summary); perr != nil {
				return perr
			}
			return err
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <job-id>",
	Short: "Fetch and store the description of a saved job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s session) error {
			p, err := s.c.Orchestrator.AnalyzeJob(ctx, s.userID, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.NewJobResponse(p))
		})
	},
}

var matchCmd = &cobra.Command{
	Use:   "match <job-id>",
	Short: "Score a saved job against the current CV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s session) error {
			r, err := s.c.Orchestrator.MatchJob(ctx, s.userID, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.NewMatchResponse(r))
		})
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <job-id>",
	Short: "Drive the application flow for a saved job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")
		return withSession(cmd, func(ctx context.Context, s session) error {
			if s.c.Config.Apply.SubmitEnabled && !yes {
				if err := confirm("Live submission is enabled. Send the application?"); err != nil {
					s.c.Log.Info("exiting", zap.String("reason", "got no from prompt"))
					return err
				}
			}
			o, err := s.c.Orchestrator.ApplyJob(ctx, s.userID, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.NewApplyOutcomeResponse(o))
		})
	},
}

var huntCmd = &cobra.Command{
	Use:   "hunt",
	Short: "Scrape every hunt board, analyze and match new jobs, and promote strong matches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s session) error {
			summary, err := s.c.Orchestrator.Hunt(ctx, s.userID)
			if err != nil {
				return err
			}
			s.c.Log.Info(summary.String())
			return printJSON(cmd, summary)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline counters and dependency health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s session) error {
			st, err := s.c.Orchestrator.Status(ctx, s.userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.NewPipelineStatusResponse(st))
		})
	},
}

func init() {
	scrapeCmd.Flags().StringP("source", "s", "", "board name from the board catalogue")
	_ = scrapeCmd.MarkFlagRequired("source")
	applyCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation when live submission is enabled")

	rootCmd.AddCommand(scrapeCmd, analyzeCmd, matchCmd, applyCmd, huntCmd, statusCmd)
}

func confirm(label string) error {
	p := promptui.Select{
		Label: label,
		Items: []string{promptYes, promptNo},
	}
	_, choice, err := p.Run()
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	if choice != promptYes {
		return errAborted
	}
	return nil
}
