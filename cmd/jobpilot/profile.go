package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"jobpilot/internal/delivery/http/dto"
	"jobpilot/internal/domain/cv"

	"github.com/spf13/cobra"
)

var cvCmd = &cobra.Command{
	Use:   "cv",
	Short: "Show or replace the current CV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s session) error {
			v, err := s.c.CVs.Current(ctx, s.userID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), v.Content)
			return err
		})
	},
}

var cvSetCmd = &cobra.Command{
	Use:   "set <file|->",
	Short: "Store a new CV version from a file or stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, _ := cmd.Flags().GetString("summary")
		content, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s session) error {
			v, created, err := s.c.CVs.UpdateWithVersion(ctx, s.userID, content, cv.SourceUpload, summary)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintln(cmd.ErrOrStderr(), "content unchanged, no new version stored")
			}
			return printJSON(cmd, dto.NewCVResponse(v, false))
		})
	},
}

var cvHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored CV versions, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withSession(cmd, func(ctx context.Context, s session) error {
			vs, err := s.c.CVs.History(ctx, s.userID, limit)
			if err != nil {
				return err
			}
			out := make([]dto.CVResponse, 0, len(vs))
			for _, v := range vs {
				out = append(out, dto.NewCVResponse(v, false))
			}
			return printJSON(cmd, out)
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print an API access token for the acting user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s session) error {
			u, err := s.c.Users.GetByID(ctx, s.userID)
			if err != nil {
				return err
			}
			tok, err := s.c.JWT.GenerateToken(u.ID, u.Email)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		})
	},
}

func init() {
	cvSetCmd.Flags().String("summary", "", "change summary stored with the version")
	cvHistoryCmd.Flags().Int("limit", 20, "maximum versions to list")
	cvCmd.AddCommand(cvSetCmd, cvHistoryCmd)

	rootCmd.AddCommand(cvCmd, tokenCmd)
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read cv: %w", err)
	}
	return string(b), nil
}
