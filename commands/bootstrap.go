package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// newBootstrapCommand starts a domain bootstrap through the HTTP API.
func newBootstrapCommand() *cobra.Command {
	var (
		apiAddr     string
		ownerID     string
		title       string
		description string
		slug        string
		topics      []string
		audience    []string
		budget      float64
		wait        bool
	)

	cmd := &cobra.Command{
		Use:   "bootstrap-domain",
		Short: "Start a knowledge domain bootstrap",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := interruptContext()
			defer stop()

			client := newAPIClient(apiAddr)
			req := map[string]any{
				"owner_id":        ownerID,
				"title":           title,
				"description":     description,
				"slug":            slug,
				"initial_topics":  topics,
				"target_audience": audience,
			}
			if budget > 0 {
				req["budget_limit"] = budget
			}
			var resp struct {
				WorkflowID string `json:"workflow_id"`
				RunID      string `json:"run_id"`
				Status     string `json:"status"`
				Message    string `json:"message"`
			}
			if err := client.postJSON(ctx, "/domains", req, &resp); err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !wait {
				return nil
			}
			return watchDomain(ctx, client, resp.WorkflowID, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", defaultAPIAddr, "Curator API base URL")
	cmd.Flags().StringVar(&ownerID, "owner", "", "Owner user ID (required)")
	cmd.Flags().StringVar(&title, "title", "", "Domain title (required)")
	cmd.Flags().StringVar(&description, "description", "", "Domain description")
	cmd.Flags().StringVar(&slug, "slug", "", "URL slug (derived from title if empty)")
	cmd.Flags().StringSliceVar(&topics, "topic", nil, "Initial topic (repeatable)")
	cmd.Flags().StringSliceVar(&audience, "audience", nil, "Target audience (repeatable)")
	cmd.Flags().Float64Var(&budget, "budget", 0, "AI spend limit in USD")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the bootstrap reaches a terminal state")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

// watchDomain polls the bootstrap status until it leaves its in-flight states.
func watchDomain(ctx context.Context, client *apiClient, workflowID string, out io.Writer) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return ErrInterrupted
		case <-ticker.C:
		}
		var status struct {
			Status       string `json:"status"`
			ErrorMessage string `json:"error_message"`
		}
		err := client.getJSON(ctx, "/domains/"+workflowID+"/status", nil, &status)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ErrInterrupted
			}
			return err
		}
		if status.Status != last {
			fmt.Fprintf(out, "status: %s\n", status.Status)
			last = status.Status
		}
		switch status.Status {
		case "active":
			return nil
		case "rejected", "failed":
			if status.ErrorMessage != "" {
				return fmt.Errorf("bootstrap %s: %s", status.Status, status.ErrorMessage)
			}
			return fmt.Errorf("bootstrap %s", status.Status)
		}
	}
}
