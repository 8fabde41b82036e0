package commands

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// newInboxCommand lists a user's signal inbox through the HTTP API.
func newInboxCommand() *cobra.Command {
	var (
		apiAddr    string
		userID     string
		workflowID string
		signalType string
		unreadOnly bool
		limit      int
		countOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List signals in a user's inbox",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := interruptContext()
			defer stop()

			client := newAPIClient(apiAddr)
			q := url.Values{"user_id": {userID}}

			if countOnly {
				var resp struct {
					Count int `json:"count"`
				}
				if err := client.getJSON(ctx, "/inbox/signals/unread-count", q, &resp); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Count)
				return nil
			}

			if workflowID != "" {
				q.Set("workflow_id", workflowID)
			}
			if signalType != "" {
				q.Set("signal_type", signalType)
			}
			if unreadOnly {
				q.Set("unread_only", "true")
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			var resp struct {
				Signals []map[string]any `json:"signals"`
				Total   int              `json:"total"`
			}
			if err := client.getJSON(ctx, "/inbox/signals", q, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", defaultAPIAddr, "Curator API base URL")
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.Flags().StringVar(&workflowID, "workflow", "", "Filter by workflow ID")
	cmd.Flags().StringVar(&signalType, "type", "", "Filter by signal type")
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "Only unread signals")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum signals to return")
	cmd.Flags().BoolVar(&countOnly, "count", false, "Print the unread count only")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
