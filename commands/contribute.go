package commands

import (
	"github.com/spf13/cobra"
)

// newContributeCommand submits a document contribution through the HTTP API.
func newContributeCommand() *cobra.Command {
	var (
		apiAddr       string
		domainID      string
		contributorID string
		fileRef       string
		title         string
		contentType   string
	)

	cmd := &cobra.Command{
		Use:   "contribute",
		Short: "Submit a document to a knowledge domain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := interruptContext()
			defer stop()

			client := newAPIClient(apiAddr)
			req := map[string]any{
				"domain_id":      domainID,
				"contributor_id": contributorID,
				"file_ref":       fileRef,
				"title":          title,
				"content_type":   contentType,
			}
			var resp struct {
				WorkflowID string `json:"workflow_id"`
				RunID      string `json:"run_id"`
				Status     string `json:"status"`
				Message    string `json:"message"`
			}
			if err := client.postJSON(ctx, "/documents", req, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", defaultAPIAddr, "Curator API base URL")
	cmd.Flags().StringVar(&domainID, "domain", "", "Domain ID (required)")
	cmd.Flags().StringVar(&contributorID, "contributor", "", "Contributor user ID (required)")
	cmd.Flags().StringVar(&fileRef, "file", "", "File reference in document storage (required)")
	cmd.Flags().StringVar(&title, "title", "", "Document title")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Document content type")
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("contributor")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
