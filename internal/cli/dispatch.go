package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yangfeiyang-123/arxiv-relay/internal/dispatch"
	"github.com/yangfeiyang-123/arxiv-relay/internal/github"
)

// newDispatchCommand fires one workflow dispatch from the command line,
// bypassing the HTTP surface. Useful for cron and smoke tests.
func newDispatchCommand() *cobra.Command {
	var (
		arxivID string
		mode    string
		n       int
		ref     string
	)

	cmd := &cobra.Command{
		Use:   "dispatch <action>",
		Short: "Trigger a workflow run directly",
		Long: `Trigger a workflow run directly.

Actions: update, summarize_new, summarize_one (requires --arxiv-id).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initLogger(); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.GitHubConfigured() {
				return fmt.Errorf("GITHUB_OWNER, GITHUB_REPO and GITHUB_TOKEN must be set")
			}

			tag := "cli-" + uuid.New().String()[:8]
			req, err := dispatch.Resolve(dispatch.Payload{
				Action:    args[0],
				Ref:       ref,
				ArxivID:   arxivID,
				Mode:      mode,
				N:         n,
				ClientTag: tag,
			}, cfg)
			if err != nil {
				return err
			}

			client := github.NewClient(cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Token,
				github.WithBaseURL(cfg.GitHub.APIBaseURL))
			if err := client.DispatchWorkflow(cmd.Context(), req.Workflow, req.Ref, req.Inputs); err != nil {
				return err
			}

			out, _ := json.MarshalIndent(map[string]interface{}{
				"ok":         true,
				"action":     req.Action,
				"workflow":   req.Workflow,
				"ref":        req.Ref,
				"client_tag": tag,
				"inputs":     req.Inputs,
			}, "", "  ")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().StringVar(&arxivID, "arxiv-id", "", "Paper identifier for summarize_one")
	cmd.Flags().StringVar(&mode, "mode", "", "Summarization mode: fast or deep")
	cmd.Flags().IntVar(&n, "n", 0, "Batch size for summarize_new")
	cmd.Flags().StringVar(&ref, "ref", "", "Git ref to dispatch against")
	return cmd
}
