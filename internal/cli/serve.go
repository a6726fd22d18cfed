package cli

import (
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yangfeiyang-123/arxiv-relay/internal/config"
	"github.com/yangfeiyang-123/arxiv-relay/internal/docfetch"
	"github.com/yangfeiyang-123/arxiv-relay/internal/github"
	"github.com/yangfeiyang-123/arxiv-relay/internal/logger"
	"github.com/yangfeiyang-123/arxiv-relay/internal/poller"
	"github.com/yangfeiyang-123/arxiv-relay/internal/relay"
	"github.com/yangfeiyang-123/arxiv-relay/internal/server"
)

func newServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initLogger(); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			srv := buildServer(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.WithFields(map[string]interface{}{
				"port":              cfg.Server.Port,
				"github_configured": cfg.GitHubConfigured(),
			}).Info("Starting arxiv-relay")

			if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Override the listen port")
	return cmd
}

// buildServer assembles the server's collaborators. Without GitHub
// credentials the dispatcher and poller stay nil and their actions report a
// configuration error; the chat relay works regardless.
func buildServer(cfg *config.Config) *server.Server {
	var (
		d server.Dispatcher
		p server.StatusPoller
	)
	if cfg.GitHubConfigured() {
		client := github.NewClient(cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Token,
			github.WithBaseURL(cfg.GitHub.APIBaseURL))
		d = client
		p = poller.New(client)
	} else {
		logger.Warn("GitHub credentials missing, dispatch and status disabled")
	}

	r := relay.New(cfg.LLM,
		relay.WithDocFetcher(docfetch.NewFetcher(cfg.LLM.ContextCharBudget)))

	return server.New(cfg, d, p, r)
}

var _ server.Dispatcher = (*github.Client)(nil)
