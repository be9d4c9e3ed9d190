// Command endor-ops automates operational tasks against the Endor Labs API:
// depth tagging of vulnerability findings, dependency path reports, dependency
// exports, and CSV-driven project tagging.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/endorlabs-cs/endor-ops/pkg/config"
	"github.com/endorlabs-cs/endor-ops/pkg/endor"
	"github.com/endorlabs-cs/endor-ops/pkg/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "endor-ops",
	Short:         "Operational tasks for an Endor Labs tenant",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd.Flags())
		if err != nil {
			return err
		}

		level := slog.LevelInfo
		if cfg.Verbose > 0 {
			level = slog.LevelDebug
		}
		if cfg.JSONLogs {
			logging.SetJSONOutput(level)
		} else {
			logging.SetLevel(level)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("namespace", "", "Endor Labs namespace to operate on")
	pf.String("api-url", "", "API base URL (defaults to the production endpoint)")
	pf.String("token", "", "API token (overrides key/secret exchange)")
	pf.String("api-key", "", "API key for token exchange")
	pf.String("api-secret", "", "API secret for token exchange")
	pf.Int("timeout", 0, "per-request timeout in seconds")
	pf.Int("rate-limit", 0, "max API requests per second, 0 for unlimited")
	pf.CountP("verbose", "v", "enable debug logging")
	pf.Bool("json-logs", false, "emit logs as JSON")
}

// runContext returns a context carrying a fresh run ID so every log line of
// one invocation can be correlated.
func runContext() context.Context {
	return logging.WithRunID(context.Background(), logging.NewRunID())
}

func newClient(ctx context.Context) (*endor.Client, error) {
	return endor.NewClient(ctx, endor.Options{
		BaseURL:   cfg.APIURL,
		Namespace: cfg.Namespace,
		Credentials: endor.Credentials{
			Token:  cfg.Token,
			Key:    cfg.APIKey,
			Secret: cfg.APISecret,
		},
		Timeout:   time.Duration(cfg.Timeout) * time.Second,
		RateLimit: cfg.RateLimit,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logging.Error("command failed", "error", err)
		os.Exit(1)
	}
}
