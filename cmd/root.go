package cmd

import (
	"context"
	"os"

	"github.com/jrschumacher/dis.quest/internal/config"
	"github.com/jrschumacher/dis.quest/internal/logger"
	"github.com/spf13/cobra"

	// Blank-imported so their init() functions register with
	// pdsclient.RegisterBackend before any command calls pdsclient.Open.
	_ "github.com/jrschumacher/dis.quest/pkg/pdsclient/filestore"
	_ "github.com/jrschumacher/dis.quest/pkg/pdsclient/xrpc"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pdsctl",
	Short: "pdsctl CLI",
	Long:  `pdsctl — a command-line client for AT Protocol Personal Data Servers, backed by either a remote PDS or a local filesystem store.`,
}

// Execute runs the CLI, wiring cfg into every subcommand via the package var.
func Execute(c *config.Config) {
	cfg = c
	logger.Info("starting pdsctl", "pds_url", cfg.PDSURL)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// rootContext is the background context every subcommand threads through
// its Pds/Session calls; pdsctl has no request scope of its own to cancel with.
func rootContext() context.Context {
	return context.Background()
}
