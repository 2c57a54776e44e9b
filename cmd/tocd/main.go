package main

// tocd runs one ToC peer. Configuration is loaded through cmd/config's
// LoadConfig, which wraps pkg/config's viper-based loader: it reads
// cmd/config/default.yaml, optionally merges an environment-specific
// override file named by TOCD_ENV (e.g. TOCD_ENV=bootstrap loads
// cmd/config/bootstrap.yaml on top of the defaults), and picks up any
// matching environment variables automatically.

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	appconfig "tocd/cmd/config"
	"tocd/core"
)

var log = logrus.StandardLogger()

func main() {
	rootCmd := &cobra.Command{
		Use:   "tocd",
		Short: "table-of-contents coordinator daemon",
	}
	rootCmd.AddCommand(serveCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the ToC and block until SIGINT/SIGTERM",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	appconfig.LoadConfig(os.Getenv("TOCD_ENV"))
	appCfg := appconfig.AppConfig

	lvlStr := appCfg.Logging.Level
	if lvlStr == "" {
		lvlStr = "info"
	}
	lvl, err := logrus.ParseLevel(lvlStr)
	if err != nil {
		return fmt.Errorf("invalid logging level %s: %w", lvlStr, err)
	}
	log.SetLevel(lvl)

	if appCfg.Storage.StoragePath == "" {
		return fmt.Errorf("storage.storage_path not set")
	}

	searchExec := core.NewExecutor(4)
	toc, err := core.NewToC(&appCfg.Storage, searchExec, &core.ConsensusEnabled{FirstPeer: appCfg.Node.FirstPeer}, log)
	if err != nil {
		return fmt.Errorf("start toc: %w", err)
	}

	log.WithField("peer_id", toc.ThisPeerID()).Info("toc started")

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	<-sigC

	if err := toc.Close(); err != nil {
		log.WithError(err).Warn("toc shutdown reported an error")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "toc stopped")
	return nil
}
