package main

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"tailscale.com/tsnet"

	"github.com/mozzarellastix/SWE-App/client"
)

var (
	serverURL  string
	token      string
	tailnetDir string
	verbose    bool

	tsServer *tsnet.Server
)

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVarP(&serverURL, "server", "s", envOr("SWEAPP_SERVER", "http://localhost:8080"), "Chat server base URL")
	flags.StringVarP(&token, "token", "t", os.Getenv("SWEAPP_TOKEN"), "Session token")
	flags.StringVar(&tailnetDir, "tailnet-state", "", "Join the tailnet with state in this directory and dial the server through it")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	RootCmd.AddCommand(LoginCmd, ChatCmd)
}

var RootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Command line chat client",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		if tailnetDir != "" {
			tsServer = &tsnet.Server{
				Hostname: "chatctl",
				Dir:      filepath.Clean(tailnetDir),
				Logf:     log.Debugf,
			}
			if err := tsServer.Start(); err != nil {
				return fmt.Errorf("join tailnet: %w", err)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if tsServer != nil {
			tsServer.Close()
		}
	},
}

// dialFunc routes connections through the tailnet when one was joined.
func dialFunc() client.DialFunc {
	if tsServer == nil {
		return nil
	}
	return tsServer.Dial
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
