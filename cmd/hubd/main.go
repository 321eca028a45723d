// Command hubd runs the Sonde Hub coordination plane: the agent dispatcher,
// probe router, runbook engine, and caller-facing HTTP API, grounded on
// tarsy's cmd/tarsy/main.go process wiring and generalised to a cobra
// command tree (kiosk404-echoryn's internal/echoadm/cmd NewCmd* shape,
// trimmed to this module's needs — no plugin factory/IOStreams machinery).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envPath    string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "hubd",
		Short: "Sonde Hub coordination plane",
		Long:  "hubd runs the Sonde Hub server: agent dispatch, probe routing, runbooks, and enrollment.",
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to hub.yaml (optional; built-in defaults apply if unset)")
	root.PersistentFlags().StringVar(&envPath, "env-file", ".env", "Path to a .env file to load into the process environment")

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newCACommand())
	root.AddCommand(newEnrollTokenCommand())

	return root
}
