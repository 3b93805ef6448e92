package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/julestools/julesmcp/internal/browser"
	"github.com/julestools/julesmcp/internal/config"
	"github.com/julestools/julesmcp/internal/logging"
	"github.com/julestools/julesmcp/internal/mcp"
	"github.com/julestools/julesmcp/internal/monitor"
	"github.com/julestools/julesmcp/internal/store"
)

// AppVersion is reported by the version command and the MCP handshake.
var AppVersion = "1.0.0"

// App bundles the wired components the commands run against (set by main).
type App struct {
	Config  *config.Config
	Manager *browser.Manager
	Store   *store.Store
	Monitor *monitor.Monitor
	Server  *mcp.Server
}

var app *App

var debugFlag bool

// SetupRootCmd configures the root command with all subcommands and flags.
// The root command itself serves MCP on stdio.
func SetupRootCmd(a *App) *cobra.Command {
	app = a

	rootCmd := &cobra.Command{
		Use:   "julesmcp",
		Short: "MCP server that drives the Jules task dashboard through a browser",
		Long: `julesmcp automates jules.google.com through a managed browser session and
exposes the task operations (create, inspect, message, approve, resume,
analyze, screenshot) as MCP tools.

Run without arguments to serve MCP on stdio, the transport MCP clients
spawn. Use 'serve' for the HTTP transport, 'check' to verify the session
configuration, and 'auth' to manage the Browserbase API key.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debugFlag {
				app.Config.Debug = true
				logging.SetDebug(true)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			runStdio()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(CheckCmd())
	rootCmd.AddCommand(AuthCmd())
	rootCmd.AddCommand(VersionCmd())

	return rootCmd
}

// VersionCmd creates the version command.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("julesmcp %s\n", AppVersion)
		},
	}
}
