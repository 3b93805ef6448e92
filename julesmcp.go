package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	cli "github.com/julestools/julesmcp/cmd/julesmcp"
	"github.com/julestools/julesmcp/internal/browser"
	"github.com/julestools/julesmcp/internal/browserbase"
	"github.com/julestools/julesmcp/internal/config"
	"github.com/julestools/julesmcp/internal/jules"
	"github.com/julestools/julesmcp/internal/logging"
	"github.com/julestools/julesmcp/internal/mcp"
	"github.com/julestools/julesmcp/internal/monitor"
	"github.com/julestools/julesmcp/internal/store"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logging.SetDebug(cfg.Debug)

	// Remote provisioning only exists in browserbase mode; the manager treats
	// a nil provisioner as a configuration error if that mode is selected.
	var provisioner browser.Provisioner
	if cfg.Mode == config.ModeBrowserbase {
		provisioner = browserbase.New(cfg)
	}

	manager := browser.NewManager(cfg, provisioner)
	taskStore := store.NewWatched(cfg.StorePath)
	driver := jules.NewDriver(cfg, manager, taskStore)

	app := &cli.App{
		Config:  cfg,
		Manager: manager,
		Store:   taskStore,
		Monitor: monitor.New(driver, cfg.RefreshSchedule, 0),
		Server:  mcp.NewServer(driver, cli.AppVersion),
	}

	if err := cli.SetupRootCmd(app).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
