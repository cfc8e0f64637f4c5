// Isstrackd is the ISS tracker daemon.
//
// It loads configuration, starts the HTTP/WebSocket server and runs the
// refresh loop that keeps the position history current. Shutdown is handled
// gracefully on SIGINT or SIGTERM and waits for any refresh in flight.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/iss-tracker/internal/app"
	"github.com/large-farva/iss-tracker/internal/config"
)

const defaultConfigPath = "/etc/isstrackd/isstrackd.toml"

func main() {
	var (
		configPath = pflag.StringP("config", "c", defaultConfigPath, "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides server.bind)")
		demoMode   = pflag.Bool("demo", false, "Serve and track the built-in demo feed")
	)
	pflag.Parse()

	logger := log.New(os.Stdout, "isstrackd ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !pflag.CommandLine.Changed("config"):
		logger.Printf("[warn] no config at %s, using defaults", *configPath)
		cfg = config.Default()
		*configPath = ""
	default:
		log.Fatalf("config load failed: %v", err)
	}
	if *demoMode {
		cfg.Demo.Enabled = true
	}

	a := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("isstrackd failed: %v", err)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}
