package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/courier/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (optional, defaults to ~/.config/courier/config.toml)")
	prefsPath := flag.String("prefs", "", "preferences file path (optional)")
	poll := flag.Duration("poll", 0, "status poll interval, e.g. 5s (optional, overrides poll-interval)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{ConfigPath: *configPath, PrefsPath: *prefsPath}
	if d := *poll; d > 0 {
		opts.PollEvery = d
	} else if d < 0 {
		fmt.Fprintf(os.Stderr, "courier: -poll must be positive, got %s\n", d)
		return 2
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "courier: %v\n", err)
		return 1
	}
	return 0
}
