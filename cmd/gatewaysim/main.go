package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/five82/courier/internal/gatewaysim"
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	apiKey := flag.String("api-key", os.Getenv("COURIER_API_KEY"), "expected apikey header (defaults to $COURIER_API_KEY; empty disables auth)")
	pairAfter := flag.Int("pair-after", 2, "list calls an instance stays connecting before it offers a QR code")
	seed := flag.String("seed", "", "comma-separated name=status pairs to preload, e.g. agente=close")
	verbose := flag.Bool("v", false, "log every request")
	flag.Parse()

	cfg := zap.NewDevelopmentConfig()
	if !*verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatewaysim: build logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	sim := gatewaysim.New(gatewaysim.Options{
		APIKey:    strings.TrimSpace(*apiKey),
		PairAfter: *pairAfter,
		Logger:    logger,
	})
	for _, pair := range strings.Split(*seed, ",") {
		name, status, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		sim.Seed(strings.TrimSpace(name), strings.TrimSpace(status))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sim.Serve(ctx, *addr); err != nil {
		logger.Error("simulator stopped", zap.Error(err))
		return 1
	}
	return 0
}
