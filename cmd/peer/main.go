package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"

	"sockprobe/internal/peer"
	"sockprobe/internal/shared/config"
	"sockprobe/internal/shared/logger"
)

// peer 是配合探针手工测试用的回显服务端
func main() {
	var args struct {
		Config   string  `arg:"-c,--config" help:"path to an ini config file (optional)"`
		Listen   *string `arg:"-l,--listen" help:"listen address, host:port"`
		Greeting *string `arg:"--greeting" help:"text written to every new client"`
		NoEcho   bool    `arg:"--no-echo" help:"do not echo received data"`
		LogLevel *string `arg:"--log-level" help:"log level: debug, info, warn, error"`
	}
	arg.MustParse(&args)

	cfg, err := config.Load(args.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}
	if args.Listen != nil {
		cfg.Listen = *args.Listen
	}
	if args.Greeting != nil {
		cfg.Greeting = *args.Greeting
	}
	if args.LogLevel != nil {
		cfg.Level = *args.LogLevel
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(2)
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Fatal().Err(err).Msgf("Failed to listen on %s", cfg.Listen)
	}
	logger.Info().Str("addr", ln.Addr().String()).Msg("Peer listening. Press Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := peer.New(cfg.Greeting)
	srv.Echo = !args.NoEcho
	if err := srv.Serve(ctx, ln); err != nil {
		logger.Error().Err(err).Msg("Peer stopped with an error")
		os.Exit(1)
	}
	st := srv.Stats()
	logger.Info().Int("connections", st.Connections).Int64("bytes_received", st.BytesReceived).Msg("Peer shutdown complete")
}
