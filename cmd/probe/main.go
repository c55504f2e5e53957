package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"

	"sockprobe/internal/probe"
	"sockprobe/internal/shared/config"
	"sockprobe/internal/shared/logger"
	"sockprobe/internal/shared/types"
)

// 退出码
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

type probeArgs struct {
	Config          string         `arg:"-c,--config" help:"path to an ini config file (optional)"`
	Host            *string        `arg:"--host" help:"target IPv4 address"`
	Port            *int           `arg:"-p,--port" help:"target TCP port"`
	Pause           *time.Duration `arg:"--pause" help:"delay before connect and before send"`
	Rounds          *int           `arg:"--rounds" help:"number of scatter-gather sends"`
	StrictPeerCheck bool           `arg:"--strict-peer-check" help:"treat the pre-connect peer query failure as fatal"`
	UnconnectedSend bool           `arg:"--unconnected-send" help:"try a sendmsg before connecting"`
	Format          *string        `arg:"-f,--format" help:"report format: text, json or yaml"`
	LogLevel        *string        `arg:"--log-level" help:"log level: debug, info, warn, error"`
}

func (probeArgs) Description() string {
	return "sockprobe connects to a TCP endpoint and walks through the socket API step by step."
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	var args probeArgs
	parser, err := arg.NewParser(arg.Config{Program: "probe"}, &args)
	if err != nil {
		fmt.Fprintf(stderr, "Fatal: %v\n", err)
		return exitUsage
	}
	if err := parser.Parse(argv); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			parser.WriteHelp(stdout)
			return exitOK
		}
		parser.WriteUsage(stderr)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	cfg, err := config.Load(args.Config)
	if err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(stderr, "Fatal: %v\n", err)
		return exitUsage
	}
	applyArgs(cfg, &args)

	if err := logger.InitWithWriter(cfg.LogConf, stderr); err != nil {
		fmt.Fprintf(stderr, "Fatal: Failed to initialize logger: %v\n", err)
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return exitUsage
	}
	target, err := cfg.Target()
	if err != nil {
		logger.Error().Err(err).Msg("Invalid target")
		return exitUsage
	}
	logger.Info().
		Endpoint("target", target).
		Bool("strict_peer_check", cfg.StrictPeerCheck).
		Bool("unconnected_send", cfg.UnconnectedSend).
		Msg("Starting probe")

	ctx, stop := signalContext(context.Background())
	defer stop()

	// 结构化报告格式下不打印逐步输出，避免混入 json/yaml
	var steps io.Writer = stdout
	if cfg.Format != "text" {
		steps = io.Discard
	}

	report, runErr := probe.New(cfg, steps).Run(ctx)
	if err := report.Render(stdout, cfg.Format); err != nil {
		logger.Error().Err(err).Msg("Failed to write report")
	}
	if runErr != nil {
		return exitFailed
	}
	return exitOK
}

// signalContext 在收到第一个 SIGINT/SIGTERM 时取消 ctx，并立即恢复默认的信号处理。
// 阻塞中的 connect/read 不会被 ctx 打断，第二次 Ctrl+C 会直接结束进程。
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	context.AfterFunc(ctx, func() {
		stop()
		if parent.Err() == nil {
			logger.Warn().Msg("Interrupted; the probe stops after the current socket call, press Ctrl+C again to exit now")
		}
	})
	return ctx, stop
}

func applyArgs(cfg *types.Config, args *probeArgs) {
	if args.Host != nil {
		cfg.Host = *args.Host
	}
	if args.Port != nil {
		cfg.Port = *args.Port
	}
	if args.Pause != nil {
		cfg.Pause = *args.Pause
	}
	if args.Rounds != nil {
		cfg.Rounds = *args.Rounds
	}
	if args.StrictPeerCheck {
		cfg.StrictPeerCheck = true
	}
	if args.UnconnectedSend {
		cfg.UnconnectedSend = true
	}
	if args.Format != nil {
		cfg.Format = *args.Format
	}
	if args.LogLevel != nil {
		cfg.Level = *args.LogLevel
	}
}
