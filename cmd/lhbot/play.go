package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/lhbot/internal/config"
	"github.com/yourusername/lhbot/internal/logger"
	"github.com/yourusername/lhbot/internal/metrics"
	"github.com/yourusername/lhbot/pkg/api"
	"github.com/yourusername/lhbot/pkg/archive"
	"github.com/yourusername/lhbot/pkg/policy"
	"github.com/yourusername/lhbot/pkg/protocol"
	"github.com/yourusername/lhbot/pkg/session"
	"github.com/yourusername/lhbot/pkg/transport"
	"github.com/yourusername/lhbot/pkg/transport/mqttbus"
	"github.com/yourusername/lhbot/pkg/transport/redisbus"
	"github.com/yourusername/lhbot/pkg/transport/wsbus"
)

// loadConfig reads .env and the environment, then parses flags for a
// sub-command.
func loadConfig(name string, args []string, extra func(*flag.FlagSet)) config.Config {
	cfg, err := config.Load(".env")
	if err != nil {
		fatalf("%v", err)
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfg.RegisterFlags(fs)
	if extra != nil {
		extra(fs)
	}
	fs.Parse(args)
	return cfg
}

// dialBus connects the configured transport.
func dialBus(ctx context.Context, cfg config.Config, log *zap.Logger) (transport.Bus, error) {
	var (
		bus transport.Bus
		err error
	)
	switch cfg.Transport {
	case "mqtt":
		bus, err = mqttbus.Dial(ctx, mqttbus.Options{
			BrokerURL:      cfg.BrokerURL,
			ClientID:       cfg.ClientID,
			ConnectTimeout: 15 * time.Second,
			Logger:         log,
		})
	case "redis":
		bus, err = redisbus.Dial(ctx, redisbus.Options{Addr: cfg.RedisAddr, Logger: log})
	case "ws":
		bus, err = wsbus.Dial(ctx, cfg.RelayURL, log)
	case "memory":
		return nil, errors.New("the memory transport only connects bots in one process; use selfplay")
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, err
	}
	return bus, nil
}

func cmdPlay(args []string) {
	var noChallenge, once bool
	cfg := loadConfig("play", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&noChallenge, "wait", false, "Do not challenge, only accept challenges")
		fs.BoolVar(&once, "once", false, "Play one game, do not challenge again")
	})
	if err := cfg.Validate(); err != nil {
		fatalf("%v", err)
	}

	log := logger.Init(cfg.LogLevel, cfg.JSONLogs())
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pol, err := policy.New(cfg.Policy, cfg.PolicyFile, time.Now().UnixNano())
	if err != nil {
		fatalf("loading policy: %v", err)
	}
	if c, ok := pol.(*policy.LuaPolicy); ok {
		defer c.Close()
	}

	store, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		fatalf("opening archive: %v", err)
	}
	if store != nil {
		defer store.Close()
	}

	bus, err := dialBus(ctx, cfg, log)
	if err != nil {
		fatalf("%v", err)
	}
	defer bus.Close()

	stats := metrics.New()
	machine, err := session.New(bus, session.Options{
		ClientID:      cfg.ClientID,
		Codec:         protocol.NewCodec(cfg.TopicPrefix, cfg.Secret),
		Policy:        pol,
		ReplyDelay:    cfg.ReplyDelay,
		Logger:        log,
		Metrics:       stats,
		Archive:       store,
		AutoChallenge: !noChallenge,
		Rechallenge:   !noChallenge && !once,
	})
	if err != nil {
		fatalf("%v", err)
	}

	log.Info("lhbot starting",
		zap.String("version", version),
		zap.String("client", cfg.ClientID),
		zap.String("transport", cfg.Transport),
		zap.String("policy", cfg.Policy))

	if cfg.APIAddr != "" {
		apiCfg, err := api.ConfigFromAddr(cfg.APIAddr)
		if err != nil {
			fatalf("api address %q: %v", cfg.APIAddr, err)
		}
		srv := api.NewServer(api.Deps{
			Session: machine,
			Policy:  pol,
			Archive: store,
			Metrics: stats,
			Logger:  log,
		}, apiCfg, version)
		go func() {
			if err := srv.Serve(ctx); err != nil {
				log.Error("status API failed", zap.Error(err))
			}
		}()
	}

	if err := machine.Run(ctx); err != nil {
		log.Error("session machine stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("lhbot stopped")
}
