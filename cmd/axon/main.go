package main

// @title           Axon Agent - Admin API
// @version         1.0
// @description     Local admin API of the axon sidecar: health, last payload, metrics and manual actions.
// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html
// @BasePath        /
// @securityDefinitions.basic  BasicAuth

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alwanly/axon-agent/internal/axon/agent"
	"github.com/Alwanly/axon-agent/internal/axon/command"
	"github.com/Alwanly/axon-agent/internal/axon/handler"
	"github.com/Alwanly/axon-agent/internal/axon/payload"
	"github.com/Alwanly/axon-agent/internal/axon/sampler"
	"github.com/Alwanly/axon-agent/internal/config"
	authentication "github.com/Alwanly/axon-agent/pkg/auth"
	"github.com/Alwanly/axon-agent/pkg/deps"
	"github.com/Alwanly/axon-agent/pkg/logger"
	"github.com/Alwanly/axon-agent/pkg/metrics"
	"github.com/Alwanly/axon-agent/pkg/middleware"
	"github.com/Alwanly/axon-agent/pkg/pubsub"
	"github.com/Alwanly/axon-agent/pkg/retry"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	log, err := logger.NewLoggerFromEnv("axon")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.LoadAgentConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	log.Info("configuration loaded",
		logger.String("service_id", cfg.ServiceID),
		logger.String("broker", fmt.Sprintf("%s://%s:%d", cfg.BrokerKind, cfg.BrokerHost, cfg.BrokerPort)),
		logger.String("profile", cfg.Profile),
		logger.Int("ttl", cfg.TTL),
		logger.Bool("simulate", cfg.Simulate),
		logger.Bool("privileged_actions", cfg.PrivilegedActions),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// restart_process cancels this context; the supervisor restarts the process.
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	builder := payload.NewBuilder(payload.Identity{
		ID:        cfg.ServiceID,
		Name:      cfg.ServiceName,
		Group:     cfg.ServiceGroup,
		AuthToken: cfg.AuthToken,
		TTL:       cfg.TTL,
	}, payload.Profile(cfg.Profile), nil)

	var dispatcher *command.Dispatcher
	if builder.AcceptsCommands() {
		dispatcher = command.NewDispatcher(log.Component("command"), m, cfg.ActionTimeout)
		command.RegisterDefaults(dispatcher, log.Component("action"), command.ActionOptions{
			Privileged:     cfg.PrivilegedActions,
			DropCachesPath: command.DropCachesPath,
			Restart:        cancel,
		})
	}

	a, err := agent.New(agent.Options{
		Broker:         newBroker(cfg, log),
		Sampler:        newSampler(cfg),
		Builder:        builder,
		Dispatcher:     dispatcher,
		Metrics:        m,
		Logger:         log.Component("agent"),
		ServiceID:      cfg.ServiceID,
		TTL:            cfg.TTLDuration(),
		ConnectTimeout: cfg.BrokerConnectTimeout,
		ConnectRetry: retry.Config{
			MaxRetries:     cfg.ConnectMaxRetries,
			InitialBackoff: cfg.ConnectInitialBackoff,
			MaxBackoff:     cfg.ConnectMaxBackoff,
			Multiplier:     cfg.ConnectBackoffMultiplier,
			Jitter:         true,
		},
	})
	if err != nil {
		log.WithError(err).Fatal("failed to create agent")
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Run(gCtx)
	})

	if cfg.AdminAddr != "" {
		app := handler.NewApp(log.Component("admin"))
		handler.NewHandler(deps.App{
			Fiber:  app,
			Logger: log.Component("admin"),
			Middleware: middleware.NewAuthMiddleware(middleware.SetBasicAuth(&authentication.BasicAuthTConfig{
				Username: cfg.AdminUsername,
				Password: cfg.AdminPassword,
			})),
			Gatherer: reg,
		}, a)

		g.Go(func() error {
			log.Info("starting admin server", logger.String("address", cfg.AdminAddr))
			if err := app.Listen(cfg.AdminAddr); err != nil {
				return fmt.Errorf("failed to start admin server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			select {
			case <-gCtx.Done():
			case <-a.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				log.WithError(err).Error("error during admin server shutdown")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("axon agent stopped with error")
		log.Sync()
		os.Exit(1)
	}

	log.Info("axon agent stopped gracefully")
}

func newBroker(cfg *config.AgentConfig, log *logger.CanonicalLogger) pubsub.Broker {
	if cfg.BrokerKind == config.BrokerRedis {
		return pubsub.NewRedisPubSub(pubsub.RedisConfig{
			Host:     cfg.BrokerHost,
			Port:     cfg.BrokerPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log.Component("redis"))
	}

	return pubsub.NewMQTTPubSub(pubsub.MQTTConfig{
		Host:           cfg.BrokerHost,
		Port:           cfg.BrokerPort,
		ClientID:       cfg.ServiceID + "-" + uuid.NewString()[:8],
		Username:       cfg.BrokerUsername,
		Password:       cfg.BrokerPassword,
		KeepAlive:      cfg.BrokerKeepAlive,
		ConnectTimeout: cfg.BrokerConnectTimeout,
		QoS:            byte(cfg.BrokerQoS),
	}, log.Component("mqtt"))
}

func newSampler(cfg *config.AgentConfig) sampler.Sampler {
	if cfg.Simulate {
		return sampler.NewPhaseSampler(sampler.DefaultSchedule, time.Now(), nil)
	}
	return sampler.NewLiveSampler(sampler.MemorySource)
}
