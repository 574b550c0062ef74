package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/agent"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/alert"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/cluster"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/config"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/healer"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/health"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/metrics"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/monitor"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/predictor"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/store"
	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/tracker"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting Self-Healing Agent")

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.Duration("check_interval", cfg.Agent.CheckInterval),
		zap.String("predictor_mode", cfg.Predictor.Mode),
		zap.Bool("dev_mode", cfg.Agent.DevMode),
		zap.Int("seed_members", len(cfg.Cluster.SeedMembers)))

	// Initialize metrics
	m := metrics.NewMetrics()
	logger.Info("Metrics initialized")

	// Initialize stores
	var (
		ledger      store.LedgerStore
		nodeRecords store.NodeRecordStore
		dedup       store.DedupStore
	)
	if cfg.Agent.DevMode {
		mem := store.NewMemoryLedgerStore()
		ledger, nodeRecords = mem, mem
		dedup = store.NewMemoryDedupStore()
		logger.Info("In-memory stores initialized (dev mode)")
	} else {
		pg, err := store.NewPostgresLedgerStore(
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Database,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.MaxConnections,
			cfg.Database.MinConnections,
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to initialize ledger store", zap.Error(err))
		}
		ledger, nodeRecords = pg, pg
		logger.Info("Ledger store initialized")

		rd, err := store.NewRedisDedupStore(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to initialize dedup store", zap.Error(err))
		}
		dedup = rd
		logger.Info("Dedup store initialized")
	}

	// Initialize cluster control plane
	var (
		controlPlane cluster.ControlPlane
		httpPlane    *cluster.HTTPControlPlane
	)
	if cfg.Agent.DevMode {
		seed := make([]model.NodeSpec, 0, len(cfg.Cluster.SeedMembers))
		for _, mc := range cfg.Cluster.SeedMembers {
			seed = append(seed, model.NodeSpec{NodeID: mc.NodeID, Address: mc.Address})
		}
		controlPlane = cluster.NewSimControlPlane(seed, logger)
		logger.Info("Simulated control plane initialized (dev mode)")
	} else {
		httpPlane = cluster.NewHTTPControlPlane(
			cfg.Cluster.AdminEndpoint,
			cfg.Cluster.RequestTimeout,
			cfg.Cluster.HealthProbeTimeout,
			logger,
		)
		controlPlane = httpPlane
		logger.Info("Control plane client initialized",
			zap.String("admin_endpoint", cfg.Cluster.AdminEndpoint))
	}

	// Initialize health sampler
	var sampler monitor.Sampler
	if cfg.Agent.DevMode {
		sampler = monitor.NewSimSampler(controlPlane, cfg.Predictor.UnstableNodeSubstring, logger)
	} else {
		sampler = monitor.NewHTTPSampler(controlPlane, cfg.Cluster.RequestTimeout, logger)
	}

	// Initialize risk classifier
	var classifier predictor.Classifier
	switch cfg.Predictor.Mode {
	case "llm":
		classifier = predictor.NewLLMClassifier(
			cfg.Predictor.APIKey,
			cfg.Predictor.ModelName,
			cfg.Predictor.APIBaseURL,
			logger,
		)
	case "mock":
		classifier = predictor.NewMockClassifier(
			cfg.Predictor.MockWarningAfter,
			cfg.Predictor.MockCriticalAfter,
			cfg.Predictor.UnstableNodeSubstring,
		)
	default:
		classifier = predictor.NewHeuristicClassifier()
	}
	logger.Info("Risk classifier initialized", zap.String("mode", cfg.Predictor.Mode))

	// Initialize alert dispatch
	var alerts alert.Dispatcher
	if cfg.Alerting.Enabled {
		dispatchers := []alert.Dispatcher{alert.NewLogDispatcher(logger)}
		if cfg.Alerting.WebhookURL != "" {
			dispatchers = append(dispatchers, alert.NewWebhookDispatcher(cfg.Alerting.WebhookURL, logger))
		}
		alerts = alert.NewDedupDispatcher(
			alert.NewFanout(dispatchers...),
			dedup,
			cfg.Alerting.FollowUpSuppression,
			logger,
		)
	} else {
		alerts = alert.NopDispatcher{}
	}

	// Initialize core services
	trk := tracker.New(
		cfg.Agent.UnreachableAfterMissing,
		cfg.Agent.UnreachableAfterStale,
		nodeRecords,
		logger,
	)
	orchestrator := healer.New(
		controlPlane,
		ledger,
		alerts,
		m,
		cfg.Healer.NewNodeAddressTemplate,
		cfg.Healer.HealthyWaitTimeout,
		cfg.Healer.HealthyPollInterval,
		logger,
	)
	a := agent.New(
		sampler,
		classifier,
		trk,
		orchestrator,
		alerts,
		m,
		cfg.Agent.CheckInterval,
		cfg.Agent.ClassifyTimeout,
		logger,
	)
	logger.Info("All services initialized")

	// Start metrics server
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("Starting metrics server", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Start health check server
	healthChecker := health.NewHealthChecker(ledger, dedup, logger)
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health/live", healthChecker.LivenessHandler)
		mux.HandleFunc("/health/ready", healthChecker.ReadinessHandler)
		addr := ":8080"
		logger.Info("Starting health check server", zap.String("address", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("Health check server failed", zap.Error(err))
		}
	}()

	// Run the control loop until a signal arrives or a fatal error occurs
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agentErrors := make(chan error, 1)
	go func() {
		agentErrors <- a.Run(ctx)
	}()

	select {
	case err := <-agentErrors:
		if err != nil {
			logger.Error("Agent stopped with error", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
		<-agentErrors // wait for the in-flight cycle to finish
	}

	// Graceful shutdown
	logger.Info("Shutting down gracefully")

	if httpPlane != nil {
		httpPlane.Close()
	}
	ledger.Close()
	if err := dedup.Close(); err != nil {
		logger.Warn("Failed to close dedup store", zap.Error(err))
	}

	logger.Info("Self-healing agent stopped")
}
