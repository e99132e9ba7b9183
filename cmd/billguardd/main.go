package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/billguard/internal/common"
	"github.com/joseph-ayodele/billguard/internal/export"
	"github.com/joseph-ayodele/billguard/internal/llm"
	"github.com/joseph-ayodele/billguard/internal/llm/gemini"
	"github.com/joseph-ayodele/billguard/internal/llm/openai"
	repo "github.com/joseph-ayodele/billguard/internal/repository"
	svc "github.com/joseph-ayodele/billguard/internal/server"
	"github.com/joseph-ayodele/billguard/internal/telemetry"
	"github.com/joseph-ayodele/billguard/internal/workflow"
)

var version = "dev"

func main() {
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, version, logger)
	if err != nil {
		logger.Error("failed to set up telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	slot, err := repo.OpenSlot(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := slot.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	if p, ok := slot.(repo.Pinger); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Error("failed to ping store", "driver", cfg.Store.Driver, "error", err)
			os.Exit(1)
		}
	}

	analyzer, err := llm.NewAnalyzer(newGenerator(cfg.LLM, logger), logger, llm.WithTemperature(cfg.LLM.Temperature))
	if err != nil {
		logger.Error("failed to build analyzer", "error", err)
		os.Exit(1)
	}

	bills := repo.NewBillRepository(slot, logger)
	ctrl := workflow.NewController(analyzer, bills, logger, workflow.WithConfig(cfg.Workflow))
	ctrl.Load(ctx)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(svc.UnaryLoggingInterceptor(logger)))

	service := svc.NewService(ctrl, export.NewService(bills, logger), logger)
	svc.RegisterBillGuardServer(grpcServer, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	logger.Info("billguard listening",
		"addr", cfg.Server.GRPCAddr,
		"store", cfg.Store.Driver,
		"provider", cfg.LLM.Provider,
		"history", len(ctrl.History()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("gRPC serve error", "error", err)
		os.Exit(1)
	}
	logger.Info("billguard stopped")
}

func newGenerator(cfg common.LLMConfig, logger *slog.Logger) llm.Generator {
	if cfg.Provider == common.ProviderOpenAI {
		return openai.NewClient(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Model:          cfg.OpenAIModel,
			ReasoningModel: cfg.OpenAIReasoningModel,
			Timeout:        cfg.Timeout,
		}, logger)
	}
	return gemini.NewClient(gemini.Config{
		APIKey:         cfg.GeminiAPIKey,
		BaseURL:        cfg.GeminiBaseURL,
		Model:          cfg.GeminiModel,
		ReasoningModel: cfg.GeminiReasoningModel,
		Timeout:        cfg.Timeout,
	}, logger)
}
