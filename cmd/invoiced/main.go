package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/invoice-pipeline/internal/app"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/async"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/export"
	"github.com/joseph-ayodele/invoice-pipeline/internal/ingest"
	"github.com/joseph-ayodele/invoice-pipeline/internal/invoices"
	svc "github.com/joseph-ayodele/invoice-pipeline/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := svc.NewGRPCServer(logger)

	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(cfg.Server.Workers),
		async.WithQueueSize(cfg.Server.QueueSize),
		async.WithProcessTimeout(cfg.Server.ProcessTimeout),
		async.WithResultHandler(func(job async.Job, run *entity.PipelineRun) {
			logger.Info("queued run finished", "request_id", job.RequestID, "run_id", run.RunID,
				"outcome", run.Outcome, "wait_ms", time.Since(job.SubmittedAt).Milliseconds())
		}),
	)

	invoiceService := svc.NewInvoiceService(a.Processor, queue,
		invoices.NewService(a.Store, a.Documents, logger),
		export.NewService(a.Store, logger), logger)
	svc.RegisterInvoiceServiceServer(grpcServer, invoiceService)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	if dir := cfg.Server.WatchDir; dir != "" {
		if err := watchInbox(ctx, dir, cfg.Server.WatchDebounce, queue, logger); err != nil {
			logger.Error("failed to start inbox watcher", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("invoice-pipeline listening", "addr", cfg.Server.GRPCAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ProcessTimeout)
	defer cancel()
	queue.Shutdown(shutdownCtx)
}

// watchInbox queues every document that appears under dir.
func watchInbox(ctx context.Context, dir string, debounce time.Duration, queue async.Queue, logger *slog.Logger) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    debounce,
		SkipHidden:  true,
	}, logger)
	if err != nil {
		return err
	}
	logger.Info("watching inbox", "dir", dir)

	go func() {
		for {
			select {
			case path, ok := <-events:
				if !ok {
					return
				}
				job := async.Job{Path: path, PersistDocument: true, SubmittedAt: time.Now().UTC(), RequestID: uuid.NewString()}
				if err := queue.Enqueue(ctx, job); err != nil {
					logger.Warn("inbox document not queued", "path", path, "error", err)
				}
			case err, ok := <-errs:
				if !ok {
					return
				}
				logger.Warn("inbox watcher error", "error", err)
			}
		}
	}()
	return nil
}
