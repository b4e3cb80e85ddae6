// Command server runs the KYC verification gateway: the HTTP API, the
// worker pool, and the audit writer in one process.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"kyc-gateway/internal/audit"
	"kyc-gateway/internal/config"
	"kyc-gateway/internal/kyc/document"
	"kyc-gateway/internal/kyc/document/blob"
	docstore "kyc-gateway/internal/kyc/document/store"
	"kyc-gateway/internal/kyc/extraction"
	extstore "kyc-gateway/internal/kyc/extraction/store"
	"kyc-gateway/internal/kyc/httpapi"
	"kyc-gateway/internal/kyc/metrics"
	"kyc-gateway/internal/kyc/orchestrator"
	"kyc-gateway/internal/kyc/ports"
	profilestore "kyc-gateway/internal/kyc/profile/store"
	"kyc-gateway/internal/kyc/queue"
	"kyc-gateway/internal/kyc/request"
	reqstore "kyc-gateway/internal/kyc/request/store"
	"kyc-gateway/internal/kyc/response"
	"kyc-gateway/internal/kyc/verification"
	verstore "kyc-gateway/internal/kyc/verification/store"
	"kyc-gateway/internal/kyc/worker"
	"kyc-gateway/pkg/platform/httpserver"
	"kyc-gateway/pkg/platform/logging"
	"kyc-gateway/pkg/platform/postgres"
	"kyc-gateway/pkg/platform/redisconn"
	"kyc-gateway/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	var (
		db           *sql.DB
		requestStore ports.RequestStore
		docStore     ports.DocumentStore
		extStore     ports.ExtractionStore
		resStore     ports.ResultStore
		profiles     ports.ProfileStore
		auditStore   audit.Store
		txRunner     ports.TxRunner
	)
	if cfg.DatabaseURL != "" {
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		requestStore = reqstore.NewPostgres(db)
		docStore = docstore.NewPostgres(db)
		extStore = extstore.NewPostgres(db)
		resStore = verstore.NewPostgres(db)
		profiles = profilestore.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
		txRunner = tx.NewSQLRunner(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		memRequests := reqstore.NewMemory()
		requestStore = memRequests
		docStore = docstore.NewMemory(memRequests)
		extStore = extstore.NewMemory()
		resStore = verstore.NewMemory()
		profiles = profilestore.NewMemory()
		auditStore = audit.NewMemoryStore()
		txRunner = tx.Passthrough{}
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return fmt.Errorf("audit kafka: %w", err)
		}
		defer kafkaStore.Close()
		auditStore = kafkaStore
	}
	auditSvc, err := audit.New(auditStore, audit.WithLogger(logger))
	if err != nil {
		return err
	}

	var blobs ports.BlobStore
	if cfg.MinioEndpoint != "" {
		blobs, err = blob.NewMinio(ctx, blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return fmt.Errorf("blob storage: %w", err)
		}
	} else {
		blobs = blob.NewFS(cfg.UploadDir)
	}

	var jobs ports.Queue
	switch cfg.QueueDriver {
	case config.QueueRedis:
		client, err := redisconn.Open(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		jobs = queue.NewRedis(client, "")
	case config.QueueAMQP:
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			return fmt.Errorf("dial amqp: %w", err)
		}
		defer conn.Close()
		amqpQueue, err := queue.NewAMQP(conn, "")
		if err != nil {
			return err
		}
		defer amqpQueue.Close()
		jobs = amqpQueue
	default:
		jobs = queue.NewMemory(cfg.QueueCapacity)
	}

	pipelineMetrics := metrics.New(prometheus.DefaultRegisterer)

	requestSvc, err := request.New(requestStore,
		request.WithLogger(logger),
		request.WithAuditSink(auditSvc),
		request.WithDailyAttemptLimit(cfg.DailyLimit),
	)
	if err != nil {
		return err
	}
	documentSvc, err := document.New(docStore, blobs, cfg.AllowedMimeTypes,
		document.WithLogger(logger))
	if err != nil {
		return err
	}
	extractor, err := extraction.New(extraction.NewPlainText(),
		extraction.WithLogger(logger))
	if err != nil {
		return err
	}
	engine, err := verification.New(resStore, verification.WithLogger(logger))
	if err != nil {
		return err
	}
	orch, err := orchestrator.New(orchestrator.Deps{
		Requests:    requestSvc,
		Documents:   documentSvc,
		Extractor:   extractor,
		Engine:      engine,
		Profiles:    profiles,
		Extractions: extStore,
		Queue:       jobs,
		Tx:          txRunner,
	}, orchestrator.WithLogger(logger), orchestrator.WithMetrics(pipelineMetrics))
	if err != nil {
		return err
	}
	pool, err := worker.New(jobs, orch,
		worker.WithSize(cfg.Workers),
		worker.WithLogger(logger))
	if err != nil {
		return err
	}
	views, err := response.NewBuilder(requestSvc, docStore, extStore, resStore)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Mount("/", httpapi.NewHandler(orch, views, requestSvc, logger).Routes())

	server := httpserver.New(cfg.Addr, router)
	logger.Info("starting kyc gateway",
		"addr", cfg.Addr,
		"workers", cfg.Workers,
		"queue_driver", cfg.QueueDriver,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error { return pool.Run(ctx) })
	g.Go(func() error { return auditSvc.Run(ctx) })
	g.Go(func() error { return reportQueueDepth(ctx, jobs, pipelineMetrics) })
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// reportQueueDepth feeds the kyc_queue_depth gauge. The AMQP adapter exposes
// no cheap depth read, so broker-managed queues go unreported.
func reportQueueDepth(ctx context.Context, jobs ports.Queue, m *metrics.Metrics) error {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			switch q := jobs.(type) {
			case *queue.Memory:
				m.SetQueueDepth(q.Len())
			case *queue.Redis:
				if n, err := q.Len(ctx); err == nil {
					m.SetQueueDepth(int(n))
				}
			}
		}
	}
}
