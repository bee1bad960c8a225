// cmd/worker-manager/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"trade-match-engine/internal/aiscore"
	"trade-match-engine/internal/api"
	awsclients "trade-match-engine/internal/common/aws"
	"trade-match-engine/internal/common/camunda"
	"trade-match-engine/internal/common/config"
	"trade-match-engine/internal/common/database"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/observability"
	"trade-match-engine/internal/engine/application"
	"trade-match-engine/internal/engine/feed"
	"trade-match-engine/internal/engine/interaction"
	"trade-match-engine/internal/engine/scoring"
	"trade-match-engine/internal/notify"
	"trade-match-engine/internal/scheduler"
	"trade-match-engine/internal/store/cache"
	"trade-match-engine/internal/store/search"
	"trade-match-engine/internal/store/sqlstore"

	ri "trade-match-engine/internal/workers/interaction/record-interaction"
	cms "trade-match-engine/internal/workers/matching/calculate-match-score"
	rjf "trade-match-engine/internal/workers/matching/rank-job-feed"
	ras "trade-match-engine/internal/workers/matching/refresh-ai-scores"

	car "trade-match-engine/internal/workers/application/create-application-record"
	sn "trade-match-engine/internal/workers/application/send-notification"
	uas "trade-match-engine/internal/workers/application/update-application-status"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	store := sqlstore.New(pg, log)
	if err := store.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Elasticsearch ---
	var es *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	jobIndex := search.NewJobIndex(es.Client, es.JobIndex, log)
	zapLog.Info("Elasticsearch connected successfully", zap.String("index", es.JobIndex))

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	profiles := cache.NewProfileCache(store, rdb.GetClient(), cfg.Engine.ProfileCacheTTL, log)
	scoreCache := cache.NewScoreCache(rdb.GetClient(), cfg.Engine.ScoreCacheTTL)
	external := cache.NewExternalScores(rdb.GetClient(), cfg.Engine.ScoreCacheTTL)

	// --- Notifications ---
	deliverer, dispatcher := newDispatcher(ctx, cfg, store, log)

	// --- Engine ---
	scorer := scoring.New(log,
		scoring.WithConcurrency(cfg.Engine.ScoringConcurrency),
		scoring.WithObservability(obs),
	)
	feeds := feed.NewBuilder(profiles, jobIndex, store, scorer, log,
		feed.WithExternalScores(external),
		feed.WithSize(cfg.Engine.FeedSize),
		feed.WithMatchSize(cfg.Engine.FeedMatchSize),
		feed.WithGoodMatchThreshold(cfg.Engine.GoodMatchThreshold),
		feed.WithObservability(obs),
	)
	interactions := interaction.NewService(store, log,
		interaction.WithRetries(cfg.Engine.TransitionRetries),
		interaction.WithObservability(obs),
	)
	notifier := application.NewNotifier(dispatcher, log,
		cfg.Engine.NotificationConcurrency, cfg.Engine.NotificationTimeout, obs)
	applications := application.NewService(store, notifier, log,
		application.WithAdmission(jobIndex, profiles, scorer),
		application.WithRetries(cfg.Engine.TransitionRetries),
		application.WithObservability(obs),
	)

	var aiScorer *aiscore.Scorer
	if cfg.AI.Enabled {
		aiScorer, err = aiscore.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Model, external, log,
			aiscore.WithTimeout(cfg.AI.Timeout))
		if err != nil {
			zapLog.Fatal("gemini client failed", zap.Error(err))
		}
		zapLog.Info("AI scorer enabled", zap.String("model", cfg.AI.Model))
	}

	// --- Workers ---
	client := zeebe.GetClient()
	var workers []*camunda.CamundaWorker
	start := func(taskType string, enabled bool, maxJobs int, timeout time.Duration, handler camunda.HandlerFunc) {
		if !enabled {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		workers = append(workers, camunda.NewWorker(client, taskType, maxJobs, timeout, handler, zapLog))
	}

	if wc := cms.FromWorkerConfig(config.GetWorkerConfig(cfg, cms.TaskType)); validWorker(zapLog, cms.TaskType, wc.Validate()) {
		h := cms.NewHandler(wc, scorer, profiles, jobIndex, scoreCache, log)
		start(cms.TaskType, wc.Enabled, wc.MaxJobsActive, wc.Timeout, h.Handle)
	}

	if wc := rjf.FromWorkerConfig(config.GetWorkerConfig(cfg, rjf.TaskType)); validWorker(zapLog, rjf.TaskType, wc.Validate()) {
		h := rjf.NewHandler(wc, feeds, log)
		start(rjf.TaskType, wc.Enabled, wc.MaxJobsActive, wc.Timeout, h.Handle)
	}

	if wc := ras.FromWorkerConfig(config.GetWorkerConfig(cfg, ras.TaskType)); validWorker(zapLog, ras.TaskType, wc.Validate()) {
		if aiScorer == nil {
			zapLog.Info("worker disabled", zap.String("taskType", ras.TaskType), zap.String("reason", "ai.enabled is false"))
		} else {
			h := ras.NewHandler(wc, profiles, jobIndex, aiScorer, log)
			start(ras.TaskType, wc.Enabled, wc.MaxJobsActive, wc.Timeout, h.Handle)
		}
	}

	if wc := ri.FromWorkerConfig(config.GetWorkerConfig(cfg, ri.TaskType)); validWorker(zapLog, ri.TaskType, wc.Validate()) {
		h := ri.NewHandler(wc, interactions, log)
		start(ri.TaskType, wc.Enabled, wc.MaxJobsActive, wc.Timeout, h.Handle)
	}

	if wc := car.FromWorkerConfig(config.GetWorkerConfig(cfg, car.TaskType)); validWorker(zapLog, car.TaskType, wc.Validate()) {
		// the service already checks the posting
		h := car.NewHandler(wc, applications, nil, log)
		start(car.TaskType, wc.Enabled, wc.MaxJobsActive, wc.Timeout, h.Handle)
	}

	// With send-notification running, the process model owns candidate
	// notifications and status updates from the workflow stay silent. The
	// HTTP API keeps notifying inline.
	snwc := sn.FromWorkerConfig(config.GetWorkerConfig(cfg, sn.TaskType))
	workflowApplications := applications
	if snwc.Enabled {
		workflowApplications = applications.Silent()
	}

	if wc := uas.FromWorkerConfig(config.GetWorkerConfig(cfg, uas.TaskType)); validWorker(zapLog, uas.TaskType, wc.Validate()) {
		h := uas.NewHandler(wc, workflowApplications, log)
		start(uas.TaskType, wc.Enabled, wc.MaxJobsActive, wc.Timeout, h.Handle)
		if wc.Enabled {
			zapLog.Info("status notifications", zap.String("taskType", uas.TaskType), zap.Bool("inline", !snwc.Enabled))
		}
	}

	if validWorker(zapLog, sn.TaskType, snwc.Validate()) {
		h := sn.NewHandler(snwc, applications, deliverer, log)
		start(sn.TaskType, snwc.Enabled, snwc.MaxJobsActive, snwc.Timeout, h.Handle)
	}

	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Scheduler ---
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(store, cfg.Scheduler.PipelineStatsSpec, log)
		if err := sched.Start(ctx); err != nil {
			zapLog.Fatal("scheduler start failed", zap.Error(err))
		}
	}

	// --- HTTP API, health & metrics ---
	srv := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: api.NewRouter(api.Deps{
			Scorer:       scorer,
			Feed:         feeds,
			Interactions: interactions,
			Applications: applications,
			Logger:       log,
			Checks: map[string]api.HealthCheck{
				"zeebe":         zeebe.HealthCheck,
				"postgres":      pg.Ping,
				"elasticsearch": es.Ping,
				"redis":         rdb.Ping,
			},
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop(shutdownCtx)
		}()
	}
	wg.Wait()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			zapLog.Warn("scheduler stop timed out", zap.Error(err))
		}
	}
	if err := applications.Close(shutdownCtx); err != nil {
		zapLog.Warn("pending notifications abandoned", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

// newDispatcher picks AWS delivery when any channel is enabled and falls
// back to logging otherwise.
func newDispatcher(ctx context.Context, cfg *config.Config, contacts notify.ContactSource, log logger.Logger) (sn.Deliverer, application.Dispatcher) {
	n := cfg.Notifications
	if !n.Email.Enabled && !n.SMS.Enabled && !n.Topic.Enabled {
		d := notify.NewLogDispatcher(log)
		return d, d
	}

	clients, err := awsclients.NewClients(ctx, n.Region)
	if err != nil {
		log.Error("aws clients unavailable, notifications will only be logged", map[string]interface{}{"error": err})
		d := notify.NewLogDispatcher(log)
		return d, d
	}
	d := notify.NewAWSDispatcher(notify.ConfigFrom(n), contacts, clients, log)
	return d, d
}

func validWorker(log *zap.Logger, taskType string, err error) bool {
	if err != nil {
		log.Error("invalid worker config, not starting", zap.String("taskType", taskType), zap.Error(err))
		return false
	}
	return true
}
