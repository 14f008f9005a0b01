package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/thejerf/suture/v4"

	"skill-recommender/internal/artifact"
	"skill-recommender/internal/classifier"
	"skill-recommender/internal/collab"
	"skill-recommender/internal/employees"
	"skill-recommender/internal/fallback"
	"skill-recommender/internal/queue"
	"skill-recommender/internal/recommend"
	"skill-recommender/internal/reference"
	"skill-recommender/internal/retrain"
	"skill-recommender/internal/shared/config"
	"skill-recommender/internal/shared/metrics"
	"skill-recommender/internal/shared/server"
	"skill-recommender/internal/shared/server/middleware"
	"skill-recommender/internal/shared/storage/db"
	"skill-recommender/internal/shared/storage/object"
	localstore "skill-recommender/internal/shared/storage/object/local"
	s3store "skill-recommender/internal/shared/storage/object/s3"
	"skill-recommender/internal/shared/telemetry"
	"skill-recommender/internal/skills"
)

const (
	retrainLockPrefix = "skillrec:retrain:"
	rateLimitPrefix   = "skillrec:ratelimit:"
)

// App holds shared dependencies.
type App struct {
	Config     config.Config
	Router     *gin.Engine
	DB         *sql.DB
	Store      object.ObjectStore
	Queue      queue.Client
	Redis      redis.UniversalClient
	Employees  employees.Repo
	Skills     skills.Repo
	Reference  *reference.CSVSource
	Artifacts  *artifact.Store
	Model      *artifact.Handle
	Fallback   *fallback.Resolver
	Pipeline   *retrain.Pipeline
	Worker     *retrain.Worker
	Watcher    *retrain.Watcher
	Lock       *retrain.RedisLock
	Service    *recommend.Service
	Handler    *recommend.Handler
	Dispatcher recommend.RetrainDispatcher
}

// Options adjusts Build for the calling process.
type Options struct {
	// DBOptions overrides the server pool defaults.
	DBOptions *db.Options
	// SkipRouter leaves Router nil for processes that do not serve HTTP.
	SkipRouter bool
}

// Build prepares shared dependencies and wires the recommender.
func Build(cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	telemetry.SetLevel(cfg.LogLevel)
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := buildRedis(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
		Redis:  redisClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	if !opts.SkipRouter {
		deps := server.RouterDeps{
			Config:    app.Config,
			Recommend: app.Handler,
			Ready:     func() bool { return app.Model.Model() != nil },
		}
		if app.Redis != nil {
			deps.Limiter = middleware.NewRedisWindow(app.Redis, rateLimitPrefix)
		}
		app.Router = server.NewRouter(deps)
	}
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	poolOpts := db.OptionsFromEnv(db.DefaultServerOptions())
	if opts.DBOptions != nil {
		poolOpts = db.OptionsFromEnv(*opts.DBOptions)
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, poolOpts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		if cfg.RetrainMode == "sqs" {
			return nil, fmt.Errorf("RETRAIN_MODE=sqs requires RA_SQS_QUEUE_URL")
		}
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
}

// buildRedis returns nil when REDIS_URL is unset; retrains then run without a
// cross-process lock and rate limits are per process.
func buildRedis(cfg config.Config) (redis.UniversalClient, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	cfg := app.Config

	if app.DB != nil {
		app.Employees = &employees.PGRepo{DB: app.DB}
		app.Skills = &skills.PGRepo{DB: app.DB}
	} else {
		app.Employees = employees.NewMemoryRepo()
		app.Skills = skills.NewMemoryRepo()
	}

	app.Reference = reference.NewCSVSource(cfg.ReferenceCSVPath)
	app.Artifacts = artifact.NewStore(app.Store, cfg.ModelName)
	app.Model = artifact.NewHandle()
	app.Fallback = fallback.NewResolver(app.Reference, fallback.RatioMatcher{})

	app.Pipeline = &retrain.Pipeline{
		Reference: app.Reference,
		Skills:    app.Skills,
		Employees: app.Employees,
		Store:     app.Artifacts,
		Handle:    app.Model,
		Options:   classifier.Options{},
		Keep:      cfg.ArtifactKeep,
	}

	var workerOpts []retrain.WorkerOption
	if app.Redis != nil {
		lock := retrain.NewRedisLock(app.Redis, cfg.RetrainLockTTL)
		app.Lock = lock
		workerOpts = append(workerOpts, retrain.WithLocker(lock, retrainLockPrefix+cfg.ModelName))
	}
	app.Worker = retrain.NewWorker(app.Pipeline, telemetry.Logger("retrain"), workerOpts...)
	app.Watcher = retrain.NewWatcher(app.Artifacts, app.Model, cfg.ArtifactPoll, telemetry.Logger("artifact"))

	switch cfg.RetrainMode {
	case "sqs":
		if app.Queue == nil {
			return errors.New("sqs retrain mode without a queue client")
		}
		app.Dispatcher = retrain.QueueDispatcher{Queue: app.Queue, Model: cfg.ModelName}
	default:
		app.Dispatcher = retrain.InlineDispatcher{Worker: app.Worker}
	}

	svc := &recommend.Service{
		Employees:        app.Employees,
		Skills:           app.Skills,
		Model:            app.Model,
		Fallback:         app.Fallback,
		Retrain:          app.Dispatcher,
		DefaultRoleTitle: cfg.DefaultRoleTitle,
		DefaultTopN:      cfg.PredictTopN,
	}
	svc.Collab = collab.NewFilter(app.Employees, app.Skills, svc)
	app.Service = svc
	app.Handler = recommend.NewHandler(svc)
	return nil
}

// LoadModel installs the currently published model, if any. A missing
// artifact is not an error: predictions run fallback-only until one exists.
func (a *App) LoadModel(ctx context.Context) error {
	snap, err := a.Artifacts.Load(ctx)
	if err != nil {
		if errors.Is(err, artifact.ErrNoArtifact) {
			telemetry.Warn("bootstrap.model_not_published", map[string]any{"model": a.Config.ModelName})
			return nil
		}
		return err
	}
	a.Model.Swap(snap)
	metrics.SetModelVersion(a.Artifacts.Name(), snap.Manifest.Version)
	telemetry.Info("bootstrap.model_loaded", map[string]any{
		"model":   snap.Manifest.Name,
		"version": snap.Manifest.Version,
		"labels":  snap.Manifest.Labels,
	})
	return nil
}

// Supervise adds the background services this process runs to sup. The
// in-process retrain worker only runs when retrains are dispatched inline.
func (a *App) Supervise(sup *suture.Supervisor) {
	sup.Add(a.Watcher)
	if a.Config.RetrainMode != "sqs" {
		sup.Add(a.Worker)
	}
}

// Close releases resources held by the app.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
