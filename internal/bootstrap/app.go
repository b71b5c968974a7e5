package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"creditmemo-backend/internal/documents"
	"creditmemo-backend/internal/extract"
	"creditmemo-backend/internal/generation"
	"creditmemo-backend/internal/library"
	"creditmemo-backend/internal/llm"
	"creditmemo-backend/internal/llm/googleai"
	"creditmemo-backend/internal/llm/ollama"
	"creditmemo-backend/internal/llm/openai"
	"creditmemo-backend/internal/memos"
	"creditmemo-backend/internal/queue"
	"creditmemo-backend/internal/services/health"
	"creditmemo-backend/internal/shared/config"
	"creditmemo-backend/internal/shared/server"
	"creditmemo-backend/internal/shared/storage/db"
	"creditmemo-backend/internal/shared/storage/object"
	localstore "creditmemo-backend/internal/shared/storage/object/local"
	s3store "creditmemo-backend/internal/shared/storage/object/s3"
	"creditmemo-backend/internal/uploads"
)

const defaultRegion = "us-east-1"

// App holds shared dependencies and the HTTP router built on them.
type App struct {
	Config  config.Config
	Router  *gin.Engine
	DB      *sql.DB
	Dialect db.Dialect
	Store   object.ObjectStore
	Queue   queue.Client
	LLM     *llm.Router
	Pool    *generation.Pool

	DocumentsRepo documents.DocumentsRepo
	MemosRepo     memos.Repo
	JobsRepo      generation.JobsRepo
	LibraryRepo   library.Repo

	Documents  *documents.Service
	Memos      *memos.Service
	Library    *library.Service
	Generation *generation.Service
}

// Options adjust Build for callers that process jobs themselves.
type Options struct {
	// SkipPool leaves local dispatch without in-process workers. Queue
	// workers set it since they only run jobs handed to them.
	SkipPool bool
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	return BuildWithOptions(cfg, Options{})
}

// BuildWithOptions is Build with explicit options.
func BuildWithOptions(cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.AWSRegion) == "" {
		cfg.AWSRegion = defaultRegion
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	router, err := BuildLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Dialect: db.DialectFor(cfg.DatabaseURL),
		Store:   store,
		LLM:     router,
	}

	buildServices(app)

	if err := buildDispatch(ctx, app, opts); err != nil {
		return nil, err
	}

	var presigner object.Presigner
	if p, ok := store.(object.Presigner); ok {
		presigner = p
	}

	var pinger health.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:            cfg,
		Health:            health.NewService(pinger),
		Providers:         router,
		DocumentHandler:   documents.NewHandler(app.Documents, cfg.MaxUploadBytes),
		MemoHandler:       memos.NewHandler(app.Memos),
		GenerationHandler: generation.NewHandler(app.Generation),
		LibraryHandler:    library.NewHandler(app.Library),
		UploadHandler:     uploads.NewHandler(presigner, app.Documents, cfg.MaxUploadBytes),
	})

	return app, nil
}

// Close drains the worker pool and releases the database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Pool != nil {
		if err := a.Pool.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain generation pool: %w", err))
		}
	}
	if a.DB != nil && !db.IsLambdaRuntime() {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	// SQLite files are local to the process, so nothing else migrates them.
	if dialect := db.DialectFor(cfg.DatabaseURL); dialect == db.DialectSQLite {
		if err := db.RunMigrations(ctx, sqlDB, dialect); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// BuildLLM registers every configured provider. Providers without
// credentials fall back to a placeholder in dev and fail elsewhere.
func BuildLLM(ctx context.Context, cfg config.Config) (*llm.Router, error) {
	router := llm.NewRouter(cfg.LLMDefaultProvider)
	rpm := int(cfg.LLMRequestsPerMinute)

	for _, name := range cfg.LLMProviders {
		var (
			completer llm.Completer
			model     string
			err       error
		)
		switch name {
		case googleai.Provider:
			model = cfg.GoogleModel
			completer, err = googleai.New(ctx, cfg.GoogleAPIKey, model, cfg.LLMMaxTokens)
		case openai.Provider:
			model = cfg.OpenAIModel
			completer, err = openai.NewClient(cfg.OpenAIAPIKey, model, openai.WithMaxTokens(cfg.LLMMaxTokens))
		case ollama.Provider:
			model = cfg.OllamaModel
			completer, err = ollama.New(cfg.OllamaURL, model, cfg.LLMMaxTokens)
		default:
			if config.IsDevLike(cfg.Env) {
				log.Printf("bootstrap: unknown LLM provider %q ignored", name)
				continue
			}
			return nil, fmt.Errorf("unknown LLM provider %q", name)
		}
		if err != nil {
			if !config.IsDevLike(cfg.Env) {
				return nil, fmt.Errorf("provider %s: %w", name, err)
			}
			log.Printf("bootstrap: provider %s not configured, using placeholder: %v", name, err)
			completer = llm.PlaceholderCompleter{Provider: name}
		}
		router.Register(name, model, completer, rpm)
	}

	if len(router.Providers()) == 0 {
		return nil, errors.New("no LLM providers configured")
	}
	if _, err := router.Resolve(""); err != nil {
		return nil, fmt.Errorf("default provider: %w", err)
	}
	return router, nil
}

func buildServices(app *App) {
	var (
		docRepo     documents.DocumentsRepo
		memoRepo    memos.Repo
		jobsRepo    generation.JobsRepo
		libraryRepo library.Repo
	)
	if app.DB != nil {
		docRepo = documents.NewSQLRepo(app.DB, app.Dialect)
		memoRepo = memos.NewSQLRepo(app.DB, app.Dialect)
		jobsRepo = generation.NewSQLRepo(app.DB, app.Dialect)
		libraryRepo = library.NewSQLRepo(app.DB, app.Dialect)
	} else {
		docs := documents.NewMemoryRepo()
		docRepo = docs
		memoRepo = memos.NewMemoryRepo(docs)
		jobsRepo = generation.NewMemoryRepo()
		libraryRepo = library.NewMemoryRepo()
	}

	libSvc := &library.Service{Repo: libraryRepo, Store: app.Store}
	docSvc := &documents.Service{
		Store:           app.Store,
		Repo:            docRepo,
		Extractor:       extract.PDFExtractor{},
		Dependents:      []documents.DependentCleaner{memoRepo, jobsRepo},
		StorageProvider: app.Config.ObjectStoreType,
	}
	memoSvc := &memos.Service{Repo: memoRepo, Docs: docRepo, Formats: libSvc}

	app.DocumentsRepo = docRepo
	app.MemosRepo = memoRepo
	app.JobsRepo = jobsRepo
	app.LibraryRepo = libraryRepo
	app.Documents = docSvc
	app.Memos = memoSvc
	app.Library = libSvc
	app.Generation = &generation.Service{
		Docs:          docSvc,
		Memos:         memoSvc,
		Methodologies: libSvc,
		LLM:           app.LLM,
		Jobs:          jobsRepo,
	}
}

func buildDispatch(ctx context.Context, app *App, opts Options) error {
	switch app.Config.GenerationDispatch {
	case "sqs":
		if strings.TrimSpace(app.Config.SQSQueueURL) == "" {
			return fmt.Errorf("GENERATION_DISPATCH=sqs requires CM_SQS_QUEUE_URL")
		}
		client, err := queue.NewSQSClient(ctx, app.Config.SQSQueueURL, app.Config.AWSRegion)
		if err != nil {
			return err
		}
		app.Queue = client
		app.Generation.Dispatcher = &generation.QueueDispatcher{Client: client}
	default:
		if opts.SkipPool {
			return nil
		}
		app.Pool = generation.NewPool(app.Generation, app.Config.GenerationWorkers)
		app.Generation.Dispatcher = app.Pool
	}
	return nil
}
