// Package app builds the job processing stack from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/config"
	"github.com/saru2020/ClipsExtractor/internal/jobs"
	"github.com/saru2020/ClipsExtractor/internal/media"
	"github.com/saru2020/ClipsExtractor/internal/pipeline"
	"github.com/saru2020/ClipsExtractor/internal/realtime"
	"github.com/saru2020/ClipsExtractor/internal/scheduler"
	"github.com/saru2020/ClipsExtractor/internal/selection"
	"github.com/saru2020/ClipsExtractor/internal/transcription"
	"github.com/saru2020/ClipsExtractor/internal/worker"
	"github.com/saru2020/ClipsExtractor/pkg/redis"
	"github.com/saru2020/ClipsExtractor/pkg/storage"
)

// App is the wired job stack shared by the server and the CLI.
type App struct {
	Registry     *jobs.Registry
	Hub          *realtime.Hub
	Scheduler    *scheduler.Scheduler
	Orchestrator *pipeline.Orchestrator
	Dispatcher   *worker.Dispatcher
	Store        storage.ObjectStore

	// LocalStore is set when objects are kept on disk; the server serves it under storage.MockS3Prefix.
	LocalStore *storage.Local
	Provider   string

	redis     *redis.Client
	stopSched context.CancelFunc
	schedDone chan struct{}
	logger    *zap.Logger
}

// New wires every component. Backends are chosen once here and never change afterwards.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Provider: cfg.ResolveProvider(), logger: logger}

	useAWS := cfg.AWS.Enabled() || (a.Provider == config.ProviderBedrock && cfg.AWS.Region != "")
	var awsCfg aws.Config
	if useAWS {
		var err error
		awsCfg, err = storage.LoadAWSConfig(ctx, cfg.AWS.Region, cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, logger)
		if err != nil {
			return nil, err
		}
		a.Store = storage.NewS3FromConfig(awsCfg, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.Bucket,
		}, logger)
	} else {
		local, err := storage.NewLocal(storage.LocalConfig{
			Dir:     cfg.Storage.LocalDir,
			Bucket:  cfg.AWS.Bucket,
			BaseURL: cfg.Storage.PublicBaseURL,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.Store = local
		a.LocalStore = local
	}

	transcriber, selector, err := backends(a.Provider, cfg, awsCfg, a.Store, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("AI backends selected", zap.String("provider", a.Provider), zap.Bool("s3", useAWS))

	var pub realtime.Publisher
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis disabled", zap.Error(err))
		} else {
			a.redis = rdb
			pub = realtime.NewRedisPubSub(rdb.Client, logger)
		}
	}

	a.Registry = jobs.NewRegistry()
	a.Hub = realtime.NewHub(logger, pub)
	a.Registry.SetObserver(a.Hub.Notify)
	a.Scheduler = scheduler.New(logger)

	a.Orchestrator = pipeline.NewOrchestrator(pipeline.Config{
		WorkDir:           cfg.Media.TempPath,
		CleanupDelay:      cfg.Pipeline.CleanupDelay,
		Retention:         cfg.Pipeline.Retention,
		PresignTTL:        cfg.Pipeline.PresignTTL,
		ExtractionEnabled: cfg.Pipeline.ExtractionEnabled,
	}, pipeline.Deps{
		Fetcher: media.NewFetcher(media.FetcherConfig{
			YtDlpPath: cfg.Media.YtDlpPath,
			Format:    cfg.Media.YtDlpFormat,
			Timeout:   cfg.Media.DownloadTimeout,
		}, logger),
		Toolkit: media.NewToolkit(media.ToolkitConfig{
			FFmpegPath:  cfg.Media.FFmpegPath,
			FFprobePath: cfg.Media.FFprobePath,
		}, logger),
		Transcriber: transcriber,
		Selector:    selector,
		Store:       a.Store,
		Scheduler:   a.Scheduler,
		Registry:    a.Registry,
	}, logger)
	a.Dispatcher = worker.NewDispatcher(a.Orchestrator, cfg.Pipeline.MaxConcurrentJobs, logger)
	return a, nil
}

func backends(provider string, cfg *config.Config, awsCfg aws.Config, store storage.ObjectStore, logger *zap.Logger) (transcription.Service, selection.Service, error) {
	switch provider {
	case config.ProviderBedrock:
		t := transcription.NewAWSService(awsCfg, store, transcription.AWSConfig{
			LanguageCode: cfg.AI.TranscribeLanguage,
			PollInterval: cfg.AI.TranscribePoll,
			Timeout:      cfg.AI.TranscribeTimeout,
		}, logger)
		return t, selection.NewBedrockService(awsCfg, cfg.AI.BedrockModelID, logger), nil
	case config.ProviderOpenAI:
		t := transcription.NewOpenAIService(transcription.OpenAIConfig{
			APIKey:  cfg.AI.OpenAIAPIKey,
			BaseURL: cfg.AI.OpenAIBaseURL,
			Model:   cfg.AI.OpenAITranscribeModel,
		}, logger)
		s := selection.NewOpenAIService(selection.OpenAIConfig{
			APIKey:  cfg.AI.OpenAIAPIKey,
			BaseURL: cfg.AI.OpenAIBaseURL,
			Model:   cfg.AI.OpenAIChatModel,
		}, logger)
		return t, s, nil
	case config.ProviderLocal:
		return transcription.NewLocalService(logger), selection.NewLocalService(logger), nil
	default:
		return nil, nil, fmt.Errorf("unknown AI provider %q", provider)
	}
}

// Start runs the cleanup scheduler until Shutdown.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopSched = cancel
	a.schedDone = make(chan struct{})
	go func() {
		defer close(a.schedDone)
		a.Scheduler.Run(ctx)
	}()
}

// Shutdown cancels in-flight jobs, waits for them within ctx, then stops the scheduler and Redis.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Dispatcher.Shutdown(ctx)
	if a.stopSched != nil {
		a.stopSched()
		select {
		case <-a.schedDone:
		case <-ctx.Done():
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return err
}
