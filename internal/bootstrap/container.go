package bootstrap

import (
	"context"
	"time"

	"ai-insights-be/internal/config"
	"ai-insights-be/internal/controller"
	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/internal/repository/memory"
	"ai-insights-be/internal/repository/unitofwork"
	"ai-insights-be/internal/service"
	"ai-insights-be/internal/websocket"
	"ai-insights-be/pkg/blob"
	"ai-insights-be/pkg/events"
	pktNats "ai-insights-be/pkg/nats"
	"ai-insights-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const datasetTopic = "dataset_events"

type Container struct {
	ChatController controller.IChatController

	// Background services, started by main
	ConsumerService  service.IConsumerService
	TelemetryService *service.TelemetryService
	WebSocketHub     *websocket.Hub

	Logger *logger.ZapLogger

	closers []func()
}

// Close releases connections opened by NewContainer.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c := &Container{Logger: sysLogger}

	// 2. Event bus
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func() { _ = pubSub.Close() })
	busPublisher := service.NewPublisherService(datasetTopic, pubSub)

	// 3. Models
	completer, err := NewCompleter(cfg, sysLogger)
	if err != nil {
		return nil, err
	}
	embedder := NewEmbeddingProvider(cfg, sysLogger)

	// 4. Infrastructure
	var telemetry events.Publisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("NATS", "Publisher unavailable, telemetry disabled", map[string]interface{}{"error": err.Error()})
	} else {
		telemetry = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("NATS", "Subscriber unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		c.closers = append(c.closers, natsSub.Close)
	}

	rdb := newRedisClient(cfg, sysLogger)
	var dataOpsStore store.DataOpsStore = memory.NewDataOpsRepository()
	if rdb != nil {
		dataOpsStore = store.NewRedisDataOpsStore(rdb)
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	hubLogger := logger.NewIsolatedLogger(cfg.App.HubLogFilePath)
	c.WebSocketHub = websocket.NewHub(rdb, hubLogger)

	// 5. Analysis pipeline
	blobs := blob.NewFileStore(cfg.App.BlobDir)
	versionService := service.NewVersionService(uowFactory, blobs, busPublisher, sysLogger)

	analysis := NewAnalysis(cfg, AnalysisDeps{
		Completer: completer,
		Embedder:  embedder,
		Chunks:    service.NewChunkStore(uowFactory),
		DataOps:   dataOpsStore,
		Persister: versionService,
		Telemetry: telemetry,
	}, sysLogger)

	// 6. Services
	chatService := service.NewChatService(uowFactory, analysis.Orchestrator, versionService, blobs, analysis.Retriever, dataOpsStore, sysLogger)
	c.ConsumerService = service.NewConsumerService(pubSub, datasetTopic, analysis.Retriever, c.WebSocketHub, sysLogger)
	c.TelemetryService = service.NewTelemetryService(natsSub, sysLogger)

	// 7. Controllers
	c.ChatController = controller.NewChatController(chatService, c.WebSocketHub, sysLogger)

	return c, nil
}

// Start runs the hub and the background consumers until ctx ends.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)
	c.TelemetryService.Start(ctx)
	return c.ConsumerService.Consume(ctx)
}

// newRedisClient returns nil when redis is not reachable; callers fall back
// to in-process state.
func newRedisClient(cfg *config.Config, log logger.ILogger) *redis.Client {
	if cfg.App.RedisURL == "" {
		return nil
	}
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Warn("REDIS", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", "Redis unreachable, using in-memory state", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return nil
	}
	return rdb
}
