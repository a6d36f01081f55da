package main

import (
	"context"
	"strings"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/analyze"
	"github.com/tommykeeley-amp/pm-os-sub002/internal/api"
	intconfig "github.com/tommykeeley-amp/pm-os-sub002/internal/config"
	"github.com/tommykeeley-amp/pm-os-sub002/internal/digest"
	"github.com/tommykeeley-amp/pm-os-sub002/internal/queue"
	"github.com/tommykeeley-amp/pm-os-sub002/internal/sources"
	"github.com/tommykeeley-amp/pm-os-sub002/internal/suggest"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/clients/bridge"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/clients/slack"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/config"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/database"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/kafka"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/llm"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/logging"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/monitoring"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/server"
)

const serviceName = "pulse"

var version = "dev"

func main() {
	logger := logging.NewLoggerWithService(serviceName)
	config.LoadEnv(logger)
	cfg := intconfig.Load()

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	db := database.MustConnect(dbCfg, logger)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	if err := digest.EnsureSchema(ctx, db); err != nil {
		logger.WithError(err).Fatal("Failed to ensure database schema")
	}
	stateStore := digest.NewStateStore(db)

	metrics := monitoring.NewMetricsCollector(serviceName, version, "")
	digestMetrics := digest.NewMetrics()
	metrics.RegisterCustomMetric("digest_cycles", digestMetrics.CyclesTotal)
	metrics.RegisterCustomMetric("digest_items_analyzed", digestMetrics.ItemsAnalyzed)
	metrics.RegisterCustomMetric("digest_dispatch_failures", digestMetrics.DispatchFailures)

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		var err error
		producer, err = kafka.NewProducer(cfg.KafkaBrokers, serviceName, logger)
		if err != nil {
			logger.WithError(err).Warn("Task queue unavailable, events will not be relayed")
		} else {
			defer func() { _ = producer.Close() }()
		}
	}
	publisher := queue.NewPublisher(producer)

	var slackAdapter *sources.SlackAdapter
	if cfg.SlackToken != "" {
		slackClient := slack.NewClient(cfg.SlackToken)
		slackAdapter = sources.NewSlackAdapter(slackClient, cfg.MonitoredChannels, cfg.UserEmail, logger)
	}
	bridgeAdapter := sources.NewBridgeAdapter(bridge.NewClient(cfg.BridgeURL))

	aggregatorCfg := suggest.AggregatorConfig{
		Calendar: bridgeAdapter,
		Email:    bridgeAdapter,
		Logger:   logger,
	}
	if slackAdapter != nil {
		aggregatorCfg.Slack = slackAdapter
	}
	aggregator := suggest.NewAggregator(aggregatorCfg)

	var composer *digest.Composer
	var scheduler *digest.Scheduler
	if ready, missing := cfg.DigestReady(); !ready {
		logger.WithField("missing", strings.Join(missing, ", ")).Warn("Digest disabled: incomplete configuration")
	} else {
		location, err := cfg.Location()
		if err != nil {
			logger.WithError(err).Fatal("Invalid digest timezone")
		}

		analyzer, err := analyze.New(analyze.Config{
			Provider: llm.NewOpenAIProvider(llm.Config{
				Model:     cfg.LLMModel,
				APIKey:    cfg.LLMAPIKey,
				APIURL:    cfg.LLMAPIURL,
				MaxTokens: cfg.LLMMaxTokens,
			}),
			VIPContacts: cfg.VIPContacts,
			UserEmail:   cfg.UserEmail,
			Logger:      logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to build analyzer")
		}

		composer, err = digest.NewComposer(digest.ComposerConfig{
			Channels:          cfg.MonitoredChannels,
			VIPContacts:       cfg.VIPContacts,
			UserEmail:         cfg.UserEmail,
			Source:            slackAdapter,
			Analyzer:          analyzer,
			Resolver:          slackAdapter,
			Dispatcher:        slackAdapter,
			State:             stateStore,
			Publisher:         publisher,
			Metrics:           digestMetrics,
			MarkOnlyDelivered: cfg.MarkOnlyDelivered,
			Logger:            logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to build digest composer")
		}

		scheduler, err = digest.NewScheduler(digest.SchedulerConfig{
			Slots:    cfg.DigestSlots,
			Location: location,
			Runner:   composer,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to build digest scheduler")
		}
		go scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	healthChecker := monitoring.NewHealthChecker(serviceName, version)
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	if producer != nil {
		healthChecker.AddCheck("task_queue", monitoring.KafkaProducerHealthCheck(producer.Client()))
	}
	healthChecker.AddCheck("configuration", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
	}))

	router := server.SetupServiceRouter(logger, serviceName, healthChecker, metrics)

	handlerCfg := api.HandlerConfig{
		Suggester: aggregator,
		State:     stateStore,
		Events:    publisher,
		Logger:    logger,
	}
	if composer != nil {
		handlerCfg.Runner = composer
	}
	if scheduler != nil {
		handlerCfg.Scheduler = scheduler
	}
	api.NewHandler(handlerCfg).RegisterRoutes(router)

	srvCfg := server.DefaultConfig(serviceName, cfg.Port)
	if err := server.Start(srvCfg, router, logger); err != nil {
		logger.WithError(err).Fatal("Server shutdown failed")
	}
}
