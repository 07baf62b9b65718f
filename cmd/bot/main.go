package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ledger-bot/internal/archive"
	"ledger-bot/internal/auth"
	"ledger-bot/internal/cache"
	"ledger-bot/internal/charts"
	"ledger-bot/internal/config"
	"ledger-bot/internal/dispatcher"
	"ledger-bot/internal/events"
	"ledger-bot/internal/llm"
	"ledger-bot/internal/lock"
	"ledger-bot/internal/logger"
	"ledger-bot/internal/narrative"
	"ledger-bot/internal/patterns"
	"ledger-bot/internal/review"
	"ledger-bot/internal/scheduler"
	"ledger-bot/internal/server"
	"ledger-bot/internal/storage"
	"ledger-bot/internal/telegram"
	"ledger-bot/internal/transcript"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	if err := logger.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogOutputPath); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("failed to open database", err)
	}
	defer store.Close()

	var allowRepo auth.Repository
	if cfg.AllowlistFilePath != "" {
		repo, err := auth.NewFileRepository(cfg.AllowlistFilePath)
		if err != nil {
			logger.Warnf("failed to init allowlist repo: %v", err)
		} else {
			allowRepo = repo
		}
	}
	authSvc, err := auth.NewWithRepo(allowRepo, cfg.AllowedUsers)
	if err != nil {
		logger.Fatal("failed to init auth", err)
	}

	llmClient, err := llm.NewFactory(cfg).CreateClient(cfg.LLMProvider, "")
	if err != nil {
		logger.Warnf("⚠️ LLM unavailable, narrative replies will use the fallback: %v", err)
	}
	gen := narrative.New(llmClient, cfg.NarrativeTimeout)

	var locker lock.Locker = lock.NewLocal()
	var chartCache cache.Cache = cache.NewDB(store)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("⚠️ Redis at %s unreachable, using in-process lock and database cache: %v", cfg.RedisAddr, err)
		} else {
			defer rdb.Close()
			locker = lock.NewRedis(rdb, cfg.LockTTL)
			chartCache = cache.NewRedis(rdb)
			logger.Infof("🔒 Redis lock and chart cache at %s", cfg.RedisAddr)
		}
	}

	var archiver archive.Archiver = archive.Nop{}
	if cfg.MinIOEndpoint != "" {
		m, err := archive.NewMinIO(ctx, cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL)
		if err != nil {
			logger.Warnf("⚠️ Report archive disabled: %v", err)
		} else {
			archiver = m
		}
	}

	rec, err := transcript.New(cfg.TranscriptPath)
	if err != nil {
		logger.Warnf("failed to init transcript: %v", err)
		rec = transcript.Nop{}
	}

	bot, err := telegram.New(cfg.TelegramBotToken, authSvc, cfg.OwnerChatID)
	if err != nil {
		logger.Fatal("failed to create bot", err)
	}
	if err := bot.RegisterCommands(); err != nil {
		logger.Warnf("⚠️ Command menu not registered: %v", err)
	}

	chartSvc := charts.New(store, gen, chartCache, charts.Options{
		TTL:     cfg.ChartCacheTTL,
		Delay:   cfg.ChartDelay,
		Timeout: cfg.ReportTimeout,
	})
	reviewSvc := review.New(store, gen, bot, archiver, cfg.ReportTimeout)
	patternSvc := patterns.New(store, bot)

	refresh := events.NewCoalescer(cfg.ChartRefreshMinInterval, func(ctx context.Context) {
		chartSvc.GenerateAll(ctx, charts.DefaultPeriod)
	})
	defer refresh.Wait()

	var publisher events.Publisher = events.PublisherFunc(func(ctx context.Context, _ events.EntryCreated) error {
		refresh.Trigger(ctx)
		return nil
	})
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		go func() {
			if err := events.Consume(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, refresh.Handle); err != nil {
				logger.Error("entry event consumer stopped", err)
			}
		}()
		logger.Infof("📨 Entry events on Kafka topic %s", cfg.KafkaTopic)
	}

	d := dispatcher.New(store, gen, bot, dispatcher.Options{
		Locker:     locker,
		Publisher:  publisher,
		Recorder:   rec,
		Commentary: cfg.EntryCommentary,
	})
	bot.SetHandler(d)

	sched := scheduler.New()
	jobs := []scheduler.Job{
		{Name: "weekly-review", Spec: cfg.WeeklyReviewSpec, Run: func(ctx context.Context) error {
			_, err := reviewSvc.Run(ctx)
			return err
		}},
		{Name: "pattern-detection", Spec: cfg.PatternSpec, Run: func(ctx context.Context) error {
			_, err := patternSvc.Run(ctx)
			return err
		}},
		{Name: "chart-generation", Spec: cfg.ChartSpec, Run: func(ctx context.Context) error {
			chartSvc.GenerateAll(ctx, charts.DefaultPeriod)
			return nil
		}},
	}
	for _, j := range jobs {
		if err := sched.Add(j); err != nil {
			logger.Fatal("failed to schedule job", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	gin.SetMode(cfg.GinMode)
	router := server.NewRouter(server.Deps{
		Updates:       bot,
		Store:         store,
		Publisher:     publisher,
		Review:        reviewSvc,
		Patterns:      patternSvc,
		Charts:        chartSvc,
		WebhookSecret: cfg.TelegramWebhookSecret,
		CronSecret:    cfg.CronSecret,
	})
	srv := server.New(cfg.HTTPAddr, router)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("HTTP server failed", err)
			stop()
		}
	}()

	if cfg.TelegramMode == "polling" {
		go bot.Start(ctx)
	}

	<-ctx.Done()
	logger.Info("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("⚠️ HTTP shutdown: %v", err)
	}
}
