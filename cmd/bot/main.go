package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"aiclub-bot/internal/adapters/bot"
	"aiclub-bot/internal/adapters/feed"
	"aiclub-bot/internal/adapters/repo"
	"aiclub-bot/internal/adapters/scheduler"
	"aiclub-bot/internal/adapters/scorer"
	"aiclub-bot/internal/domain"
	"aiclub-bot/internal/infra/cache"
	"aiclub-bot/internal/infra/config"
	"aiclub-bot/internal/infra/db"
	apphttp "aiclub-bot/internal/infra/http"
	"aiclub-bot/internal/infra/log"
	"aiclub-bot/internal/infra/mail"
	"aiclub-bot/internal/infra/metrics"
	"aiclub-bot/internal/infra/openai"
	"aiclub-bot/internal/usecase/announcer"
	"aiclub-bot/internal/usecase/helpfulness"
	"aiclub-bot/internal/usecase/newsletter"
	"aiclub-bot/internal/usecase/pdfstore"
	"aiclub-bot/internal/usecase/roast"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()
	if err := repoAdapter.EnsureSchema(startupCtx); err != nil {
		logger.Fatal().Err(err).Msg("не удалось подготовить схему БД")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	cacheAdapter := cache.NewRedis(redisClient)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	sender := bot.NewSender(botAPI)

	// доставка замыкается на сервис, который создаётся после планировщика
	var newsletterSvc *newsletter.Service
	sched, err := scheduler.New(func(d domain.Delivery) { newsletterSvc.Deliver(d) }, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать планировщик")
	}
	newsletterSvc = newsletter.NewService(repoAdapter, sched, sender, logger)

	restored, err := newsletterSvc.Reconcile(startupCtx)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось восстановить задачи рассылок")
	}
	logger.Info().Int("count", restored).Msg("задачи рассылок восстановлены")

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	trackerSvc := helpfulness.NewService(
		helpfulness.HeuristicClassifier{},
		scorer.NewLLM(openaiClient, cfg.OpenAI.Model, cfg.OpenAI.Timeout),
		repoAdapter,
		cacheAdapter,
		cfg.Limits.QuestionTTL,
		logger,
	)

	phrases, err := roast.LoadPhrases(cfg.Roast.File)
	if err != nil {
		logger.Warn().Err(err).Str("file", cfg.Roast.File).Msg("файл фраз не прочитан, используется встроенный набор")
	}
	roastSvc := roast.NewService(cacheAdapter, phrases, cfg.Roast.Cooldown)

	mailer := mail.NewClient(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	pdfSvc, err := pdfstore.NewService(cfg.PDF.Dir, cfg.PDF.MaxBytes, mailer)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подготовить хранилище документов")
	}

	announcerSvc := announcer.NewService(feed.NewFetcher(cfg.Feed.URL), repoAdapter, sender, cfg.Feed.ChannelRef, logger)
	if err := sched.Every(cfg.Feed.Interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		announcerSvc.Run(ctx)
	}); err != nil {
		logger.Fatal().Err(err).Msg("не удалось запланировать опрос ленты")
	}

	sched.Start()

	h := bot.NewHandler(bot.HandlerDeps{
		Bot:            botAPI,
		Log:            logger,
		Users:          repoAdapter,
		Newsletters:    newsletterSvc,
		PDFs:           pdfSvc,
		Tracker:        trackerSvc,
		Roasts:         roastSvc,
		Cache:          cacheAdapter,
		SelfID:         botAPI.Self.ID,
		AdminTGIDs:     cfg.AdminTGIDs,
		DefaultChannel: cfg.Feed.ChannelRef,
		PageSize:       cfg.Limits.PageSize,
	})

	srv := apphttp.NewServer(logger)
	srv.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("не удалось корректно остановить HTTP сервер")
	}
	if err := sched.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("не удалось корректно остановить планировщик")
	}
}
