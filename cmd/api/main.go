package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/harborclinic/scheduling-agent/cmd/mainconfig"
	"github.com/harborclinic/scheduling-agent/internal/api/router"
	"github.com/harborclinic/scheduling-agent/internal/calendar"
	appconfig "github.com/harborclinic/scheduling-agent/internal/config"
	"github.com/harborclinic/scheduling-agent/internal/conversation"
	"github.com/harborclinic/scheduling-agent/internal/faq"
	"github.com/harborclinic/scheduling-agent/internal/ledger"
	"github.com/harborclinic/scheduling-agent/internal/llm"
	"github.com/harborclinic/scheduling-agent/internal/notify"
	"github.com/harborclinic/scheduling-agent/internal/observability/metrics"
	"github.com/harborclinic/scheduling-agent/internal/scheduling"
	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	cal, err := calendar.Load(cfg.ScheduleFile)
	if err != nil {
		logger.Error("failed to load clinic schedule", "file", cfg.ScheduleFile, "error", err)
		os.Exit(1)
	}

	store := buildStore(ctx, cfg, logger)
	calc := scheduling.NewCalculator(cal, ledger.NewStoreSource(store),
		scheduling.WithHorizon(cfg.BookingHorizonDays),
	)
	led := ledger.New(store, calc, logger)

	sessions := buildSessionStore(cfg, logger)
	awsCfg := loadAWSConfigIfNeeded(ctx, cfg, logger)
	oracle, modelID := buildOracle(ctx, cfg, awsCfg, logger)
	mailer := buildMailer(cfg, awsCfg, logger)

	convMetrics := metrics.NewConversationMetrics(nil)
	httpMetrics := metrics.NewHTTPMetrics(nil)

	faqOpts := []faq.Option{}
	if oracle != nil {
		faqOpts = append(faqOpts, faq.WithClassifier(oracle))
	}
	answerer := faq.NewService(logger, faqOpts...)

	engineOpts := []conversation.EngineOption{
		conversation.WithAnswerer(answerer),
		conversation.WithMailer(mailer),
		conversation.WithMetrics(convMetrics),
		conversation.WithClinicIdentity(cfg.ClinicName, cfg.ClinicPhone),
		conversation.WithMaxSampleSlots(cfg.MaxSampleSlots),
		conversation.WithDayScanWindow(cfg.DayScanWindow),
	}
	if oracle != nil {
		engineOpts = append(engineOpts, conversation.WithLLM(oracle, modelID))
	}
	engine := conversation.NewEngine(calc, led, sessions, logger, engineOpts...)

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(engine, logger),
		WSHandler:           conversation.NewWSHandler(engine, logger, nil),
		AppointmentsHandler: ledger.NewHandler(led, calc, logger),
		MetricsHandler:      promhttp.Handler(),
		HTTPMetrics:         httpMetrics,
		CORSAllowedOrigins:  cfg.AllowedOrigins,
		ChatRatePerSecond:   cfg.ChatRatePerSecond,
		ChatBurst:           cfg.ChatBurst,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// buildStore picks Postgres when DATABASE_URL is set, the JSON file store
// otherwise.
func buildStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) ledger.Store {
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		logger.Info("using postgres reservation store")
		return ledger.NewPostgresStore(pool)
	}

	store, err := ledger.NewFileStore(cfg.AppointmentsFile)
	if err != nil {
		logger.Error("failed to open appointments file", "file", cfg.AppointmentsFile, "error", err)
		os.Exit(1)
	}
	logger.Info("using file reservation store", "file", cfg.AppointmentsFile)
	return store
}

func buildSessionStore(cfg *appconfig.Config, logger *logging.Logger) conversation.SessionStore {
	if cfg.RedisAddr == "" {
		logger.Info("using in-memory session store; sessions will not survive a restart")
		return conversation.NewMemorySessionStore()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	logger.Info("using redis session store", "addr", cfg.RedisAddr)
	return conversation.NewRedisSessionStore(redis.NewClient(opts), cfg.SessionTTL)
}

// loadAWSConfigIfNeeded avoids touching the AWS credential chain unless a
// Bedrock oracle or SES mail is actually configured.
func loadAWSConfigIfNeeded(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *aws.Config {
	needsAWS := cfg.BedrockModelID != "" || cfg.EmailProvider == "ses"
	if !needsAWS {
		return nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	return &awsCfg
}

// buildOracle assembles the language model client per LLM_PROVIDER. When both
// Gemini and Bedrock are configured the secondary becomes an automatic
// fallback. A nil return disables oracle phrasing; the deterministic phase
// machine still answers every turn.
func buildOracle(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (llm.Client, string) {
	var gemini llm.Client
	if cfg.GeminiAPIKey != "" {
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to initialize gemini client", "error", err)
		} else {
			gemini = client
		}
	}

	var bedrock llm.Client
	if cfg.BedrockModelID != "" && awsCfg != nil {
		bedrock = llm.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg))
	}

	switch cfg.LLMProvider {
	case "bedrock":
		if bedrock == nil {
			logger.Warn("LLM_PROVIDER=bedrock but no BEDROCK_MODEL_ID configured; running without an oracle")
			return nil, ""
		}
		if gemini != nil {
			return llm.NewFallbackClient(bedrock, gemini, logger), cfg.BedrockModelID
		}
		return bedrock, cfg.BedrockModelID
	default:
		if gemini == nil {
			if bedrock != nil {
				return bedrock, cfg.BedrockModelID
			}
			logger.Warn("no LLM credentials configured; running without an oracle")
			return nil, ""
		}
		if bedrock != nil {
			return llm.NewFallbackClient(gemini, bedrock, logger), cfg.GeminiModelID
		}
		return gemini, cfg.GeminiModelID
	}
}

func buildMailer(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *notify.Mailer {
	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddr,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			sender = s
		}
	case "ses":
		if awsCfg != nil {
			if s := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.EmailFromAddr,
				FromName:  cfg.EmailFromName,
			}, logger); s != nil {
				sender = s
			}
		}
	}
	if sender == nil && cfg.EmailProvider != "" {
		logger.Warn("email provider configured but incomplete; confirmation emails will only be logged", "provider", cfg.EmailProvider)
	}
	return notify.NewMailer(sender, cfg.ClinicName, cfg.ClinicPhone, logger)
}
