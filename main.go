package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/lo"

	"github.com/dskvich/ai-doctor/pkg/api"
	"github.com/dskvich/ai-doctor/pkg/auth"
	"github.com/dskvich/ai-doctor/pkg/converter"
	"github.com/dskvich/ai-doctor/pkg/domain"
	"github.com/dskvich/ai-doctor/pkg/logger"
	"github.com/dskvich/ai-doctor/pkg/metrics"
	"github.com/dskvich/ai-doctor/pkg/openai"
	"github.com/dskvich/ai-doctor/pkg/prompt"
	"github.com/dskvich/ai-doctor/pkg/repository"
	"github.com/dskvich/ai-doctor/pkg/services"
	"github.com/dskvich/ai-doctor/pkg/speech"
	"github.com/dskvich/ai-doctor/pkg/telegram"
	"github.com/dskvich/ai-doctor/pkg/telemetry"
	"github.com/dskvich/ai-doctor/pkg/workers"
)

var version = "dev"

type Config struct {
	OpenAIToken        string        `env:"OPEN_AI_TOKEN,required"`
	OpenAIBaseURL      string        `env:"OPEN_AI_BASE_URL"`
	VisionModel        string        `env:"VISION_MODEL" envDefault:"gpt-4o-mini"`
	TextModel          string        `env:"TEXT_MODEL" envDefault:"gpt-4o-mini"`
	TranscriptionModel string        `env:"TRANSCRIPTION_MODEL" envDefault:"whisper-1"`
	TTSModel           string        `env:"TTS_MODEL" envDefault:"tts-1"`
	TTSVoice           string        `env:"TTS_VOICE" envDefault:"alloy"`
	MaxTokens          int           `env:"MAX_TOKENS" envDefault:"1000"`
	TelegramBotToken   string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramUserIDs    []int64       `env:"TELEGRAM_AUTHORIZED_USER_IDS" envSeparator:" "`
	HTTPAddr           string        `env:"HTTP_ADDR" envDefault:":8080"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	AudioTempDir       string        `env:"AUDIO_TEMP_DIR"`
	SilenceThreshold   float64       `env:"SILENCE_RMS_THRESHOLD" envDefault:"0.005"`
	PromptsFile        string        `env:"PROMPTS_FILE"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile            string        `env:"LOG_FILE"`
	TraceStdout        bool          `env:"TRACE_STDOUT"`
	TraceFile          string        `env:"TRACE_FILE"`
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.DefaultOptions)))

	if err := runMain(); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func parseConfig() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing env config: %w", err)
	}
	cfg.AudioTempDir = lo.Ternary(cfg.AudioTempDir == "", os.TempDir(), cfg.AudioTempDir)
	return cfg, nil
}

func runMain() error {
	cfg, err := parseConfig()
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logCloser, err := logger.Setup(level, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}
	defer logCloser.Close()

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	if cfg.TraceStdout || cfg.TraceFile != "" {
		shutdown, err := telemetry.Setup(ctx, version, cfg.TraceFile, os.Stdout)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("flushing traces", logger.Err(err))
			}
		}()
	}

	workerGroup, err := setupWorkers(cfg)
	if err != nil {
		return err
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return workerGroup.Start(ctx)
}

func setupWorkers(cfg Config) (workers.Group, error) {
	var workerGroup workers.Group

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	openAIClient, err := openai.NewClient(openai.Config{
		Token:              cfg.OpenAIToken,
		BaseURL:            cfg.OpenAIBaseURL,
		TranscriptionModel: cfg.TranscriptionModel,
		SpeechModel:        cfg.TTSModel,
		Voice:              cfg.TTSVoice,
		MaxTokens:          cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("creating open ai client: %w", err)
	}

	templates, err := prompt.LoadTemplates(cfg.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("loading prompt templates: %w", err)
	}

	turnService := services.NewTurnService(
		prompt.NewBuilder(templates, cfg.VisionModel, cfg.TextModel),
		openAIClient,
		converter.NewNormalizer(cfg.AudioTempDir),
		converter.NewTranscriber(openAIClient, cfg.SilenceThreshold),
		speech.NewSynthesizer(openAIClient, cfg.AudioTempDir),
		m,
	)

	workerGroup = append(workerGroup, workers.NewHTTPServer(cfg.HTTPAddr, api.NewRouter(turnService, m, registry)))

	if cfg.TelegramBotToken == "" {
		slog.Warn("TELEGRAM_BOT_TOKEN is not set, serving the HTTP API only")
		return workerGroup, nil
	}

	telegramClient, err := telegram.NewClient(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}

	responseCh := make(chan domain.Response)

	handler := telegram.NewHandler(
		turnService,
		repository.NewSessionRepository(cfg.SessionTTL),
		telegramClient,
		m,
		responseCh,
	)

	workerGroup = append(workerGroup, workers.NewTelegramUpdateListener(
		telegramClient,
		auth.NewAuthenticator(cfg.TelegramUserIDs),
		handler,
		responseCh,
	))

	return workerGroup, nil
}
