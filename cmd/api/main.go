package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/generation"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/media"
	appmiddleware "server/internal/middleware"
	"server/internal/providers/chat"
	imageprovider "server/internal/providers/image"
	"server/internal/providers/speech"
	"server/internal/providers/video"
	"server/internal/storage"
	"server/migrations"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if err := infra.RunMigrations(cfg.DatabaseURL, migrations.FS, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	countryResolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable, locale falls back to headers")
	}

	chatClient, err := chat.NewClient(chat.Options{
		APIKey:  cfg.ChatAPIKey,
		BaseURL: cfg.ChatBaseURL,
		Model:   cfg.ChatModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init chat client")
	}
	speechClient, err := speech.NewClient(speech.Options{
		AppID:       cfg.TTSAppID,
		AccessToken: cfg.TTSAccessToken,
		Cluster:     cfg.TTSCluster,
		BaseURL:     cfg.TTSBaseURL,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init speech client")
	}
	videoClient, err := video.NewClient(video.Options{
		APIKey:  cfg.DashScopeAPIKey,
		BaseURL: cfg.DashScopeBaseURL,
		Model:   cfg.VideoModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init video client")
	}
	imageClient, err := imageprovider.NewClient(imageprovider.Options{
		APIKey:  cfg.DashScopeAPIKey,
		BaseURL: cfg.DashScopeBaseURL,
		Model:   cfg.ImageModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init image client")
	}

	transcoder := media.New(media.Options{
		FFmpegPath: cfg.FFmpegPath,
		ScratchDir: cfg.ScratchDir,
		Logger:     &logger,
	})

	sessions := repo.NewSessionRepository(dbpool)
	messages := repo.NewMessageRepository(dbpool)

	generator := generation.NewService(generation.Options{
		Sessions:   sessions,
		Messages:   messages,
		Store:      store,
		Chat:       chatClient,
		Speech:     speechClient,
		Video:      videoClient,
		Image:      imageClient,
		Transcoder: transcoder,
		Logger:     &logger,
		Models:     []string{cfg.ChatModel, cfg.ImageModel, cfg.VideoModel},
		VoiceType:  cfg.TTSVoiceType,
		PollPolicy: generation.PollPolicy{
			Interval: cfg.VideoPollInterval,
			Budget:   cfg.VideoPollBudget,
		},
	})

	app := handlers.NewApp(&logger, generator, sessions, messages)

	var lookup appmiddleware.CountryLookup
	if countryResolver != nil {
		lookup = countryResolver.CountryCode
	}
	router := httpapi.NewRouter(httpapi.RouterOptions{
		App:            app,
		Logger:         &logger,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		DefaultLocale:  cfg.DefaultLocale,
		CountryLookup:  lookup,
		StaticDir:      cfg.StoragePath,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
