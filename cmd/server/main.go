package main

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/simple-publish/pkg/simplepublish/api"
	"github.com/tendant/simple-publish/pkg/simplepublish/config"
)

type Config struct {
	ApiKeySHA256 string `env:"API_KEY_SHA256" env-default:"1"`
	JwtSecret    string `env:"JWT_SECRET" env-default:""`
}

func main() {
	var appConfig Config
	if err := cleanenv.ReadEnv(&appConfig); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	apiKeyConfig := middleware.ApiKeyConfig{
		APIKeys: map[string]string{
			"key1": appConfig.ApiKeySHA256,
		},
	}

	// Engine configuration (PUBLISH_PORT, PUBLISH_DATABASE_URL, ...)
	cfg, err := config.Load(config.WithEnv("PUBLISH_"))
	if err != nil {
		slog.Error("Failed to load engine configuration", "err", err)
		os.Exit(1)
	}

	if cfg.DatabaseType == "postgres" {
		if err := config.PingPostgres(cfg.DatabaseURL, cfg.DBSchema); err != nil {
			slog.Error("Failed to connect to database", "err", err)
			os.Exit(1)
		}
	}

	svc, err := cfg.BuildService()
	if err != nil {
		slog.Error("Failed to build publish service", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	unitHandler := api.NewUnitHandler(svc)

	apiKeyMiddleware, err := middleware.ApiKeyMiddleware(apiKeyConfig)
	if err != nil {
		slog.Error("Failed initialize API Key middleware", "err", err)
		return
	}
	server.R.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apiKeyMiddleware)
			if appConfig.JwtSecret != "" {
				tokenAuth := jwtauth.New("HS256", []byte(appConfig.JwtSecret), nil)
				r.Use(jwtauth.Verifier(tokenAuth))
			}
			r.Use(api.Actor)
			r.Mount("/units", unitHandler.Routes())
		})
	})

	slog.Info("Starting simple-publish server",
		"environment", cfg.Environment,
		"database", cfg.DatabaseType,
		"history_retention", cfg.HistoryRetention)

	server.Run()
}
