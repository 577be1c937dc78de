// Package main provides the entry point for the form relay.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mightymax/trusted-frame-forms/internal/captcha"
	"github.com/mightymax/trusted-frame-forms/internal/config"
	"github.com/mightymax/trusted-frame-forms/internal/guard"
	"github.com/mightymax/trusted-frame-forms/internal/handler"
	"github.com/mightymax/trusted-frame-forms/internal/logger"
	"github.com/mightymax/trusted-frame-forms/internal/mailer"
	"github.com/mightymax/trusted-frame-forms/internal/template"
	"github.com/mightymax/trusted-frame-forms/internal/validation"
)

// Run is the testable entrypoint for the application.
func Run(ctx context.Context) error {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info("Starting trusted-frame-forms", zap.String("addr", cfg.Addr))

	registry, err := config.LoadRegistry(cfg.TenantsFile)
	if err != nil {
		log.Error("failed to load tenant registry", zap.Error(err))
		return err
	}

	provider, err := mailer.NewProvider(ctx, cfg)
	if err != nil {
		log.Error("failed to configure mail provider", zap.Error(err))
		return err
	}
	log.Info("mail provider configured", zap.String("provider", provider.Name()))

	captchaSvc := captcha.New(cfg.CaptchaSecret)
	templates := template.New(registry, captchaSvc, cfg.AppURL, cfg.FetchTimeout, log)
	validators, err := validation.NewLoader(cfg.ValidatorCacheDir, cfg.FetchTimeout, cfg.ValidatorTimeout, log)
	if err != nil {
		log.Error("failed to initialize validator loader", zap.Error(err))
		return err
	}
	dispatcher := mailer.NewDispatcher(provider, log)

	h := handler.New(log, registry, templates, captchaSvc, validators, dispatcher)

	r := chi.NewRouter()
	r.Use(guard.FrameAncestors(registry.AllowedOrigins()))
	r.Use(guard.CheckOrigin(registry.AllowedOrigins(), log))
	r.Get("/healthz", h.Healthz)
	r.Get("/form/{tenant}/{form}", h.ShowForm)
	r.Post("/submit/{tenant}/{form}", h.Submit)
	r.NotFound(h.NotFound)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	janitor := validation.NewJanitor(cfg.ValidatorCacheDir, 24*time.Hour, time.Hour, log)
	go janitor.Start()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down server")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	janitor.Stop()
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := Run(ctx); err != nil {
		os.Exit(1)
	}
}
