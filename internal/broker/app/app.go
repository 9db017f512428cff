// Package app wires configuration, stores, services, and the HTTP server
// into one runnable unit.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"carrierdesk/internal/broker/config"
	"carrierdesk/internal/broker/events"
	"carrierdesk/internal/broker/fmcsa"
	"carrierdesk/internal/broker/handler"
	"carrierdesk/internal/broker/negotiation"
	"carrierdesk/internal/broker/server"
	callsvc "carrierdesk/internal/broker/service/call"
	carriersvc "carrierdesk/internal/broker/service/carrier"
)

const expirySweepEvery = time.Minute

type App struct {
	server   *server.Server
	stores   *brokerStores
	sessions *negotiation.Service

	stopSweep chan struct{}
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	stores, err := initStores(cfg)
	if err != nil {
		return nil, err
	}

	margin, err := decimal.NewFromString(cfg.Negotiation.Margin)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("invalid NEGOTIATION_MARGIN %q: %w", cfg.Negotiation.Margin, err)
	}

	hub := events.NewHub()
	sessions := negotiation.NewService(stores.sessions, negotiation.Config{
		MaxRounds:     cfg.Negotiation.MaxRounds,
		DefaultMargin: margin,
		SessionTTL:    cfg.Negotiation.SessionTTL,
	}, hub)

	verifier := fmcsa.NewClient(fmcsa.Config{
		BaseURL: cfg.FMCSA.BaseURL,
		WebKey:  cfg.FMCSA.WebKey,
	})
	carriers := carriersvc.NewService(verifier, stores.carriers)
	calls := callsvc.NewService(stores.calls, stores.loads, sessions, carriers, stores.transcripts, hub)

	svc := handler.NewService(sessions, calls, carriers, stores.loads, hub)
	mux := server.NewMux(svc, cfg.APIKey)
	srv := server.New(cfg.Port, mux)

	return &App{
		server:    srv,
		stores:    stores,
		sessions:  sessions,
		stopSweep: make(chan struct{}),
	}, nil
}

func (a *App) Start() error {
	go a.sweepExpired()
	return a.server.Start()
}

// sweepExpired escalates stale negotiations on a fixed interval so an
// abandoned call never leaves a session open forever.
func (a *App) sweepExpired() {
	ticker := time.NewTicker(expirySweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopSweep:
			return
		case now := <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := a.sessions.ExpireStale(ctx, now.UTC()); err != nil {
				log.Printf("expiry sweep: %v", err)
			}
			cancel()
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	close(a.stopSweep)
	err := a.server.Shutdown(ctx)
	a.stores.Close()
	return err
}
