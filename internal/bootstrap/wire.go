package bootstrap

import (
	"context"
	"log/slog"

	"speechpanel/internal/config"
	"speechpanel/internal/eventbus"
	"speechpanel/internal/modulecache"
	"speechpanel/internal/ports"
	"speechpanel/internal/rpc"
	"speechpanel/internal/usecase"
)

// UI groups the host-provided adapters the panel needs.
type UI struct {
	Notifier  ports.Notifier
	Confirmer ports.Confirmer
	Sink      ports.StateSink
}

// Services is the assembled runtime graph.
type Services struct {
	Panel  *usecase.PanelController
	Speech *usecase.SpeechService
	Client *rpc.Client
	Bus    *eventbus.Bus
	Config config.Config
}

// Build wires all backend dependencies for the current runtime. The panel is
// not mounted.
func Build(ctx context.Context, cfg config.Config, ui UI) (Services, error) {
	logger := slog.Default()
	bus := eventbus.New()

	client, err := rpc.Dial(ctx, rpc.Config{
		URL:            cfg.Backend.URL,
		DefaultTimeout: cfg.Backend.RPCTimeout,
	}, bus, logger.With("component", "rpc"))
	if err != nil {
		return Services{}, err
	}

	cache := modulecache.New(client, logger.With("component", "modulecache"))
	speech := usecase.NewSpeechService(
		client,
		cache,
		ui.Notifier,
		bus,
		usecase.Timeouts{Record: cfg.Timeouts.Record, Reset: cfg.Timeouts.Reset},
		logger.With("component", "speech"),
	)
	panel := usecase.NewPanelController(speech, cache, ui.Notifier, ui.Confirmer, bus, ui.Sink)

	return Services{
		Panel:  panel,
		Speech: speech,
		Client: client,
		Bus:    bus,
		Config: cfg,
	}, nil
}

// Close tears the graph down in reverse order.
func (s Services) Close() error {
	if s.Panel != nil {
		s.Panel.Close()
	}
	if s.Speech != nil {
		s.Speech.Close()
	}
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}
