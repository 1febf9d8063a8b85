package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"speechpanel/internal/domain"
	"speechpanel/internal/ports"
)

// RPC commands understood by the speech recognition module.
const (
	CommandSetProvider      = "set_provider"
	CommandSetHotwordToken  = "set_hotword_token"
	CommandRecordHotword    = "record_hotword"
	CommandResetHotword     = "reset_hotword"
	CommandBuildHotword     = "build_hotword"
	CommandEnableService    = "enable_service"
	CommandDisableService   = "disable_service"
	CommandStartHotwordTest = "start_hotword_test"
	CommandStopHotwordTest  = "stop_hotword_test"
)

const (
	msgTrainingOK = "Your hotword voice model has been built successfully"
	msgTrainingKO = "Error occurred during hotword voice model generation"
)

// Timeouts holds the extended timeouts of the long-running commands. Zero
// values fall back to 20s for recording and 10s for reset.
type Timeouts struct {
	Record time.Duration
	Reset  time.Duration
}

// SpeechService forwards panel intents to the backend module and refreshes
// the cached module configuration after every mutating command.
type SpeechService struct {
	rpc      ports.CommandSender
	cache    ports.ConfigCache
	notifier ports.Notifier
	logger   *slog.Logger
	timeouts Timeouts

	subMu sync.Mutex
	subs  []ports.Subscription
}

// NewSpeechService builds the service and subscribes it to the training
// result events. Call Close to release the subscriptions.
func NewSpeechService(
	rpc ports.CommandSender,
	cache ports.ConfigCache,
	notifier ports.Notifier,
	events ports.EventSubscriber,
	timeouts Timeouts,
	logger *slog.Logger,
) *SpeechService {
	if timeouts.Record <= 0 {
		timeouts.Record = 20 * time.Second
	}
	if timeouts.Reset <= 0 {
		timeouts.Reset = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &SpeechService{
		rpc:      rpc,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
		timeouts: timeouts,
	}
	if events != nil {
		s.subs = append(s.subs,
			events.Subscribe(domain.EventTrainingOK, s.onTrainingOK),
			events.Subscribe(domain.EventTrainingKO, s.onTrainingKO),
		)
	}
	return s
}

// SetProvider saves the provider selection and its api key.
func (s *SpeechService) SetProvider(ctx context.Context, providerID domain.ProviderID, apikey string) error {
	return s.sendAndReload(ctx, CommandSetProvider, map[string]any{
		"provider_id": providerID,
		"apikey":      apikey,
	}, 0)
}

// SetHotwordToken saves the Snowboy token used to build the hotword model.
func (s *SpeechService) SetHotwordToken(ctx context.Context, token string) error {
	return s.sendAndReload(ctx, CommandSetHotwordToken, map[string]any{"token": token}, 0)
}

// RecordHotword captures one hotword sample. The backend may start
// training on its own once the third sample exists.
func (s *SpeechService) RecordHotword(ctx context.Context) error {
	return s.sendAndReload(ctx, CommandRecordHotword, nil, s.timeouts.Record)
}

// ResetHotword deletes the recorded samples and the built model.
func (s *SpeechService) ResetHotword(ctx context.Context) error {
	return s.sendAndReload(ctx, CommandResetHotword, nil, s.timeouts.Reset)
}

// BuildHotword only starts the build; completion arrives as a training
// event.
func (s *SpeechService) BuildHotword(ctx context.Context) error {
	return s.send(ctx, CommandBuildHotword, nil, 0)
}

// EnableService starts the speech recognition service on the backend.
func (s *SpeechService) EnableService(ctx context.Context) error {
	return s.sendAndReload(ctx, CommandEnableService, nil, 0)
}

// DisableService stops the speech recognition service on the backend.
func (s *SpeechService) DisableService(ctx context.Context) error {
	return s.sendAndReload(ctx, CommandDisableService, nil, 0)
}

// StartHotwordTest puts the backend in hotword test mode.
func (s *SpeechService) StartHotwordTest(ctx context.Context) error {
	return s.sendAndReload(ctx, CommandStartHotwordTest, nil, 0)
}

// StopHotwordTest leaves hotword test mode.
func (s *SpeechService) StopHotwordTest(ctx context.Context) error {
	return s.sendAndReload(ctx, CommandStopHotwordTest, nil, 0)
}

// Close releases the event subscriptions.
func (s *SpeechService) Close() {
	s.subMu.Lock()
	subs := s.subs
	s.subs = nil
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (s *SpeechService) send(ctx context.Context, command string, params map[string]any, timeout time.Duration) error {
	if _, err := s.rpc.SendCommand(ctx, command, domain.Module, params, timeout); err != nil {
		s.logger.Warn("command failed", "command", command, "err", err)
		return err
	}
	s.logger.Debug("command done", "command", command)
	return nil
}

func (s *SpeechService) sendAndReload(ctx context.Context, command string, params map[string]any, timeout time.Duration) error {
	if err := s.send(ctx, command, params, timeout); err != nil {
		return err
	}
	if _, err := s.cache.ReloadModuleConfig(ctx, domain.Module); err != nil {
		return fmt.Errorf("%s succeeded but config reload failed: %w", command, err)
	}
	return nil
}

func (s *SpeechService) onTrainingOK(event domain.PushEvent) {
	s.logger.Info("hotword training finished", "uuid", event.UUID)
	s.notifier.Notify(domain.ToastSuccess, msgTrainingOK)
}

func (s *SpeechService) onTrainingKO(event domain.PushEvent) {
	s.logger.Warn("hotword training failed", "uuid", event.UUID, "params", event.Params)
	s.notifier.Notify(domain.ToastError, msgTrainingKO)
}
