package modulecache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"speechpanel/internal/ports"
)

// FetchCommand is the RPC command every backend module answers with its
// current configuration.
const FetchCommand = "get_module_config"

// Store keeps the latest configuration snapshot of each backend module.
// Snapshots are replaced wholesale on reload and copied on every read.
type Store struct {
	sender ports.CommandSender
	logger *slog.Logger
	group  singleflight.Group

	mu        sync.RWMutex
	snapshots map[string]json.RawMessage
}

func New(sender ports.CommandSender, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sender:    sender,
		logger:    logger,
		snapshots: make(map[string]json.RawMessage),
	}
}

// ModuleConfig returns the cached snapshot, fetching it once if missing.
func (s *Store) ModuleConfig(ctx context.Context, module string) (json.RawMessage, error) {
	s.mu.RLock()
	snapshot, ok := s.snapshots[module]
	s.mu.RUnlock()
	if ok {
		return clone(snapshot), nil
	}
	return s.ReloadModuleConfig(ctx, module)
}

// ReloadModuleConfig fetches the module configuration from the backend and
// replaces the cached snapshot. Concurrent reloads of one module share a
// single backend call; a caller whose ctx ends stops waiting without
// cancelling the call for the others.
func (s *Store) ReloadModuleConfig(ctx context.Context, module string) (json.RawMessage, error) {
	if module == "" {
		return nil, errors.New("module name is required")
	}

	fetchCtx := context.WithoutCancel(ctx)
	results := s.group.DoChan(module, func() (any, error) {
		data, err := s.sender.SendCommand(fetchCtx, FetchCommand, module, nil, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", module, err)
		}
		if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			return nil, fmt.Errorf("backend returned no config for %s", module)
		}

		snapshot := clone(data)
		s.mu.Lock()
		s.snapshots[module] = snapshot
		s.mu.Unlock()
		return snapshot, nil
	})
	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		s.logger.Debug("module config reloaded", "module", module, "shared", res.Shared)
		return clone(res.Val.(json.RawMessage)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func clone(raw json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), raw...)
}
