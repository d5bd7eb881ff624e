package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/port"

	"go.uber.org/zap"
)

// SettingsService manages the store's open/closed flag. The flag lives
// in a single row; a missing row means the shop was never configured
// and gets created open on first read.
type SettingsService struct {
	store  port.SettingsStore
	logger *zap.Logger

	mu     sync.RWMutex
	latest *domain.StoreSettings
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(store port.SettingsStore, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger}
}

// Get returns the current settings, creating the default open row when
// none exists yet.
func (s *SettingsService) Get(ctx context.Context) (*domain.StoreSettings, error) {
	ctx, span := tracer.Start(ctx, "SettingsService.Get")
	defer span.End()

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			return nil, err
		}
		settings, err = s.store.InsertSettings(ctx, true)
		if err != nil {
			return nil, err
		}
		s.logger.Info("store settings initialized", zap.Bool("is_open", settings.IsOpen))
	}

	s.mu.Lock()
	s.latest = settings
	s.mu.Unlock()
	return settings, nil
}

// SetOpen flips the flag.
func (s *SettingsService) SetOpen(ctx context.Context, isOpen bool) (*domain.StoreSettings, error) {
	ctx, span := tracer.Start(ctx, "SettingsService.SetOpen")
	defer span.End()

	settings, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetOpen(ctx, settings.ID, isOpen); err != nil {
		return nil, err
	}
	settings.IsOpen = isOpen
	settings.UpdatedAt = time.Now()

	s.mu.Lock()
	s.latest = settings
	s.mu.Unlock()

	s.logger.Info("store flag updated", zap.Bool("is_open", isOpen))
	return settings, nil
}

// Snapshot returns the last settings seen by Get, SetOpen or the
// watcher without a network round-trip. ok is false before the first
// successful read.
func (s *SettingsService) Snapshot() (*domain.StoreSettings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, false
	}
	copied := *s.latest
	return &copied, true
}

// Watch polls the settings row until ctx is cancelled, keeping the
// snapshot warm and logging flag transitions. Run it in its own
// goroutine.
func (s *SettingsService) Watch(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prev, hadPrev := s.Snapshot()
			settings, err := s.Get(ctx)
			if err != nil {
				s.logger.Warn("settings poll failed", zap.Error(err))
				continue
			}
			if hadPrev && prev.IsOpen != settings.IsOpen {
				s.logger.Info("store flag changed",
					zap.Bool("was_open", prev.IsOpen),
					zap.Bool("is_open", settings.IsOpen))
			}
		}
	}
}
