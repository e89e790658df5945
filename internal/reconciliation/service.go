// Package reconciliation periodically re-derives the open-trade count from the
// exchange and reports positions still missing a protective leg.
package reconciliation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"quant-engine/internal/events"
)

// Reconciler is implemented by the order executor.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
	Unprotected() []events.PositionUnprotected
}

// Service handles periodic reconciliation.
type Service struct {
	target   Reconciler
	interval time.Duration
	log      *zap.Logger

	mu   sync.Mutex
	last *Report
}

// Report contains one reconciliation result.
type Report struct {
	Timestamp   time.Time                    `json:"timestamp"`
	OpenTrades  int                          `json:"open_trades"`
	Unprotected []events.PositionUnprotected `json:"unprotected"`
	// Cleared lists flagged symbols whose position has since closed.
	Cleared []string `json:"cleared,omitempty"`
}

// NewService creates a new reconciliation service.
func NewService(target Reconciler, interval time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{target: target, interval: interval, log: log.Named("reconciliation")}
}

// Start begins periodic reconciliation.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Reconcile(ctx); err != nil {
					s.log.Warn("reconciliation failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	s.log.Info("reconciliation service started", zap.Duration("interval", s.interval))
}

// Reconcile performs one reconciliation pass.
func (s *Service) Reconcile(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.target.Unprotected()
	n, err := s.target.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{
		Timestamp:   time.Now().UTC(),
		OpenTrades:  n,
		Unprotected: s.target.Unprotected(),
	}
	still := make(map[string]bool, len(report.Unprotected))
	for _, u := range report.Unprotected {
		still[u.Symbol] = true
	}
	for _, u := range before {
		if !still[u.Symbol] {
			report.Cleared = append(report.Cleared, u.Symbol)
		}
	}

	for _, sym := range report.Cleared {
		s.log.Info("unprotected position closed", zap.String("symbol", sym))
	}
	for _, u := range report.Unprotected {
		s.log.Warn("position still unprotected",
			zap.String("symbol", u.Symbol),
			zap.Strings("missing", u.MissingLeg),
			zap.Time("since", u.Since))
	}
	s.last = report
	return report, nil
}

// Last returns the most recent report, or nil.
func (s *Service) Last() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
