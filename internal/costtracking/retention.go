// Package costtracking wires the cost tracking repository and service
// and runs the ledger retention sweep.
package costtracking

import (
	"context"
	"time"

	"github.com/heylinko/linko/internal/config"
	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const retentionSweepInterval = 24 * time.Hour

type retentionParams struct {
	fx.In

	LC  fx.Lifecycle
	Cfg config.Config
	Svc costdomain.Service
	Log *zap.Logger
}

// registerRetention starts a daily sweep that prunes usage ledgers
// older than the configured retention window. Operations are kept; the
// sweep only drops closed monthly summaries.
func registerRetention(p retentionParams) {
	s := &sweeper{
		svc:        p.Svc,
		log:        p.Log.Named("costtracking.retention"),
		keepMonths: p.Cfg.LedgerRetention,
		interval:   retentionSweepInterval,
	}

	done := make(chan struct{})
	p.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.loop(done)
			return nil
		},
		OnStop: func(context.Context) error {
			close(done)
			return nil
		},
	})
}

type sweeper struct {
	svc        costdomain.Service
	log        *zap.Logger
	keepMonths int
	interval   time.Duration
}

func (s *sweeper) loop(done <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pruned, err := s.svc.PruneLedgers(ctx, s.keepMonths)
	if err != nil {
		s.log.Warn("ledger retention sweep failed", zap.Error(err))
		return
	}
	if pruned > 0 {
		s.log.Info("pruned expired usage ledgers",
			zap.Int64("pruned", pruned),
			zap.Int("keep_months", s.keepMonths),
		)
	}
}
