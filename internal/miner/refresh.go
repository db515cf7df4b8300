package miner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/whatsy12/bitcoinminer/internal/job"
)

// refreshLoop installs a new template immediately, then on every tick and
// whenever the search loop asks for one. A failed refresh leaves the previous
// template in place.
func (m *Miner) refreshLoop(ctx context.Context) {
	defer m.wg.Done()

	_ = m.refresh(ctx)

	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.refresh(ctx)
		case reply := <-m.refreshReq:
			if err := m.limiter.Wait(ctx); err != nil {
				reply <- err
				if ctx.Err() != nil {
					return
				}
				// throttled past a deadline; the ticker keeps running
				continue
			}
			reply <- m.refresh(ctx)
		}
	}
}

func (m *Miner) refresh(ctx context.Context) error {
	raw, err := m.source.Next(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.recorder.TemplateRefreshFailed()
		m.logger.Warn("template fetch failed, keeping previous template", zap.Error(err))
		return err
	}
	tmpl, err := job.NewTemplate(*raw)
	if err != nil {
		m.recorder.TemplateRefreshFailed()
		m.logger.Warn("template rejected, keeping previous template", zap.Error(err))
		return err
	}
	gen := m.store.Replace(tmpl)
	m.recorder.TemplateRefreshed(tmpl.Height)
	m.logger.Info("block template updated",
		zap.Int64("height", tmpl.Height),
		zap.String("target", tmpl.Target[:16]),
		zap.Int("transactions", len(tmpl.TxHashes)),
		zap.Uint64("generation", gen),
	)
	return nil
}

// requestRefresh asks the refresh loop for a new template and waits until it
// has tried once.
func (m *Miner) requestRefresh(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case m.refreshReq <- reply:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh fetches a new template now, for callers that learn about a new
// chain tip before the next tick. It shares the forced-refresh throttle.
func (m *Miner) Refresh(ctx context.Context) error {
	return m.requestRefresh(ctx)
}
