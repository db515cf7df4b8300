package journal

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Pruner periodically drops journal entries older than the retention window.
type Pruner struct {
	journal   Journal
	retention time.Duration
	cronSpec  string
	logger    *zap.Logger
	now       func() time.Time
}

// NewPruner constructs a pruner.
func NewPruner(j Journal, retention time.Duration, cronSpec string, logger *zap.Logger) *Pruner {
	return &Pruner{journal: j, retention: retention, cronSpec: cronSpec, logger: logger, now: time.Now}
}

// Start registers the cron job. It returns a function to stop the scheduler.
func (p *Pruner) Start() (func(), error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(p.cronSpec, p.run); err != nil {
		return nil, err
	}
	c.Start()
	return func() {
		<-c.Stop().Done()
	}, nil
}

func (p *Pruner) run() {
	_, _ = p.RunNow()
}

// RunNow prunes immediately.
func (p *Pruner) RunNow() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := p.now().Add(-p.retention)
	removed, err := p.journal.Prune(ctx, cutoff)
	if err != nil {
		p.logger.Warn("journal prune failed", zap.Error(err))
		return 0, err
	}
	if removed > 0 {
		p.logger.Info("journal pruned", zap.Int("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}
