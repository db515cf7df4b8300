package miner

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/whatsy12/bitcoinminer/internal/hashing"
	"github.com/whatsy12/bitcoinminer/internal/job"
	"github.com/whatsy12/bitcoinminer/internal/journal"
)

func (m *Miner) searchLoop(ctx context.Context) {
	defer m.wg.Done()
	defer m.setState(Idle)

	var (
		nonce     uint32
		gen       uint64
		spent     uint64
		submitted [job.HeaderSize]byte
		haveSub   bool
	)
	for {
		if ctx.Err() != nil {
			return
		}

		changed := m.store.Changed()
		snap, err := m.store.Read()
		if err != nil || snap.Generation == spent {
			m.setState(Idle)
			m.waitForTemplate(ctx, changed)
			continue
		}
		if snap.Generation != gen {
			gen = snap.Generation
			nonce = 0
		}
		m.setState(Searching)

		tmpl := snap.Template
		header := tmpl.Header(nonce).Encode()
		hash := hashing.Double(header[:])
		m.countHash()

		if job.MeetsTarget(hash.String(), tmpl.Target) {
			m.setState(Found)
			if haveSub && header == submitted {
				m.logger.Debug("skipping resubmission of identical header", zap.Uint32("nonce", nonce))
			} else {
				submitted, haveSub = header, true
				m.submit(ctx, tmpl, nonce, header, hash)
			}
			// never search a solved template again, even if no replacement arrives
			spent = gen
			if err := m.requestRefresh(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("refresh after found block failed", zap.Error(err))
			}
			nonce = 0
			continue
		}

		if nonce == m.maxNonce {
			spent = gen
			m.logger.Info("nonce space exhausted, requesting new template", zap.Int64("height", tmpl.Height))
			if err := m.requestRefresh(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("refresh after nonce exhaustion failed", zap.Error(err))
			}
			nonce = 0
			continue
		}
		nonce++
	}
}

func (m *Miner) waitForTemplate(ctx context.Context, changed <-chan struct{}) {
	timer := time.NewTimer(m.cfg.IdlePoll)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-changed:
	case <-timer.C:
	}
}

func (m *Miner) countHash() {
	total := m.hashes.Add(1)
	if total%m.cfg.StatsEvery != 0 {
		return
	}
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	elapsed := time.Since(started).Seconds()
	if elapsed <= 0 {
		return
	}
	hashRate := float64(total) / elapsed
	m.rateBits.Store(math.Float64bits(hashRate))
	m.recorder.HashRate(hashRate, total)
	m.logger.Info("hash rate",
		zap.String("rate", formatRate(hashRate)),
		zap.Uint64("total_hashes", total),
	)
}

func (m *Miner) submit(ctx context.Context, tmpl *job.Template, nonce uint32, header [job.HeaderSize]byte, hash hashing.Digest) {
	m.found.Add(1)
	m.recorder.BlockFound(tmpl.Height)
	m.logger.Info("block found",
		zap.String("hash", hash.String()),
		zap.Uint32("nonce", nonce),
		zap.Int64("height", tmpl.Height),
	)

	entry := journal.Entry{
		Hash:     hash.String(),
		Height:   tmpl.Height,
		Nonce:    nonce,
		PrevHash: tmpl.PrevHash,
		FoundAt:  time.Now().UTC(),
	}

	block := job.AssembleBlock(header, tmpl.CoinbaseHex)
	submitCtx, cancel := context.WithTimeout(ctx, m.cfg.SubmitTimeout)
	res, err := m.submitter.SubmitBlock(submitCtx, block)
	cancel()

	switch {
	case err != nil:
		m.failed.Add(1)
		entry.Status = journal.StatusFailed
		entry.Reason = err.Error()
		m.logger.Error("block submission failed", zap.Int64("height", tmpl.Height), zap.Error(err))
	case res.Accepted:
		m.accepted.Add(1)
		entry.Status = journal.StatusAccepted
		m.logger.Info("block accepted by network", zap.Int64("height", tmpl.Height), zap.String("hash", entry.Hash))
	default:
		m.rejected.Add(1)
		entry.Status = journal.StatusRejected
		entry.Reason = res.Reason
		m.logger.Warn("block rejected", zap.Int64("height", tmpl.Height), zap.String("reason", res.Reason))
	}
	m.recorder.BlockSubmitted(string(entry.Status))

	if err := m.journal.Record(ctx, entry); err != nil {
		m.logger.Warn("journal record failed", zap.Error(err))
	}
}
