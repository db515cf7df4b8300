package blockwatch

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/whatsy12/bitcoinminer/internal/journal"
	"github.com/whatsy12/bitcoinminer/internal/rpc"
)

// Service polls the node to settle accepted blocks as confirmed or orphaned.
// A block counts as ours when the chain's block at its height carries our
// nonce on top of our previous hash.
type Service struct {
	journal  journal.Journal
	client   *rpc.Client
	confirm  int64
	interval time.Duration
	scan     int
	logger   *zap.Logger
}

// New builds a block watcher.
func New(j journal.Journal, client *rpc.Client, confirmations int, interval time.Duration, logger *zap.Logger) *Service {
	if confirmations <= 0 {
		confirmations = 100
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		journal:  j,
		client:   client,
		confirm:  int64(confirmations),
		interval: interval,
		scan:     50,
		logger:   logger,
	}
}

type blockHeader struct {
	Nonce             uint32 `json:"nonce"`
	PreviousBlockHash string `json:"previousblockhash"`
}

// Start begins polling; returns stop function.
func (s *Service) Start() func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.CheckOnce()
			case <-stop:
				return
			}
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}

// CheckOnce settles every accepted entry that is deep enough. It returns how
// many entries changed status.
func (s *Service) CheckOnce() int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := s.journal.Recent(ctx, s.scan)
	if err != nil {
		s.logger.Warn("blockwatch: read journal", zap.Error(err))
		return 0
	}
	var tip int64
	if err := s.client.Call(ctx, "getblockcount", nil, &tip); err != nil {
		s.logger.Warn("blockwatch: getblockcount", zap.Error(err))
		return 0
	}

	settled := 0
	for _, e := range entries {
		if e.Status != journal.StatusAccepted || tip-e.Height+1 < s.confirm {
			continue
		}
		status, err := s.settle(ctx, e)
		if err != nil {
			s.logger.Debug("blockwatch: settle", zap.Int64("height", e.Height), zap.Error(err))
			continue
		}
		if err := s.journal.SetStatus(ctx, e, status); err != nil {
			s.logger.Warn("blockwatch: update journal", zap.Error(err))
			continue
		}
		settled++
		s.logger.Info("block settled", zap.Int64("height", e.Height), zap.String("status", string(status)))
	}
	return settled
}

func (s *Service) settle(ctx context.Context, e journal.Entry) (journal.Status, error) {
	var hash string
	if err := s.client.Call(ctx, "getblockhash", []interface{}{e.Height}, &hash); err != nil {
		return "", err
	}
	var h blockHeader
	if err := s.client.Call(ctx, "getblockheader", []interface{}{hash}, &h); err != nil {
		return "", err
	}
	if h.Nonce == e.Nonce && strings.EqualFold(h.PreviousBlockHash, e.PrevHash) {
		return journal.StatusConfirmed, nil
	}
	return journal.StatusOrphaned, nil
}
