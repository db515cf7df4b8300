package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/whatsy12/bitcoinminer/internal/rpc"
)

// Stats holds network statistics from the node.
type Stats struct {
	Chain           string    `json:"chain"`
	Blocks          int64     `json:"blocks"`
	Headers         int64     `json:"headers"`
	BestBlockHash   string    `json:"best_block_hash"`
	Difficulty      float64   `json:"difficulty"`
	NetworkHashrate float64   `json:"network_hashrate"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ChainInfo is the getblockchaininfo subset used for the connectivity probe.
type ChainInfo struct {
	Chain         string  `json:"chain"`
	Blocks        int64   `json:"blocks"`
	Headers       int64   `json:"headers"`
	BestBlockHash string  `json:"bestblockhash"`
	Difficulty    float64 `json:"difficulty"`
}

// Fetcher periodically fetches network stats from the node RPC.
type Fetcher struct {
	client *rpc.Client
	logger *zap.Logger

	mu    sync.RWMutex
	stats Stats
}

// NewFetcher creates a network stats fetcher.
func NewFetcher(client *rpc.Client, logger *zap.Logger) *Fetcher {
	return &Fetcher{client: client, logger: logger}
}

// Get returns the current cached network stats.
func (f *Fetcher) Get() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stats
}

// Probe checks that the node answers and reports which chain it follows.
func (f *Fetcher) Probe(ctx context.Context) (ChainInfo, error) {
	var info ChainInfo
	if err := f.client.Call(ctx, "getblockchaininfo", nil, &info); err != nil {
		return ChainInfo{}, fmt.Errorf("getblockchaininfo: %w", err)
	}
	return info, nil
}

// Fetch retrieves fresh network stats from the node.
func (f *Fetcher) Fetch(ctx context.Context) error {
	info, err := f.Probe(ctx)
	if err != nil {
		return err
	}

	// getnetworkhashps averages over the last 120 blocks; some nodes lack it
	var networkHashrate float64
	if err := f.client.Call(ctx, "getnetworkhashps", []interface{}{120}, &networkHashrate); err != nil {
		f.logger.Debug("getnetworkhashps unavailable", zap.Error(err))
		networkHashrate = 0
	}

	f.mu.Lock()
	f.stats = Stats{
		Chain:           info.Chain,
		Blocks:          info.Blocks,
		Headers:         info.Headers,
		BestBlockHash:   info.BestBlockHash,
		Difficulty:      info.Difficulty,
		NetworkHashrate: networkHashrate,
		UpdatedAt:       time.Now().UTC(),
	}
	f.mu.Unlock()

	return nil
}

// Start begins periodic fetching of network stats. It returns a function
// that stops the fetcher and waits for it to exit.
func (f *Fetcher) Start(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	exited := make(chan struct{})

	fetch := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := f.Fetch(ctx); err != nil {
			f.logger.Warn("network stats fetch failed", zap.Error(err))
		}
	}

	go func() {
		defer close(exited)
		defer ticker.Stop()
		fetch()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fetch()
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}
