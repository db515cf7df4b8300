package status

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/whatsy12/bitcoinminer/internal/journal"
	"github.com/whatsy12/bitcoinminer/internal/miner"
	"github.com/whatsy12/bitcoinminer/internal/network"
)

// MinerStats is satisfied by *miner.Miner.
type MinerStats interface {
	Stats() miner.Stats
}

// ChainStats is satisfied by *network.Fetcher.
type ChainStats interface {
	Get() network.Stats
}

// Handler serves a lightweight JSON status page with miner counters, chain
// info and recently found blocks.
type Handler struct {
	miner   MinerStats
	chain   ChainStats
	journal journal.Journal
	limit   int
	logger  *zap.Logger
}

// New returns a status handler. chain may be nil. Limit controls how many journal entries to show.
func New(m MinerStats, chain ChainStats, j journal.Journal, limit int, logger *zap.Logger) http.Handler {
	if limit <= 0 {
		limit = 20
	}
	return &Handler{miner: m, chain: chain, journal: j, limit: limit, logger: logger}
}

type response struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Miner       miner.Stats     `json:"miner"`
	Network     *network.Stats  `json:"network,omitempty"`
	Blocks      []journal.Entry `json:"blocks"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := response{
		GeneratedAt: time.Now().UTC(),
		Miner:       h.miner.Stats(),
		Blocks:      []journal.Entry{},
	}
	if h.chain != nil {
		s := h.chain.Get()
		resp.Network = &s
	}
	blocks, err := h.journal.Recent(r.Context(), h.limit)
	if err != nil {
		h.logger.Warn("status: read journal", zap.Error(err))
	} else if blocks != nil {
		resp.Blocks = blocks
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
