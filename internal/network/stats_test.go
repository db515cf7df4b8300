package network

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whatsy12/bitcoinminer/internal/fault"
	"github.com/whatsy12/bitcoinminer/internal/rpc"
)

func newFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := rpc.NewClient(srv.URL)
	require.NoError(t, err)
	return NewFetcher(client, zap.NewNop())
}

func nodeHandler(hashps bool, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Method string `json:"method"`
		}
		_ = json.Unmarshal(body, &req)
		switch req.Method {
		case "getblockchaininfo":
			_, _ = w.Write([]byte(`{"result":{"chain":"regtest","blocks":150,"headers":151,"bestblockhash":"00ab","difficulty":4.6e-10},"error":null}`))
		case "getnetworkhashps":
			if !hashps {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"result":null,"error":{"code":-32601,"message":"Method not found"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"result":123456.5,"error":null}`))
		}
	}
}

func TestProbe(t *testing.T) {
	f := newFetcher(t, nodeHandler(true, nil))
	info, err := f.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "regtest", info.Chain)
	assert.Equal(t, int64(150), info.Blocks)
}

func TestProbeFailure(t *testing.T) {
	f := newFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	_, err := f.Probe(context.Background())
	require.Error(t, err)
	assert.True(t, fault.IsErrProtocol(err))
}

func TestFetch(t *testing.T) {
	f := newFetcher(t, nodeHandler(true, nil))
	require.NoError(t, f.Fetch(context.Background()))
	s := f.Get()
	assert.Equal(t, "regtest", s.Chain)
	assert.Equal(t, int64(151), s.Headers)
	assert.Equal(t, "00ab", s.BestBlockHash)
	assert.Equal(t, 123456.5, s.NetworkHashrate)
	assert.False(t, s.UpdatedAt.IsZero())
}

func TestFetchWithoutHashps(t *testing.T) {
	f := newFetcher(t, nodeHandler(false, nil))
	require.NoError(t, f.Fetch(context.Background()))
	assert.Zero(t, f.Get().NetworkHashrate)
	assert.Equal(t, int64(150), f.Get().Blocks)
}

func TestStartFetchesImmediately(t *testing.T) {
	var calls atomic.Int32
	f := newFetcher(t, nodeHandler(true, &calls))
	stop := f.Start(time.Hour)
	require.Eventually(t, func() bool { return f.Get().Chain == "regtest" }, 5*time.Second, 5*time.Millisecond)
	stop()
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}
