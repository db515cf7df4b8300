package job

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsy12/bitcoinminer/internal/fault"
	"github.com/whatsy12/bitcoinminer/internal/rpc"
)

type capturedCall struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func newNode(t *testing.T, reply func(call capturedCall) (int, string)) *rpc.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var call capturedCall
		require.NoError(t, json.Unmarshal(body, &call))
		status, out := reply(call)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(out))
	}))
	t.Cleanup(srv.Close)
	c, err := rpc.NewClient(srv.URL)
	require.NoError(t, err)
	return c
}

const templateReply = `{"result":{
	"version":536870912,
	"previousblockhash":"000000000000000000022ac8b6f31b6b2a9e4be6a7a2bc3e9a3a9f8c1a2b3c4d",
	"bits":"17034219",
	"target":"0000000000000000000342190000000000000000000000000000000000000000",
	"curtime":1700000123,
	"height":818000,
	"coinbasetxn":{"data":"01000000aa"},
	"transactions":[{"hash":"1111111111111111111111111111111111111111111111111111111111111111","data":"02"},
	                {"hash":"2222222222222222222222222222222222222222222222222222222222222222","data":"03"}]
},"error":null,"id":"bitcoinminer"}`

func TestRPCSourceNext(t *testing.T) {
	client := newNode(t, func(call capturedCall) (int, string) {
		assert.Equal(t, "getblocktemplate", call.Method)
		require.Len(t, call.Params, 1)
		assert.JSONEq(t, `{"rules":["segwit"]}`, string(call.Params[0]))
		return http.StatusOK, templateReply
	})

	raw, err := NewRPCSource(client).Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(536870912), raw.Version)
	assert.Equal(t, "17034219", raw.Bits)
	assert.Equal(t, int64(818000), raw.Height)
	assert.Equal(t, int64(1700000123), raw.CurTime)
	assert.Equal(t, "01000000aa", raw.CoinbaseHex)
	assert.Equal(t, []string{leafA, leafB}, raw.TxHashes)

	tmpl, err := NewTemplate(*raw)
	require.NoError(t, err)
	assert.Len(t, tmpl.MerkleRoot, 64)
}

func TestRPCSourceNodeError(t *testing.T) {
	client := newNode(t, func(capturedCall) (int, string) {
		return http.StatusInternalServerError, `{"result":null,"error":{"code":-9,"message":"Bitcoin Core is not connected!"}}`
	})
	_, err := NewRPCSource(client).Next(context.Background())
	assert.True(t, fault.IsErrProtocol(err))
}
