package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsy12/bitcoinminer/internal/fault"
)

func TestCallDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "secret", pass)

		body, _ := io.ReadAll(r.Body)
		var req request
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "1.0", req.JSONRPC)
		assert.Equal(t, "getblockcount", req.Method)
		assert.Equal(t, []interface{}{}, req.Params)

		_, _ = w.Write([]byte(`{"result":812345,"error":null,"id":"bitcoinminer"}`))
	}))
	defer srv.Close()

	url := strings.Replace(srv.URL, "http://", "http://alice:secret@", 1)
	c, err := NewClient(url)
	require.NoError(t, err)

	var height int64
	require.NoError(t, c.Call(context.Background(), "getblockcount", nil, &height))
	assert.Equal(t, int64(812345), height)
}

func TestExplicitCredentialsOverrideURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		assert.Equal(t, "bob", user)
		assert.Equal(t, "hunter2", pass)
		_, _ = w.Write([]byte(`{"result":null,"error":null}`))
	}))
	defer srv.Close()

	url := strings.Replace(srv.URL, "http://", "http://alice:secret@", 1)
	c, err := NewClient(url, WithCredentials("bob", "hunter2"))
	require.NoError(t, err)
	require.NoError(t, c.Call(context.Background(), "ping", nil, nil))
}

func TestRPCErrorIsProtocol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"result":null,"error":{"code":-10,"message":"Bitcoin Core is in initial sync"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	err = c.Call(context.Background(), "getblocktemplate", nil, nil)
	require.Error(t, err)
	assert.True(t, fault.IsErrProtocol(err))

	var perr *fault.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, -10, perr.Code)
	assert.Equal(t, "Bitcoin Core is in initial sync", perr.Message)
}

func TestBadStatusIsProtocol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	err = c.Call(context.Background(), "getblocktemplate", nil, nil)
	assert.True(t, fault.IsErrProtocol(err))
	assert.Contains(t, err.Error(), "status 401")
}

func TestGarbageBodyIsProtocol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	var out int
	err = c.Call(context.Background(), "getblockcount", nil, &out)
	assert.True(t, fault.IsErrProtocol(err))
}

func TestUnreachableIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, WithTimeout(time.Second))
	require.NoError(t, err)
	err = c.Call(context.Background(), "getblockcount", nil, nil)
	require.Error(t, err)
	assert.True(t, fault.IsErrTransport(err))
	assert.False(t, fault.IsErrProtocol(err))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://node:8332")
	assert.Error(t, err)
	_, err = NewClient("://bad")
	assert.Error(t, err)
}
