package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromRecorder(t *testing.T) {
	p, err := NewPromRecorder("test")
	require.NoError(t, err)

	p.HashRate(1500.5, 3000)
	p.TemplateRefreshed(820000)
	p.TemplateRefreshed(820001)
	p.TemplateRefreshFailed()
	p.BlockFound(820001)
	p.BlockSubmitted("accepted")
	p.BlockSubmitted("rejected")
	p.BlockSubmitted("accepted")

	assert.Equal(t, 1500.5, testutil.ToFloat64(p.hashRate))
	assert.Equal(t, 3000.0, testutil.ToFloat64(p.hashesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.templateRefresh))
	assert.Equal(t, 820001.0, testutil.ToFloat64(p.templateHeight))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.templateFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.blocksFound))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.blocksSubmitted.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.blocksSubmitted.WithLabelValues("rejected")))
}

func TestPromHandlerServesMetrics(t *testing.T) {
	p, err := NewPromRecorder("")
	require.NoError(t, err)
	p.BlockFound(7)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "miner_blocks_found_total 1")
	assert.Contains(t, string(body), "miner_last_block_height 7")
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.HashRate(1, 1)
	r.BlockSubmitted("accepted")
	assert.NotNil(t, Default)
}
