package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-fabric/internal/core/lifecycle"
	"github.com/dep2p/go-fabric/internal/core/link"
	"github.com/dep2p/go-fabric/internal/core/metrics"
	"github.com/dep2p/go-fabric/internal/core/topology"
	"github.com/dep2p/go-fabric/pkg/types"
)

type fakeChip struct {
	id      types.Identity
	ready   bool
	halted  error
	metrics *metrics.Collector
}

func (f *fakeChip) Identity() types.Identity { return f.id }
func (f *fakeChip) Phase() lifecycle.Phase {
	if f.ready {
		return lifecycle.PhaseRunning
	}
	return lifecycle.PhaseDiscovery
}
func (f *fakeChip) Ready() bool   { return f.ready }
func (f *fakeChip) Halted() error { return f.halted }
func (f *fakeChip) Pending() int  { return 0 }
func (f *fakeChip) Links() []link.PortStatus {
	return []link.PortStatus{{Port: 0, StateName: "up"}}
}
func (f *fakeChip) Topology() *topology.Snapshot {
	return &topology.Snapshot{Epoch: "e1", Identity: f.id, Conns: []types.Conn{types.ConnRight}}
}
func (f *fakeChip) Metrics() *metrics.Collector { return f.metrics }

func newFakes() []*fakeChip {
	mcfg := metrics.Config{Enabled: true, Namespace: "fabric"}
	a := types.Identity{BoardID: 1}
	b := types.Identity{BoardID: 2, ChipX: 1}
	return []*fakeChip{
		{id: a, ready: true, metrics: metrics.NewCollector(mcfg, a.String(), nil)},
		{id: b, ready: true, metrics: metrics.NewCollector(mcfg, b.String(), nil)},
	}
}

func serve(t *testing.T, chips []*fakeChip) *httptest.Server {
	t.Helper()
	src := SourceFunc(func() []Chip {
		out := make([]Chip, len(chips))
		for i, c := range chips {
			out[i] = c
		}
		return out
	})
	ts := httptest.NewServer(New(Config{Source: src}).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestServer_Fabric(t *testing.T) {
	chips := newFakes()
	ts := serve(t, chips)

	code, body := get(t, ts.URL+"/debug/fabric")
	require.Equal(t, http.StatusOK, code)
	var reports []ChipReport
	require.NoError(t, json.Unmarshal(body, &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, chips[0].id.String(), reports[0].Chip)
	assert.Equal(t, "running", reports[0].Phase)
	assert.Equal(t, "e1", reports[0].Epoch)
	assert.Equal(t, []string{types.ConnRight.String()}, reports[0].Conns)
	require.NotNil(t, reports[0].Metrics)

	code, body = get(t, ts.URL+"/debug/fabric/chip?rack_x=0&rack_y=0&x=1&y=0")
	require.Equal(t, http.StatusOK, code)
	var one ChipReport
	require.NoError(t, json.Unmarshal(body, &one))
	assert.Equal(t, chips[1].id.String(), one.Chip)

	code, _ = get(t, ts.URL+"/debug/fabric/chip?rack_x=0&rack_y=0&x=3&y=3")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = get(t, ts.URL+"/debug/fabric/chip?x=a")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = get(t, ts.URL+"/debug/fabric/links")
	require.Equal(t, http.StatusOK, code)
	var links map[string][]link.PortStatus
	require.NoError(t, json.Unmarshal(body, &links))
	assert.Len(t, links, 2)
}

func TestServer_Metrics(t *testing.T) {
	chips := newFakes()
	chips[0].metrics.Retried()
	chips[1].metrics.Retried()
	ts := serve(t, chips)

	code, body := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	text := string(body)
	assert.Contains(t, text, "fabric_engine_retries_total")
	assert.Contains(t, text, chips[0].id.String())
	assert.Contains(t, text, chips[1].id.String())
}

func TestServer_Health(t *testing.T) {
	chips := newFakes()
	ts := serve(t, chips)

	status := func() string {
		_, body := get(t, ts.URL+"/health")
		var h struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(body, &h))
		return h.Status
	}
	assert.Equal(t, "ok", status())

	chips[1].ready = false
	assert.Equal(t, "degraded", status())

	chips[0].halted = errors.New("boom")
	assert.Equal(t, "halted", status())
}

func TestServer_StartStop(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", Source: SourceFunc(func() []Chip { return nil })})
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))

	code, _ := get(t, "http://"+s.Addr()+"/health")
	assert.Equal(t, http.StatusOK, code)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
