package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ripnet/ripd/pkg/config"
	"github.com/ripnet/ripd/pkg/control"
	"github.com/ripnet/ripd/pkg/engine"
	"github.com/ripnet/ripd/pkg/events"
	"github.com/ripnet/ripd/pkg/iface"
	"github.com/ripnet/ripd/pkg/metrics"
	"github.com/ripnet/ripd/pkg/rib"
)

type noopManager struct{}

func (noopManager) AddInterface(i *iface.Interface) error { return nil }
func (noopManager) RemoveInterface(name string) error      { return nil }
func (noopManager) Enable(name string)                      {}
func (noopManager) Disable(name string)                     {}

type noopTransport struct{}

func (noopTransport) Send(ctx context.Context, ifaceName string, payload []byte, dest netip.AddrPort) error {
	return nil
}
func (noopTransport) Recv(ctx context.Context) (iface.Packet, error) {
	<-ctx.Done()
	return iface.Packet{}, ctx.Err()
}
func (noopTransport) Enabled() []string                       { return nil }
func (noopTransport) Get(name string) (iface.Interface, bool) { return iface.Interface{}, false }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Snapshot{
		Version:                1,
		RouterID:               "10.0.0.1",
		RIPVersion:             2,
		Interfaces:             []config.Interface{{Name: "eth0", Addr: netip.MustParseAddr("10.0.0.1"), MaskLen: 24, Enabled: true, Cost: 1}},
		UpdateInterval:         30 * time.Second,
		GarbageCollectionTimer: 120 * time.Second,
		MaxHopCount:            16,
		SplitHorizon:           true,
	}
	ribInstance := rib.New(rib.DefaultTimers())
	bus := events.NewBus()
	mtr := metrics.NewRegistry()
	log := logrus.NewEntry(logrus.New())
	eng := engine.New(cfg, ribInstance, noopTransport{}, bus, mtr, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go eng.Run(ctx)

	facade := control.New(eng, ribInstance, noopManager{}, mtr, bus, log, cfg)
	return NewServer(facade, log)
}

func TestHandleStatusReturnsEnvelope(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success {
		t.Fatalf("expected success envelope, got %+v", env)
	}
}

func TestHandleCreateAndDeleteStaticRoute(t *testing.T) {
	s := newTestServer(t)

	body := `{"destination":"172.16.0.0","mask":"16","gateway":"10.0.0.254","metric":2}`
	req := httptest.NewRequest(http.MethodPost, "/routes/static", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	delReq := httptest.NewRequest(http.MethodPost, "/routes/delete?prefix=172.16.0.0/16", nil)
	delW := httptest.NewRecorder()
	s.ServeHTTP(delW, delReq)
	if delW.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting static route, got %d: %s", delW.Code, delW.Body.String())
	}
}

func TestHandleDeleteUnknownRouteReturnsError(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/routes/delete?prefix=192.168.9.0/24", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code == http.StatusOK {
		t.Fatalf("expected a non-200 status for unknown route deletion")
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", w.Code)
	}
}
