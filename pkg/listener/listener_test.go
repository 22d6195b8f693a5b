package listener

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/blip-dev/blip/pkg/blip"
	"github.com/blip-dev/blip/pkg/wstransport"
)

// clientDelegate ignores upcalls; tests await responses via futures.
type clientDelegate struct{}

func (clientDelegate) OnRequestReceived(*blip.MessageIn)  {}
func (clientDelegate) OnResponseReceived(*blip.MessageIn) {}
func (clientDelegate) OnClose(error)                      {}

// startListener serves l over httptest and returns a started client
// connection to it.
func startListener(t *testing.T, l *Listener) *blip.Connection {
	t.Helper()
	srv := httptest.NewServer(l.Router())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	urlStr := "ws" + strings.TrimPrefix(srv.URL, "http") + "/blip"
	tr, err := wstransport.Dial(ctx, urlStr, wstransport.Options{AppProtocolID: "test"})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	conn := blip.NewConnection(tr, blip.ConnectionOptions{Delegate: clientDelegate{}})
	conn.Start()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendRequest(t *testing.T, conn *blip.Connection, profile, body string) *blip.MessageIn {
	t.Helper()
	b := blip.NewMessageBuilder()
	if err := b.AddProperty("Profile", profile); err != nil {
		t.Fatal(err)
	}
	b.WriteString(body)
	msg, err := conn.SendRequest(b)
	if err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := msg.FutureResponse().Await(ctx)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	return resp
}

func TestListenerDispatchesByProfile(t *testing.T) {
	l := New(Config{
		AppProtocolID: "test",
		Registry:      prometheus.NewRegistry(),
		CheckOrigin:   func(*http.Request) bool { return true },
	})
	l.Dispatcher().Register("echo", func(_ context.Context, req *blip.MessageIn) {
		b := blip.NewResponseBuilder(req)
		b.Write(req.Body())
		if err := req.Respond(b); err != nil {
			t.Errorf("Respond() error = %v", err)
		}
	})

	conn := startListener(t, l)

	resp := sendRequest(t, conn, "echo", "hello")
	if resp.Type() != blip.ResponseType {
		t.Errorf("response type = %v, want Response", resp.Type())
	}
	if !bytes.Equal(resp.Body(), []byte("hello")) {
		t.Errorf("response body = %q, want hello", resp.Body())
	}

	if got := testutil.ToFloat64(l.metrics.connectionsTotal); got != 1 {
		t.Errorf("connections_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(l.metrics.requestsTotal.WithLabelValues("echo")); got != 1 {
		t.Errorf("requests_total{profile=echo} = %v, want 1", got)
	}
}

func TestListenerUnknownProfileGets404(t *testing.T) {
	l := New(Config{
		AppProtocolID: "test",
		Registry:      prometheus.NewRegistry(),
		CheckOrigin:   func(*http.Request) bool { return true },
	})

	conn := startListener(t, l)

	resp := sendRequest(t, conn, "nope", "")
	if resp.Type() != blip.ErrorType {
		t.Fatalf("response type = %v, want Error", resp.Type())
	}
	if resp.ErrorDomain() != "BLIP" {
		t.Errorf("Error-Domain = %q, want BLIP", resp.ErrorDomain())
	}
	if resp.ErrorCode() != 404 {
		t.Errorf("Error-Code = %d, want 404", resp.ErrorCode())
	}

	if got := testutil.ToFloat64(l.metrics.unhandledTotal); got != 1 {
		t.Errorf("requests_unhandled_total = %v, want 1", got)
	}
}

func TestListenerDefaultHandler(t *testing.T) {
	l := New(Config{
		AppProtocolID: "test",
		Registry:      prometheus.NewRegistry(),
		CheckOrigin:   func(*http.Request) bool { return true },
	})
	l.Dispatcher().SetDefault(func(_ context.Context, req *blip.MessageIn) {
		b := blip.NewResponseBuilder(req)
		b.WriteString("fallback")
		req.Respond(b)
	})

	conn := startListener(t, l)

	resp := sendRequest(t, conn, "anything", "")
	if string(resp.Body()) != "fallback" {
		t.Errorf("body = %q, want fallback", resp.Body())
	}
}

func TestListenerHealthAndMetricsEndpoints(t *testing.T) {
	l := New(Config{
		AppProtocolID: "test",
		Registry:      prometheus.NewRegistry(),
	})
	srv := httptest.NewServer(l.Router())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", resp.StatusCode)
	}

	mresp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer mresp.Body.Close()
	if mresp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", mresp.StatusCode)
	}
	body, _ := io.ReadAll(mresp.Body)
	if !strings.Contains(string(body), "blip_connections_active") {
		t.Error("/metrics does not expose blip_connections_active")
	}
}
