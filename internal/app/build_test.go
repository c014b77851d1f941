package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calendent/calendent/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		BindAddr:               ":0",
		MetricsNamespace:       fmt.Sprintf("calendent_app_%d", time.Now().UnixNano()),
		CalendarID:             "primary",
		ReasonerMode:           "mock",
		ReasonerTimeout:        5 * time.Second,
		CalendarTimeout:        time.Second,
		TurnTimeout:            10 * time.Second,
		MaxConversationHistory: 20,
		RecentMessagesLimit:    6,
		MaxActionsPerTurn:      4,
		TimezoneLabel:          "IST",
		TimezoneName:           "Asia/Kolkata",
		TimezoneOffsetMinutes:  330,
		ShutdownTimeout:        time.Second,
	}
}

func TestBuildWiresMockStack(t *testing.T) {
	cfg := testConfig(t)

	built, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer built.Cleanup()

	if built.API == nil || built.Agent == nil || built.Metrics == nil {
		t.Fatalf("Build returned incomplete result: %+v", built)
	}

	// Without a service account or a database the stack should come up fully
	// in-memory and answer a chat turn end to end.
	reply := built.Agent.HandleMessage(context.Background(), "u1", "hello")
	if reply.Text == "" {
		t.Fatalf("expected a reply from the mock stack")
	}
	if reply.BookingSucceeded {
		t.Fatalf("greeting must not book anything")
	}
}

func TestBuildServesHealthRoute(t *testing.T) {
	cfg := testConfig(t)

	built, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer built.Cleanup()

	srv := httptest.NewServer(built.API.Router())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestKeepAliveDisabledWithoutURL(t *testing.T) {
	stop := StartKeepAlive(context.Background(), "   ", time.Second)
	stop() // must be a safe no-op
}

func TestKeepAlivePingsHealthEndpoint(t *testing.T) {
	hits := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case hits <- r.URL.Path:
		default:
		}
	}))
	defer srv.Close()

	stop := StartKeepAlive(context.Background(), srv.URL+"/", 20*time.Millisecond)
	defer stop()

	select {
	case path := <-hits:
		if !strings.HasSuffix(path, "/api/health") {
			t.Fatalf("pinged %q, want /api/health", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("keep-alive never pinged the server")
	}
}
