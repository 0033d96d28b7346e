package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marlowe/vantage/internal/fetch"
	"github.com/marlowe/vantage/internal/models"
)

func TestMeSendsBearerAndDeviceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Device-ID"); got != "dev-1" {
			t.Errorf("X-Device-ID = %q", got)
		}
		json.NewEncoder(w).Encode(UserResponse{UserID: "u-1", Email: "a@b.c"})
	}))
	defer srv.Close()

	c := New(srv.URL, "key-1", "dev-1")
	user, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if user.UserID != "u-1" {
		t.Errorf("user = %+v", user)
	}
}

func TestUnauthorizedClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"code": "unauthorized", "message": "key expired"})
	}))
	defer srv.Close()

	c := New(srv.URL, "stale", "dev-1")
	_, err := c.Me(context.Background())
	if !errors.Is(err, fetch.ErrUnauthorized) {
		t.Fatalf("err = %v, want fetch.ErrUnauthorized", err)
	}
	if fetch.Classify(err) != fetch.Unauthorized {
		t.Errorf("class = %s, want unauthorized", fetch.Classify(err))
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "d")
	_, err := c.Entitlement(context.Background())
	if !errors.Is(err, fetch.ErrUnavailable) {
		t.Fatalf("err = %v, want fetch.ErrUnavailable", err)
	}
	if fetch.Classify(err) != fetch.Transient {
		t.Errorf("class = %s, want transient", fetch.Classify(err))
	}
}

func TestConnectionRefusedIsTransient(t *testing.T) {
	// Grab a port that nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, "k", "d")
	_, err := c.Me(context.Background())
	if fetch.Classify(err) != fetch.Transient {
		t.Errorf("class = %s for %v, want transient", fetch.Classify(err), err)
	}
}

func TestCancellationPreserved(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := New(srv.URL, "k", "d")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Me(ctx)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if fetch.Classify(err) != fetch.Cancelled {
			t.Errorf("class = %s for %v, want cancelled", fetch.Classify(err), err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled request did not return")
	}
}

func TestRemoteSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("metric"); got != "revenue" {
			t.Errorf("metric param = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"points": []map[string]any{
				{"bucket": "2026-08-01T00:00:00Z", "value": 10.5},
				{"bucket": "2026-08-01T01:00:00Z", "value": 20.0},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "d")
	points, err := c.RemoteSeries(context.Background(), RemoteSeriesRequest{
		Dataset: "sales",
		Metric:  "revenue",
		Since:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Buckets: 60,
	})
	if err != nil {
		t.Fatalf("RemoteSeries: %v", err)
	}
	if len(points) != 2 || points[1].Value != 20 {
		t.Errorf("points = %+v", points)
	}
}

func TestResolveEntitlement(t *testing.T) {
	tier := "pro"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(EntitlementResponse{Tier: tier})
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "d")
	got, err := c.ResolveEntitlement(context.Background())
	if err != nil {
		t.Fatalf("ResolveEntitlement: %v", err)
	}
	if got != models.TierPro {
		t.Errorf("tier = %s, want pro", got)
	}

	tier = "platinum"
	if _, err := c.ResolveEntitlement(context.Background()); err == nil {
		t.Error("unknown tier should error")
	}
}
