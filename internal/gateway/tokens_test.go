package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestStaticTokenProvider(t *testing.T) {
	p := NewStaticTokenProvider(map[string]string{"https://Prod.kusto.windows.net/": "tok"})
	token, err := p.Token(context.Background(), "https://prod.kusto.windows.net")
	if err != nil || token != "tok" {
		t.Fatalf("expected token, got %q %v", token, err)
	}
	if _, err := p.Token(context.Background(), "https://other.kusto.windows.net"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestLoginTokenProviderCachesPerCluster(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/tenant/oauth2/v2.0/token" {
			http.Error(w, "bad path "+r.URL.Path, http.StatusNotFound)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("client_id") != "client" || r.PostForm.Get("client_secret") != "secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"` + r.PostForm.Get("scope") + `","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	p := NewLoginTokenProvider(server.URL+"/", "tenant", "client", "secret", server.Client())
	ctx := context.Background()
	token, err := p.Token(ctx, "https://prod.kusto.windows.net/")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token != "https://prod.kusto.windows.net/.default" {
		t.Fatalf("unexpected token %q", token)
	}
	if _, err := p.Token(ctx, "https://prod.kusto.windows.net"); err != nil {
		t.Fatalf("cached token: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one token request, got %d", calls.Load())
	}
	if _, err := p.Token(ctx, "https://dev.kusto.windows.net"); err != nil {
		t.Fatalf("second cluster: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected a request per cluster, got %d", calls.Load())
	}
}

func TestLoginTokenProviderReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewLoginTokenProvider(server.URL, "tenant", "client", "wrong", server.Client())
	if _, err := p.Token(context.Background(), "https://prod.kusto.windows.net"); err == nil {
		t.Fatalf("expected token error")
	}
}
