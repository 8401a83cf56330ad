package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNoToken is returned when no token is configured for a cluster.
var ErrNoToken = errors.New("no token for cluster")

// TokenProvider hands out bearer tokens for a cluster.
type TokenProvider interface {
	Token(ctx context.Context, clusterURI string) (string, error)
}

// StaticTokenProvider serves pre-acquired tokens keyed by cluster URI.
type StaticTokenProvider struct {
	tokens map[string]string
}

// NewStaticTokenProvider copies tokens; cluster URIs compare without case or
// trailing slash.
func NewStaticTokenProvider(tokens map[string]string) *StaticTokenProvider {
	p := &StaticTokenProvider{tokens: make(map[string]string, len(tokens))}
	for cluster, token := range tokens {
		p.tokens[clusterKey(cluster)] = token
	}
	return p
}

func (p *StaticTokenProvider) Token(_ context.Context, clusterURI string) (string, error) {
	token, ok := p.tokens[clusterKey(clusterURI)]
	if !ok || token == "" {
		return "", fmt.Errorf("%w %s", ErrNoToken, clusterURI)
	}
	return token, nil
}

// LoginTokenProvider acquires tokens for a service principal with the client
// credentials flow, one cached token per cluster.
type LoginTokenProvider struct {
	authority string
	tenantID  string
	clientID  string
	secret    string
	client    *http.Client

	mu     sync.Mutex
	tokens map[string]*oauth2.Token
}

// NewLoginTokenProvider targets {authority}/{tenant}/oauth2/v2.0/token. A nil
// client means http.DefaultClient.
func NewLoginTokenProvider(authority, tenantID, clientID, secret string, client *http.Client) *LoginTokenProvider {
	return &LoginTokenProvider{
		authority: strings.TrimRight(authority, "/"),
		tenantID:  tenantID,
		clientID:  clientID,
		secret:    secret,
		client:    client,
		tokens:    make(map[string]*oauth2.Token),
	}
}

func (p *LoginTokenProvider) Token(ctx context.Context, clusterURI string) (string, error) {
	key := clusterKey(clusterURI)
	p.mu.Lock()
	defer p.mu.Unlock()
	if token, ok := p.tokens[key]; ok && token.Valid() {
		return token.AccessToken, nil
	}
	cfg := clientcredentials.Config{
		ClientID:     p.clientID,
		ClientSecret: p.secret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.authority, p.tenantID),
		Scopes:       []string{key + "/.default"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}
	token, err := cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire token for %s: %w", clusterURI, err)
	}
	p.tokens[key] = token
	return token.AccessToken, nil
}

func clusterKey(clusterURI string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(clusterURI), "/"))
}
