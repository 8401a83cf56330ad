package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
	"github.com/JensKSuessmeyer/delta-kusto/pkg/snapshot"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrKustoRequest marks a management request the cluster rejected.
var ErrKustoRequest = errors.New("kusto request failed")

// KustoError carries the cluster's error payload.
type KustoError struct {
	Status    int
	Code      string
	Message   string
	Command   string
	RequestID string
}

func (e *KustoError) Error() string {
	msg := fmt.Sprintf("kusto status %d", e.Status)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

func (e *KustoError) Unwrap() error {
	return ErrKustoRequest
}

// AsKustoError extracts a KustoError when present.
func AsKustoError(err error) (*KustoError, bool) {
	var target *KustoError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KustoOptions tunes the HTTP side of a KustoGateway.
type KustoOptions struct {
	HTTPClient  *http.Client
	Timeout     time.Duration
	Retries     int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	UserAgent   string
	Logger      *slog.Logger
}

// KustoGateway runs management commands against one database of a live
// cluster through the v1 REST endpoint.
type KustoGateway struct {
	clusterURI  string
	database    string
	tokens      TokenProvider
	client      *http.Client
	retries     int
	backoffBase time.Duration
	backoffMax  time.Duration
	userAgent   string
	logger      *slog.Logger
}

func NewKustoGateway(clusterURI, database string, tokens TokenProvider, opts KustoOptions) *KustoGateway {
	client := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		client = &copied
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = otelhttp.NewTransport(base)
	if opts.Timeout > 0 {
		client.Timeout = opts.Timeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "delta-kusto"
	}
	return &KustoGateway{
		clusterURI:  strings.TrimRight(clusterURI, "/"),
		database:    database,
		tokens:      tokens,
		client:      client,
		retries:     opts.Retries,
		backoffBase: opts.BackoffBase,
		backoffMax:  opts.BackoffMax,
		userAgent:   userAgent,
		logger:      logger.With("cluster", clusterURI, "database", database),
	}
}

func (g *KustoGateway) ClusterURI() string { return g.clusterURI }
func (g *KustoGateway) Database() string   { return g.database }

// DatabaseSchema reads the database schema and its retention policies.
func (g *KustoGateway) DatabaseSchema(ctx context.Context) (*snapshot.DatabaseSchema, error) {
	result, err := g.run(ctx, ".show database schema as json")
	if err != nil {
		return nil, fmt.Errorf("show database schema: %w", err)
	}
	rows := result.primary().records()
	if len(rows) == 0 {
		return snapshot.Empty(g.database), nil
	}
	raw := stringValue(rows[0]["DatabaseSchema"])
	if raw == "" {
		return snapshot.Empty(g.database), nil
	}
	schema, err := snapshot.Decode([]byte(raw), g.database)
	if err != nil {
		return nil, err
	}

	databaseName := command.NewEntityName(g.database).Script()
	for _, csl := range []string{
		".show database " + databaseName + " policy retention",
		".show table * policy retention",
	} {
		result, err := g.run(ctx, csl)
		if err != nil {
			return nil, fmt.Errorf("show retention policies: %w", err)
		}
		for _, row := range result.primary().records() {
			policy := strings.TrimSpace(stringValue(row["Policy"]))
			if policy == "" || policy == "null" {
				continue
			}
			schema.RetentionPolicies = append(schema.RetentionPolicies, snapshot.RetentionPolicyRow{
				EntityName: stringValue(row["EntityName"]),
				EntityType: stringValue(row["EntityType"]),
				Policy:     policy,
			})
		}
	}
	return schema, nil
}

// Execute runs commands in order and stops at the first failure.
func (g *KustoGateway) Execute(ctx context.Context, cmds []command.Command) error {
	for i, cmd := range cmds {
		g.logger.DebugContext(ctx, "executing command", "index", i, "kind", cmd.Kind())
		if _, err := g.run(ctx, cmd.Script()); err != nil {
			return fmt.Errorf("execute command %d (%s): %w", i, cmd.Kind().FriendlyName(), err)
		}
	}
	return nil
}

type mgmtRequest struct {
	DB  string `json:"db"`
	CSL string `json:"csl"`
}

type mgmtResponse struct {
	Tables []mgmtTable `json:"Tables"`
}

type mgmtTable struct {
	TableName string       `json:"TableName"`
	Columns   []mgmtColumn `json:"Columns"`
	Rows      [][]any      `json:"Rows"`
}

type mgmtColumn struct {
	ColumnName string `json:"ColumnName"`
	DataType   string `json:"DataType"`
	ColumnType string `json:"ColumnType"`
}

type mgmtError struct {
	Error struct {
		Code        string `json:"code"`
		Message     string `json:"message"`
		FullMessage string `json:"@message"`
	} `json:"error"`
}

func (r *mgmtResponse) primary() *mgmtTable {
	if len(r.Tables) == 0 {
		return &mgmtTable{}
	}
	return &r.Tables[0]
}

func (t *mgmtTable) records() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		record := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				record[col.ColumnName] = row[i]
			}
		}
		out = append(out, record)
	}
	return out
}

func stringValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(data)
	}
}

func (g *KustoGateway) run(ctx context.Context, csl string) (*mgmtResponse, error) {
	body, err := json.Marshal(mgmtRequest{DB: g.database, CSL: csl})
	if err != nil {
		return nil, fmt.Errorf("marshal kusto request: %w", err)
	}
	token, err := g.tokens.Token(ctx, g.clusterURI)
	if err != nil {
		return nil, err
	}

	attempts := g.retries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		result, err := g.send(ctx, body, token, csl)
		if err == nil {
			return result, nil
		}
		if attempt >= attempts || !retryable(err) {
			return nil, err
		}
		g.logger.WarnContext(ctx, "retrying kusto request", "attempt", attempt, "error", err)
		timer := time.NewTimer(g.backoffDuration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (g *KustoGateway) send(ctx context.Context, body []byte, token, csl string) (*mgmtResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.clusterURI+"/v1/rest/mgmt", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create kusto request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-ms-client-request-id", requestID)
	req.Header.Set("x-ms-app", g.userAgent)
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send kusto request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read kusto response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kerr := &KustoError{Status: resp.StatusCode, Command: csl, RequestID: requestID}
		var payload mgmtError
		if json.Unmarshal(data, &payload) == nil && payload.Error.Code != "" {
			kerr.Code = payload.Error.Code
			kerr.Message = payload.Error.FullMessage
			if kerr.Message == "" {
				kerr.Message = payload.Error.Message
			}
		} else {
			kerr.Message = strings.TrimSpace(string(data))
		}
		return nil, kerr
	}
	var decoded mgmtResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode kusto response: %w", err)
	}
	return &decoded, nil
}

func (g *KustoGateway) backoffDuration(attempt int) time.Duration {
	base := float64(g.backoffBase)
	if base <= 0 {
		base = float64(500 * time.Millisecond)
	}
	delay := time.Duration(base * math.Pow(2, float64(attempt-1)))
	if g.backoffMax > 0 && delay > g.backoffMax {
		delay = g.backoffMax
	}
	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(delay) * jitter)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	kerr, ok := AsKustoError(err)
	if !ok {
		var urlErr *url.Error
		return errors.As(err, &urlErr)
	}
	switch kerr.Status {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	default:
		return kerr.Status >= 500
	}
}
