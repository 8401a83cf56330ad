package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
	"github.com/google/uuid"
)

const clusterSchema = `{"Databases":{"Db":{"Name":"Db","Tables":{"Events":{"Name":"Events","OrderedColumns":[{"Name":"Id","CslType":"long"}]}},"Functions":{}}}}`

type fakeCluster struct {
	mu       sync.Mutex
	commands []string
	failures int
	status   int
}

func (c *fakeCluster) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/rest/mgmt" {
			http.Error(w, "unexpected request", http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := uuid.Parse(r.Header.Get("x-ms-client-request-id")); err != nil {
			http.Error(w, "bad request id", http.StatusBadRequest)
			return
		}
		var req mgmtRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DB != "Db" {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}

		c.mu.Lock()
		c.commands = append(c.commands, req.CSL)
		fail := c.failures > 0
		if fail {
			c.failures--
		}
		c.mu.Unlock()
		if fail {
			w.WriteHeader(c.status)
			_, _ = w.Write([]byte(`{"error":{"code":"Throttled","message":"slow down","@message":"slow down please"}}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case req.CSL == ".show database schema as json":
			writeTable(t, w, []string{"DatabaseSchema"}, [][]any{{clusterSchema}})
		case strings.HasPrefix(req.CSL, ".show database Db policy retention"):
			writeTable(t, w, []string{"PolicyName", "EntityName", "Policy", "EntityType"}, [][]any{
				{"RetentionPolicy", "[Db]", `{"SoftDeletePeriod":"365.00:00:00","Recoverability":"Enabled"}`, "Database"},
			})
		case req.CSL == ".show table * policy retention":
			writeTable(t, w, []string{"PolicyName", "EntityName", "Policy", "EntityType"}, [][]any{
				{"RetentionPolicy", "[Db].[Events]", `{"SoftDeletePeriod":"30.00:00:00","Recoverability":"Disabled"}`, "Table"},
				{"RetentionPolicy", "[Db].[Other]", nil, "Table"},
			})
		default:
			writeTable(t, w, []string{"Result"}, nil)
		}
	}
}

func writeTable(t *testing.T, w http.ResponseWriter, columns []string, rows [][]any) {
	t.Helper()
	table := mgmtTable{TableName: "Table_0", Rows: rows}
	for _, col := range columns {
		table.Columns = append(table.Columns, mgmtColumn{ColumnName: col, ColumnType: "string"})
	}
	if err := json.NewEncoder(w).Encode(mgmtResponse{Tables: []mgmtTable{table}}); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func newTestGateway(t *testing.T, cluster *fakeCluster, retries int) *KustoGateway {
	t.Helper()
	server := httptest.NewServer(cluster.handler(t))
	t.Cleanup(server.Close)
	tokens := NewStaticTokenProvider(map[string]string{server.URL: "tok"})
	return NewKustoGateway(server.URL+"/", "Db", tokens, KustoOptions{
		HTTPClient:  server.Client(),
		Retries:     retries,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	})
}

func TestKustoDatabaseSchema(t *testing.T) {
	cluster := &fakeCluster{}
	schema, err := newTestGateway(t, cluster, 0).DatabaseSchema(context.Background())
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if schema.Name != "Db" || schema.Tables["Events"] == nil {
		t.Fatalf("unexpected schema %+v", schema)
	}
	if len(schema.RetentionPolicies) != 2 {
		t.Fatalf("expected database and table policies, got %+v", schema.RetentionPolicies)
	}
	if schema.RetentionPolicies[1].EntityName != "[Db].[Events]" || schema.RetentionPolicies[1].EntityType != "Table" {
		t.Fatalf("unexpected table policy %+v", schema.RetentionPolicies[1])
	}
	if len(cluster.commands) != 3 {
		t.Fatalf("expected three management commands, got %v", cluster.commands)
	}
}

func TestKustoExecuteRunsInOrder(t *testing.T) {
	cluster := &fakeCluster{}
	cmds := []command.Command{
		command.NewDropTable(command.NewEntityName("Old")),
		command.NewCreateTable(command.NewEntityName("New"), []command.TableColumn{
			{Name: command.NewEntityName("a"), Type: command.TypeString},
		}, nil, nil),
	}
	if err := newTestGateway(t, cluster, 0).Execute(context.Background(), cmds); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(cluster.commands) != 2 || cluster.commands[0] != cmds[0].Script() || cluster.commands[1] != cmds[1].Script() {
		t.Fatalf("unexpected commands %v", cluster.commands)
	}
}

func TestKustoRetriesThrottledRequests(t *testing.T) {
	cluster := &fakeCluster{failures: 2, status: http.StatusTooManyRequests}
	if _, err := newTestGateway(t, cluster, 2).DatabaseSchema(context.Background()); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if len(cluster.commands) != 5 {
		t.Fatalf("expected two retried requests plus three commands, got %d", len(cluster.commands))
	}
}

func TestKustoReportsClusterErrors(t *testing.T) {
	cluster := &fakeCluster{failures: 5, status: http.StatusServiceUnavailable}
	_, err := newTestGateway(t, cluster, 1).DatabaseSchema(context.Background())
	if !errors.Is(err, ErrKustoRequest) {
		t.Fatalf("expected kusto request error, got %v", err)
	}
	kerr, ok := AsKustoError(err)
	if !ok || kerr.Status != http.StatusServiceUnavailable || kerr.Code != "Throttled" || kerr.Message != "slow down please" {
		t.Fatalf("unexpected kusto error %+v", kerr)
	}
	if len(cluster.commands) != 2 {
		t.Fatalf("expected one retry, got %d requests", len(cluster.commands))
	}
}

func TestKustoDoesNotRetryBadRequests(t *testing.T) {
	cluster := &fakeCluster{failures: 1, status: http.StatusBadRequest}
	err := newTestGateway(t, cluster, 3).Execute(context.Background(), []command.Command{
		command.NewDropTable(command.NewEntityName("T")),
	})
	if !errors.Is(err, ErrKustoRequest) {
		t.Fatalf("expected kusto request error, got %v", err)
	}
	if len(cluster.commands) != 1 {
		t.Fatalf("expected no retry, got %d requests", len(cluster.commands))
	}
}

func TestKustoMissingToken(t *testing.T) {
	g := NewKustoGateway("https://nowhere.kusto.windows.net", "Db", NewStaticTokenProvider(nil), KustoOptions{})
	if _, err := g.DatabaseSchema(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}
