package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"sparrowvision/internal/config"
	"sparrowvision/internal/connector"
	"sparrowvision/internal/credential"
	"sparrowvision/internal/store"
	"sparrowvision/internal/syncer"
)

// newTestServer wires the full route table against sqlmock-backed storage.
func newTestServer(t *testing.T) (*httptest.Server, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	registry := connector.NewRegistry()
	storeMgr := store.NewManager(store.NewDatastore(db))
	enc, err := credential.NewEncryptor(bytes.Repeat([]byte{0x07}, 32))
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	credMgr := credential.NewManager(credential.NewDatastore(db), enc, registry)

	deps := &Deps{
		Config: &config.Config{
			Environment: "development",
			Sync:        config.SyncConfig{RiskThreshold: 70, InactiveDays: 90, HistoryLimit: 20},
		},
		Registry:    registry,
		Store:       storeMgr,
		Credentials: credMgr,
		Syncer:      syncer.New(registry, storeMgr, credMgr),
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, mock
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, srv.URL+"/health", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy status, got %q", body["status"])
	}
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]any
	resp := getJSON(t, srv.URL+"/api/v1/status", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["service"] != "sparrowvision" {
		t.Errorf("unexpected service name: %v", body["service"])
	}
}

func TestListConnectors(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		Connectors []struct {
			Name        string `json:"name"`
			DisplayName string `json:"display_name"`
		} `json:"connectors"`
		Count int `json:"count"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/connectors", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body.Count != 7 {
		t.Errorf("expected 7 connectors, got %d", body.Count)
	}
	if body.Connectors[0].Name != "azuread" {
		t.Errorf("expected sorted connectors starting with azuread, got %q", body.Connectors[0].Name)
	}
}

func TestTestConnector(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"results":[]}`))
	}))
	defer vendor.Close()

	srv, _ := newTestServer(t)

	post := func(platform, key string) map[string]any {
		payload, _ := json.Marshal(map[string]string{"api_key": key, "base_url": vendor.URL})
		resp, err := http.Post(srv.URL+"/api/v1/connectors/"+platform+"/test", "application/json", bytes.NewReader(payload))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		return body
	}

	if body := post("jumpcloud", "good"); body["success"] != true {
		t.Errorf("expected success, got %v", body)
	}
	body := post("jumpcloud", "bad")
	if body["success"] != false {
		t.Errorf("expected failure, got %v", body)
	}
	if hint, _ := body["hint"].(string); hint == "" {
		t.Error("expected a corrective hint for rejected credentials")
	}
}

func TestTestConnector_UnknownPlatform(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/connectors/ldap/test", "application/json",
		strings.NewReader(`{"api_key":"x"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRunSync(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"_id": "1", "email": "jane@acme.com", "activated": true},
			},
		})
	}))
	defer vendor.Close()

	srv, mock := newTestServer(t)

	now := time.Now()
	mock.ExpectExec(`UPDATE identity_records SET email`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO identity_records`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(uuid.New(), now, now))
	mock.ExpectQuery(`INSERT INTO sync_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))

	payload, _ := json.Marshal(map[string]string{"api_key": "k", "base_url": vendor.URL})
	resp, err := http.Post(srv.URL+"/api/v1/sync/jumpcloud", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var run store.SyncRun
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("failed to decode run: %v", err)
	}
	if !run.Success || run.UsersCount != 1 {
		t.Errorf("unexpected run: %+v", run)
	}
}

func TestProcessCSV(t *testing.T) {
	srv, mock := newTestServer(t)

	now := time.Now()
	mock.ExpectExec(`UPDATE identity_records SET email`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO identity_records`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(uuid.New(), now, now))
	mock.ExpectQuery(`INSERT INTO sync_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))

	csv := "email,name,status\njohn@acme.com,John Doe,active\n"
	resp, err := http.Post(srv.URL+"/api/v1/csv/process", "text/csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Result struct {
			ProcessedRows int `json:"processed_rows"`
		} `json:"result"`
		Run store.SyncRun `json:"run"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Result.ProcessedRows != 1 {
		t.Errorf("expected 1 processed row, got %d", body.Result.ProcessedRows)
	}
	if body.Run.Platform != "csv" {
		t.Errorf("expected csv run, got %q", body.Run.Platform)
	}
}

func TestProcessCSV_HeaderOnly(t *testing.T) {
	srv, mock := newTestServer(t)

	// A structurally failed upload still lands in the sync history.
	mock.ExpectQuery(`INSERT INTO sync_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))

	resp, err := http.Post(srv.URL+"/api/v1/csv/process", "text/csv",
		strings.NewReader("email,name\n"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", resp.StatusCode)
	}

	var body struct {
		Run store.SyncRun `json:"run"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Run.Platform != "csv" || body.Run.Success {
		t.Errorf("expected a failed csv run in history, got %+v", body.Run)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCSVTemplates(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		Templates []struct {
			ID string `json:"id"`
		} `json:"templates"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/csv/templates", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(body.Templates) != 5 {
		t.Errorf("expected 5 templates, got %d", len(body.Templates))
	}

	dl, err := http.Get(srv.URL + "/api/v1/csv/templates/standard")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer dl.Body.Close()
	if dl.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", dl.StatusCode)
	}
	if ct := dl.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %q", ct)
	}

	missing, err := http.Get(srv.URL + "/api/v1/csv/templates/nope")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", missing.StatusCode)
	}
}

func TestCreateCredential_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name    string
		payload string
		status  int
	}{
		{"bad JSON", "{", http.StatusBadRequest},
		{"unknown platform", `{"platform":"ldap","label":"x","api_key":"k"}`, http.StatusBadRequest},
		{"missing label", `{"platform":"slack","label":"","api_key":"k"}`, http.StatusBadRequest},
		{"missing key", `{"platform":"slack","label":"bot"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/credentials", "application/json",
				strings.NewReader(tt.payload))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestDeleteCredential_InvalidID(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/credentials/not-a-uuid", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}
