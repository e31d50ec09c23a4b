package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"sparrowvision/internal/connector"
	"sparrowvision/internal/csvimport"
	"sparrowvision/internal/identity"
	"sparrowvision/internal/store"
)

type staticCreds struct {
	cfg connector.Config
	err error
}

func (s staticCreds) Config(ctx context.Context, platform string) (connector.Config, error) {
	return s.cfg, s.err
}

func newTestSyncer(t *testing.T, creds CredentialSource) (*Syncer, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	st := store.NewManager(store.NewDatastore(db))
	return New(connector.NewRegistry(), st, creds), mock, func() { db.Close() }
}

func jumpcloudServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "jc-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"_id": "1", "email": "jane@acme.com", "firstname": "Jane", "activated": true},
				{"_id": "2", "email": "sam@acme.com", "firstname": "Sam", "suspended": true},
			},
		})
	}))
}

func TestSyncer_Run(t *testing.T) {
	srv := jumpcloudServer(t)
	defer srv.Close()

	creds := staticCreds{cfg: connector.Config{APIKey: "jc-key", BaseURL: srv.URL}}
	s, mock, done := newTestSyncer(t, creds)
	defer done()

	now := time.Now()
	for i := 0; i < 2; i++ {
		mock.ExpectExec(`UPDATE identity_records SET email`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO identity_records`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(uuid.New(), now, now))
	}
	mock.ExpectQuery(`INSERT INTO sync_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))

	run, err := s.Run(context.Background(), "jumpcloud", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !run.Success {
		t.Errorf("expected successful run, errors: %v", run.Errors)
	}
	if run.UsersCount != 2 {
		t.Errorf("expected 2 users stored, got %d", run.UsersCount)
	}
	if run.ActiveUsers != 1 || run.SuspendedUsers != 1 {
		t.Errorf("unexpected tallies: active=%d suspended=%d", run.ActiveUsers, run.SuspendedUsers)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSyncer_Run_NoCredential(t *testing.T) {
	s, _, done := newTestSyncer(t, staticCreds{err: errors.New("nothing stored")})
	defer done()

	_, err := s.Run(context.Background(), "jumpcloud", "")
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}
}

func TestSyncer_Run_ConfigFailureRecorded(t *testing.T) {
	// Missing API key fails before any network call; the failed run still
	// lands in the history.
	creds := staticCreds{cfg: connector.Config{}}
	s, mock, done := newTestSyncer(t, creds)
	defer done()

	mock.ExpectQuery(`INSERT INTO sync_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))

	run, err := s.Run(context.Background(), "jumpcloud", "")
	if !errors.Is(err, connector.ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig, got %v", err)
	}
	if run.Success {
		t.Error("expected failed run")
	}
	if len(run.Errors) != 1 {
		t.Errorf("expected one recorded error, got %v", run.Errors)
	}
}

func TestSyncer_Run_UnknownPlatform(t *testing.T) {
	s, _, done := newTestSyncer(t, staticCreds{})
	defer done()

	_, err := s.Run(context.Background(), "ldap", "")
	if !errors.Is(err, connector.ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestSyncer_Run_StorageFailureKeepsUsers(t *testing.T) {
	srv := jumpcloudServer(t)
	defer srv.Close()

	creds := staticCreds{cfg: connector.Config{APIKey: "jc-key", BaseURL: srv.URL}}
	s, mock, done := newTestSyncer(t, creds)
	defer done()

	now := time.Now()
	mock.ExpectExec(`UPDATE identity_records SET email`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO identity_records`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(uuid.New(), now, now))
	mock.ExpectExec(`UPDATE identity_records SET email`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO identity_records`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectQuery(`INSERT INTO sync_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))

	run, err := s.Run(context.Background(), "jumpcloud", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Success {
		t.Error("expected run marked failed after storage error")
	}
	if run.UsersCount != 1 || run.SkippedCount != 1 {
		t.Errorf("expected 1 stored and 1 skipped, got %d/%d", run.UsersCount, run.SkippedCount)
	}
}

func TestSyncer_Check(t *testing.T) {
	srv := jumpcloudServer(t)
	defer srv.Close()

	t.Run("valid key", func(t *testing.T) {
		s, _, done := newTestSyncer(t, staticCreds{cfg: connector.Config{APIKey: "jc-key", BaseURL: srv.URL}})
		defer done()
		if err := s.Check(context.Background(), "jumpcloud"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("rejected key", func(t *testing.T) {
		s, _, done := newTestSyncer(t, staticCreds{cfg: connector.Config{APIKey: "wrong", BaseURL: srv.URL}})
		defer done()
		err := s.Check(context.Background(), "jumpcloud")
		if !errors.Is(err, connector.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestSyncer_Import(t *testing.T) {
	s, mock, done := newTestSyncer(t, nil)
	defer done()

	res := &csvimport.ProcessResult{
		Success:       true,
		ProcessedRows: 2,
		SkippedRows:   1,
		Users: []*identity.User{
			{ID: "a@acme.com", Email: "a@acme.com", Status: identity.StatusActive},
			{ID: "b@acme.com", Email: "b@acme.com", Status: identity.StatusSuspended},
		},
		Errors:   []string{"row 2: user record has no email"},
		Duration: 20 * time.Millisecond,
	}

	now := time.Now()
	for i := 0; i < 2; i++ {
		mock.ExpectExec(`UPDATE identity_records SET email`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO identity_records`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(uuid.New(), now, now))
	}
	mock.ExpectQuery(`INSERT INTO sync_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))

	run, err := s.Import(context.Background(), res)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Platform != "csv" {
		t.Errorf("expected platform 'csv', got %q", run.Platform)
	}
	if run.UsersCount != 2 || run.SkippedCount != 1 {
		t.Errorf("unexpected counts: %d/%d", run.UsersCount, run.SkippedCount)
	}
	if run.ActiveUsers != 1 || run.SuspendedUsers != 1 {
		t.Errorf("unexpected tallies: active=%d suspended=%d", run.ActiveUsers, run.SuspendedUsers)
	}
}

func TestSyncer_ImportFailureRecorded(t *testing.T) {
	s, mock, done := newTestSyncer(t, nil)
	defer done()

	res := &csvimport.ProcessResult{
		Success:  false,
		Errors:   []string{"file is empty"},
		Duration: 5 * time.Millisecond,
	}

	mock.ExpectQuery(`INSERT INTO sync_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))

	run, err := s.Import(context.Background(), res)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Success {
		t.Error("expected a failed run")
	}
	if run.Platform != "csv" || run.UsersCount != 0 {
		t.Errorf("unexpected run: %+v", run)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
