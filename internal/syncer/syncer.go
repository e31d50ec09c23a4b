// Package syncer drives full sync cycles: resolve credentials, run the
// platform connector, persist the normalized users, and append the run to
// the sync history.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"sparrowvision/internal/connector"
	"sparrowvision/internal/csvimport"
	"sparrowvision/internal/identity"
	"sparrowvision/internal/store"
)

// ErrNoCredential is returned when a platform has no stored active
// credential and no config was supplied inline.
var ErrNoCredential = errors.New("no active credential for platform")

// CredentialSource resolves the stored connector config for a platform.
type CredentialSource interface {
	Config(ctx context.Context, platform string) (connector.Config, error)
}

// Syncer wires connectors to the identity store.
type Syncer struct {
	registry *connector.Registry
	store    *store.Manager
	creds    CredentialSource
}

// New creates a syncer. creds may be nil when every caller supplies inline
// configs.
func New(registry *connector.Registry, st *store.Manager, creds CredentialSource) *Syncer {
	return &Syncer{registry: registry, store: st, creds: creds}
}

// Run executes one sync cycle for a platform using its stored credential.
// The connector result is persisted even when the sync was partial; storage
// failures are appended to the run's error list rather than discarding the
// fetched users.
func (s *Syncer) Run(ctx context.Context, platform, cursor string) (*store.SyncRun, error) {
	if s.creds == nil {
		return nil, ErrNoCredential
	}
	cfg, err := s.creds.Config(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	return s.RunWithConfig(ctx, platform, cfg, cursor)
}

// RunWithConfig executes one sync cycle with an inline connector config.
func (s *Syncer) RunWithConfig(ctx context.Context, platform string, cfg connector.Config, cursor string) (*store.SyncRun, error) {
	conn, err := s.registry.New(platform, cfg)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	log.Printf("sync started: platform=%s cursor=%q", platform, cursor)

	result, err := conn.SyncUsers(ctx, cursor)
	if err != nil {
		// Pre-network configuration failure; nothing was fetched, nothing
		// to persist beyond the failed run itself.
		run := &store.SyncRun{
			Platform:  platform,
			Success:   false,
			Errors:    []string{err.Error()},
			Duration:  time.Since(started),
			StartedAt: started,
		}
		if rerr := s.store.RecordRun(ctx, run); rerr != nil {
			log.Printf("sync run not recorded: %v", rerr)
		}
		return run, err
	}

	run := runFromResult(platform, result, started)

	stored, storeErrs := s.store.UpsertUsers(ctx, platform, result.Users)
	run.UsersCount = stored
	run.SkippedCount += len(result.Users) - stored
	for _, serr := range storeErrs {
		run.Success = false
		run.Errors = append(run.Errors, serr.Error())
	}

	if rerr := s.store.RecordRun(ctx, run); rerr != nil {
		log.Printf("sync run not recorded: %v", rerr)
	}

	log.Printf("sync finished: platform=%s users=%d errors=%d duration=%s",
		platform, run.UsersCount, len(run.Errors), run.Duration)
	return run, nil
}

// Check runs the platform's connection test with its stored credential and
// returns the classified error, if any.
func (s *Syncer) Check(ctx context.Context, platform string) error {
	if s.creds == nil {
		return ErrNoCredential
	}
	cfg, err := s.creds.Config(ctx, platform)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	return s.CheckWithConfig(ctx, platform, cfg)
}

// CheckWithConfig runs the platform's connection test with an inline config.
func (s *Syncer) CheckWithConfig(ctx context.Context, platform string, cfg connector.Config) error {
	conn, err := s.registry.New(platform, cfg)
	if err != nil {
		return err
	}
	return conn.TestConnection(ctx)
}

// Import persists the outcome of a CSV processing run under the synthetic
// "csv" platform and appends it to the sync history.
func (s *Syncer) Import(ctx context.Context, res *csvimport.ProcessResult) (*store.SyncRun, error) {
	started := time.Now().Add(-res.Duration)
	run := &store.SyncRun{
		Platform:     "csv",
		Success:      res.Success,
		SkippedCount: res.SkippedRows,
		Errors:       res.Errors,
		Duration:     res.Duration,
		StartedAt:    started,
	}
	for _, u := range res.Users {
		switch u.Status {
		case identity.StatusActive:
			run.ActiveUsers++
		case identity.StatusSuspended:
			run.SuspendedUsers++
		}
	}

	stored, storeErrs := s.store.UpsertUsers(ctx, "csv", res.Users)
	run.UsersCount = stored
	run.SkippedCount += len(res.Users) - stored
	for _, serr := range storeErrs {
		run.Success = false
		run.Errors = append(run.Errors, serr.Error())
	}

	if rerr := s.store.RecordRun(ctx, run); rerr != nil {
		log.Printf("import run not recorded: %v", rerr)
	}
	return run, nil
}

func runFromResult(platform string, res *connector.SyncResult, started time.Time) *store.SyncRun {
	return &store.SyncRun{
		Platform:       platform,
		Success:        res.Success,
		UsersCount:     res.UsersCount,
		ActiveUsers:    res.ActiveUsers,
		SuspendedUsers: res.SuspendedUsers,
		APICalls:       res.APICalls,
		NextCursor:     res.NextCursor,
		Errors:         res.Errors,
		Duration:       res.SyncDuration,
		StartedAt:      started,
	}
}
