package connector

import (
	"context"
	"fmt"
	"time"

	"sparrowvision/internal/identity"
)

// page is one fetched vendor page. Next is the opaque continuation cursor,
// empty when the vendor signals no more pages.
type page struct {
	Records []map[string]any
	Next    string
}

// fetchFunc fetches one page starting at cursor. The cursor format is
// vendor-specific and opaque to the driver.
type fetchFunc func(ctx context.Context, cursor string) (*page, error)

// transformFunc maps one raw vendor record to the canonical shape. It must
// be pure; the only permitted rejection is a missing email.
type transformFunc func(raw map[string]any, now time.Time) (*identity.User, error)

// collectPages drives a vendor's pagination dialect to completion. The
// cursor is threaded through the loop as a value; connectors hold no
// mutable pagination state.
//
// The loop terminates when the vendor signals no more pages (absent next
// cursor or an empty page), when a page comes back shorter than the
// requested page size (some vendors still attach a technically-valid next
// token to the final page), or when MaxSyncRecords have accumulated, in
// which case NextCursor carries the continuation point.
//
// A fetch failure or cancellation stops the loop but keeps every page
// already fetched: partial results are always returned, never discarded.
func collectPages(ctx context.Context, pageSize int, delay time.Duration, fetch fetchFunc, transform transformFunc) *SyncResult {
	start := time.Now()
	now := start.UTC()
	res := &SyncResult{}
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("sync cancelled: %v", err))
			break
		}

		p, err := fetch(ctx, cursor)
		res.APICalls++
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("page %d fetch failed: %v", res.Pages+1, err))
			break
		}
		res.Pages++

		for i, raw := range p.Records {
			u, terr := transform(raw, now)
			if terr != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("page %d record %d skipped: %v", res.Pages, i+1, terr))
				continue
			}
			res.Users = append(res.Users, u)
			switch u.Status {
			case identity.StatusActive:
				res.ActiveUsers++
			case identity.StatusSuspended, identity.StatusDeprovisioned:
				res.SuspendedUsers++
			}
		}

		if p.Next == "" || len(p.Records) == 0 || len(p.Records) < pageSize {
			break
		}
		if len(res.Users) >= MaxSyncRecords {
			res.NextCursor = p.Next
			break
		}
		cursor = p.Next

		if delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
	}

	res.UsersCount = len(res.Users)
	res.Success = len(res.Errors) == 0
	res.SyncDuration = time.Since(start)
	return res
}

// resumePages is collectPages starting from a caller-supplied cursor.
func resumePages(ctx context.Context, initialCursor string, pageSize int, delay time.Duration, fetch fetchFunc, transform transformFunc) *SyncResult {
	if initialCursor == "" {
		return collectPages(ctx, pageSize, delay, fetch, transform)
	}
	wrapped := func(ctx context.Context, cursor string) (*page, error) {
		if cursor == "" {
			cursor = initialCursor
		}
		return fetch(ctx, cursor)
	}
	return collectPages(ctx, pageSize, delay, wrapped, transform)
}
