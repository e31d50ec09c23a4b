package identity

import (
	"strings"
	"time"
)

// adminKeywords flag privileged group and role names. Matching is
// case-insensitive substring matching.
var adminKeywords = []string{
	"admin", "administrator", "root", "super", "owner", "manager", "full_access",
}

// Weights is the additive risk weighting for one ingestion path. The API and
// CSV paths weigh statuses differently (a vendor-reported "disabled" account
// found over the API carries more weight than an "inactive" row in an
// uploaded file), so the profile is explicit rather than baked in.
type Weights struct {
	Suspended     int
	Inactive      int
	Disabled      int
	Deprovisioned int
	UnknownLogin  int
}

// APIWeights is the profile used by every platform connector.
var APIWeights = Weights{
	Suspended:     30,
	Inactive:      25,
	Disabled:      50,
	Deprovisioned: 50,
	UnknownLogin:  20,
}

// CSVWeights is the profile used by the CSV ingestion pipeline.
var CSVWeights = Weights{
	Suspended:     30,
	Inactive:      20,
	Disabled:      20,
	Deprovisioned: 40,
	UnknownLogin:  15,
}

// RiskSignals carries the inputs the scorer looks at. Disabled records the
// vendor-level "account disabled" flag for platforms that expose it as a
// distinct signal from suspension.
type RiskSignals struct {
	Status    Status
	Disabled  bool
	LastLogin time.Time // zero value means no login timestamp is known
	Groups    []string
}

// RiskScore computes the 0-100 risk score for an account. The rules are
// additive and order-independent, clamped to [0, 100] at the end:
//
//   - status: suspended, inactive, or deprovisioned add the profile weight;
//     a distinct vendor "disabled" flag adds the Disabled weight instead
//   - login recency: >90 days +25, >30 days +15, >7 days +5
//   - unknown last login: the profile's UnknownLogin weight
//   - each admin-like group name: +10, uncapped before the clamp
//
// The reference time is an explicit parameter so the function stays pure and
// a transform run on the same raw record is byte-for-byte reproducible.
func RiskScore(now time.Time, sig RiskSignals, w Weights) int {
	score := 0

	switch {
	case sig.Disabled:
		score += w.Disabled
	case sig.Status == StatusSuspended:
		score += w.Suspended
	case sig.Status == StatusDeprovisioned:
		score += w.Deprovisioned
	case sig.Status == StatusInactive:
		score += w.Inactive
	}

	if sig.LastLogin.IsZero() {
		score += w.UnknownLogin
	} else {
		days := int(now.Sub(sig.LastLogin).Hours() / 24)
		switch {
		case days > 90:
			score += 25
		case days > 30:
			score += 15
		case days > 7:
			score += 5
		}
	}

	for _, g := range sig.Groups {
		if IsAdminGroup(g) {
			score += 10
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// IsAdminGroup reports whether a group or role name looks privileged.
func IsAdminGroup(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range adminKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ParseTimestamp parses the timestamp formats the vendors actually emit:
// RFC 3339 with or without fractional seconds, plus bare dates from CSV
// uploads. The zero time is returned when nothing parses.
func ParseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"01/02/2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
