package identity

import "time"

// HighRisk returns the users whose risk score is at or above the threshold.
func HighRisk(users []*User, threshold int) []*User {
	var out []*User
	for _, u := range users {
		if u.RiskScore >= threshold {
			out = append(out, u)
		}
	}
	return out
}

// Inactive returns the users who have not logged in within the given number
// of days. Users with no parseable last-login timestamp are included, since
// an account that has never been seen logging in is exactly what an access
// review wants surfaced.
func Inactive(users []*User, now time.Time, days int) []*User {
	cutoff := now.AddDate(0, 0, -days)
	var out []*User
	for _, u := range users {
		last := ParseTimestamp(u.LastLogin)
		if last.IsZero() || last.Before(cutoff) {
			out = append(out, u)
		}
	}
	return out
}

// Privileged returns the users belonging to at least one admin-like group.
func Privileged(users []*User) []*User {
	var out []*User
	for _, u := range users {
		for _, g := range u.Groups {
			if IsAdminGroup(g) {
				out = append(out, u)
				break
			}
		}
	}
	return out
}
