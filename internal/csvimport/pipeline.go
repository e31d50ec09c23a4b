// Package csvimport is the fallback ingestion path for platforms with no
// API: it parses an uploaded delimited file, infers the column-to-field
// mapping, and transforms rows into the same canonical user shape the
// platform connectors produce.
package csvimport

import (
	"fmt"
	"strings"
	"time"

	"sparrowvision/internal/fieldmap"
	"sparrowvision/internal/identity"
)

// ProcessResult is produced once per uploaded file. Warnings are non-fatal
// data-quality observations; Errors are rows rejected entirely (or, for
// structural failures, the single fatal reason). A file with row errors but
// at least one processed row still reports Success: partial success is not
// failure.
type ProcessResult struct {
	Success       bool             `json:"success"`
	ProcessedRows int              `json:"processed_rows"`
	SkippedRows   int              `json:"skipped_rows"`
	Users         []*identity.User `json:"users"`
	Errors        []string         `json:"errors"`
	Warnings      []string         `json:"warnings"`
	Duration      time.Duration    `json:"duration_ms"`
}

// Options tune one Process call.
type Options struct {
	// TemplateID selects a template whose default mapping seeds header
	// resolution. Empty means no template.
	TemplateID string

	// CustomMapping overrides auto-detected and template mappings for the
	// fields it names.
	CustomMapping fieldmap.Mapping

	// Now fixes the reference time for risk scoring; zero means wall clock.
	Now time.Time
}

var delimiters = []rune{',', ';', '\t', '|'}

// Process runs the CSV ingestion state machine: read, delimiter detection,
// parse, header mapping, row transform, quality checks. Structural failures
// (empty file, no data rows, unmappable email or name) are fatal and return
// no users; row-level failures are isolated to the offending row.
func Process(content []byte, opts Options) *ProcessResult {
	start := time.Now()
	res := &ProcessResult{}
	defer func() {
		res.Duration = time.Since(start)
		res.Success = res.ProcessedRows > 0
	}()

	now := opts.Now
	if now.IsZero() {
		now = start.UTC()
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		res.Errors = append(res.Errors, "file is empty")
		return res
	}

	delim := detectDelimiter(firstLine(text))
	rows := parseRows(text, delim)
	if len(rows) < 2 {
		res.Errors = append(res.Errors, "file must contain a header row and at least one data row")
		return res
	}

	headers := rows[0]
	mapping, err := resolveMapping(headers, opts)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		res.Warnings = append(res.Warnings, "available columns: "+strings.Join(headers, ", "))
		return res
	}

	index := headerIndex(headers)
	for i, row := range rows[1:] {
		u, rerr := transformRow(row, index, mapping, now)
		if rerr != nil {
			res.SkippedRows++
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", i+1, rerr))
			continue
		}
		res.ProcessedRows++
		res.Users = append(res.Users, u)
	}

	res.Warnings = append(res.Warnings, qualityWarnings(res.Users)...)
	return res
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

// detectDelimiter tries each candidate against the header line and picks
// whichever yields the most columns. The detected delimiter drives the
// actual parse as well, so semicolon, tab, and pipe files parse correctly.
func detectDelimiter(header string) rune {
	best := ','
	bestCols := 0
	for _, d := range delimiters {
		if cols := len(splitLine(header, d)); cols > bestCols {
			best = d
			bestCols = cols
		}
	}
	return best
}

// parseRows splits the content into trimmed rows, dropping blank lines.
func parseRows(text string, delim rune) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, splitLine(line, delim))
	}
	return rows
}

// splitLine splits one line on the delimiter, honoring double-quote
// enclosed fields: quotes toggle an inside-field mode, a delimiter inside
// quotes does not split, and a doubled quote inside a quoted field is a
// literal quote.
func splitLine(line string, delim rune) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	runes := []rune(line)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, strings.TrimSpace(cur.String()))
	return fields
}

// resolveMapping layers the template default, auto-detection, and the
// caller's custom mapping, then validates that the result is usable:
// mapped headers must exist in the file, email must resolve, and at least
// one name field must resolve.
func resolveMapping(headers []string, opts Options) (fieldmap.Mapping, error) {
	var tmplMapping fieldmap.Mapping
	if opts.TemplateID != "" {
		t, err := TemplateByID(opts.TemplateID)
		if err != nil {
			return nil, err
		}
		tmplMapping = t.DefaultMapping
	}

	merged := fieldmap.Merge(tmplMapping, fieldmap.Detect(headers), opts.CustomMapping)

	index := headerIndex(headers)
	for field, header := range merged {
		if _, ok := index[header]; !ok {
			delete(merged, field)
		}
	}

	if merged[fieldmap.FieldEmail] == "" {
		return nil, fmt.Errorf("no email column could be identified")
	}
	if !merged.HasNameField() {
		return nil, fmt.Errorf("no name column could be identified")
	}
	return merged, nil
}

func headerIndex(headers []string) map[string]int {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}
	return index
}

// transformRow builds one canonical user from a data row. Only a missing
// email rejects the row; every other field defaults to empty or absent.
func transformRow(row []string, index map[string]int, mapping fieldmap.Mapping, now time.Time) (*identity.User, error) {
	value := func(field fieldmap.Field) string {
		header, ok := mapping[field]
		if !ok {
			return ""
		}
		i := index[header]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	email := value(fieldmap.FieldEmail)
	if email == "" {
		return nil, identity.ErrMissingEmail
	}

	first := value(fieldmap.FieldFirstName)
	last := value(fieldmap.FieldLastName)
	display := value(fieldmap.FieldDisplayName)

	// A single combined name column splits into first/last on whitespace.
	if first == "" && last == "" && display != "" {
		first, last = splitCombinedName(display)
	} else if last == "" && strings.ContainsAny(first, " \t") {
		first, last = splitCombinedName(first)
	}

	status := identity.StatusActive
	if header, ok := mapping[fieldmap.FieldStatus]; ok && header != "" {
		status = identity.NormalizeStatus(value(fieldmap.FieldStatus))
	}

	groups := splitMultiValue(value(fieldmap.FieldGroups))
	permissions := splitMultiValue(value(fieldmap.FieldPermissions))

	// The original row survives under its file headers, so vendor-specific
	// values (an unnormalized status string, extra columns outside the
	// mapping) stay inspectable after transformation.
	raw := make(map[string]any, len(index))
	for header, i := range index {
		if i < len(row) {
			raw[header] = strings.TrimSpace(row[i])
		}
	}

	u := &identity.User{
		ID:          email,
		Email:       email,
		FirstName:   first,
		LastName:    last,
		DisplayName: display,
		Status:      status,
		LastLogin:   value(fieldmap.FieldLastLogin),
		CreatedAt:   value(fieldmap.FieldCreatedAt),
		Department:  value(fieldmap.FieldDepartment),
		JobTitle:    value(fieldmap.FieldJobTitle),
		Manager:     value(fieldmap.FieldManager),
		Groups:      groups,
		Permissions: permissions,
		RawData:     raw,
	}
	u.RiskScore = identity.RiskScore(now, identity.RiskSignals{
		Status:    u.Status,
		LastLogin: identity.ParseTimestamp(u.LastLogin),
		Groups:    u.Groups,
	}, identity.CSVWeights)
	u.Finalize()
	return u, nil
}

func splitCombinedName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// splitMultiValue splits a multi-value cell on ';', ',', or '|' into
// trimmed non-empty tokens.
func splitMultiValue(v string) []string {
	if v == "" {
		return nil
	}
	tokens := strings.FieldsFunc(v, func(r rune) bool {
		return r == ';' || r == ',' || r == '|'
	})
	var out []string
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// qualityWarnings runs the post-pass data-quality checks: duplicate emails
// across accepted rows and rows missing the optional department. Neither
// affects Success.
func qualityWarnings(users []*identity.User) []string {
	var warnings []string

	// Walk the users in file order so repeated runs report duplicates in
	// the same order.
	counts := make(map[string]int)
	for _, u := range users {
		counts[strings.ToLower(u.Email)]++
	}
	warned := make(map[string]bool)
	for _, u := range users {
		email := strings.ToLower(u.Email)
		if counts[email] > 1 && !warned[email] {
			warned[email] = true
			warnings = append(warnings, fmt.Sprintf("duplicate email %s appears %d times", email, counts[email]))
		}
	}

	missingDept := 0
	for _, u := range users {
		if u.Department == "" {
			missingDept++
		}
	}
	if missingDept > 0 {
		warnings = append(warnings, fmt.Sprintf("%d rows missing department", missingDept))
	}
	return warnings
}
