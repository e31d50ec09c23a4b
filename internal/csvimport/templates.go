package csvimport

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"sparrowvision/internal/fieldmap"
)

// Template is a named preset describing the expected columns and default
// field mapping for a class of non-API data source. Auto-detection and
// caller-supplied mappings always override the template default.
type Template struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	RequiredColumns []string         `json:"required_columns"`
	OptionalColumns []string         `json:"optional_columns"`
	SampleData      [][]string       `json:"sample_data"`
	DefaultMapping  fieldmap.Mapping `json:"default_mapping"`
}

var templates = map[string]Template{
	"standard": {
		ID:              "standard",
		Name:            "Standard user export",
		Description:     "Generic user list exported from an admin console",
		RequiredColumns: []string{"email", "first_name", "last_name"},
		OptionalColumns: []string{"status", "department", "job_title", "manager", "last_login", "groups"},
		SampleData: [][]string{
			{"jane@acme.com", "Jane", "Doe", "active", "Engineering", "Engineer", "lee@acme.com", "2025-05-20", "Engineering"},
			{"sam@acme.com", "Sam", "Lee", "inactive", "Finance", "Analyst", "", "2025-01-02", "Finance;Payroll Admins"},
			{"kim@acme.com", "Kim", "Park", "active", "IT", "SRE", "lee@acme.com", "", "Ops,Platform Admins"},
		},
		DefaultMapping: fieldmap.Mapping{
			fieldmap.FieldEmail:     "email",
			fieldmap.FieldFirstName: "first_name",
			fieldmap.FieldLastName:  "last_name",
		},
	},
	"firewall-log": {
		ID:              "firewall-log",
		Name:            "Firewall account export",
		Description:     "Account list pulled from a firewall or VPN appliance",
		RequiredColumns: []string{"email", "full_name", "last_seen"},
		OptionalColumns: []string{"source_ip", "access_level", "group_membership"},
		SampleData: [][]string{
			{"ann@acme.com", "Ann Chu", "2025-05-28", "10.1.4.2", "full_access", "vpn-users"},
			{"raj@acme.com", "Raj Patel", "2024-11-15", "10.1.4.9", "readonly", "vpn-users"},
		},
		DefaultMapping: fieldmap.Mapping{
			fieldmap.FieldLastLogin:   "last_seen",
			fieldmap.FieldPermissions: "access_level",
		},
	},
	"security-tool": {
		ID:              "security-tool",
		Name:            "Security tool export",
		Description:     "Operator list exported from a security product",
		RequiredColumns: []string{"email", "name", "status"},
		OptionalColumns: []string{"role", "last_login", "mfa_enabled"},
		SampleData: [][]string{
			{"ida@acme.com", "Ida Wong", "active", "administrator", "2025-05-30", "true"},
			{"leo@acme.com", "Leo Mars", "disabled", "analyst", "2025-02-14", "false"},
		},
		DefaultMapping: fieldmap.Mapping{
			fieldmap.FieldGroups: "role",
		},
	},
	"financial": {
		ID:              "financial",
		Name:            "Financial system export",
		Description:     "User list from an ERP or accounting platform",
		RequiredColumns: []string{"email", "first_name", "last_name", "department"},
		OptionalColumns: []string{"cost_center", "approver", "status"},
		SampleData: [][]string{
			{"mia@acme.com", "Mia", "Chen", "Accounting", "CC-104", "cfo@acme.com", "active"},
			{"tom@acme.com", "Tom", "Reed", "Treasury", "CC-221", "cfo@acme.com", "suspended"},
		},
		DefaultMapping: fieldmap.Mapping{
			fieldmap.FieldManager: "approver",
		},
	},
	"domain-registrar": {
		ID:              "domain-registrar",
		Name:            "Domain registrar export",
		Description:     "Account contacts exported from a domain registrar",
		RequiredColumns: []string{"email", "registrant_name", "status"},
		OptionalColumns: []string{"domains", "role", "expiry_date"},
		SampleData: [][]string{
			{"ops@acme.com", "Acme Ops", "active", "acme.com;acme.io", "owner", "2026-03-01"},
			{"old@acme.com", "Former Admin", "inactive", "acme.net", "admin", "2025-09-12"},
		},
		DefaultMapping: fieldmap.Mapping{
			fieldmap.FieldGroups: "role",
		},
	},
}

// TemplateByID returns the named template.
func TemplateByID(id string) (Template, error) {
	t, ok := templates[id]
	if !ok {
		return Template{}, fmt.Errorf("unknown CSV template %q", id)
	}
	return t, nil
}

// Templates returns all templates sorted by ID.
func Templates() []Template {
	out := make([]Template, 0, len(templates))
	for _, t := range templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GenerateTemplate renders the named template as downloadable CSV content:
// the column header row followed by the sample rows. Round-tripping the
// output through Process yields exactly the sample rows.
func GenerateTemplate(id string) ([]byte, error) {
	t, ok := templates[id]
	if !ok {
		return nil, fmt.Errorf("unknown CSV template %q", id)
	}

	var buf bytes.Buffer
	columns := append(append([]string{}, t.RequiredColumns...), t.OptionalColumns...)
	buf.WriteString(strings.Join(columns, ","))
	buf.WriteByte('\n')

	for _, row := range t.SampleData {
		for i, v := range row {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(quoteField(v))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// quoteField wraps a value in double quotes when it contains a delimiter,
// quote, or newline, doubling embedded quotes.
func quoteField(v string) string {
	if !strings.ContainsAny(v, ",;|\t\"\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
