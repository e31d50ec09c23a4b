// Package fieldmap resolves column and field names of unknown vendor
// provenance onto the canonical user schema. It is used directly by the CSV
// pipeline and mirrors the hand-written per-vendor mappings inside the
// platform connectors.
package fieldmap

import "strings"

// Field names a canonical target field.
type Field string

const (
	FieldEmail       Field = "email"
	FieldFirstName   Field = "firstName"
	FieldLastName    Field = "lastName"
	FieldDisplayName Field = "displayName"
	FieldStatus      Field = "status"
	FieldDepartment  Field = "department"
	FieldJobTitle    Field = "jobTitle"
	FieldManager     Field = "manager"
	FieldLastLogin   Field = "lastLogin"
	FieldGroups      Field = "groups"
	FieldPermissions Field = "permissions"
	FieldCreatedAt   Field = "createdAt"
)

// synonymTable declares, in precedence order, the known header synonyms per
// canonical field. Order matters twice: fields earlier in the table claim a
// contested header, and within a field the source headers are scanned in
// file order with first match winning.
var synonymTable = []struct {
	field    Field
	synonyms []string
}{
	{FieldEmail, []string{"email", "e_mail", "emailaddress", "email_address", "user_email", "mail", "login", "username", "userprincipalname"}},
	{FieldFirstName, []string{"firstname", "first_name", "givenname", "given_name", "fname", "forename"}},
	{FieldLastName, []string{"lastname", "last_name", "surname", "familyname", "family_name", "lname"}},
	{FieldDisplayName, []string{"displayname", "display_name", "fullname", "full_name", "name"}},
	{FieldStatus, []string{"status", "state", "accountstatus", "account_status", "enabled", "active"}},
	{FieldDepartment, []string{"department", "dept", "division", "team", "orgunit", "org_unit", "organization"}},
	{FieldJobTitle, []string{"jobtitle", "job_title", "title", "position", "role_title"}},
	{FieldManager, []string{"manager", "supervisor", "reportsto", "reports_to", "manager_email"}},
	{FieldLastLogin, []string{"lastlogin", "last_login", "lastsignin", "last_sign_in", "lastseen", "last_seen", "lastactivity", "last_activity"}},
	{FieldGroups, []string{"groups", "group", "roles", "role", "memberof", "member_of", "teams"}},
	{FieldPermissions, []string{"permissions", "permission", "entitlements", "privileges", "access", "scopes"}},
	{FieldCreatedAt, []string{"createdat", "created_at", "created", "datecreated", "creationdate", "hiredate", "hire_date"}},
}

// Mapping is the resolved canonical-field → source-header assignment.
type Mapping map[Field]string

// normalize lowercases a header and strips everything outside [a-z0-9] so
// that "E-Mail Address" and "email_address" compare equal.
func normalize(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Detect auto-maps source headers onto canonical fields by normalized
// substring matching against the synonym table. Each header is claimed at
// most once; when two canonical fields would claim the same header, the
// field declared earlier in the table wins.
func Detect(headers []string) Mapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalize(h)
	}

	mapping := make(Mapping)
	claimed := make(map[int]bool)

	for _, entry := range synonymTable {
		for i, norm := range normalized {
			if claimed[i] || norm == "" {
				continue
			}
			if matchesAny(norm, entry.synonyms) {
				mapping[entry.field] = headers[i]
				claimed[i] = true
				break
			}
		}
	}
	return mapping
}

func matchesAny(norm string, synonyms []string) bool {
	for _, syn := range synonyms {
		if strings.Contains(norm, normalize(syn)) {
			return true
		}
	}
	return false
}

// Merge layers mappings by precedence: custom overrides detected, detected
// overrides the template default, for exactly the fields each one specifies.
func Merge(templateDefault, detected, custom Mapping) Mapping {
	merged := make(Mapping)
	for _, m := range []Mapping{templateDefault, detected, custom} {
		for field, header := range m {
			if header != "" {
				merged[field] = header
			}
		}
	}
	return merged
}

// HasNameField reports whether the mapping resolves at least one of the two
// name fields. Missing both is fatal for the CSV path.
func (m Mapping) HasNameField() bool {
	_, first := m[FieldFirstName]
	_, last := m[FieldLastName]
	_, display := m[FieldDisplayName]
	return first || last || display
}
