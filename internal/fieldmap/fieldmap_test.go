package fieldmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect_CommonHeaders(t *testing.T) {
	m := Detect([]string{"Email Address", "First Name", "Last_Name", "Status", "Department", "Groups", "Last Login"})

	assert.Equal(t, "Email Address", m[FieldEmail])
	assert.Equal(t, "First Name", m[FieldFirstName])
	assert.Equal(t, "Last_Name", m[FieldLastName])
	assert.Equal(t, "Status", m[FieldStatus])
	assert.Equal(t, "Department", m[FieldDepartment])
	assert.Equal(t, "Groups", m[FieldGroups])
	assert.Equal(t, "Last Login", m[FieldLastLogin])
}

func TestDetect_CombinedNameHeader(t *testing.T) {
	m := Detect([]string{"email", "name", "status"})

	assert.Equal(t, "email", m[FieldEmail])
	assert.Equal(t, "name", m[FieldDisplayName])
	assert.Empty(t, m[FieldFirstName])
	assert.True(t, m.HasNameField())
}

func TestDetect_EachHeaderClaimedOnce(t *testing.T) {
	// "login" is an email synonym; once claimed it must not also satisfy
	// lastLogin, which instead picks up the explicit column.
	m := Detect([]string{"login", "last_login"})

	assert.Equal(t, "login", m[FieldEmail])
	assert.Equal(t, "last_login", m[FieldLastLogin])
}

func TestDetect_EarlierFieldWinsContestedHeader(t *testing.T) {
	// "username" matches the email synonyms; email is declared first and
	// therefore owns it.
	m := Detect([]string{"username"})

	assert.Equal(t, "username", m[FieldEmail])
}

func TestDetect_FirstMatchingHeaderWins(t *testing.T) {
	m := Detect([]string{"work_email", "personal_email"})

	assert.Equal(t, "work_email", m[FieldEmail])
}

func TestDetect_NoMatchLeavesFieldAbsent(t *testing.T) {
	m := Detect([]string{"widget_count", "color"})

	assert.Empty(t, m[FieldEmail])
	assert.False(t, m.HasNameField())
}

func TestMerge_Precedence(t *testing.T) {
	tmpl := Mapping{FieldEmail: "email", FieldStatus: "status", FieldDepartment: "dept"}
	detected := Mapping{FieldEmail: "user_email", FieldGroups: "roles"}
	custom := Mapping{FieldEmail: "contact"}

	m := Merge(tmpl, detected, custom)

	assert.Equal(t, "contact", m[FieldEmail], "custom overrides everything")
	assert.Equal(t, "roles", m[FieldGroups], "detected overrides template")
	assert.Equal(t, "status", m[FieldStatus], "template survives when unchallenged")
	assert.Equal(t, "dept", m[FieldDepartment])
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "emailaddress", normalize("E-Mail Address"))
	assert.Equal(t, "firstname", normalize("First_Name"))
	assert.Equal(t, "", normalize("---"))
}
