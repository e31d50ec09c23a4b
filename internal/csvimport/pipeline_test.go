package csvimport

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparrowvision/internal/fieldmap"
	"sparrowvision/internal/identity"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestProcessCombinedNameColumn(t *testing.T) {
	content := "email,name,status\njohn@acme.com,John Doe,active\n"

	res := Process([]byte(content), Options{Now: testNow})

	require.True(t, res.Success)
	require.Equal(t, 1, res.ProcessedRows)
	require.Len(t, res.Users, 1)

	u := res.Users[0]
	assert.Equal(t, "john@acme.com", u.Email)
	assert.Equal(t, "John", u.FirstName)
	assert.Equal(t, "Doe", u.LastName)
	assert.Equal(t, "John Doe", u.DisplayName)
	assert.Equal(t, identity.StatusActive, u.Status)
	// Active account with no login column scores only the unknown-login
	// uncertainty bump.
	assert.Equal(t, identity.CSVWeights.UnknownLogin, u.RiskScore)
}

func TestProcessHeaderOnly(t *testing.T) {
	res := Process([]byte("email,first_name,last_name\n"), Options{Now: testNow})

	assert.False(t, res.Success)
	assert.Zero(t, res.ProcessedRows)
	assert.Empty(t, res.Users)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "at least one data row")
}

func TestProcessEmptyFile(t *testing.T) {
	res := Process([]byte("  \n \n"), Options{Now: testNow})

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "empty")
}

func TestProcessSkipsRowsWithoutEmail(t *testing.T) {
	content := strings.Join([]string{
		"email,first_name",
		"ann@acme.com,Ann",
		",Bob",
		"cal@acme.com,Cal",
	}, "\n")

	res := Process([]byte(content), Options{Now: testNow})

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.ProcessedRows)
	assert.Equal(t, 1, res.SkippedRows)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "row 2")
	assert.Contains(t, res.Errors[0], "no email")
}

func TestProcessDelimiters(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"semicolon", "email;name;department\nann@acme.com;Ann Chu;IT\n"},
		{"tab", "email\tname\tdepartment\nann@acme.com\tAnn Chu\tIT\n"},
		{"pipe", "email|name|department\nann@acme.com|Ann Chu|IT\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Process([]byte(tt.content), Options{Now: testNow})

			require.True(t, res.Success, "errors: %v", res.Errors)
			require.Len(t, res.Users, 1)
			assert.Equal(t, "ann@acme.com", res.Users[0].Email)
			assert.Equal(t, "Ann", res.Users[0].FirstName)
			assert.Equal(t, "Chu", res.Users[0].LastName)
			assert.Equal(t, "IT", res.Users[0].Department)
		})
	}
}

func TestProcessQuotedFields(t *testing.T) {
	content := "email,name,department\n\"q@acme.com\",\"Jane Doe\",\"R\"\"D, Labs\"\n"

	res := Process([]byte(content), Options{Now: testNow})

	require.True(t, res.Success, "errors: %v", res.Errors)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "q@acme.com", res.Users[0].Email)
	assert.Equal(t, "Jane Doe", res.Users[0].DisplayName)
	assert.Equal(t, `R"D, Labs`, res.Users[0].Department)
}

func TestProcessStatusDefaults(t *testing.T) {
	t.Run("no status column means active", func(t *testing.T) {
		res := Process([]byte("email,name\na@acme.com,A B\n"), Options{Now: testNow})
		require.Len(t, res.Users, 1)
		assert.Equal(t, identity.StatusActive, res.Users[0].Status)
	})

	t.Run("empty status value means inactive", func(t *testing.T) {
		res := Process([]byte("email,name,status\na@acme.com,A B,\n"), Options{Now: testNow})
		require.Len(t, res.Users, 1)
		assert.Equal(t, identity.StatusInactive, res.Users[0].Status)
	})

	t.Run("unrecognized status value means inactive", func(t *testing.T) {
		res := Process([]byte("email,name,status\na@acme.com,A B,banana\n"), Options{Now: testNow})
		require.Len(t, res.Users, 1)
		assert.Equal(t, identity.StatusInactive, res.Users[0].Status)
	})
}

func TestProcessRetainsRawRow(t *testing.T) {
	content := "email,name,status,badge\njohn@acme.com,John Doe,LOCKED_OUT,B-7\n"

	res := Process([]byte(content), Options{Now: testNow})

	require.True(t, res.Success, "errors: %v", res.Errors)
	require.Len(t, res.Users, 1)

	u := res.Users[0]
	// Normalization collapses the vendor status, but the original value
	// stays available under the file's own header, as do columns outside
	// the mapping.
	assert.Equal(t, identity.StatusSuspended, u.Status)
	require.NotNil(t, u.RawData)
	assert.Equal(t, "LOCKED_OUT", u.RawData["status"])
	assert.Equal(t, "John Doe", u.RawData["name"])
	assert.Equal(t, "B-7", u.RawData["badge"])
}

func TestProcessMultiValueColumns(t *testing.T) {
	content := "email,name,groups,permissions\na@acme.com,A B,\"Ops; Platform Admins\",read|write\n"

	res := Process([]byte(content), Options{Now: testNow})

	require.Len(t, res.Users, 1)
	assert.Equal(t, []string{"Ops", "Platform Admins"}, res.Users[0].Groups)
	assert.Equal(t, []string{"read", "write"}, res.Users[0].Permissions)
}

func TestProcessRiskScoring(t *testing.T) {
	content := "email,name,status,groups,last_login\n" +
		"risky@acme.com,Risk Y,suspended,Platform Admins,2024-01-01\n"

	res := Process([]byte(content), Options{Now: testNow})

	require.Len(t, res.Users, 1)
	// Suspended weight, stale-login tier, and one admin group.
	want := identity.CSVWeights.Suspended + 25 + 10
	assert.Equal(t, want, res.Users[0].RiskScore)
}

func TestProcessUnmappableHeaders(t *testing.T) {
	res := Process([]byte("foo,bar\n1,2\n"), Options{Now: testNow})

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "email")
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "foo, bar")
}

func TestProcessCustomMapping(t *testing.T) {
	content := "contact,person\nx@acme.com,Xa Yz\n"

	res := Process([]byte(content), Options{
		CustomMapping: fieldmap.Mapping{
			fieldmap.FieldEmail:       "contact",
			fieldmap.FieldDisplayName: "person",
		},
		Now: testNow,
	})

	require.True(t, res.Success, "errors: %v", res.Errors)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "x@acme.com", res.Users[0].Email)
	assert.Equal(t, "Xa Yz", res.Users[0].DisplayName)
}

func TestProcessUnknownTemplate(t *testing.T) {
	res := Process([]byte("email,name\na@acme.com,A B\n"), Options{TemplateID: "nope", Now: testNow})

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "unknown CSV template")
}

func TestProcessDuplicateEmailWarning(t *testing.T) {
	content := strings.Join([]string{
		"email,name",
		"dup@acme.com,First Copy",
		"dup@acme.com,Second Copy",
	}, "\n")

	res := Process([]byte(content), Options{Now: testNow})

	assert.Equal(t, 2, res.ProcessedRows)
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "duplicate email dup@acme.com") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", res.Warnings)
}

func TestProcessDuplicateWarningsOrdered(t *testing.T) {
	content := strings.Join([]string{
		"email,name,department",
		"zeta@acme.com,Z One,IT",
		"alpha@acme.com,A One,IT",
		"zeta@acme.com,Z Two,IT",
		"alpha@acme.com,A Two,IT",
	}, "\n")

	// Duplicates are reported in first-appearance order, so two runs on
	// the same file produce identical warnings.
	for run := 0; run < 3; run++ {
		res := Process([]byte(content), Options{Now: testNow})
		require.Len(t, res.Warnings, 2, "warnings: %v", res.Warnings)
		assert.Contains(t, res.Warnings[0], "zeta@acme.com")
		assert.Contains(t, res.Warnings[1], "alpha@acme.com")
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	for _, tmpl := range Templates() {
		t.Run(tmpl.ID, func(t *testing.T) {
			content, err := GenerateTemplate(tmpl.ID)
			require.NoError(t, err)

			res := Process(content, Options{TemplateID: tmpl.ID, Now: testNow})

			require.True(t, res.Success, "errors: %v", res.Errors)
			assert.Empty(t, res.Errors)
			assert.Equal(t, len(tmpl.SampleData), res.ProcessedRows)
		})
	}
}

func TestGenerateTemplateUnknown(t *testing.T) {
	_, err := GenerateTemplate("missing")
	require.Error(t, err)
}

func TestTemplatesSorted(t *testing.T) {
	all := Templates()
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].ID < all[i].ID, "templates out of order at %d", i)
	}
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		header string
		want   rune
	}{
		{"a,b,c", ','},
		{"a;b;c", ';'},
		{"a\tb\tc", '\t'},
		{"a|b|c", '|'},
		{"\"x,y\";b;c", ';'},
		{"single", ','},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.header), func(t *testing.T) {
			assert.Equal(t, tt.want, detectDelimiter(tt.header))
		})
	}
}
