package csvimport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		input       string
		wantRows    int
		wantMissing []string
		wantUnknown []string
		wantEmpty   bool
	}{
		{
			name:     "valid with rows",
			input:    "name,company,email\nAda,Contoso,ada@contoso.com\nLars,Fabrikam,lars@fabrikam.no\n",
			wantRows: 2,
		},
		{
			name:     "case and spacing ignored",
			input:    " Name , COMPANY,Email,score\nAda,Contoso,ada@contoso.com,9\n",
			wantRows: 1,
		},
		{
			name:     "bom stripped",
			input:    "\ufeffname,company,email\n",
			wantRows: 0,
		},
		{
			name:     "blank rows not counted",
			input:    "name,company,email\n,,\nAda,Contoso,a@b.c\n",
			wantRows: 1,
		},
		{
			name:        "missing required",
			input:       "name,phone\nAda,1\n",
			wantMissing: []string{"company", "email"},
			wantUnknown: []string{},
		},
		{
			name:        "unknown columns",
			input:       "name,company,email,favourite_colour,favourite_colour\n",
			wantMissing: []string{},
			wantUnknown: []string{"favourite_colour"},
		},
		{
			name:        "both",
			input:       "company,nickname\n",
			wantMissing: []string{"name", "email"},
			wantUnknown: []string{"nickname"},
		},
		{name: "empty", input: "", wantEmpty: true},
		{name: "only newlines", input: "\n\n", wantEmpty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := Validate(strings.NewReader(tt.input))
			switch {
			case tt.wantEmpty:
				assert.ErrorIs(t, err, ErrEmpty)
			case tt.wantMissing != nil || tt.wantUnknown != nil:
				var herr *HeaderError
				require.ErrorAs(t, err, &herr)
				assert.Equal(t, tt.wantMissing, herr.Missing)
				assert.Equal(t, tt.wantUnknown, herr.Unknown)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantRows, summary.Rows)
			}
		})
	}
}

func TestTemplate_PassesValidation(t *testing.T) {
	t.Parallel()
	tmpl := Template()
	assert.True(t, bytes.HasPrefix(tmpl, []byte("name,company,email,phone,status,source,score,owner\n")))

	summary, err := Validate(bytes.NewReader(tmpl))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rows)
}

func TestHeaderError_Message(t *testing.T) {
	t.Parallel()
	err := &HeaderError{Missing: []string{"email"}, Unknown: []string{"x", "y"}}
	assert.Equal(t, "missing columns: email; unknown columns: x, y", err.Error())
}
