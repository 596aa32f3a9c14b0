package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadmap/internal/config"
)

func TestDefault_IsValid(t *testing.T) {
	tax := Default()
	require.NoError(t, tax.Validate())
	assert.NotEmpty(t, tax.Version)
	assert.GreaterOrEqual(t, tax.Len(), 25)
	assert.True(t, tax.Has("EV Charging Installation"))
	assert.True(t, tax.Has("roofing contractors"))
	assert.Contains(t, tax.Aliases("Roofing Contractors"), "Roofer")
}

func TestDefault_NoDuplicateAliases(t *testing.T) {
	tax := Default()
	owner := map[string]string{}
	for _, c := range tax.Categories {
		for _, a := range c.Aliases {
			key := foldKey(a)
			prev, dup := owner[key]
			assert.False(t, dup, "alias %q declared by %q and %q", a, prev, c.Name)
			owner[key] = c.Name
		}
	}
}

func TestParse(t *testing.T) {
	tax, err := Parse([]byte(`
version: "1"
categories:
  - name: Roofing Contractors
    aliases: [Roofer]
  - name: Plumbers
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Roofing Contractors", "Plumbers"}, tax.Names())
	assert.Nil(t, tax.Aliases("Plumbers"))
	assert.Nil(t, tax.Aliases("Unknown"))
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("categories: {"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - name: Solar\n"), 0644))

	tax, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, tax.Len())

	def, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default().Len(), def.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		tax     *Taxonomy
		wantErr string
	}{
		{"nil", nil, "at least one category"},
		{"empty", &Taxonomy{}, "at least one category"},
		{"blank name", &Taxonomy{Categories: []Category{{Name: "A"}, {Name: " "}}}, "category #2 has an empty name"},
		{"duplicate", &Taxonomy{Categories: []Category{{Name: "Plumbers"}, {Name: "plumbers"}}}, `duplicate category "plumbers"`},
		{"ok", &Taxonomy{Categories: []Category{{Name: "Plumbers"}}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tax.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, config.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
