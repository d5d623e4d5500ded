package cif

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManifestParsesCategoriesAndKeywords(t *testing.T) {
	raw := `{"categories":[{"name":"entry","keywords":["id"]},{"name":"atom_site","keywords":["id","label_atom_id"]}]}`
	m, err := LoadManifest(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, m.Categories, 2)
	assert.Equal(t, "entry", m.Categories[0].Name)
	assert.Equal(t, []string{"id"}, m.Categories[0].Keywords)
}

func TestLoadManifestRejectsUnknownFields(t *testing.T) {
	raw := `{"categories":[{"name":"entry","color":"red"}]}`
	_, err := LoadManifest(strings.NewReader(raw))
	assert.Error(t, err)
}

func TestLoadManifestRejectsMissingName(t *testing.T) {
	raw := `{"categories":[{"keywords":["id"]}]}`
	_, err := LoadManifest(strings.NewReader(raw))
	assert.Error(t, err)
}

func TestRegisterManifestWiresCategoriesAndKeywords(t *testing.T) {
	r := NewReader(strings.NewReader("data_B\n_entry.id 1YTI\n"), Text, DefaultOptions())
	m := &Manifest{Categories: []ManifestCategory{{Name: "entry", Keywords: []string{"id"}}}}

	var got string
	cats := r.RegisterManifest(m, func(r *Reader, cat *Category) error {
		got = cat.Keyword("id").String()
		return nil
	}, nil)
	require.Len(t, cats, 1)

	_, err := r.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, "1YTI", got)
}
