package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	r, err := New("testdata")
	require.NoError(t, err)

	out, err := r.Render("page.html", map[string]string{"Title": "<Oak>"})
	require.NoError(t, err)
	assert.Equal(t, "<h1>&lt;Oak&gt;</h1><li>&lt;Oak&gt; 1</li>", out)

	_, err = r.Render("nope", nil)
	assert.Error(t, err)
}

func TestViewerTemplates(t *testing.T) {
	r, err := New("../../web/templates")
	require.NoError(t, err)

	out, err := r.Render("species-item", map[string]any{
		"Key": "O'ak", "Label": "O'ak", "Count": 3, "Selected": true, "Other": false, "Toggle": "/toggle",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "checked")
	assert.Contains(t, out, "toggle?key=")
	assert.NotContains(t, out, "'O'ak'")
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	write := func(body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.html"), []byte(body), 0o644))
	}
	write(`{{define "a"}}one{{end}}`)

	r, err := New(dir)
	require.NoError(t, err)
	out, _ := r.Render("a", nil)
	assert.Equal(t, "one", out)

	write(`{{define "a"}}two{{end}}`)
	require.NoError(t, r.Reload())
	out, _ = r.Render("a", nil)
	assert.Equal(t, "two", out)

	write(`{{define "a"}}{{end`)
	assert.Error(t, r.Reload())
	out, _ = r.Render("a", nil)
	assert.Equal(t, "two", out)
}
