package products_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/products"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYAML(t *testing.T) {
	c, err := products.Parse([]byte(`
placeholder: none.png
images:
  Classic Tee: classic.png
  "  Zip Hoodie ": zip.png
  Empty: ""
`))
	require.NoError(t, err)

	assert.Equal(t, "none.png", c.Placeholder)
	assert.Equal(t, map[string]string{"Classic Tee": "classic.png", "Zip Hoodie": "zip.png"}, c.Images)
	assert.Equal(t, 2, c.Len())
}

func TestParseJSON(t *testing.T) {
	c, err := products.Parse([]byte(`{"images": {"Mug": "mug.png"}}`))
	require.NoError(t, err)

	assert.Equal(t, constants.ProductImagePlaceholder, c.Placeholder)
	assert.Equal(t, "mug.png", c.Images["Mug"])
}

func TestParseInvalid(t *testing.T) {
	_, err := products.Parse([]byte("images: [unclosed"))
	var parseErr *errors.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("images:\n  Cap: cap.png\n"), 0o600))

	c, err := products.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cap.png", c.Images["Cap"])

	_, err = products.Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.IsNotFound(err))
}

func TestEmpty(t *testing.T) {
	c := products.Empty()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, constants.ProductImagePlaceholder, c.Placeholder)
}
