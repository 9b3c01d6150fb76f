package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("  api-key-value\n"), 0o600))

	secret, err := Load(Source{Name: "gemini api key", File: path})
	require.NoError(t, err)
	assert.Equal(t, "api-key-value", secret)
}

func TestLoadFilePrecedesValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))

	secret, err := Load(Source{File: path, Value: "from-config"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", secret)
}

func TestLoadInlineValue(t *testing.T) {
	secret, err := Load(Source{Value: " inline \n"})
	require.NoError(t, err)
	assert.Equal(t, "inline", secret)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(Source{Name: "gemini api key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini api key is not configured")

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, []byte("   \n"), 0o600))
	_, err = Load(Source{File: empty})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")

	_, err = Load(Source{File: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}
