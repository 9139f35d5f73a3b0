package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("  from-file\n"), 0o600))

	secret, err := Load(Source{Name: "gemini api key", File: path, Value: "inline"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", secret)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))

	_, err := Load(Source{Name: "gemini api key", File: path, Value: "inline"})
	assert.ErrorContains(t, err, "is empty")
}

func TestLoadInlineThenEnv(t *testing.T) {
	t.Setenv("JOB_MATCHER_TEST_SECRET", " from-env ")

	secret, err := Load(Source{Value: " inline ", Env: "JOB_MATCHER_TEST_SECRET"})
	require.NoError(t, err)
	assert.Equal(t, "inline", secret)

	secret, err = Load(Source{Env: "JOB_MATCHER_TEST_SECRET"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", secret)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(Source{Name: "gateway token"})
	assert.EqualError(t, err, "gateway token is not configured")

	_, err = Load(Source{Name: "gateway token", Env: "JOB_MATCHER_UNSET_SECRET"})
	assert.EqualError(t, err, "gateway token is not configured (set JOB_MATCHER_UNSET_SECRET)")
}
