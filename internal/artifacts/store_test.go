package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStore_SavePNG(t *testing.T) {
	store, err := NewStore(t.TempDir(), "run-1", zaptest.NewLogger(t))
	require.NoError(t, err)

	p1, err := store.SavePNG("badges Mobile (375x667)", []byte("png-1"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "badges_mobile_375x667.png"), p1)

	p2, err := store.SavePNG("badges Mobile (375x667)", []byte("png-2"))
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2, "reused names must not overwrite")

	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "png-1", string(data))
	assert.Equal(t, []string{p1, p2}, store.Paths())
}

func TestStore_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	store, err := NewStore("~/.uiprobe/artifacts", "abc", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".uiprobe", "artifacts", "abc"), store.Dir())
	assert.DirExists(t, store.Dir())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "artifact", sanitize("///"))
	assert.Equal(t, "valid_login-failure", sanitize("valid_login-failure"))
	assert.Equal(t, "a_b", sanitize("../a b"))
}
