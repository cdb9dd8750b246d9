package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/uiprobe/internal/config"
)

func TestAllocatorFlags(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		flags := allocatorFlags(config.NewDefaultConfig().Browser())
		assert.Equal(t, true, flags["headless"])
		assert.Equal(t, "1920,1080", flags["window-size"])
		assert.NotContains(t, flags, "disable-cache")
		assert.NotContains(t, flags, "ignore-certificate-errors")
	})

	t.Run("HeadlessDisabled", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{Headless: false})
		assert.Equal(t, false, flags["headless"])
		assert.NotContains(t, flags, "window-size")
	})

	t.Run("CacheDisabled", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{DisableCache: true})
		assert.Equal(t, "0", flags["disk-cache-size"])
		assert.Equal(t, "0", flags["media-cache-size"])
		assert.Equal(t, true, flags["disable-cache"])
	})

	t.Run("IgnoreTLSErrors", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{IgnoreTLSErrors: true})
		assert.Equal(t, true, flags["ignore-certificate-errors"])
		assert.Equal(t, true, flags["allow-insecure-localhost"])
	})

	t.Run("WithCustomArgs", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{
			Headless: true,
			Args:     []string{"--custom-arg1", "--lang=pt-BR", "headless=false"},
		})
		assert.Equal(t, true, flags["custom-arg1"])
		assert.Equal(t, "pt-BR", flags["lang"])
		assert.Equal(t, "false", flags["headless"], "args override derived flags")
	})

	t.Run("OptionsIncludeDefaults", func(t *testing.T) {
		cfg := config.BrowserConfig{ExecPath: "/opt/chrome/chrome"}
		opts := DefaultAllocatorOptions(cfg)
		assert.Greater(t, len(opts), len(allocatorFlags(cfg)))
	})
}
