package browser

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/uiprobe/internal/config"
)

// DefaultAllocatorOptions turns the browser section into exec allocator options.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	for name, value := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// allocatorFlags lists the command-line flags layered over chromedp's defaults.
func allocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":        cfg.Headless,
		"hide-scrollbars": cfg.Headless,
		"mute-audio":      cfg.Headless,
		"disable-gpu":     true,
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", cfg.Viewport.Width, cfg.Viewport.Height)
	}
	if cfg.DisableCache {
		flags["disk-cache-size"] = "0"
		flags["media-cache-size"] = "0"
		flags["disable-cache"] = true
	}
	if cfg.IgnoreTLSErrors {
		flags["ignore-certificate-errors"] = true
		flags["allow-insecure-localhost"] = true
	}
	// Containers rarely allow the sandbox or a large /dev/shm.
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
	}

	// User-supplied args win over everything above.
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}
	return flags
}
