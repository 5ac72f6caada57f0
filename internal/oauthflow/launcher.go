package oauthflow

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
)

// BrowserLauncher opens the authorization URL in the system browser. It
// implements recovery.Launcher so the tracker can re-invoke the hand-off
// during a resume.
type BrowserLauncher struct {
	mu  sync.Mutex
	url string

	// open is swapped in tests.
	open func(ctx context.Context, url string) error
}

// NewBrowserLauncher builds a launcher with the platform browser opener.
func NewBrowserLauncher() *BrowserLauncher {
	return &BrowserLauncher{open: openInBrowser}
}

// SetURL records the URL subsequent Relaunch calls open.
func (l *BrowserLauncher) SetURL(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.url = url
}

// Relaunch opens the recorded URL. A relaunch without a recorded URL happens
// when the process restarted mid-flow; the tracker treats it as a no-op and
// keeps polling.
func (l *BrowserLauncher) Relaunch(ctx context.Context) error {
	l.mu.Lock()
	url := l.url
	l.mu.Unlock()

	if url == "" {
		return nil
	}
	return l.open(ctx, url)
}

func openInBrowser(ctx context.Context, url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "open", url).Start()
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "linux":
		return exec.CommandContext(ctx, "xdg-open", url).Start()
	default:
		return fmt.Errorf("no browser opener for %s", runtime.GOOS)
	}
}
