package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	appLog "owacal/internal/log"
)

// Default browser parameters. The viewport is wide enough for the month view
// to render event titles instead of "+N more" overflow chips.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 900
	DefaultTimeoutSec = 120
	DefaultSettle     = 3 * time.Second
)

// ErrSignInRequired is returned when the calendar page redirects to an
// identity provider and the browser cannot be signed in interactively.
var ErrSignInRequired = errors.New("scrape: sign-in required; run once with --headful to sign in")

// signInHosts are identity provider hosts the calendar redirects to when the
// profile has no valid session.
var signInHosts = []string{
	"login.microsoftonline.com",
	"login.live.com",
	"login.microsoft.com",
}

// BrowserOptions defines parameters for a Chromium-based scrape.
type BrowserOptions struct {
	// URL of the calendar view, e.g.
	// "https://outlook.office.com/calendar/view/month".
	URL string

	// ProfileDir is a persistent Chromium user data directory. Reusing it
	// keeps the signed-in session between runs.
	ProfileDir string

	// Headful shows the window. Only a headful browser waits for the user
	// to finish signing in.
	Headful bool

	// ExecPath optionally overrides the Chromium binary.
	ExecPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire scrape, sign-in wait included. If zero,
	// DefaultTimeoutSec is used.
	Timeout time.Duration

	// Settle is the extra delay after the body is ready, for client-side
	// rendering to finish. If zero, DefaultSettle is used.
	Settle time.Duration
}

// Browser is a Source that renders the calendar in Chromium via chromedp and
// harvests fragments from the resulting DOM.
type Browser struct {
	opts BrowserOptions
}

// NewBrowser returns a Browser with defaults applied to opts.
func NewBrowser(opts BrowserOptions) *Browser {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	return &Browser{opts: opts}
}

// Fragments launches Chromium with the persistent profile, navigates to the
// calendar, waits for it to render and harvests candidate fragments from the
// page HTML.
func (b *Browser) Fragments(parentCtx context.Context) ([]string, error) {
	if b.opts.URL == "" {
		return nil, errors.New("scrape: URL is required")
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !b.opts.Headful),
		chromedp.WindowSize(b.opts.Width, b.opts.Height),
	)
	if b.opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(b.opts.ProfileDir))
	}
	if b.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// Apply timeout to the entire scrape sequence.
	ctx, timeoutCancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer timeoutCancel()

	appLog.Info("scrape start", "url", b.opts.URL, "profile", b.opts.ProfileDir, "headful", b.opts.Headful)

	var location string
	if err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(b.opts.Width), int64(b.opts.Height)),
		chromedp.Navigate(b.opts.URL),
		chromedp.Sleep(2*time.Second),
		chromedp.Location(&location),
	); err != nil {
		return nil, fmt.Errorf("scrape: navigate: %w", err)
	}

	if isSignInURL(location) {
		if !b.opts.Headful {
			return nil, ErrSignInRequired
		}
		appLog.Info("scrape waiting for interactive sign-in", "timeout", b.opts.Timeout.String())
		if err := waitForCalendar(ctx, b.opts.URL); err != nil {
			return nil, err
		}
	}

	var html string
	if err := chromedp.Run(ctx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Client-side rendering continues after the body is ready.
		chromedp.Sleep(b.opts.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("scrape: read page: %w", err)
	}

	frags, err := Harvest(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	appLog.Info("scrape done", "fragments", len(frags), "html_bytes", len(html))
	return frags, nil
}

// waitForCalendar polls the page location until it is back on the calendar
// host or ctx expires.
func waitForCalendar(ctx context.Context, calendarURL string) error {
	want, err := url.Parse(calendarURL)
	if err != nil {
		return fmt.Errorf("scrape: calendar URL: %w", err)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrSignInRequired, ctx.Err())
		case <-ticker.C:
		}

		var location string
		if err := chromedp.Run(ctx, chromedp.Location(&location)); err != nil {
			return fmt.Errorf("scrape: read location: %w", err)
		}
		u, err := url.Parse(location)
		if err == nil && u.Host == want.Host && strings.Contains(u.Path, "/calendar") {
			appLog.Info("scrape sign-in complete")
			return nil
		}
	}
}

func isSignInURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range signInHosts {
		if host == h {
			return true
		}
	}
	return false
}
