package wipo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

// PageVisit holds the rendered snapshots from one detail-page load: the
// page as first settled, and the page again after the national-phase tab
// was activated. NationalHTML is empty when no reveal control was found.
type PageVisit struct {
	DetailHTML     string
	NationalHTML   string
	RevealSelector string
}

// PageLoader is the browser boundary of the extractor. Tests substitute a
// stub; production uses Session.
type PageLoader interface {
	LoadDetail(ctx context.Context, url string) (PageVisit, error)
	Close() error
}

type SessionConfig struct {
	ChromePath  string
	LoadTimeout time.Duration
}

// Session owns one headless browser. Each LoadDetail opens a fresh tab and
// closes it on every exit path, so a failed attempt never leaks a page.
type Session struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	loadTimeout   time.Duration
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}
	chromePath := cfg.ChromePath
	if chromePath == "" {
		chromePath = detectChromePath()
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	}
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so a broken Chrome install fails session
	// initialization instead of the first fetch.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &Session{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		loadTimeout:   cfg.LoadTimeout,
	}, nil
}

func (s *Session) Close() error {
	s.browserCancel()
	s.allocCancel()
	return nil
}

func (s *Session) LoadDetail(ctx context.Context, url string) (PageVisit, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	runCtx, cancel := context.WithTimeout(tabCtx, s.loadTimeout)
	defer cancel()

	var visit PageVisit
	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(pageSettleDelay),
		chromedp.OuterHTML("html", &visit.DetailHTML),
	); err != nil {
		return PageVisit{}, fmt.Errorf("navigate %s: %w", url, err)
	}

	visit.RevealSelector = revealNationalPhase(runCtx)
	if visit.RevealSelector == "" {
		log.Printf("wipo national_phase_not_found url=%s", url)
		return visit, nil
	}
	if err := chromedp.Run(runCtx,
		chromedp.Sleep(tabSettleDelay),
		chromedp.OuterHTML("html", &visit.NationalHTML),
	); err != nil {
		// Degraded, not fatal: the basic snapshot is still usable.
		log.Printf("wipo national_snapshot_failed url=%s err=%v", url, err)
		visit.NationalHTML = ""
	}
	return visit, nil
}

type revealStrategy struct {
	name string
	run  func(ctx context.Context) error
}

var revealStrategies = []revealStrategy{
	{"text:National Phase", clickByText("National Phase")},
	{"#national-phase-tab", clickVisible("#national-phase-tab")},
	{`a[href*="national"]`, clickVisible(`a[href*="national"]`)},
}

// revealNationalPhase tries the candidate controls in priority order and
// returns the name of the first one that activated, or "" when none did.
func revealNationalPhase(ctx context.Context) string {
	for _, st := range revealStrategies {
		attemptCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := st.run(attemptCtx)
		cancel()
		if err == nil {
			return st.name
		}
	}
	return ""
}

func clickVisible(selector string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
	}
}

// clickByText clicks the first a/button/li element whose text contains the
// given label. Patentscope's tab has no stable id or class, so text
// matching is the most reliable locator.
func clickByText(label string) func(ctx context.Context) error {
	script := `(() => {
		for (const el of document.querySelectorAll('a, button, li')) {
			if (el.textContent && el.textContent.includes(` + "`" + label + "`" + `)) {
				el.click();
				return true;
			}
		}
		return false;
	})()`
	return func(ctx context.Context) error {
		var clicked bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
			return err
		}
		if !clicked {
			return errors.New("no element matched text " + label)
		}
		return nil
	}
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var _ PageLoader = (*Session)(nil)
