/*
Package eventbrite scrapes the event cards of an Eventbrite organizer page
using a headless Chrome browser.
*/
package eventbrite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"github.com/shanehull/classmonitor/internal/types"
)

const (
	DefaultOrganizerURL = "https://www.eventbrite.com.au/o/the-royal-womens-hospital-14895986073"
	DefaultMaxLoadMore  = 5
	DefaultPageTimeout  = 60 * time.Second
	DefaultClickPause   = 3 * time.Second
	UserAgent           = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	showMoreText = "Show more"
	gridWait     = 10 * time.Second
)

type Config struct {
	URL string
	// MaxLoadMore bounds how many times "Show more" is clicked.
	MaxLoadMore int
	PageTimeout time.Duration
	ClickPause  time.Duration
	// RemoteURL connects to an already running Chrome instead of launching one.
	RemoteURL string
	Headful   bool
	// DebugScreenshot is where a screenshot is saved when no cards render.
	// Empty disables it.
	DebugScreenshot string
	Logger          *slog.Logger
}

func (c *Config) defaults() {
	if c.URL == "" {
		c.URL = DefaultOrganizerURL
	}
	if c.MaxLoadMore < 0 {
		c.MaxLoadMore = 0
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = DefaultPageTimeout
	}
	if c.ClickPause < 0 {
		c.ClickPause = 0
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type Scraper struct {
	cfg       Config
	fetchHTML func(ctx context.Context) (string, error)
}

func New(cfg Config) *Scraper {
	cfg.defaults()
	s := &Scraper{cfg: cfg}
	s.fetchHTML = s.renderPage
	return s
}

// Scrape returns the event cards currently listed on the organizer page, in
// page order.
func (s *Scraper) Scrape(ctx context.Context) ([]types.EventRecord, error) {
	log := s.cfg.Logger
	log.Info("eventbrite: fetching organizer page", "url", s.cfg.URL)

	page, err := s.fetchHTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.cfg.URL, err)
	}

	records, err := ParseEvents(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.cfg.URL, err)
	}

	if len(records) == 0 {
		log.Warn("eventbrite: no event cards found", "url", s.cfg.URL)
	} else {
		log.Info("eventbrite: parsed event cards", "count", len(records))
	}
	return records, nil
}

func (s *Scraper) renderPage(ctx context.Context) (string, error) {
	log := s.cfg.Logger

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PageTimeout)
	defer cancel()

	b, cleanup, err := s.connect()
	if err != nil {
		return "", err
	}
	defer func() {
		log.Info("eventbrite: closing browser")
		cleanup()
	}()

	page, err := stealth.Page(b)
	if err != nil {
		return "", fmt.Errorf("failed to open tab: %w", err)
	}
	page = page.Context(ctx)

	if err := page.Navigate(s.cfg.URL); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		log.Warn("eventbrite: wait load failed", "error", err)
	}

	rp := &rodPage{page: page}
	clicks := s.loadAll(ctx, rp)
	log.Info("eventbrite: finished loading events", "show_more_clicks", clicks)

	if err := rp.WaitGrid(ctx, gridWait); err != nil {
		log.Warn("eventbrite: events grid did not appear", "error", err)
	}
	s.screenshotIfEmpty(rp)

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

// browserPage is the part of a rendered page that pagination and diagnostics
// drive.
type browserPage interface {
	ScrollToBottom() error
	// ClickShowMore clicks the "Show more" button and reports whether one
	// was present.
	ClickShowMore() (bool, error)
	CountCards() (int, error)
	Screenshot() ([]byte, error)
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) ScrollToBottom() error {
	_, err := p.page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (p *rodPage) ClickShowMore() (bool, error) {
	found, button, err := p.page.HasR("button", showMoreText)
	if err != nil || !found {
		return false, err
	}
	if _, err := button.Eval(`() => this.click()`); err != nil {
		return true, err
	}
	return true, nil
}

func (p *rodPage) WaitGrid(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := p.page.Context(ctx).Element(gridSelector)
	return err
}

func (p *rodPage) CountCards() (int, error) {
	cards, err := p.page.Elements(gridSelector + " > " + cardSelector)
	if err != nil {
		return 0, err
	}
	return len(cards), nil
}

func (p *rodPage) Screenshot() ([]byte, error) {
	return p.page.Screenshot(true, nil)
}

// loadAll clicks "Show more" until the button disappears or the click budget
// is spent. Failures end pagination early but never fail the scrape.
func (s *Scraper) loadAll(ctx context.Context, page browserPage) int {
	log := s.cfg.Logger
	clicks := 0

	for clicks < s.cfg.MaxLoadMore {
		if err := page.ScrollToBottom(); err != nil {
			log.Warn("eventbrite: scroll failed", "error", err)
			break
		}

		found, err := page.ClickShowMore()
		if err != nil {
			log.Warn("eventbrite: show more click failed", "error", err)
			break
		}
		if !found {
			log.Info("eventbrite: no more show more buttons")
			break
		}
		clicks++

		select {
		case <-ctx.Done():
			return clicks
		case <-time.After(s.cfg.ClickPause):
		}
	}
	return clicks
}

// screenshotIfEmpty saves a screenshot when the page rendered no event cards.
func (s *Scraper) screenshotIfEmpty(page browserPage) {
	if s.cfg.DebugScreenshot == "" {
		return
	}
	log := s.cfg.Logger

	n, err := page.CountCards()
	if err != nil {
		log.Warn("eventbrite: failed to count event cards", "error", err)
	}
	if n > 0 {
		return
	}

	log.Error("eventbrite: no event cards rendered, taking screenshot", "path", s.cfg.DebugScreenshot)
	img, err := page.Screenshot()
	if err != nil {
		log.Warn("eventbrite: screenshot failed", "error", err)
		return
	}
	if err := os.WriteFile(s.cfg.DebugScreenshot, img, 0o644); err != nil {
		log.Warn("eventbrite: failed to save screenshot", "error", err)
	}
}

func (s *Scraper) connect() (*rod.Browser, func(), error) {
	log := s.cfg.Logger

	var (
		wsURL string
		lnch  *launcher.Launcher
	)

	if s.cfg.RemoteURL != "" {
		wsURL = s.cfg.RemoteURL
		log.Info("eventbrite: connecting to remote chrome", "url", wsURL)
	} else {
		lnch = launcher.New().
			Headless(!s.cfg.Headful).
			NoSandbox(true).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("window-size", "1920,1080").
			Set("user-agent", UserAgent).
			Set("disable-blink-features", "AutomationControlled")

		u, err := lnch.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to launch chrome: %w", err)
		}
		wsURL = u
		log.Info("eventbrite: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}

	cleanup := func() {
		if err := b.Close(); err != nil {
			log.Warn("eventbrite: failed to close browser", "error", err)
		}
		if lnch != nil {
			lnch.Cleanup()
		}
	}
	return b, cleanup, nil
}
