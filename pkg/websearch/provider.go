// Package websearch provides the browser-backed search provider for the
// research pipeline.
//
// A Provider issues a web search and fetches the result pages, returning
// extracted text per page. The browser session is acquired once and
// reused across calls for the lifetime of the provider.
package websearch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxPageChars caps extracted page text before it is sent to the
// summarizer. Keeps prompt sizes bounded on long pages.
const maxPageChars = 25000

const searchEndpoint = "https://lite.duckduckgo.com/lite/?q="

// Provider issues web searches and returns extracted page texts.
//
// Implementations return at most limit results; a failed fetch of an
// individual result page is skipped, never fatal to the batch.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Close() error
}

// BrowserConfig configures the playwright-backed provider.
type BrowserConfig struct {
	// Headless controls browser visibility. Default true.
	Headless bool

	// PageTimeout bounds a single page navigation. Zero means 20s.
	PageTimeout time.Duration

	// QueriesPerSecond caps search issuance. Zero means 1.
	QueriesPerSecond float64

	// Filter drops result URLs before fetching. Nil means no filtering.
	Filter *SourceFilter

	// Logger receives fetch diagnostics. Nil means no logging.
	Logger *zap.Logger
}

// BrowserProvider runs searches through a shared headless Chromium
// session.
type BrowserProvider struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	cfg     BrowserConfig
	limiter *rate.Limiter

	// mu serializes searches; the shared browser session is not safe for
	// concurrent page juggling from multiple engine branches.
	mu sync.Mutex
}

// NewBrowser starts playwright and launches the shared browser session.
func NewBrowser(cfg BrowserConfig) (*BrowserProvider, error) {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 20 * time.Second
	}
	if cfg.QueriesPerSecond <= 0 {
		cfg.QueriesPerSecond = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &BrowserProvider{
		pw:      pw,
		browser: browser,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), 1),
	}, nil
}

// Search issues the query, parses the results page, and fetches up to
// limit result pages. Individual page failures are logged and skipped.
func (p *BrowserProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if limit <= 0 {
		limit = 5
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pageHTML, err := p.fetchHTML(ctx, searchEndpoint+url.QueryEscape(query))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	// Parse more hits than needed so filtered URLs do not starve the batch.
	candidates := parseResultsPage(pageHTML, limit*3)

	var results []Result
	for _, candidate := range candidates {
		if len(results) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if p.cfg.Filter != nil && !p.cfg.Filter.Permit(candidate.URL) {
			continue
		}

		text, err := p.fetchText(ctx, candidate.URL)
		if err != nil {
			p.cfg.Logger.Debug("skipping result page",
				zap.String("url", candidate.URL),
				zap.Error(err))
			continue
		}
		candidate.Markdown = text
		results = append(results, candidate)
	}

	return results, nil
}

// Close tears down the browser session and the playwright driver.
func (p *BrowserProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []string
	if err := p.browser.Close(); err != nil {
		errs = append(errs, fmt.Sprintf("close browser: %v", err))
	}
	if err := p.pw.Stop(); err != nil {
		errs = append(errs, fmt.Sprintf("stop playwright: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func (p *BrowserProvider) fetchHTML(ctx context.Context, target string) (string, error) {
	page, err := p.openPage(ctx, target)
	if err != nil {
		return "", err
	}
	defer func() { _ = page.Close() }()

	return page.Content()
}

func (p *BrowserProvider) fetchText(ctx context.Context, target string) (string, error) {
	page, err := p.openPage(ctx, target)
	if err != nil {
		return "", err
	}
	defer func() { _ = page.Close() }()

	text, err := page.InnerText("body")
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}

	text = strings.TrimSpace(text)
	if len(text) > maxPageChars {
		text = text[:maxPageChars]
	}
	return text, nil
}

func (p *BrowserProvider) openPage(ctx context.Context, target string) (playwright.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := p.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}

	_, err = page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(p.cfg.PageTimeout.Milliseconds())),
	})
	if err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("goto %s: %w", target, err)
	}

	return page, nil
}

// Compile-time check that BrowserProvider implements Provider.
var _ Provider = (*BrowserProvider)(nil)
