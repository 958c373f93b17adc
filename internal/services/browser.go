package services

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/config"
	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/pipeline"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Browser launches isolated headless sessions.
type Browser interface {
	Launch(ctx context.Context) (BrowserSession, error)
}

// BrowserSession drives one tab. Every call is bounded by the session timeout.
type BrowserSession interface {
	Goto(url string) error
	Fill(selector, value string) error
	Click(selector string) error
	WaitForSelector(selector string) error
	Screenshot(fullPage bool) ([]byte, error)
	Evaluate(expression string, out any) error
	HTML() (string, error)
	Close() error
}

type chromeBrowser struct {
	execPath string
	timeout  time.Duration
	log      *zap.SugaredLogger
}

func NewChromeBrowser(cfg config.LinkedInConfig, log *zap.SugaredLogger) Browser {
	timeout := cfg.BrowserTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &chromeBrowser{execPath: cfg.ChromePath, timeout: timeout, log: logger.OrNop(log)}
}

func (b *chromeBrowser) Launch(ctx context.Context) (BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1366, 900),
		chromedp.UserAgent(browserUserAgent),
	)
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(b.log.Debugf))

	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
	)
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, errors.Mark(errors.Wrap(err, "failed to launch browser"), pipeline.ErrBrowser)
	}

	b.log.Debugw("🌐 Browser session launched")
	return &chromeSession{
		ctx:     tabCtx,
		timeout: b.timeout,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}, nil
}

type chromeSession struct {
	ctx     context.Context
	timeout time.Duration
	cancel  func()
}

func (s *chromeSession) run(what string, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	if err := chromedp.Run(ctx, actions...); err != nil {
		return errors.Mark(errors.Wrap(err, what), pipeline.ErrBrowser)
	}
	return nil
}

func (s *chromeSession) Goto(url string) error {
	return s.run("goto "+url, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (s *chromeSession) Fill(selector, value string) error {
	return s.run("fill "+selector,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (s *chromeSession) Click(selector string) error {
	return s.run("click "+selector, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *chromeSession) WaitForSelector(selector string) error {
	return s.run("wait for "+selector, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Screenshot returns a JPEG of the whole page, or of the viewport, that fits the
// model payload ceiling.
func (s *chromeSession) Screenshot(fullPage bool) ([]byte, error) {
	return fitScreenshot(fullPage, models.MaxDocumentSize, func(full bool, quality int) ([]byte, error) {
		var buf []byte
		action := chromedp.FullScreenshot(&buf, quality)
		if !full {
			action = viewportScreenshot(&buf, quality)
		}
		if err := s.run("screenshot", action); err != nil {
			return nil, err
		}
		return buf, nil
	})
}

func viewportScreenshot(buf *[]byte, quality int) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		data, err := page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(int64(quality)).
			Do(ctx)
		if err != nil {
			return err
		}
		*buf = data
		return nil
	})
}

var screenshotQualities = []int{80, 60, 40, 25}

type captureFunc func(fullPage bool, quality int) ([]byte, error)

// fitScreenshot lowers the JPEG quality, then falls back from the full page to
// the viewport, until a capture is at most limit bytes.
func fitScreenshot(fullPage bool, limit int, capture captureFunc) ([]byte, error) {
	modes := []bool{false}
	if fullPage {
		modes = []bool{true, false}
	}

	smallest := 0
	for _, full := range modes {
		for _, quality := range screenshotQualities {
			buf, err := capture(full, quality)
			if err != nil {
				return nil, err
			}
			if len(buf) <= limit {
				return buf, nil
			}
			if smallest == 0 || len(buf) < smallest {
				smallest = len(buf)
			}
		}
	}
	return nil, errors.Mark(errors.Newf("screenshot is %d bytes at the lowest quality, limit is %d", smallest, limit), pipeline.ErrBrowser)
}

func (s *chromeSession) Evaluate(expression string, out any) error {
	return s.run("evaluate", chromedp.Evaluate(expression, out))
}

func (s *chromeSession) HTML() (string, error) {
	var html string
	if err := s.run("read html", chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

var authWallSelectors = []string{
	"form.login__form",
	"#username",
	".authwall-join-form",
	"[data-test-id='authwall']",
	"#captcha-internal",
}

// DetectAuthWall reports whether the page is a login form, auth wall or security
// checkpoint instead of the requested content.
func DetectAuthWall(html string) (bool, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, ""
	}
	for _, sel := range authWallSelectors {
		if doc.Find(sel).Length() > 0 {
			return true, sel
		}
	}
	title := strings.ToLower(doc.Find("title").First().Text())
	if strings.Contains(title, "security verification") || strings.Contains(title, "sign in") {
		return true, "title: " + title
	}
	return false, ""
}
