package export

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// a4WidthInches and a4HeightInches size the rasterized page; margins are zero
// because the document shell carries its own @page margin.
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69

	defaultRasterTimeout = 30 * time.Second
)

// Rasterizer converts a print document to PDF bytes through a headless
// browser, the client-side counterpart of the print pipeline.
type Rasterizer struct {
	execPath string
	timeout  time.Duration
	logger   *log.Logger
}

// RasterOption configures a Rasterizer.
type RasterOption func(*Rasterizer)

// WithExecPath points the rasterizer at a specific browser binary.
func WithExecPath(path string) RasterOption {
	return func(r *Rasterizer) {
		r.execPath = path
	}
}

// WithTimeout bounds a single rasterization run.
func WithTimeout(d time.Duration) RasterOption {
	return func(r *Rasterizer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRasterLogger routes rasterizer diagnostics to the given logger.
func WithRasterLogger(logger *log.Logger) RasterOption {
	return func(r *Rasterizer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRasterizer returns a rasterizer with a 30s per-run timeout.
func NewRasterizer(opts ...RasterOption) *Rasterizer {
	r := &Rasterizer{
		timeout: defaultRasterTimeout,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PDF loads the document into a fresh headless browser tab and prints it to
// PDF with the page background preserved.
func (r *Rasterizer) PDF(ctx context.Context, doc string) ([]byte, error) {
	if doc == "" {
		return nil, fmt.Errorf("export: document is empty")
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
	}
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	runCtx, runCancel := context.WithTimeout(tabCtx, r.timeout)
	defer runCancel()

	start := time.Now()
	var pdf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(false).
				WithPaperWidth(a4WidthInches).
				WithPaperHeight(a4HeightInches).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("export: rasterize document: %w", err)
	}

	r.logger.Debug("rasterized document", "bytes", len(pdf), "elapsed", time.Since(start))
	return pdf, nil
}
