// Package render drives a headless browser for pages that refuse to serve
// full content to a plain HTTP client. It is the fallback path; fetch is
// always tried first.
package render

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options configures a Renderer.
type Options struct {
	// Headless runs the browser without a window. Default: true.
	Headless bool

	// IdleAfter is how long the network must stay quiet before the page
	// is considered settled. Default: 2s.
	IdleAfter time.Duration

	// Timeout bounds a full render. Default: 60s.
	Timeout time.Duration

	// UserAgent overrides the browser's reported identity.
	UserAgent string
}

// Renderer fetches pages through a real browser engine.
type Renderer struct {
	opts Options
}

// New creates a Renderer with defaults applied.
func New(opts Options) *Renderer {
	if opts.IdleAfter <= 0 {
		opts.IdleAfter = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Renderer{opts: opts}
}

// Fetch navigates to url, waits for the network to go idle, and returns
// the rendered document HTML.
func (r *Renderer) Fetch(ctx context.Context, url string) (string, error) {
	tabCtx, cancel := r.newTab(ctx)
	defer cancel()

	idle := waitNetworkIdle(tabCtx, r.opts.IdleAfter)

	zap.L().Debug("rendering page", zap.String("url", url))

	if err := chromedp.Run(tabCtx, chromedp.Navigate(url)); err != nil {
		return "", eris.Wrapf(err, "render: navigate %s", url)
	}

	select {
	case <-idle:
	case <-tabCtx.Done():
		return "", eris.Wrapf(tabCtx.Err(), "render: wait for idle %s", url)
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", eris.Wrapf(err, "render: extract html %s", url)
	}

	return html, nil
}

// newTab builds an allocator and tab context with the renderer's options
// and timeout applied. The returned cancel tears down both.
func (r *Renderer) newTab(ctx context.Context) (context.Context, context.CancelFunc) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if !r.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if r.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.opts.Timeout)

	return tabCtx, func() {
		cancelTimeout()
		cancelTab()
		cancelAlloc()
	}
}

// idleTracker closes Done once no request has been in flight for
// idleAfter. The timer is armed on creation so pages with no
// subresources still settle.
type idleTracker struct {
	idleAfter time.Duration
	done      chan struct{}
	active    int32
	mu        sync.Mutex
	timer     *time.Timer
	once      sync.Once
}

func newIdleTracker(idleAfter time.Duration) *idleTracker {
	t := &idleTracker{
		idleAfter: idleAfter,
		done:      make(chan struct{}),
	}
	t.arm()
	return t
}

// Done closes once the network has been quiet for idleAfter.
func (t *idleTracker) Done() <-chan struct{} { return t.done }

func (t *idleTracker) arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.idleAfter, func() {
		if atomic.LoadInt32(&t.active) == 0 {
			t.once.Do(func() { close(t.done) })
		}
	})
}

func (t *idleTracker) handle(ev any) {
	switch ev.(type) {
	case *network.EventRequestWillBeSent:
		atomic.AddInt32(&t.active, 1)
	case *network.EventLoadingFinished, *network.EventLoadingFailed:
		if atomic.AddInt32(&t.active, -1) <= 0 {
			t.arm()
		}
	}
}

func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) <-chan struct{} {
	t := newIdleTracker(idleAfter)
	chromedp.ListenTarget(ctx, t.handle)
	return t.Done()
}
