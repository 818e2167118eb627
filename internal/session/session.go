package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_session_warm_up = "session.warm-up"
	report_session_close   = "session.close"
)

type Options struct {
	// Dump receives every request/response pair, it can be nil.
	Dump restyutil.InstrumentOutput
	// Renderer overrides the browser used by RenderPage, it is launched
	// lazily through go-rod when nil.
	Renderer Renderer
}

// Session holds the cookies and identity of one run, every strategy issues
// its requests through it. It is created per run and must be closed.
type Session struct {
	config    relatoria.Config
	tel       telemetry.API
	http      *resty.Client
	userAgent string

	warmUp   sync.Once
	renderer Renderer
}

func New(config relatoria.Config, tel telemetry.API, opts Options) (*Session, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(config.PortalBase)

	tel = telemetry.NewScopedAPI("session", tel)

	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	userAgent := pickUserAgent(config.UserAgents)
	portal := strings.TrimSuffix(config.PortalBase, "/")
	httpClient.SetHeaders(config.Headers)
	httpClient.SetHeader("User-Agent", userAgent)
	httpClient.SetHeader("Referer", portal+"/")
	httpClient.SetHeader("Origin", portal)
	if config.RateLimit.PerSecond > 0 {
		burst := config.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		rateLimiter := rate.NewLimiter(rate.Limit(config.RateLimit.PerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)
	restyutil.DumpExchanges(httpClient, opts.Dump)

	renderer := opts.Renderer
	if renderer == nil {
		renderer = NewRodRenderer(config.Browser, userAgent)
	}

	return &Session{
		config:    config,
		tel:       tel,
		http:      httpClient,
		userAgent: userAgent,
		renderer:  renderer,
	}, nil
}

func pickUserAgent(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.Intn(len(pool))]
}

func (s *Session) UserAgent() string {
	return s.userAgent
}

func (s *Session) Config() relatoria.Config {
	return s.config
}

var errRequestTimeout = errors.New("request timed out")

// Request describes one call made through IssueRequest.
type Request struct {
	Method  string
	Url     string
	Body    any
	Query   map[string]string
	Headers map[string]string
	// Stream leaves the body unread, the caller must close Response.RawBody().
	// The request timeout only covers waiting for the response headers of a
	// stream, reading its body is bounded by ctx alone.
	Stream bool
}

// IssueRequest sends the request with the session's cookies and identity.
// Transport errors and non 2xx statuses are returned wrapped in ErrTransport,
// a streamed response is closed before an error is returned.
func (s *Session) IssueRequest(ctx context.Context, r Request) (*resty.Response, error) {
	s.warmUp.Do(func() {
		s.visitPortal(ctx)
	})

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, cancel := context.WithCancelCause(ctx)
	req := s.http.R().
		SetContext(ctx).
		SetHeaders(r.Headers).
		SetQueryParams(r.Query).
		SetDoNotParseResponse(r.Stream)
	if r.Body != nil {
		req.SetBody(r.Body)
	}

	res, err := s.execute(req, method, r.Url, cancel)
	if err != nil {
		cancel(nil)
		if errors.Is(context.Cause(ctx), errRequestTimeout) {
			err = fmt.Errorf("%w after %s", errRequestTimeout, s.config.RequestTimeout())
		}
		return nil, fmt.Errorf("%w: %s %s: %w", relatoria.ErrTransport, method, r.Url, err)
	}
	if res.IsError() {
		if r.Stream && res.RawBody() != nil {
			res.RawBody().Close()
		}
		cancel(nil)
		return res, fmt.Errorf("%w: %s %s: status %s", relatoria.ErrTransport, method, r.Url, res.Status())
	}

	if r.Stream && res.RawResponse != nil && res.RawResponse.Body != nil {
		res.RawResponse.Body = releasingBody{ReadCloser: res.RawResponse.Body, release: cancel}
	} else {
		cancel(nil)
	}
	return res, nil
}

// execute runs the request with the configured timeout armed until Execute
// returns, which is after the body is read or, for a stream, after the
// headers arrive.
func (s *Session) execute(req *resty.Request, method, url string, cancel context.CancelCauseFunc) (*resty.Response, error) {
	timeout := s.config.RequestTimeout()
	if timeout <= 0 {
		return req.Execute(method, url)
	}

	timer := time.AfterFunc(timeout, func() {
		cancel(errRequestTimeout)
	})
	res, err := req.Execute(method, url)
	if !timer.Stop() && err == nil {
		// the deadline fired after Execute returned, the body is already cancelled
		if res.RawResponse != nil && res.RawResponse.Body != nil {
			res.RawResponse.Body.Close()
		}
		return nil, errRequestTimeout
	}
	return res, err
}

// releasingBody cancels the request context of a stream once its body is closed.
type releasingBody struct {
	io.ReadCloser
	release context.CancelCauseFunc
}

func (b releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.release(nil)
	return err
}

// visitPortal acquires the baseline cookies, a failure only gets reported.
func (s *Session) visitPortal(ctx context.Context) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	req := s.http.R().
		SetContext(ctx).
		SetHeader("Accept", s.config.HtmlAccept)
	res, err := s.execute(req, http.MethodGet, strings.TrimSuffix(s.config.PortalBase, "/")+"/", cancel)
	if err != nil {
		s.tel.ReportWarning(report_session_warm_up, err)
		return
	}
	if res.IsError() {
		s.tel.ReportWarning(report_session_warm_up, fmt.Errorf("status %s", res.Status()))
		return
	}
	s.tel.ReportDebug("session initialized", res.Status())
}

// RenderPage opens `url` in the session's browser.
func (s *Session) RenderPage(ctx context.Context, url string) (RenderedDocument, error) {
	doc, err := s.renderer.RenderPage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: render %s: %w", relatoria.ErrTransport, url, err)
	}
	return doc, nil
}

// Close releases the browser if one was started.
func (s *Session) Close() error {
	err := s.renderer.Close()
	if err != nil {
		s.tel.ReportBroken(report_session_close, err)
	}
	return err
}
