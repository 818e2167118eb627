package relatoria

import (
	"time"

	"sicrelatoria/internal/components/telemetry"
)

// PacingConfig holds the pauses between requests, 0 disables a pause.
type PacingConfig struct {
	// between two downloads of the same document
	LinkMs int `json:"link_ms"`
	// between two viewer document types
	TypeMs int `json:"type_ms"`
	// between two documents
	DocumentMs int `json:"document_ms"`
	// between the requests of a multi step strategy
	StrategyMs int `json:"strategy_ms"`
}

func (p PacingConfig) Link() time.Duration     { return millis(p.LinkMs) }
func (p PacingConfig) Type() time.Duration     { return millis(p.TypeMs) }
func (p PacingConfig) Document() time.Duration { return millis(p.DocumentMs) }
func (p PacingConfig) Strategy() time.Duration { return millis(p.StrategyMs) }

// RateLimitConfig bounds the session's requests, PerSecond 0 disables the limiter.
type RateLimitConfig struct {
	PerSecond float64 `json:"per_second"`
	Burst     int     `json:"burst"`
}

type BrowserConfig struct {
	// Bin is the chrome binary, when empty one is located or downloaded.
	Bin string `json:"bin"`
	// Show runs the browser with a window.
	Show bool `json:"show"`
	// Sandbox keeps the chrome sandbox enabled.
	Sandbox bool `json:"sandbox"`
	// WaitMs bounds every wait for an element to appear.
	WaitMs int `json:"wait_ms"`
	// SettleMs is how long a page is given after a click or a search.
	SettleMs int `json:"settle_ms"`
	// DownloadControls are the selectors treated as download affordances.
	DownloadControls []string `json:"download_controls"`
}

func (b BrowserConfig) Wait() time.Duration   { return millis(b.WaitMs) }
func (b BrowserConfig) Settle() time.Duration { return millis(b.SettleMs) }

type SignedUrlCacheConfig struct {
	Size  int `json:"size"`
	TtlMs int `json:"ttl_ms"`
}

func (c SignedUrlCacheConfig) Ttl() time.Duration { return millis(c.TtlMs) }

type Config struct {
	PortalBase string `json:"portal_base"`
	GestorBase string `json:"gestor_base"`
	SignerBase string `json:"signer_base"`

	// ViewerLabels are the document types tried against the viewer, in order.
	ViewerLabels []string `json:"viewer_labels"`
	// UserAgents is the identity pool, one is picked per session.
	UserAgents []string          `json:"user_agents"`
	Headers    map[string]string `json:"headers"`
	HtmlAccept string            `json:"html_accept"`
	PageSize   int               `json:"page_size"`

	RequestTimeoutMs int                  `json:"request_timeout_ms"`
	RateLimit        RateLimitConfig      `json:"rate_limit"`
	Pacing           PacingConfig         `json:"pacing"`
	Browser          BrowserConfig        `json:"browser"`
	SignedUrlCache   SignedUrlCacheConfig `json:"signed_url_cache"`
	Telemetry        telemetry.Config     `json:"telemetry"`
}

func (c Config) RequestTimeout() time.Duration { return millis(c.RequestTimeoutMs) }

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// DefaultConfig is the configuration of the production portal.
func DefaultConfig() Config {
	return Config{
		PortalBase: "https://relatoria.sic.gov.co",
		GestorBase: "https://gestor.relatoria.sic.gov.co",
		SignerBase: "https://m0s03uyzg3.execute-api.us-east-1.amazonaws.com/prod",
		ViewerLabels: []string{
			"Sentencia_escrita",
			"Auto_escrito",
			"Sentencia_oral",
			"Comunicacion",
		},
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
		},
		Headers: map[string]string{
			"Accept":          "application/json, text/plain, */*",
			"Accept-Language": "es-ES,es;q=0.9,en;q=0.8",
			"Sec-Fetch-Dest":  "empty",
			"Sec-Fetch-Mode":  "cors",
			"Sec-Fetch-Site":  "same-origin",
		},
		HtmlAccept:       "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		PageSize:         20,
		RequestTimeoutMs: 30_000,
		RateLimit: RateLimitConfig{
			PerSecond: 2,
			Burst:     2,
		},
		Pacing: PacingConfig{
			LinkMs:     500,
			TypeMs:     1000,
			DocumentMs: 2000,
			StrategyMs: 1000,
		},
		Browser: BrowserConfig{
			WaitMs:   10_000,
			SettleMs: 5_000,
			DownloadControls: []string{
				"a[href*='.pdf']",
				"a[href*='download']",
				"button.download-btn",
			},
		},
		SignedUrlCache: SignedUrlCacheConfig{
			Size:  256,
			TtlMs: 10 * 60 * 1000,
		},
	}
}
