package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/cnosuke/rigil-proxy/fetcher"
	"github.com/cnosuke/rigil-proxy/metrics"
	"github.com/cnosuke/rigil-proxy/transducer"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var (
	ErrEmptyURL    = errors.New("url is required")
	ErrKeyRequired = errors.New("api key is required")
	ErrInvalidKey  = errors.New("invalid api key")
	ErrNoURLs      = errors.New("at least one url is required")
	ErrTooManyURLs = errors.New("too many urls")
)

// Ledger is the usage accounting the pipeline reports to.
type Ledger interface {
	ValidateKey(key string) bool
	RecordUsage(key string, originalBytes, processedBytes int64) error
}

type Config struct {
	ProxyPath           string
	MaxLabelLength      int
	LegacyAbsoluteCheck bool
	Readability         bool
	RequireKey          bool
	MaxURLs             int
	MaxWorkers          int
}

// Document is one simplified page.
type Document struct {
	// HTML is the complete document: fixed header, Body, fixed footer.
	HTML string
	// Body is the transduced page content alone.
	Body           string
	RequestedURL   string
	FinalURL       string
	OriginalBytes  int64
	ProcessedBytes int64
	ProcessedAt    time.Time
}

// Pipeline runs normalize, fetch, base resolution and transduction for one
// URL and reports usage.
type Pipeline struct {
	cfg     Config
	fetcher fetcher.Fetcher
	ledger  Ledger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Pipeline. ledger and m may be nil; without a ledger keys
// are neither checked nor charged.
func New(cfg Config, f fetcher.Fetcher, ledger Ledger, m *metrics.Metrics) *Pipeline {
	if cfg.ProxyPath == "" {
		cfg.ProxyPath = transducer.DefaultProxyPath
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	return &Pipeline{
		cfg:     cfg,
		fetcher: f,
		ledger:  ledger,
		metrics: m,
		now:     time.Now,
	}
}

// CheckKey applies the key policy without fetching anything.
func (p *Pipeline) CheckKey(apiKey string) error {
	if p.ledger == nil {
		return nil
	}
	if apiKey == "" {
		if p.cfg.RequireKey {
			return ErrKeyRequired
		}
		return nil
	}
	if !p.ledger.ValidateKey(apiKey) {
		return ErrInvalidKey
	}
	return nil
}

// Transduce fetches targetURL and returns its simplified document. apiKey
// may be empty unless keys are required; a non-empty key must be valid and
// is charged for the document.
func (p *Pipeline) Transduce(ctx context.Context, targetURL, apiKey string) (*Document, error) {
	raw := strings.TrimSpace(targetURL)
	if raw == "" {
		return nil, &fetcher.URLParseError{URL: targetURL, Err: ErrEmptyURL}
	}
	if err := p.CheckKey(apiKey); err != nil {
		return nil, err
	}

	normalized := transducer.Normalize(raw)
	zap.S().Debugw("transducing url",
		"url", raw,
		"normalized", normalized,
		"with_key", apiKey != "")

	// The fetch outlives a disconnected client; the fetch timeout still holds.
	start := time.Now()
	res, err := p.fetcher.Fetch(context.WithoutCancel(ctx), normalized)
	p.metrics.RecordFetch(fetcher.Kind(err), time.Since(start))
	if err != nil {
		zap.S().Warnw("fetch failed",
			"url", normalized,
			"kind", fetcher.Kind(err),
			"error", err)
		return nil, err
	}

	body := res.Body
	if p.cfg.Readability {
		body = extractArticle(body, res.FinalURL)
	}

	opts := transducer.Options{
		MaxLabelLength:      p.cfg.MaxLabelLength,
		LegacyAbsoluteCheck: p.cfg.LegacyAbsoluteCheck,
		ProxyLink:           transducer.ProxyLink(p.cfg.ProxyPath, apiKey),
	}
	simplified := transducer.Simplify(body, transducer.BaseOf(res.FinalURL), res.FinalURL, opts)
	html := transducer.Wrap(simplified)

	doc := &Document{
		HTML:           html,
		Body:           simplified,
		RequestedURL:   normalized,
		FinalURL:       res.FinalURL,
		OriginalBytes:  res.OriginalBytes,
		ProcessedBytes: int64(len(html)),
		ProcessedAt:    p.now().UTC(),
	}
	p.metrics.RecordBytes(doc.OriginalBytes, doc.ProcessedBytes)

	if apiKey != "" && p.ledger != nil {
		if err := p.ledger.RecordUsage(apiKey, doc.OriginalBytes, doc.ProcessedBytes); err != nil {
			p.metrics.RecordLedgerError("record_usage")
			zap.S().Errorw("failed to record usage",
				"url", normalized,
				"error", err)
		}
	}

	zap.S().Infow("document transduced",
		"url", normalized,
		"final_url", res.FinalURL,
		"original_bytes", doc.OriginalBytes,
		"processed_bytes", doc.ProcessedBytes)

	return doc, nil
}
