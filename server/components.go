package server

import (
	"time"

	"github.com/cnosuke/rigil-proxy/config"
	"github.com/cnosuke/rigil-proxy/fetcher"
	"github.com/cnosuke/rigil-proxy/ledger"
	"github.com/cnosuke/rigil-proxy/metrics"
	"github.com/cnosuke/rigil-proxy/pipeline"
	"go.uber.org/zap"
)

// Components are the long-lived parts shared by the HTTP server, the MCP
// server and the CLI commands.
type Components struct {
	Ledger   *ledger.Ledger
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Metrics
}

// NewComponents wires fetcher, ledger, metrics and pipeline from cfg.
func NewComponents(cfg *config.Config) (*Components, error) {
	httpFetcher, err := fetcher.NewHTTPFetcher(&fetcher.Config{
		Timeout:      time.Duration(cfg.Fetch.Timeout) * time.Second,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	})
	if err != nil {
		zap.S().Errorw("failed to create HTTP fetcher", "error", err)
		return nil, err
	}

	l, err := ledger.Open(cfg.Ledger.Driver, cfg.Ledger.Path)
	if err != nil {
		zap.S().Errorw("failed to open ledger", "driver", cfg.Ledger.Driver, "error", err)
		return nil, err
	}

	m := metrics.New()
	p := pipeline.New(pipeline.Config{
		ProxyPath:           cfg.Server.ProxyPath,
		MaxLabelLength:      cfg.Transducer.MaxLabelLength,
		LegacyAbsoluteCheck: cfg.Transducer.LegacyAbsoluteCheck,
		Readability:         cfg.Transducer.Readability,
		RequireKey:          cfg.Ledger.RequireKey,
		MaxURLs:             cfg.Fetch.MaxURLs,
		MaxWorkers:          cfg.Fetch.MaxWorkers,
	}, httpFetcher, l, m)

	return &Components{Ledger: l, Pipeline: p, Metrics: m}, nil
}

// Close releases the ledger.
func (c *Components) Close() error {
	return c.Ledger.Close()
}
