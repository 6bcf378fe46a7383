package server

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/cnosuke/rigil-proxy/config"
	"github.com/cnosuke/rigil-proxy/server/tools"
	"github.com/cockroachdb/errors"
	mcp "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport/stdio"
	"go.uber.org/zap"
)

// RunMCP - Serve the simplify tools over stdio until SIGINT or SIGTERM
func RunMCP(cfg *config.Config, name string, version string, revision string) error {
	zap.S().Infow("starting MCP server",
		"name", name,
		"version", versionString(version, revision))

	comps, err := NewComponents(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			zap.S().Warnw("failed to close ledger", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mcpServer := mcp.NewServer(stdio.NewStdioServerTransport())

	zap.S().Debugw("registering tools")
	if err := tools.RegisterAllTools(mcpServer, comps.Pipeline, cfg.Fetch.MaxURLs); err != nil {
		zap.S().Errorw("failed to register tools", "error", err)
		return err
	}

	zap.S().Infow("serving MCP over stdio")
	if err := mcpServer.Serve(); err != nil {
		zap.S().Errorw("failed to start MCP server", "error", err)
		return errors.Wrap(err, "failed to start MCP server")
	}

	<-ctx.Done()
	zap.S().Infow("MCP server shutting down")
	return nil
}
