package tools

import (
	"context"

	"github.com/cnosuke/rigil-proxy/pipeline"
	mcp "github.com/metoro-io/mcp-golang"
)

// Transducer is the part of the pipeline the tools call.
type Transducer interface {
	Transduce(ctx context.Context, targetURL, apiKey string) (*pipeline.Document, error)
	TransduceMultiple(ctx context.Context, urls []string, apiKey string) (*pipeline.MultipleResult, error)
}

// RegisterAllTools - Register all tools with the server
func RegisterAllTools(mcpServer *mcp.Server, t Transducer, maxURLs int) error {
	if err := RegisterSimplifyTool(mcpServer, t); err != nil {
		return err
	}

	if err := RegisterSimplifyMultipleTool(mcpServer, t, maxURLs); err != nil {
		return err
	}

	return nil
}
