package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cnosuke/rigil-proxy/types"
	"github.com/cockroachdb/errors"
	mcp "github.com/metoro-io/mcp-golang"
	"go.uber.org/zap"
)

// SimplifyMultipleArgs - Arguments for simplify_multiple tool
type SimplifyMultipleArgs struct {
	URLs   []string `json:"urls" jsonschema:"description=URLs to fetch and simplify (maximum depends on config),required=true"`
	APIKey string   `json:"api_key,omitempty" jsonschema:"description=API key charged for every successful URL"`
	Format string   `json:"format,omitempty" jsonschema:"description=Output format: html (default) or markdown"`
}

// RegisterSimplifyMultipleTool - Register the simplify_multiple tool
func RegisterSimplifyMultipleTool(mcpServer *mcp.Server, t Transducer, maxURLs int) error {
	zap.S().Debugw("registering simplify_multiple tool", "max_urls", maxURLs)
	err := mcpServer.RegisterTool("simplify_multiple", fmt.Sprintf("Simplify multiple URLs in parallel (max %d)", maxURLs),
		func(args SimplifyMultipleArgs) (*mcp.ToolResponse, error) {
			zap.S().Debugw("executing simplify_multiple", "urls_count", len(args.URLs))

			response, err := simplifyMultiple(context.Background(), t, args, maxURLs)
			if err != nil {
				zap.S().Errorw("failed to simplify multiple URLs", "error", err)
				return nil, err
			}

			jsonResponse, err := json.Marshal(response)
			if err != nil {
				zap.S().Errorw("failed to marshal response to JSON", "error", err)
				return nil, errors.Wrap(err, "failed to marshal response to JSON")
			}

			return mcp.NewToolResponse(mcp.NewTextContent(string(jsonResponse))), nil
		})

	if err != nil {
		zap.S().Errorw("failed to register simplify_multiple tool", "error", err)
		return errors.Wrap(err, "failed to register simplify_multiple tool")
	}

	return nil
}

func simplifyMultiple(ctx context.Context, t Transducer, args SimplifyMultipleArgs, maxURLs int) (*types.MultipleResponse, error) {
	if len(args.URLs) == 0 {
		return nil, errors.New("at least one URL is required")
	}
	if maxURLs > 0 && len(args.URLs) > maxURLs {
		return nil, errors.Newf("too many URLs: maximum allowed is %d", maxURLs)
	}
	format, err := normalizeFormat(args.Format)
	if err != nil {
		return nil, err
	}

	result, err := t.TransduceMultiple(ctx, args.URLs, args.APIKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to simplify multiple URLs")
	}

	response := &types.MultipleResponse{
		Documents: make(map[string]*types.DocumentResponse, len(result.Documents)),
		Errors:    make(map[string]string, len(result.Errors)),
	}
	for u, doc := range result.Documents {
		d, err := documentResponse(doc, format)
		if err != nil {
			response.Errors[u] = err.Error()
			continue
		}
		response.Documents[u] = d
	}
	for u, err := range result.Errors {
		response.Errors[u] = err.Error()
	}
	return response, nil
}
