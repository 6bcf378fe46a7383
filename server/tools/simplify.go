package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cnosuke/rigil-proxy/pipeline"
	"github.com/cnosuke/rigil-proxy/types"
	"github.com/cockroachdb/errors"
	mcp "github.com/metoro-io/mcp-golang"
	"go.uber.org/zap"
)

const defaultMaxLength = 5000

// SimplifyArgs - Arguments for simplify tool
type SimplifyArgs struct {
	URL        string `json:"url" jsonschema:"description=URL to fetch and simplify,required=true"`
	APIKey     string `json:"api_key,omitempty" jsonschema:"description=API key charged for the request"`
	Format     string `json:"format,omitempty" jsonschema:"description=Output format: html (default) or markdown"`
	MaxLength  int    `json:"max_length,omitempty" jsonschema:"description=Maximum number of characters to return"`
	StartIndex int    `json:"start_index,omitempty" jsonschema:"description=Start content from this character index"`
}

// RegisterSimplifyTool - Register the simplify tool
func RegisterSimplifyTool(mcpServer *mcp.Server, t Transducer) error {
	zap.S().Debugw("registering simplify tool")
	err := mcpServer.RegisterTool("simplify",
		"Fetches a URL and returns it reduced to text, headings, lists and proxied links",
		func(args SimplifyArgs) (*mcp.ToolResponse, error) {
			zap.S().Infow("executing simplify",
				"url", args.URL,
				"format", args.Format,
				"max_length", args.MaxLength,
				"start_index", args.StartIndex)

			response, err := simplify(context.Background(), t, args)
			if err != nil {
				zap.S().Errorw("failed to simplify URL", "url", args.URL, "error", err)
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
		zap.S().Errorw("failed to register simplify tool", "error", err)
		return errors.Wrap(err, "failed to register simplify tool")
	}

	return nil
}

func simplify(ctx context.Context, t Transducer, args SimplifyArgs) (*types.DocumentResponse, error) {
	if strings.TrimSpace(args.URL) == "" {
		return nil, errors.New("URL is required")
	}
	format, err := normalizeFormat(args.Format)
	if err != nil {
		return nil, err
	}

	doc, err := t.Transduce(ctx, args.URL, args.APIKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to simplify URL")
	}

	response, err := documentResponse(doc, format)
	if err != nil {
		return nil, err
	}

	maxLength := defaultMaxLength
	if args.MaxLength > 0 {
		maxLength = args.MaxLength
	}
	response.Content, response.Truncated = slice(response.Content, args.StartIndex, maxLength)
	return response, nil
}

func normalizeFormat(format string) (string, error) {
	switch strings.ToLower(format) {
	case "", pipeline.FormatHTML:
		return pipeline.FormatHTML, nil
	case pipeline.FormatMarkdown, "md":
		return pipeline.FormatMarkdown, nil
	default:
		return "", errors.Newf("unsupported format %q", format)
	}
}

func documentResponse(doc *pipeline.Document, format string) (*types.DocumentResponse, error) {
	content, err := pipeline.Render(doc, format)
	if err != nil {
		return nil, err
	}
	return &types.DocumentResponse{
		Content:            content,
		Format:             format,
		FinalURL:           doc.FinalURL,
		OriginalSizeBytes:  doc.OriginalBytes,
		ProcessedSizeBytes: doc.ProcessedBytes,
	}, nil
}

// slice cuts content to maxLength runes starting at startIndex.
func slice(content string, startIndex, maxLength int) (string, bool) {
	runes := []rune(content)
	if startIndex > 0 {
		if startIndex >= len(runes) {
			return "", false
		}
		runes = runes[startIndex:]
	}
	if maxLength > 0 && len(runes) > maxLength {
		return string(runes[:maxLength]), true
	}
	return string(runes), false
}
