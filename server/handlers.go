package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/cnosuke/rigil-proxy/fetcher"
	"github.com/cnosuke/rigil-proxy/pipeline"
	"github.com/cnosuke/rigil-proxy/types"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerAPIKey   = "X-API-Key"
	headerAdminKey = "X-Admin-Key"
	contentHTML    = "text/html; charset=utf-8"
)

// statusFor maps pipeline and fetch errors to HTTP status codes.
func statusFor(err error) int {
	var (
		parseErr   *fetcher.URLParseError
		timeoutErr *fetcher.TimeoutError
		connErr    *fetcher.ConnectError
		statusErr  *fetcher.HTTPStatusError
		decodeErr  *fetcher.DecodeError
	)
	switch {
	case errors.Is(err, pipeline.ErrKeyRequired), errors.Is(err, pipeline.ErrInvalidKey):
		return http.StatusUnauthorized
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &connErr), errors.As(err, &statusErr), errors.As(err, &decodeErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func failure(msg, originalURL string) types.APIResponse {
	resp := types.APIResponse{
		Success:     false,
		Error:       strPtr(msg),
		ProcessedAt: now(),
	}
	if originalURL != "" {
		resp.OriginalURL = strPtr(originalURL)
	}
	return resp
}

func success(doc *pipeline.Document, data string) types.APIResponse {
	return types.APIResponse{
		Success:            true,
		Data:               data,
		OriginalURL:        strPtr(doc.FinalURL),
		RequestedURL:       doc.RequestedURL,
		ProcessedAt:        doc.ProcessedAt.Format(time.RFC3339),
		OriginalSizeBytes:  int64Ptr(doc.OriginalBytes),
		ProcessedSizeBytes: int64Ptr(doc.ProcessedBytes),
	}
}

// handleProxy serves the simplified document itself, or an error page.
func (s *Server) handleProxy(c *gin.Context) {
	target := c.Query("url")
	if strings.TrimSpace(target) == "" {
		s.errorPage(c, http.StatusBadRequest, "Missing parameter", "The url parameter is required.")
		return
	}

	doc, err := s.comps.Pipeline.Transduce(c.Request.Context(), target, c.Query("api_key"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusUnauthorized {
			s.errorPage(c, status, "Authentication error", err.Error())
			return
		}
		s.errorPage(c, status, "Could not load page", "Fetching "+target+" failed: "+err.Error())
		return
	}

	c.Data(http.StatusOK, contentHTML, []byte(doc.HTML))
}

func (s *Server) handleProcessGet(c *gin.Context) {
	apiKey := c.Query("api_key")
	if apiKey == "" {
		apiKey = c.GetHeader(headerAPIKey)
	}
	s.process(c, c.Query("url"), apiKey, c.Query("format"))
}

func (s *Server) handleProcessPost(c *gin.Context) {
	var req types.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure("invalid JSON request", ""))
		return
	}
	s.process(c, req.URL, c.GetHeader(headerAPIKey), req.Format)
}

func (s *Server) process(c *gin.Context, target, apiKey, format string) {
	if strings.TrimSpace(target) == "" {
		c.JSON(http.StatusBadRequest, failure("url parameter is required", ""))
		return
	}
	format = strings.ToLower(format)
	if format != "" && format != "json" && format != pipeline.FormatHTML && format != pipeline.FormatMarkdown {
		c.JSON(http.StatusBadRequest, failure("unsupported format "+format, target))
		return
	}

	doc, err := s.comps.Pipeline.Transduce(c.Request.Context(), target, apiKey)
	if err != nil {
		c.JSON(statusFor(err), failure(err.Error(), target))
		return
	}

	switch format {
	case pipeline.FormatHTML:
		c.Data(http.StatusOK, contentHTML, []byte(doc.HTML))
	case pipeline.FormatMarkdown:
		markdown, err := pipeline.ToMarkdown(doc)
		if err != nil {
			zap.S().Errorw("markdown conversion failed", "url", doc.FinalURL, "error", err)
			c.JSON(http.StatusInternalServerError, failure(err.Error(), doc.FinalURL))
			return
		}
		c.JSON(http.StatusOK, success(doc, markdown))
	default:
		c.JSON(http.StatusOK, success(doc, doc.HTML))
	}
}
