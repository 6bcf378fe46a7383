package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/cnosuke/rigil-proxy/ledger"
	"github.com/cnosuke/rigil-proxy/types"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func keyFailure(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, types.KeyResponse{Success: false, Error: strPtr(msg)})
}

// checkAdmin compares provided against the configured admin key. An empty
// configured key disables administration entirely.
func (s *Server) checkAdmin(c *gin.Context, provided string) bool {
	configured := s.cfg.Admin.Key
	if configured == "" {
		keyFailure(c, http.StatusForbidden, "key administration is disabled")
		return false
	}
	if provided == "" {
		keyFailure(c, http.StatusBadRequest, "admin_key parameter is required")
		return false
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) != 1 {
		zap.S().Warnw("rejected admin request", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
		keyFailure(c, http.StatusUnauthorized, "invalid admin key")
		return false
	}
	return true
}

// requireAdmin guards routes that take the admin key from the query or
// the X-Admin-Key header.
func (s *Server) requireAdmin(c *gin.Context) {
	provided := c.Query("admin_key")
	if provided == "" {
		provided = c.GetHeader(headerAdminKey)
	}
	if s.checkAdmin(c, provided) {
		c.Next()
	}
}

func (s *Server) handleCreateKey(c *gin.Context) {
	var req types.CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		keyFailure(c, http.StatusBadRequest, "invalid JSON request")
		return
	}
	provided := req.AdminKey
	if provided == "" {
		provided = c.GetHeader(headerAdminKey)
	}
	if !s.checkAdmin(c, provided) {
		return
	}

	data, err := s.comps.Ledger.CreateKey(req.Key)
	switch {
	case errors.Is(err, ledger.ErrKeyExists):
		keyFailure(c, http.StatusConflict, "api key already exists")
		return
	case err != nil:
		zap.S().Errorw("failed to create api key", "error", err)
		s.comps.Metrics.RecordLedgerError("create_key")
		keyFailure(c, http.StatusInternalServerError, "failed to create api key")
		return
	}

	c.JSON(http.StatusOK, types.KeyResponse{
		Success:             true,
		Key:                 strPtr(data.Key),
		TotalBytesProcessed: int64Ptr(0),
	})
}

func (s *Server) handleUsage(c *gin.Context) {
	key := c.Query("api_key")
	if key == "" {
		key = c.GetHeader(headerAPIKey)
	}
	if key == "" {
		keyFailure(c, http.StatusBadRequest, "api_key parameter is required")
		return
	}

	data, ok := s.comps.Ledger.Usage(key)
	if !ok {
		keyFailure(c, http.StatusUnauthorized, "invalid api key")
		return
	}

	c.JSON(http.StatusOK, types.KeyResponse{
		Success:             true,
		Key:                 strPtr(data.Key),
		TotalBytesProcessed: int64Ptr(data.TotalBytesProcessed),
		Usage: &types.UsageResponse{
			KeyData:          data,
			CompressionRatio: data.CompressionRatio(),
		},
	})
}

func (s *Server) handleListKeys(c *gin.Context) {
	c.JSON(http.StatusOK, types.KeyResponse{
		Success: true,
		Keys:    s.comps.Ledger.List(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats := s.comps.Ledger.Stats()
	c.JSON(http.StatusOK, types.KeyResponse{
		Success: true,
		Stats:   &stats,
	})
}

func (s *Server) handleDeleteKey(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		keyFailure(c, http.StatusBadRequest, "key parameter is required")
		return
	}

	err := s.comps.Ledger.DeleteKey(key)
	switch {
	case errors.Is(err, ledger.ErrKeyNotFound):
		keyFailure(c, http.StatusNotFound, "api key not found")
		return
	case err != nil:
		zap.S().Errorw("failed to delete api key", "error", err)
		s.comps.Metrics.RecordLedgerError("delete_key")
		keyFailure(c, http.StatusInternalServerError, "failed to delete api key")
		return
	}

	c.JSON(http.StatusOK, types.KeyResponse{Success: true, Key: strPtr(key)})
}
