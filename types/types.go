package types

import "time"

// APIResponse - JSON envelope returned by every /api endpoint
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   *string     `json:"error"`
	// OriginalURL is the URL the content was finally served from.
	OriginalURL        *string `json:"original_url"`
	RequestedURL       string  `json:"requested_url,omitempty"`
	ProcessedAt        string  `json:"processed_at"`
	OriginalSizeBytes  *int64  `json:"original_size_bytes"`
	ProcessedSizeBytes *int64  `json:"processed_size_bytes"`
}

// ProcessRequest - Body of POST /api/process
type ProcessRequest struct {
	URL    string `json:"url"`
	Format string `json:"format,omitempty"`
}

// CreateKeyRequest - Body of POST /api/keys/create
type CreateKeyRequest struct {
	AdminKey string `json:"admin_key"`
	Key      string `json:"key,omitempty"`
}

// KeyData - Usage counters of one API key
type KeyData struct {
	Key                 string     `json:"key"`
	TotalBytesProcessed int64      `json:"total_bytes_processed"`
	TotalOriginalBytes  int64      `json:"total_original_bytes"`
	TotalProcessedBytes int64      `json:"total_processed_bytes"`
	CompressionCount    int64      `json:"compression_count"`
	CreatedAt           time.Time  `json:"created_at"`
	LastUsed            *time.Time `json:"last_used"`
}

// CompressionRatio returns processed/original bytes, or 0 before any use.
func (k KeyData) CompressionRatio() float64 {
	if k.TotalOriginalBytes == 0 {
		return 0
	}
	return float64(k.TotalProcessedBytes) / float64(k.TotalOriginalBytes)
}

// UsageResponse - Data of GET /api/keys/usage
type UsageResponse struct {
	KeyData
	CompressionRatio float64 `json:"compression_ratio"`
}

// LedgerStats - Aggregate counters over all keys
type LedgerStats struct {
	KeyCount            int   `json:"key_count"`
	TotalBytesProcessed int64 `json:"total_bytes_processed"`
	TotalOriginalBytes  int64 `json:"total_original_bytes"`
	TotalProcessedBytes int64 `json:"total_processed_bytes"`
	CompressionCount    int64 `json:"compression_count"`
}

// DocumentResponse - One simplified document as returned by the MCP tools
type DocumentResponse struct {
	Content            string `json:"content"`
	Format             string `json:"format"`
	FinalURL           string `json:"final_url"`
	OriginalSizeBytes  int64  `json:"original_size_bytes"`
	ProcessedSizeBytes int64  `json:"processed_size_bytes"`
	Truncated          bool   `json:"truncated,omitempty"`
}

// MultipleResponse - Batch result keyed by requested URL
type MultipleResponse struct {
	Documents map[string]*DocumentResponse `json:"documents"`
	Errors    map[string]string            `json:"errors"`
}

// KeyResponse - Envelope of the /api/keys endpoints
type KeyResponse struct {
	Success             bool           `json:"success"`
	Key                 *string        `json:"key"`
	TotalBytesProcessed *int64         `json:"total_bytes_processed"`
	Keys                []KeyData      `json:"keys"`
	Error               *string        `json:"error"`
	Usage               *UsageResponse `json:"usage,omitempty"`
	Stats               *LedgerStats   `json:"stats,omitempty"`
}
