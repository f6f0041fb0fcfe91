// Package usage persists one immutable record per proxied request into
// append-only daily JSONL files partitioned by tenant, and aggregates them
// for reporting and limit checks.
package usage

import "time"

// TimestampLayout is the ISO-8601 UTC format used in records and file names.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Record describes a single request's tokens, cost, and metadata. One record
// becomes one line in the tenant's daily file.
type Record struct {
	RequestID           string  `json:"requestId"`
	TenantID            string  `json:"tenantId"`
	Timestamp           string  `json:"timestamp"`
	Model               string  `json:"model"`
	InputTokens         int64   `json:"inputTokens"`
	OutputTokens        int64   `json:"outputTokens"`
	CacheCreationTokens int64   `json:"cacheCreationTokens"`
	CacheReadTokens     int64   `json:"cacheReadTokens"`
	TotalTokens         int64   `json:"totalTokens"`
	InputCost           float64 `json:"inputCost"`
	OutputCost          float64 `json:"outputCost"`
	CacheCreationCost   float64 `json:"cacheCreationCost"`
	CacheReadCost       float64 `json:"cacheReadCost"`
	TotalCost           float64 `json:"totalCost"`
	Duration            int64   `json:"duration"`
	StatusCode          int     `json:"statusCode"`
	UpstreamID          string  `json:"upstreamId"`
	UserAgent           string  `json:"userAgent"`
	ClientIP            string  `json:"clientIP"`
}

// Now formats the current time for Record.Timestamp.
func Now() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// TokenUsage is the fixed result of extracting token counts from an upstream
// response body, whatever its shape.
type TokenUsage struct {
	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
}

// Total returns the sum of all token categories.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheCreationTokens + u.CacheReadTokens
}
