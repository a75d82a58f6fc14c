package server

import (
	"github.com/standardbeagle/lexmatch/internal/extractor"
	"github.com/standardbeagle/lexmatch/internal/types"
)

// Request/response types shared by the server and Client

// ExtractRequest is the batch form of POST /extract. A single message or a
// bare token list is accepted as well.
type ExtractRequest struct {
	Messages []types.Message `json:"messages"`
}

// ExtractResponse carries processed messages. Single-message and token-list
// requests are answered with the message alone.
type ExtractResponse struct {
	Messages []types.Message `json:"messages"`
}

// LookupResponse contains unfiltered candidates per group
type LookupResponse struct {
	Text   string                      `json:"text"`
	Groups []extractor.GroupCandidates `json:"groups"`
}

// StatusResponse describes the loaded vocabulary and the watcher
type StatusResponse struct {
	Vocabulary    extractor.Stats       `json:"vocabulary"`
	Watch         *extractor.WatchStats `json:"watch,omitempty"`
	UptimeSeconds float64               `json:"uptime_seconds"`
	Version       string                `json:"version"`
}

// VocabulariesResponse lists the vocabulary groups in match order
type VocabulariesResponse struct {
	Groups []types.GroupInfo `json:"groups"`
}

// ReloadResponse reports the outcome of POST /reload. Success is false when
// the reload failed outright or some sources could not be loaded.
type ReloadResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Stats   extractor.Stats `json:"stats"`
}

// PingResponse confirms server is alive
type PingResponse struct {
	Uptime  float64 `json:"uptime_seconds"`
	Version string  `json:"version"`
	BuildID string  `json:"build_id"`
}

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error string `json:"error"`
}
