package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	lmdebug "github.com/standardbeagle/lexmatch/internal/debug"
	"github.com/standardbeagle/lexmatch/internal/extractor"
	"github.com/standardbeagle/lexmatch/internal/types"
)

// ExtractResponse is the result of extract_entities
type ExtractResponse struct {
	Tokens   []types.Token       `json:"tokens"`
	Entities []types.EntityMatch `json:"entities"`
	Warnings []UnknownField      `json:"warnings,omitempty"`
}

// LookupResponse is the result of lookup
type LookupResponse struct {
	Text     string                      `json:"text"`
	Groups   []extractor.GroupCandidates `json:"groups"`
	Warnings []UnknownField              `json:"warnings,omitempty"`
}

// VocabulariesResponse is the result of list_vocabularies
type VocabulariesResponse struct {
	Groups []types.GroupInfo `json:"groups"`
	Stats  extractor.Stats   `json:"stats"`
}

func (s *Server) handleExtract(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic(toolExtract, func() (*mcp.CallToolResult, error) {
		var params ExtractParams
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return nil, fmt.Errorf("invalid parameters: %w", err)
		}
		if len(params.Tokens) == 0 && strings.TrimSpace(params.Text) == "" {
			return nil, errors.New("text or tokens is required")
		}

		msg := types.Message{Text: params.Text, Tokens: params.Tokens}
		s.ex.Process(&msg)
		lmdebug.LogMCP("%s: %d tokens, %d entities\n", toolExtract, len(msg.Tokens), len(msg.Entities))

		entities := msg.Entities
		if entities == nil {
			entities = []types.EntityMatch{}
		}
		return createJSONResponse(ExtractResponse{
			Tokens:   msg.Tokens,
			Entities: entities,
			Warnings: params.Warnings,
		})
	})
}

func (s *Server) handleLookup(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic(toolLookup, func() (*mcp.CallToolResult, error) {
		var params LookupParams
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return nil, fmt.Errorf("invalid parameters: %w", err)
		}
		if params.Text == "" {
			return nil, errors.New("text is required")
		}

		groups := s.ex.Lookup(params.Text)
		if params.Entity != "" {
			filtered := groups[:0]
			for _, g := range groups {
				if g.Entity == params.Entity {
					filtered = append(filtered, g)
				}
			}
			groups = filtered
		}
		return createJSONResponse(LookupResponse{Text: params.Text, Groups: groups, Warnings: params.Warnings})
	})
}

func (s *Server) handleListVocabularies(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic(toolList, func() (*mcp.CallToolResult, error) {
		return createJSONResponse(VocabulariesResponse{Groups: s.ex.Groups(), Stats: s.ex.Stats()})
	})
}
