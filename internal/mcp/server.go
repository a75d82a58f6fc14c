package mcp

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	lmdebug "github.com/standardbeagle/lexmatch/internal/debug"
	"github.com/standardbeagle/lexmatch/internal/extractor"
	"github.com/standardbeagle/lexmatch/internal/version"
)

const (
	toolExtract = "extract_entities"
	toolLookup  = "lookup"
	toolList    = "list_vocabularies"
)

// Server exposes an Extractor as MCP tools
type Server struct {
	ex               *extractor.Extractor
	server           *mcp.Server
	diagnosticLogger *DiagnosticLogger
}

// NewServer creates an MCP server for ex. Diagnostics go to a log file
// because stdio carries the protocol.
func NewServer(ex *extractor.Extractor) (*Server, error) {
	return newServer(ex, NewDiagnosticLogger(true))
}

func newServer(ex *extractor.Extractor, logger *DiagnosticLogger) (*Server, error) {
	if ex == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	s := &Server{
		ex:               ex,
		diagnosticLogger: logger,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "lexmatch-mcp-server",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	logger.Printf("MCP server initialized with %d vocabulary groups", ex.Stats().Groups)
	return s, nil
}

func (s *Server) registerTools() {
	tokenSchema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"text":  {Type: "string", Description: "Token text"},
			"start": {Type: "integer", Description: "Start offset in the original text"},
			"end":   {Type: "integer", Description: "End offset in the original text"},
		},
		Required: []string{"text"},
	}

	s.server.AddTool(&mcp.Tool{
		Name:        toolExtract,
		Description: "Find vocabulary entities in text or a token list using fuzzy matching. Returns the message with an entities array (start, end, value, confidence, entity).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"text": {
					Type:        "string",
					Description: "Raw text, split on whitespace when tokens are not given",
				},
				"tokens": {
					Type:        "array",
					Items:       tokenSchema,
					Description: "Pre-segmented tokens with character offsets",
				},
			},
		},
	}, s.handleExtract)

	s.server.AddTool(&mcp.Tool{
		Name:        toolLookup,
		Description: "Show every vocabulary group's fuzzy candidates for one piece of text, ignoring the confidence threshold. Useful for tuning min_confidence.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"text": {
					Type:        "string",
					Description: "Text to look up",
				},
				"entity": {
					Type:        "string",
					Description: "Only report groups with this entity label",
				},
			},
			Required: []string{"text"},
		},
	}, s.handleLookup)

	s.server.AddTool(&mcp.Tool{
		Name:        toolList,
		Description: "List the loaded vocabulary groups in match order with member counts, plus load statistics.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleListVocabularies)
}

// recoverFromPanic turns a handler panic into an error result
func (s *Server) recoverFromPanic(operation string, handler func() (*mcp.CallToolResult, error)) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.diagnosticLogger.Printf("PANIC RECOVERED in %s: %v", operation, r)
			s.diagnosticLogger.Printf("Stack trace: %s", debug.Stack())
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			s.diagnosticLogger.Printf("Memory stats - Alloc: %d KB, NumGC: %d", m.Alloc/1024, m.NumGC)
			result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()

	result, err = handler()
	if err != nil {
		s.diagnosticLogger.Errorf("%s: %v", operation, err)
		return createErrorResponse(operation, err)
	}
	return result, nil
}

// Start serves MCP over stdio until ctx is done or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	s.diagnosticLogger.Printf("Starting MCP server with stdio transport")
	lmdebug.LogMCP("serving on stdio\n")
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run serves MCP over the given transport
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// Close flushes the diagnostic log
func (s *Server) Close() error {
	s.diagnosticLogger.Printf("MCP server shutdown complete")
	return s.diagnosticLogger.Close()
}

// GetHandlerForTesting returns a tool handler by name
func (s *Server) GetHandlerForTesting(toolName string) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	switch toolName {
	case toolExtract:
		return s.handleExtract
	case toolLookup:
		return s.handleLookup
	case toolList:
		return s.handleListVocabularies
	default:
		return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return createErrorResponse("GetHandlerForTesting", fmt.Errorf("unknown tool: %s", toolName))
		}
	}
}
