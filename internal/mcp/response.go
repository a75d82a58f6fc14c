package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// createJSONResponse creates a standardized JSON response for MCP tools
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse reports a tool failure inside the result with IsError
// set, so the calling model sees the error instead of a protocol failure.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}
	if help := getOperationHelp(operation); help != "" {
		errorData["help"] = help
	}

	response, marshalErr := createJSONResponse(errorData)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}

// getOperationHelp provides a usage example for each tool
func getOperationHelp(operation string) string {
	helpMap := map[string]string{
		toolExtract: `Use: {"text": "from Berlin to Bern"} or {"tokens": [{"text": "Berlin", "start": 5, "end": 11}]}`,
		toolLookup:  `Use: {"text": "Berln"} or {"text": "Berln", "entity": "CITY"}`,
		toolList:    `Use: {}`,
	}
	return helpMap[operation]
}
