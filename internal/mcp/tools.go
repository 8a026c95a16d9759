// ABOUTME: MCP tool definitions and registration for the memory server
// ABOUTME: Exposes long-term memory as store_memory and retrieve_memory over stdio
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ratatoskr-ai/ratatoskr/internal/memory"
)

// RegisterTools registers the memory tools with the MCP server
func RegisterTools(server *mcpserver.MCPServer, store *memory.Store, defaultTopK int) *Handlers {
	handlers := &Handlers{
		store:       store,
		defaultTopK: defaultTopK,
	}

	server.AddTool(mcp.Tool{
		Name:        "store_memory",
		Description: "Store a snippet of conversation or fact in Ratatoskr's long-term memory for later similarity retrieval.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Text to remember",
				},
			},
			Required: []string{"text"},
		},
	}, handlers.StoreMemory)

	server.AddTool(mcp.Tool{
		Name:        "retrieve_memory",
		Description: "Retrieve the most similar memories to a query from Ratatoskr's long-term memory, most similar first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query for memory retrieval",
				},
				"max_results": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results to return",
				},
			},
			Required: []string{"query"},
		},
	}, handlers.RetrieveMemory)

	return handlers
}
