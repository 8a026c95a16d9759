// ABOUTME: MCP tool handler implementations for the memory server
// ABOUTME: Thin wrappers translating tool calls into memory store operations
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ratatoskr-ai/ratatoskr/internal/memory"
)

// Handlers contains the handler functions for the memory tools
type Handlers struct {
	store       *memory.Store
	defaultTopK int
}

// StoreMemory handles the store_memory tool
func (h *Handlers) StoreMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text argument is required and must be a string"), nil
	}

	record, err := h.store.Upsert(ctx, text, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store memory: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Stored memory %s", record.ID)), nil
}

// RetrieveMemory handles the retrieve_memory tool
func (h *Handlers) RetrieveMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	maxResults := request.GetInt("max_results", h.defaultTopK)
	if maxResults <= 0 {
		maxResults = h.defaultTopK
	}

	results, err := h.store.Query(ctx, query, maxResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to retrieve memories: %v", err)), nil
	}

	type memoryResult struct {
		ID         string  `json:"id"`
		Text       string  `json:"text"`
		Similarity float64 `json:"similarity"`
		CreatedAt  string  `json:"created_at"`
	}

	out := make([]memoryResult, 0, len(results))
	for _, r := range results {
		out = append(out, memoryResult{
			ID:         r.Record.ID,
			Text:       r.Record.Text,
			Similarity: r.Similarity,
			CreatedAt:  r.Record.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode results: %v", err)), nil
	}

	return mcp.NewToolResultText(string(payload)), nil
}
