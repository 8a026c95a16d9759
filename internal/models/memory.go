// ABOUTME: MemoryRecord is a stored embedding + text snippet of a past exchange
// ABOUTME: Never mutated after creation, only superseded or expired
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MemoryRecord is one retrievable unit of long-term memory. TurnID is a
// back-reference for lookup only, not ownership.
type MemoryRecord struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Vector    []float64 `json:"vector"`
	TurnID    int64     `json:"turn_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MemorySearchResult pairs a record with its similarity to a query
type MemorySearchResult struct {
	Record     MemoryRecord `json:"record"`
	Similarity float64      `json:"similarity"`
}

// NewMemoryID generates a unique memory record identifier
func NewMemoryID() string {
	return fmt.Sprintf("mem_%s_%s", time.Now().UTC().Format("20060102_150405"), uuid.New().String()[:8])
}
