package http

import (
	"github.com/fyrsmithlabs/campusd/internal/index"
	"github.com/fyrsmithlabs/campusd/internal/retrieval"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string           `json:"status"`
	Index  *retrieval.Stats `json:"index,omitempty"`
}

// RetrieveRequest is the request body for POST /api/v1/retrieve.
type RetrieveRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k"`
}

// RetrieveResponse is the response body for POST /api/v1/retrieve.
type RetrieveResponse struct {
	Results []index.RetrievedChunk `json:"results"`
}
