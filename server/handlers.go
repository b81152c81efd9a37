// Copyright 2025 Kestrel Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kestrel-labs/kb/core"
	"github.com/kestrel-labs/kb/search"
	"github.com/kestrel-labs/kb/storage"
)

// documentResponse is the public view of a document. RawText stays
// server-side.
type documentResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Filename    string    `json:"filename,omitempty"`
	ContentType string    `json:"content_type"`
	Tags        []string  `json:"tags"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	ChunkCount  int       `json:"chunk_count"`
	TokenCount  int       `json:"token_count"`
	Progress    *float64  `json:"progress,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Server) toDocumentResponse(doc *core.Document) documentResponse {
	resp := documentResponse{
		ID:          doc.ID,
		Name:        doc.Name,
		Filename:    doc.Filename,
		ContentType: string(doc.ContentType),
		Tags:        doc.Tags,
		Status:      string(doc.Status),
		Error:       doc.Error,
		ChunkCount:  doc.ChunkCount,
		TokenCount:  doc.TokenCount,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	if doc.Status == core.StatusProcessing {
		if progress, ok := s.service.Progress(doc.ID); ok {
			resp.Progress = &progress
		}
	}
	return resp
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.repo.ListDocuments(r.Context())
	if err != nil {
		s.logger.Error("listing documents", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, s.toDocumentResponse(doc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDocumentID(w, r)
	if !ok {
		return
	}

	doc, err := s.repo.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("getting document", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to get document")
		return
	}
	writeJSON(w, http.StatusOK, s.toDocumentResponse(doc))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDocumentID(w, r)
	if !ok {
		return
	}

	s.service.CancelIngestion(id)
	if err := s.repo.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("deleting document", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateTagsRequest struct {
	Tags []string `json:"tags"`
}

func (s *Server) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDocumentID(w, r)
	if !ok {
		return
	}

	var req updateTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tags := core.CleanTags(req.Tags)
	doc, err := s.repo.UpdateDocument(r.Context(), id, storage.DocumentUpdate{Tags: &tags})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("updating tags", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to update tags")
		return
	}
	writeJSON(w, http.StatusOK, s.toDocumentResponse(doc))
}

type searchRequest struct {
	Query     string   `json:"query"`
	Tags      []string `json:"tags,omitempty"`
	TopK      int      `json:"top_k,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
}

type searchResultResponse struct {
	ChunkID      uuid.UUID `json:"chunk_id"`
	DocumentID   uuid.UUID `json:"document_id"`
	DocumentName string    `json:"document_name"`
	DocumentTags []string  `json:"document_tags"`
	Content      string    `json:"content"`
	HeadingPath  []string  `json:"heading_path,omitempty"`
	Similarity   float64   `json:"similarity"`
	TokenCount   int       `json:"token_count"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := s.searcher.Search(r.Context(), search.Query{
		Text:      req.Query,
		Tags:      req.Tags,
		TopK:      req.TopK,
		Threshold: req.Threshold,
	})
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			writeJSONError(w, http.StatusBadRequest, "query text is required")
			return
		}
		s.logger.Error("search failed", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "search failed")
		return
	}

	out := make([]searchResultResponse, 0, len(results))
	for _, res := range results {
		out = append(out, searchResultResponse{
			ChunkID:      res.ChunkID,
			DocumentID:   res.DocumentID,
			DocumentName: res.DocumentName,
			DocumentTags: res.DocumentTags,
			Content:      res.Content,
			HeadingPath:  res.HeadingPath,
			Similarity:   res.Similarity,
			TokenCount:   res.TokenCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func parseDocumentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid document id")
		return uuid.Nil, false
	}
	return id, true
}
