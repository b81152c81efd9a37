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
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kestrel-labs/kb/core"
)

// resolveContentType maps the declared MIME type and filename to a
// supported content type. Markdown arrives under several MIME names, and
// browsers often send application/octet-stream or nothing at all, so the
// file extension is the fallback.
func resolveContentType(declared, filename string) (core.ContentType, bool) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}

	switch declared {
	case "application/pdf":
		return core.ContentTypePDF, true
	case "text/markdown", "text/x-markdown", "text/plain":
		return core.ContentTypeMarkdown, true
	case "", "application/octet-stream":
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".md", ".markdown", ".mdx":
			return core.ContentTypeMarkdown, true
		case ".pdf":
			return core.ContentTypePDF, true
		}
	}
	return "", false
}

// handleUploadDocument accepts a multipart upload, creates the document in
// PENDING state and queues ingestion. Responds 202 before any processing
// happens.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	contentType, ok := resolveContentType(header.Header.Get("Content-Type"), header.Filename)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "reading upload failed")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = header.Filename
	}
	var tags []string
	for _, raw := range r.Form["tags"] {
		for _, tag := range strings.Split(raw, ",") {
			tags = append(tags, tag)
		}
	}

	doc, err := s.repo.CreateDocument(r.Context(), &core.Document{
		Name:        name,
		Filename:    header.Filename,
		ContentType: contentType,
		Tags:        core.CleanTags(tags),
		Status:      core.StatusPending,
	})
	if err != nil {
		s.logger.Error("creating document", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to create document")
		return
	}

	if err := s.stageUpload(doc.ID, header.Filename, data); err != nil {
		s.logger.Warn("staging upload file",
			slog.String("document_id", doc.ID.String()),
			slog.String("error", err.Error()))
	}

	if err := s.service.QueueIngestion(doc.ID, data); err != nil {
		s.logger.Error("queueing ingestion", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusServiceUnavailable, "ingestion unavailable")
		return
	}

	s.logger.Info("document uploaded",
		slog.String("document_id", doc.ID.String()),
		slog.String("name", doc.Name),
		slog.Int("bytes", len(data)))
	writeJSON(w, http.StatusAccepted, s.toDocumentResponse(doc))
}

// stageUpload keeps a copy of the original file on disk. Ingestion works
// from the in-memory bytes; the staged copy exists for re-ingestion and
// debugging, so failure to write it is not fatal.
func (s *Server) stageUpload(id uuid.UUID, filename string, data []byte) error {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return err
	}
	staged := filepath.Join(s.uploadDir, id.String()+filepath.Ext(filename))
	return os.WriteFile(staged, data, 0o644)
}
