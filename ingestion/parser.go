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


package ingestion

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kestrel-labs/kb/core"
)

// ExtractText parses the raw file content into plain text according to the
// document's content type. Returns ErrNoTextContent when the file is empty
// or parsing yields only whitespace.
func ExtractText(contentType core.ContentType, data []byte) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", ErrNoTextContent
	}

	switch contentType {
	case core.ContentTypePDF:
		return extractPDFText(data)
	case core.ContentTypeMarkdown:
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", ErrNoTextContent
		}
		return text, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedContentType, contentType)
	}
}

func extractPDFText(data []byte) (text string, err error) {
	// The pdf package panics on some malformed files instead of returning
	// an error.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parsing PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Pages with broken content streams are skipped rather than
			// failing the whole document.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text = strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrNoTextContent
	}
	return text, nil
}
