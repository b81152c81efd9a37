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
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/kestrel-labs/kb/core"
)

const (
	// defaultMaxChunkChars bounds a single chunk. Roughly 512 tokens at the
	// 4-chars-per-token estimate.
	defaultMaxChunkChars = 2048

	defaultChunkOverlap = 200
)

// Chunker splits extracted text into retrieval-sized chunks. Markdown is
// split along its heading structure so every chunk carries the heading path
// it appeared under; sections larger than the chunk budget are further
// split recursively. Unstructured text (PDF extractions) goes straight to
// the recursive splitter with an empty heading path.
type Chunker struct {
	maxChars int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithMaxChunkChars sets the maximum chunk size in characters.
func WithMaxChunkChars(n int) ChunkerOption {
	return func(c *Chunker) {
		c.maxChars = n
	}
}

// WithChunkOverlap sets the overlap between adjacent chunks of an
// oversized section.
func WithChunkOverlap(n int) ChunkerOption {
	return func(c *Chunker) {
		c.overlap = n
	}
}

// NewChunker creates a chunker with default sizing.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		maxChars: defaultMaxChunkChars,
		overlap:  defaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.maxChars),
		textsplitter.WithChunkOverlap(c.overlap),
	)
	return c
}

// Chunk splits text into chunks for the given document. Chunk indices are
// contiguous starting at zero; token counts use the standard estimate.
func (c *Chunker) Chunk(documentID uuid.UUID, contentType core.ContentType, text string) ([]*core.DocumentChunk, error) {
	var sections []section
	if contentType == core.ContentTypeMarkdown {
		sections = splitSections(text)
	} else {
		sections = []section{{content: text}}
	}

	var chunks []*core.DocumentChunk
	for _, sec := range sections {
		parts, err := c.splitSection(sec.content)
		if err != nil {
			return nil, fmt.Errorf("splitting section: %w", err)
		}
		for _, part := range parts {
			chunks = append(chunks, &core.DocumentChunk{
				ID:          uuid.New(),
				DocumentID:  documentID,
				Index:       len(chunks),
				Content:     part,
				HeadingPath: append([]string(nil), sec.headingPath...),
				TokenCount:  core.EstimateTokens(part),
			})
		}
	}

	if len(chunks) == 0 {
		return nil, ErrNoTextContent
	}
	return chunks, nil
}

func (c *Chunker) splitSection(content string) ([]string, error) {
	if len(content) <= c.maxChars {
		return []string{content}, nil
	}
	parts, err := c.splitter.SplitText(content)
	if err != nil {
		return nil, err
	}
	out := parts[:0]
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

type section struct {
	headingPath []string
	content     string
}

// splitSections walks the Markdown line by line, cutting a new section at
// every ATX heading and tracking the heading ancestry as a path. Headings
// inside fenced code blocks are ignored. Content before the first heading
// becomes a section with an empty path.
func splitSections(text string) []section {
	lines := strings.Split(text, "\n")

	var sections []section
	var stack []headingFrame
	var body []string
	inFence := false

	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		body = body[:0]
		if content == "" {
			return
		}
		path := make([]string, len(stack))
		for i, frame := range stack {
			path[i] = frame.title
		}
		sections = append(sections, section{headingPath: path, content: content})
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}

		level, title := parseHeading(trimmed)
		if inFence || level == 0 {
			body = append(body, line)
			continue
		}

		flush()
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, headingFrame{level: level, title: title})
		body = append(body, line)
	}
	flush()

	return sections
}

type headingFrame struct {
	level int
	title string
}

// parseHeading returns the ATX heading level and title, or level 0 when the
// line is not a heading.
func parseHeading(line string) (int, string) {
	if !strings.HasPrefix(line, "#") {
		return 0, ""
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > 6 {
		return 0, ""
	}
	if level == len(line) {
		return level, ""
	}
	if line[level] != ' ' && line[level] != '\t' {
		return 0, ""
	}
	title := strings.TrimSpace(line[level:])
	title = strings.TrimRight(title, "# ")
	return level, strings.TrimSpace(title)
}

// UniqueHeadingPaths collects the distinct heading paths across chunks,
// rendered as "A > B" strings in first-seen order. Used to give the tag
// model a structural outline of the document.
func UniqueHeadingPaths(chunks []*core.DocumentChunk) []string {
	seen := make(map[string]struct{})
	var paths []string
	for _, chunk := range chunks {
		if len(chunk.HeadingPath) == 0 {
			continue
		}
		rendered := strings.Join(chunk.HeadingPath, " > ")
		if _, ok := seen[rendered]; ok {
			continue
		}
		seen[rendered] = struct{}{}
		paths = append(paths, rendered)
	}
	return paths
}
