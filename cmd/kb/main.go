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


// Command kb runs the knowledge base: an HTTP server for uploads and
// search, plus one-shot ingest and query commands for scripting.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/kestrel-labs/kb"
	"github.com/kestrel-labs/kb/config"
	"github.com/kestrel-labs/kb/core"
	"github.com/kestrel-labs/kb/search"
	"github.com/kestrel-labs/kb/server"
	"github.com/kestrel-labs/kb/storage/postgres"
)

func main() {
	app := &cli.App{
		Name:  "kb",
		Usage: "document knowledge base with semantic search",
		Commands: []*cli.Command{
			serveCommand(),
			ingestCommand(),
			searchCommand(),
			initCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfigAndLogger() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP server",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}

			ctx := c.Context
			base, err := kb.Open(ctx, cfg, kb.WithLogger(logger))
			if err != nil {
				return err
			}

			srv := server.New(base.Repository(), base.IngestionService(), base.Searcher(),
				server.WithLogger(logger),
				server.WithUploadDir(cfg.UploadDir))

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe(cfg.ServerPort)
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case sig := <-stop:
				logger.Info("shutting down", slog.String("signal", sig.String()))
			}

			closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return base.Close(closeCtx)
		},
	}
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "ingest a file and wait for it to become searchable",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "document name (defaults to the filename)"},
			&cli.StringSliceFlag{Name: "tag", Usage: "tag to attach (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one file argument")
			}
			path := c.Args().First()

			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			contentType, err := contentTypeForFile(path)
			if err != nil {
				return err
			}

			ctx := c.Context
			base, err := kb.Open(ctx, cfg, kb.WithLogger(logger))
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				_ = base.Close(closeCtx)
			}()

			name := c.String("name")
			if name == "" {
				name = filepath.Base(path)
			}
			doc, err := base.CreateDocument(ctx, &core.Document{
				Name:        name,
				Filename:    filepath.Base(path),
				ContentType: contentType,
				Tags:        core.CleanTags(c.StringSlice("tag")),
			})
			if err != nil {
				return err
			}

			if err := base.QueueIngestion(doc.ID, data); err != nil {
				return err
			}

			fmt.Printf("Ingesting %s (%s)...\n", doc.Name, doc.ID)
			return waitForDocument(ctx, base, doc.ID)
		},
	}
}

// waitForDocument polls until the document reaches a terminal state.
func waitForDocument(ctx context.Context, base *kb.KnowledgeBase, id uuid.UUID) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		doc, err := base.Repository().GetDocument(ctx, id)
		if err != nil {
			return err
		}
		switch doc.Status {
		case core.StatusReady:
			fmt.Printf("Ready: %d chunks, %d tokens, tags: %s\n",
				doc.ChunkCount, doc.TokenCount, strings.Join(doc.Tags, ", "))
			return nil
		case core.StatusFailed:
			return fmt.Errorf("ingestion failed: %s", doc.Error)
		default:
			if progress, ok := base.IngestionService().Progress(id); ok {
				fmt.Printf("  %3.0f%%\r", progress*100)
			}
		}
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "run a semantic query",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "tag", Usage: "restrict to documents with this tag (repeatable)"},
			&cli.IntFlag{Name: "top-k", Usage: "maximum number of results"},
			&cli.Float64Flag{Name: "threshold", Usage: "minimum cosine similarity"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("expected a query argument")
			}
			queryText := strings.Join(c.Args().Slice(), " ")

			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}

			ctx := c.Context
			base, err := kb.Open(ctx, cfg, kb.WithLogger(logger))
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = base.Close(closeCtx)
			}()

			results, err := base.Search(ctx, search.Query{
				Text:      queryText,
				Tags:      c.StringSlice("tag"),
				TopK:      c.Int("top-k"),
				Threshold: c.Float64("threshold"),
			})
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, res := range results {
				fmt.Printf("%d. %s (%.3f)\n", i+1, res.DocumentName, res.Similarity)
				if len(res.HeadingPath) > 0 {
					fmt.Printf("   %s\n", strings.Join(res.HeadingPath, " > "))
				}
				fmt.Printf("   %s\n\n", excerpt(res.Content, 200))
			}
			return nil
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "create the database schema and exit",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}

			backend, err := postgres.OpenBackend(c.Context, cfg.DatabaseURL,
				postgres.WithLogger(logger))
			if err != nil {
				return err
			}
			defer backend.Close()

			fmt.Println("Database schema ready.")
			return nil
		},
	}
}

func contentTypeForFile(path string) (core.ContentType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return core.ContentTypePDF, nil
	case ".md", ".markdown", ".mdx":
		return core.ContentTypeMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedContentType, path)
	}
}

func excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
