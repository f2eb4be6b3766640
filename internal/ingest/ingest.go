// Package ingest loads knowledge-base files into the vector store.
package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"supportbot/internal/domain"
	"supportbot/internal/logger"
)

// Upserter is the write side of the vector store.
type Upserter interface {
	Upsert(ctx context.Context, id, text string, vector []float64, metadata map[string]any) error
}

// Overviewer condenses the ingested corpus for the operator.
type Overviewer interface {
	Overview(text string, maxSentences int) string
}

type Service struct {
	chunker      *Chunker
	embedder     domain.Embedder
	store        Upserter
	overviewer   Overviewer
	overviewSize int
	log          logger.Logger
}

func NewService(chunker *Chunker, embedder domain.Embedder, store Upserter, overviewer Overviewer, overviewSize int, log logger.Logger) *Service {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Service{
		chunker:      chunker,
		embedder:     embedder,
		store:        store,
		overviewer:   overviewer,
		overviewSize: overviewSize,
		log:          log.With("component", "ingest"),
	}
}

// Report summarises one ingestion run.
type Report struct {
	Files    int
	Chunks   int
	Overview string
}

var supportedExt = map[string]bool{".txt": true, ".md": true}

// IngestFiles expands globs, chunks every .txt/.md file, embeds the chunks
// and upserts them. Chunk ids are stable per file path and index, so
// re-ingesting a file replaces its chunks.
func (s *Service) IngestFiles(ctx context.Context, paths []string) (Report, error) {
	files, err := expand(paths)
	if err != nil {
		return Report{}, err
	}
	if len(files) == 0 {
		return Report{}, fmt.Errorf("ingest: no .txt or .md documents found")
	}
	var (
		report Report
		corpus strings.Builder
	)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return report, fmt.Errorf("ingest: read %s: %w", path, err)
		}
		n, err := s.ingestText(ctx, path, string(data))
		if err != nil {
			return report, err
		}
		s.log.Info("Ingested document", "path", path, "chunks", n)
		report.Files++
		report.Chunks += n
		corpus.WriteString(string(data))
		corpus.WriteString("\n")
	}
	if s.overviewer != nil {
		report.Overview = s.overviewer.Overview(corpus.String(), s.overviewSize)
	}
	return report, nil
}

func (s *Service) ingestText(ctx context.Context, source, text string) (int, error) {
	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("ingest: embed %s: %w", source, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("ingest: embed %s: got %d vectors for %d chunks", source, len(vectors), len(chunks))
	}
	docID := hashString(source)
	for i, ch := range chunks {
		meta := map[string]any{
			"source":       filepath.Base(source),
			"chunk_index":  ch.Index,
			"total_chunks": len(chunks),
		}
		id := fmt.Sprintf("%s:%d", docID, ch.Index)
		if err := s.store.Upsert(ctx, id, ch.Text, vectors[i], meta); err != nil {
			return i, fmt.Errorf("ingest: upsert %s chunk %d: %w", source, ch.Index, err)
		}
	}
	return len(chunks), nil
}

func expand(paths []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("ingest: bad pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("ingest: %w", err)
			}
			if info.IsDir() {
				entries, err := os.ReadDir(m)
				if err != nil {
					return nil, fmt.Errorf("ingest: read dir %s: %w", m, err)
				}
				for _, e := range entries {
					if !e.IsDir() {
						add(filepath.Join(m, e.Name()), seen, &out)
					}
				}
				continue
			}
			add(m, seen, &out)
		}
	}
	return out, nil
}

func add(path string, seen map[string]bool, out *[]string) {
	if !supportedExt[strings.ToLower(filepath.Ext(path))] || seen[path] {
		return
	}
	seen[path] = true
	*out = append(*out, path)
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
