package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/logger"
)

// IngestSummary counts the outcome of one ingestion run.
type IngestSummary struct {
	Documents int
	Chunks    int
	Failed    []string
}

// IngestService loads reviewer guidance documents into the vector store.
type IngestService struct {
	store    VectorStore
	embedder Embedder
	chunker  *TextChunker
	log      *zap.SugaredLogger
}

func NewIngestService(store VectorStore, embedder Embedder, chunker *TextChunker, log *zap.SugaredLogger) *IngestService {
	if chunker == nil {
		chunker = NewTextChunker(1000, 200)
	}
	return &IngestService{store: store, embedder: embedder, chunker: chunker, log: logger.OrNop(log)}
}

// IngestPaths ingests files and every .pdf/.docx/.txt/.md directly inside directories.
// A failing document is recorded and skipped.
func (s *IngestService) IngestPaths(ctx context.Context, docType string, paths ...string) (*IngestSummary, error) {
	if docType != DocTypeCandidateGuidelines && docType != DocTypeHRRubric {
		return nil, errors.Newf("unknown doc type %q", docType)
	}

	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}
	if err := s.store.InitCollection(ctx); err != nil {
		return nil, err
	}

	summary := &IngestSummary{}
	for _, path := range files {
		n, err := s.IngestFile(ctx, docType, path)
		if err != nil {
			s.log.Errorw("❌ Failed to ingest document", "path", path, "error", err)
			summary.Failed = append(summary.Failed, path)
			continue
		}
		summary.Documents++
		summary.Chunks += n
	}
	return summary, nil
}

// IngestFile replaces all chunks previously stored for path.
func (s *IngestService) IngestFile(ctx context.Context, docType, path string) (int, error) {
	s.log.Infow("📄 Processing document", "path", path, "doc_type", docType)

	text, err := ExtractFileText(path)
	if err != nil {
		return 0, err
	}
	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		return 0, errors.Newf("%s produced no chunks", path)
	}

	docID := fmt.Sprintf("%s/%s", docType, filepath.Base(path))
	if err := s.store.DeleteDocument(ctx, docID); err != nil {
		return 0, err
	}

	for i, chunk := range chunks {
		embedding, err := s.embedder.GenerateEmbedding(ctx, chunk)
		if err != nil {
			return i, errors.Wrapf(err, "chunk %d", i+1)
		}
		if err := s.store.UpsertChunk(ctx, docID, docType, chunk, embedding); err != nil {
			return i, errors.Wrapf(err, "chunk %d", i+1)
		}
		if (i+1)%5 == 0 || i == len(chunks)-1 {
			s.log.Infow("📊 Progress", "path", path, "stored", i+1, "total", len(chunks))
		}
	}

	s.log.Infow("✅ Document ingested", "path", path, "chunks", len(chunks))
	return len(chunks), nil
}

var ingestExtensions = map[string]bool{".pdf": true, ".docx": true, ".txt": true, ".md": true}

func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", p)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, errors.Wrapf(err, "read dir %s", p)
		}
		for _, e := range entries {
			if !e.IsDir() && ingestExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}
	return files, nil
}
