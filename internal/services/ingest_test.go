package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rubric.md", "Score impact.\n\nScore clarity.")
	writeFile(t, dir, "notes.txt", "Prefer Go experience.")
	writeFile(t, dir, "image.png", "ignored")
	writeFile(t, dir, "empty.txt", "   ")

	store := &memoryVectorStore{}
	svc := NewIngestService(store, &fakeEmbedder{}, NewTextChunker(15, 0), nil)

	summary, err := svc.IngestPaths(context.Background(), DocTypeHRRubric, dir)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Documents)
	assert.Equal(t, 3, summary.Chunks)
	assert.Equal(t, []string{filepath.Join(dir, "empty.txt")}, summary.Failed)
	assert.Equal(t, 1, store.inits)
	assert.ElementsMatch(t, []string{"hr_rubric/notes.txt", "hr_rubric/rubric.md"}, store.deleted)
	for _, c := range store.chunks {
		assert.Equal(t, DocTypeHRRubric, c.docType)
	}
}

func TestIngestFile_ReplacesPreviousChunks(t *testing.T) {
	path := writeFile(t, t.TempDir(), "guide.txt", "Keep it short.")
	store := &memoryVectorStore{}
	svc := NewIngestService(store, &fakeEmbedder{}, nil, nil)

	_, err := svc.IngestFile(context.Background(), DocTypeCandidateGuidelines, path)
	require.NoError(t, err)
	n, err := svc.IngestFile(context.Background(), DocTypeCandidateGuidelines, path)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Len(t, store.chunks, 1)
	assert.Equal(t, "candidate_guidelines/guide.txt", store.chunks[0].docID)
}

func TestIngestFile_EmbeddingFailure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "guide.txt", "Keep it short.")
	svc := NewIngestService(&memoryVectorStore{}, &fakeEmbedder{err: errors.New("quota")}, nil, nil)

	_, err := svc.IngestFile(context.Background(), DocTypeCandidateGuidelines, path)

	assert.ErrorContains(t, err, "chunk 1")
}

func TestIngestPaths_RejectsUnknownDocTypeAndMissingPath(t *testing.T) {
	svc := NewIngestService(&memoryVectorStore{}, &fakeEmbedder{}, nil, nil)

	_, err := svc.IngestPaths(context.Background(), "recipes", t.TempDir())
	assert.Error(t, err)

	_, err = svc.IngestPaths(context.Background(), DocTypeHRRubric, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
