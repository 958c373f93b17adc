package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/config"
	"alfredoptarigan/cv-copilot/internal/logger"
)

// Reference document types stored in the guidance collection.
const (
	DocTypeCandidateGuidelines = "candidate_guidelines"
	DocTypeHRRubric            = "hr_rubric"
)

// embeddingSize matches text-embedding-004.
const embeddingSize = 768

type VectorStore interface {
	InitCollection(ctx context.Context) error
	UpsertChunk(ctx context.Context, docID, docType, text string, embedding []float32) error
	SearchSimilar(ctx context.Context, queryEmbedding []float32, docType string, limit int) ([]SearchResult, error)
	DeleteDocument(ctx context.Context, docID string) error
}

type SearchResult struct {
	ID      string
	Score   float32
	Text    string
	DocType string
}

type qdrantStore struct {
	client         *qdrant.Client
	collectionName string
	log            *zap.SugaredLogger
}

// NewQdrantStore dials the gRPC endpoint derived from cfg.URL (port 6334 unless given).
func NewQdrantStore(cfg config.QdrantConfig, log *zap.SugaredLogger) (VectorStore, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid qdrant url")
	}

	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   parsed.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create qdrant client")
	}

	return &qdrantStore{client: client, collectionName: cfg.Collection, log: logger.OrNop(log)}, nil
}

func (q *qdrantStore) InitCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return errors.Wrap(err, "failed to check collection")
	}
	if exists {
		q.log.Infow("✅ Collection already exists", "collection", q.collectionName)
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     embeddingSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create collection")
	}

	q.log.Infow("✅ Qdrant collection created", "collection", q.collectionName)
	return nil
}

func (q *qdrantStore) UpsertChunk(ctx context.Context, docID, docType, text string, embedding []float32) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(uuid.NewString()),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]any{
			"doc_id":   docID,
			"doc_type": docType,
			"text":     text,
		}),
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return errors.Wrap(err, "failed to upsert point")
	}
	return nil
}

func (q *qdrantStore) SearchSimilar(ctx context.Context, queryEmbedding []float32, docType string, limit int) ([]SearchResult, error) {
	var filter *qdrant.Filter
	if docType != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("doc_type", docType)},
		}
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search")
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		results = append(results, SearchResult{
			ID:      payloadString(point.Payload, "doc_id"),
			Score:   point.Score,
			Text:    payloadString(point.Payload, "text"),
			DocType: payloadString(point.Payload, "doc_type"),
		})
	}
	return results, nil
}

func (q *qdrantStore) DeleteDocument(ctx context.Context, docID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{qdrant.NewMatch("doc_id", docID)},
				},
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete document")
	}
	return nil
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
			return s.StringValue
		}
	}
	return ""
}

// KnowledgeBase retrieves reviewer guidance for a cross-analysis prompt.
type KnowledgeBase interface {
	Guidance(ctx context.Context, query, docType string) (string, error)
}

type knowledgeBase struct {
	store    VectorStore
	embedder Embedder
	limit    int
}

func NewKnowledgeBase(store VectorStore, embedder Embedder) KnowledgeBase {
	return &knowledgeBase{store: store, embedder: embedder, limit: 3}
}

// Guidance returns the closest chunks of docType formatted for a prompt, or "" when
// nothing matches.
func (k *knowledgeBase) Guidance(ctx context.Context, query, docType string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil
	}

	embedding, err := k.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate query embedding")
	}

	results, err := k.store.SearchSimilar(ctx, embedding, docType, k.limit)
	if err != nil {
		return "", err
	}
	return FormatGuidance(results), nil
}

func FormatGuidance(results []SearchResult) string {
	var parts []string
	for i, result := range results {
		text := strings.TrimSpace(result.Text)
		if text == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Guidance %d (Score: %.2f) ---\n%s", i+1, result.Score, text))
	}
	return strings.Join(parts, "\n\n")
}
