package services

import (
	"context"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"alfredoptarigan/cv-copilot/internal/config"
	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/pipeline"
)

// maxEmbedInput keeps embedding requests under the model's input limit (~10k tokens).
const maxEmbedInput = 40000

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// GeminiService is the model endpoint adapter: structured generation for pipeline
// stages, embeddings for RAG and image generation for headshots.
type GeminiService interface {
	pipeline.Generator
	Embedder
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type geminiService struct {
	client     *genai.Client
	modelName  string
	embedModel string
	imageModel string
	limiter    *rate.Limiter
	log        *zap.SugaredLogger
}

func NewGeminiService(ctx context.Context, cfg config.GeminiConfig, log *zap.SugaredLogger) (GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini client")
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &geminiService{
		client:     client,
		modelName:  cfg.Model,
		embedModel: cfg.EmbedModel,
		imageModel: cfg.ImageModel,
		limiter:    rate.NewLimiter(limit, 1),
		log:        logger.OrNop(log),
	}, nil
}

// Generate implements pipeline.Generator.
func (g *geminiService) Generate(ctx context.Context, req pipeline.Request) (*pipeline.Response, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if len(p.Data) > 0 {
			parts = append(parts, genai.NewPartFromBytes(p.Data, p.MIMEType))
			continue
		}
		parts = append(parts, genai.NewPartFromText(p.Text))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	temperature := req.Config.Temperature
	topP := req.Config.TopP
	genConfig := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  req.Config.MaxOutputTokens,
		ResponseMIMEType: req.ResponseMIMEType,
		ResponseSchema:   req.ResponseSchema,
	}
	if topP > 0 {
		genConfig.TopP = &topP
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, genConfig)
	if err != nil {
		g.log.Errorw("❌ Gemini API error", "model", g.modelName, "error", err)
		return nil, errors.Wrap(err, "failed to generate content")
	}
	if resp == nil {
		return nil, errors.New("no response generated (nil response)")
	}

	text := resp.Text()
	g.log.Debugw("📊 Gemini response received", "candidates", len(resp.Candidates), "length", len(text))
	if text == "" {
		g.log.Warnw("⚠️ Gemini returned no text content", "candidates", len(resp.Candidates))
	}

	return &pipeline.Response{Text: text, Candidates: len(resp.Candidates)}, nil
}

// GenerateEmbedding implements Embedder.
func (g *geminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	text = truncateUTF8(text, maxEmbedInput)
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate embedding")
	}
	if result == nil || len(result.Embeddings) == 0 {
		return nil, errors.New("empty embedding result")
	}

	return result.Embeddings[0].Values, nil
}

// GenerateImage renders a single PNG from prompt.
func (g *geminiService) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate image")
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, errors.New("image model returned no image")
	}

	return resp.GeneratedImages[0].Image.ImageBytes, nil
}
