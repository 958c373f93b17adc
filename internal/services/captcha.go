package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/config"
	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/pipeline"
)

const recaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// BotVerifier checks a client bot-check token before any paid call is made.
type BotVerifier interface {
	Verify(ctx context.Context, token string) error
}

type recaptchaResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

type recaptchaVerifier struct {
	secret   string
	minScore float64
	endpoint string
	client   *http.Client
	log      *zap.SugaredLogger
}

// NewBotVerifier returns a reCAPTCHA v3 verifier, or a verifier that accepts every
// request when no secret is configured.
func NewBotVerifier(cfg config.CaptchaConfig, log *zap.SugaredLogger) BotVerifier {
	if cfg.Secret == "" {
		logger.OrNop(log).Infow("⚠️ reCAPTCHA secret not set, bot verification disabled")
		return allowAll{}
	}
	return NewRecaptchaVerifier(cfg, recaptchaVerifyURL, &http.Client{Timeout: 10 * time.Second}, log)
}

func NewRecaptchaVerifier(cfg config.CaptchaConfig, endpoint string, client *http.Client, log *zap.SugaredLogger) BotVerifier {
	return &recaptchaVerifier{
		secret:   cfg.Secret,
		minScore: cfg.MinScore,
		endpoint: endpoint,
		client:   client,
		log:      logger.OrNop(log),
	}
}

func (v *recaptchaVerifier) Verify(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.Mark(errors.New("missing bot-check token"), pipeline.ErrSecurityCheck)
	}

	form := url.Values{"secret": {v.secret}, "response": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "failed to build verify request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "verify request failed"), pipeline.ErrSecurityCheck)
	}
	defer resp.Body.Close()

	var out recaptchaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return errors.Mark(errors.Wrap(err, "decode verify response"), pipeline.ErrSecurityCheck)
	}

	if !out.Success || out.Score < v.minScore {
		v.log.Warnw("🚫 Bot check rejected", "success", out.Success, "score", out.Score, "errors", out.ErrorCodes)
		return errors.Mark(errors.Newf("bot check rejected (score %.2f)", out.Score), pipeline.ErrSecurityCheck)
	}
	return nil
}

type allowAll struct{}

func (allowAll) Verify(context.Context, string) error { return nil }
