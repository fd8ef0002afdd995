// Package gemini implements the AI collaborator over the Gemini
// generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/surimil/mediabot/internal/application/dialog"
	"github.com/surimil/mediabot/internal/domain/user"
	"github.com/surimil/mediabot/pkg/retry"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// persona is the fixed system instruction for every conversation.
const persona = "You are SuriMIL, a friendly and smart media literacy expert. " +
	"Answer the user's question briefly, clearly and to the point. " +
	"Do not use markdown formatting. Answer in language: %s."

// Config holds the Gemini API settings.
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	RequestTimeout time.Duration
}

// Client calls the Gemini API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a Gemini API client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}
}

func languageName(lang user.Language) string {
	if lang == user.LangRU {
		return "Russian"
	}
	return "English"
}

type part struct {
	Text string `json:"text"`
}

type turn struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *turn  `json:"system_instruction,omitempty"`
	Contents          []turn `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Continue sends the accumulated history plus one new user turn and
// returns the model's reply.
func (c *Client) Continue(ctx context.Context, history []dialog.ChatTurn, question string, lang user.Language) (string, error) {
	started := time.Now()

	contents := make([]turn, 0, len(history)+1)
	for _, t := range history {
		contents = append(contents, turn{Role: t.Role, Parts: []part{{Text: t.Text}}})
	}
	contents = append(contents, turn{Role: "user", Parts: []part{{Text: question}}})

	reqBody := generateRequest{
		SystemInstruction: &turn{Parts: []part{{Text: fmt.Sprintf(persona, languageName(lang))}}},
		Contents:          contents,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var body []byte
	err = retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("gemini: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.Retryable(fmt.Errorf("gemini: request failed: %w", err))
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.Retryable(fmt.Errorf("gemini: read response: %w", err))
		}

		if resp.StatusCode != http.StatusOK {
			err = fmt.Errorf("gemini: API request failed with status %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return retry.Retryable(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		c.logger.Error("gemini request failed",
			"model", c.cfg.Model,
			"duration", time.Since(started),
			"error", err,
		)
		return "", err
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("gemini: parse response: %w", err)
	}
	if genResp.Error != nil {
		return "", fmt.Errorf("gemini: API error %d: %s", genResp.Error.Code, genResp.Error.Message)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}

	reply := genResp.Candidates[0].Content.Parts[0].Text
	c.logger.Debug("gemini reply received",
		"model", c.cfg.Model,
		"duration", time.Since(started),
		"reply_len", len(reply),
	)
	return reply, nil
}
