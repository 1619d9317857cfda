package suggest

import (
	"bytes"
	"caption-studio/config"
	"caption-studio/handlers/api/scenes"
	"caption-studio/middleware"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const prompt = "Write one short, catchy caption (at most eight words) for this photo. Reply with the caption only."

var ErrNotConfigured = errors.New("OpenAI API key is not configured on the server")

type LiteralType string

const (
	LiteralTypeText     LiteralType = "text"
	LiteralTypeImageURL LiteralType = "image_url"
)

type (
	TextContentPart struct {
		Type LiteralType `json:"type"`
		Text string      `json:"text"`
	}

	ImageURL struct {
		URL    string `json:"url"`
		Detail string `json:"detail,omitempty"`
	}

	ImageContentPart struct {
		Type     LiteralType `json:"type"`
		ImageURL ImageURL    `json:"image_url"`
	}

	ChatMessage struct {
		Role    string `json:"role"`
		Content any    `json:"content"` // string or a slice of content parts
	}

	ChatCompletionRequest struct {
		Model     string        `json:"model"`
		Messages  []ChatMessage `json:"messages"`
		MaxTokens int           `json:"max_tokens,omitempty"`
	}

	ChatCompletionResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	SuggestResponse struct {
		Caption string `json:"caption"`
		Index   *int   `json:"index,omitempty"`
	}
)

// Captioner produces a caption for the image at imageURL.
type Captioner interface {
	Caption(ctx context.Context, imageURL string) (string, error)
}

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(cfg config.OpenAIConfig) *Client {
	if cfg.APIKey == "" {
		logrus.Warn("OPENAI_API_KEY is not set. Caption suggestions will not work.")
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *Client) Caption(ctx context.Context, imageURL string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(ChatCompletionRequest{
		Model: c.model,
		Messages: []ChatMessage{{
			Role: "user",
			Content: []any{
				TextContentPart{Type: LiteralTypeText, Text: prompt},
				ImageContentPart{Type: LiteralTypeImageURL, ImageURL: ImageURL{URL: imageURL, Detail: "low"}},
			},
		}},
		MaxTokens: 60,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call completion api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("completion api returned %d: %s", resp.StatusCode, msg)
	}

	var out ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion api returned no choices")
	}
	return cleanCaption(out.Choices[0].Message.Content), nil
}

// cleanCaption trims whitespace and surrounding quotes the model tends to add.
func cleanCaption(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"“”'")
	return strings.TrimSpace(s)
}

// HandleSuggest asks the captioner about the scene's background. With
// ?apply=true the caption is also added to the scene as a text layer.
func HandleSuggest(reg scenes.Registry, captioner Captioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		editor, ok := scenes.EditorFor(w, r, reg)
		if !ok {
			return
		}

		source, ok := editor.BackgroundSource()
		if !ok {
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, map[string]string{"error": "Scene has no background image"})
			return
		}

		log := logrus.WithFields(logrus.Fields{"scene_id": editor.ID(), "userID": claims.Subject})

		caption, err := captioner.Caption(r.Context(), source)
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": err.Error()})
				return
			}
			log.WithError(err).Error("Caption suggestion failed")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Failed to communicate with OpenAI API"})
			return
		}

		resp := SuggestResponse{Caption: caption}
		if apply, _ := strconv.ParseBool(r.URL.Query().Get("apply")); apply && caption != "" {
			index, err := editor.AddText(caption)
			if err != nil {
				render.Status(r, scenes.ErrorStatus(err))
				render.JSON(w, r, map[string]string{"error": err.Error()})
				return
			}
			resp.Index = &index
		}

		log.WithField("caption", caption).Info("Caption suggested")
		render.JSON(w, r, resp)
	}
}
