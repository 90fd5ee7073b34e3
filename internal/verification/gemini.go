package verification

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/richxcame/civic-reports/pkg/httpclient"
)

var ErrEmptyReply = errors.New("classifier returned no candidates")

// GeminiClassifier calls the Gemini generateContent REST endpoint.
type GeminiClassifier struct {
	client *httpclient.Client
	apiKey string
	model  string
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"response_mime_type"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// NewGeminiClassifier creates a classifier for model at baseURL.
// The HTTP timeout is a backstop; callers bound each call with their own context.
func NewGeminiClassifier(baseURL, apiKey, model string, timeout time.Duration) *GeminiClassifier {
	return &GeminiClassifier{
		client: httpclient.NewClient(baseURL, timeout),
		apiKey: apiKey,
		model:  model,
	}
}

// Classify implements Classifier. A single attempt is made.
func (g *GeminiClassifier) Classify(ctx context.Context, image []byte, mimeType, category, instruction string) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: instruction},
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		GenerationConfig: geminiGenerationConfig{ResponseMimeType: "application/json"},
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent", url.PathEscape(g.model))
	body, err := g.client.Post(ctx, path, req, map[string]string{"x-goog-api-key": g.apiKey})
	if err != nil {
		return "", fmt.Errorf("gemini request for %s failed: %w", category, err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyReply
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}
