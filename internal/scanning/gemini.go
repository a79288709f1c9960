package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// geminiMaxOutputTokens keeps long receipt lists from being truncated
const geminiMaxOutputTokens = 8192

// Gemini implements Model using Google Gemini. Calls try the primary model first,
// then the fallback model when the primary fails or answers with nothing.
type Gemini struct {
	client *genai.Client
	models []*genai.GenerativeModel
	names  []string
}

// NewGemini creates a new Gemini Model instance
func NewGemini(apiKey, modelName, fallbackModel string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash-lite"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	g := &Gemini{client: client}
	for _, name := range []string{modelName, fallbackModel} {
		if name == "" || (len(g.names) > 0 && g.names[0] == name) {
			continue
		}
		model := client.GenerativeModel(name)
		model.SetMaxOutputTokens(geminiMaxOutputTokens)
		g.models = append(g.models, model)
		g.names = append(g.names, name)
	}
	return g, nil
}

// Vision sends an image with a prompt
func (g *Gemini) Vision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	// Prepare image data (convert to PNG if needed)
	finalImageData, _, err := prepareImageData(image, mimeType)
	if err != nil {
		return "", err
	}

	// genai.ImageData expects just the format suffix (e.g., "png"), not the full MIME type
	return g.generate(ctx,
		genai.Text(prompt),
		genai.ImageData("png", finalImageData),
	)
}

// Complete sends a text-only prompt
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, genai.Text(prompt))
}

func (g *Gemini) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	var errs []error
	for i, model := range g.models {
		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			slog.Warn("Gemini request failed", "model", g.names[i], "error", err)
			errs = append(errs, fmt.Errorf("%s: generating content: %w", g.names[i], err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		text := responseText(resp)
		if text == "" {
			errs = append(errs, fmt.Errorf("%s: no response from gemini", g.names[i]))
			continue
		}
		slog.Debug("Gemini response", "model", g.names[i], "chars", len(text))
		return text, nil
	}
	return "", errors.Join(errs...)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}
	return strings.TrimSpace(responseText.String())
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
