package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const ollamaSystemPrompt = "You are an expert at reading and extracting information from receipts and invoices. You must carefully read all text in images and extract accurate information."

// Ollama implements Model using a local Ollama server
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Model instance. The model must support images
// (llava, qwen2-vl, llama3.2-vision) for the vision stage to work.
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	// Deadlines come from the caller's context
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		client:  &http.Client{},
	}, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Vision sends an image with a prompt
func (o *Ollama) Vision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	finalImageData, _, err := prepareImageData(image, mimeType)
	if err != nil {
		return "", err
	}

	return o.chat(ctx, ollamaMessage{
		Role:    "user",
		Content: prompt,
		Images:  []string{base64.StdEncoding.EncodeToString(finalImageData)},
	})
}

// Complete sends a text-only prompt
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	return o.chat(ctx, ollamaMessage{Role: "user", Content: prompt})
}

func (o *Ollama) chat(ctx context.Context, msg ollamaMessage) (string, error) {
	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{Role: "system", Content: ollamaSystemPrompt},
			msg,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	text := strings.TrimSpace(chatResp.Message.Content)
	if text == "" {
		return "", fmt.Errorf("no response from ollama")
	}
	return text, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
