package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Recognizer interface using Google Gemini
type Gemini struct {
	remote
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Recognizer instance
func NewGemini(apiKey string, modelName string, opts RemoteOptions) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	return &Gemini{
		remote: newRemote(opts),
		client: client,
		model:  model,
	}, nil
}

// ScanFrame sends the card region of a sharp frame to Gemini
func (g *Gemini) ScanFrame(frame Frame) (DetectionInfo, error) {
	info, pngData, err := g.prepare(frame)
	if err != nil || pngData == nil {
		return info, err
	}

	ctx, cancel, err := g.wait()
	if err != nil {
		return info, err
	}
	defer cancel()

	// genai.ImageData expects just the format suffix, not the full MIME type
	parts := []genai.Part{
		genai.ImageData("png", pngData),
		genai.Text(cardScanPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return info, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return info, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	parsed, err := parseDetectionJSON(responseText.String())
	if err != nil {
		return info, fmt.Errorf("parsing detection: %w", err)
	}
	parsed.apply(&info, frame.ScanExpiry)

	return info, nil
}

// Supported is always true; the model runs remotely
func (g *Gemini) Supported() bool {
	return true
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
