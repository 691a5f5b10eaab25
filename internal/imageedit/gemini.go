package imageedit

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
	"shiftdraw/internal/models"
)

// DefaultModel is the Gemini model used for image edits.
const DefaultModel = "gemini-2.5-flash-image"

// GeminiEditor edits images with Google's Gemini API.
type GeminiEditor struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiEditor creates an editor backed by the Gemini API.
func NewGeminiEditor(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiEditor, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiEditor{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Edit sends the image and the instruction as one user turn and returns the
// first inline image of the answer.
func (e *GeminiEditor) Edit(ctx context.Context, req Request) (*Result, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Image, mimeType),
			genai.NewPartFromText(req.Prompt),
		}, genai.RoleUser),
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, &models.ExternalServiceError{Op: "gemini generate content", Err: err}
	}
	return firstImage(resp)
}

// Name returns the editor name.
func (e *GeminiEditor) Name() string {
	return fmt.Sprintf("genai:%s", e.model)
}

func firstImage(resp *genai.GenerateContentResponse) (*Result, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &models.ExternalServiceError{Op: "gemini generate content", Err: ErrNoImage}
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return &Result{Image: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}, nil
		}
	}
	return nil, &models.ExternalServiceError{Op: "gemini generate content", Err: ErrNoImage}
}
