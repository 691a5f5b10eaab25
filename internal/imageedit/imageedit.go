// Package imageedit sends a photo and an edit instruction to an external
// image generation service and hands the returned image back untouched.
package imageedit

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/logger"
	"shiftdraw/internal/models"
)

var (
	ErrMissingAPIKey  = errors.New("image edit API key is missing")
	ErrEmptyImage     = errors.New("image payload is empty")
	ErrEmptyPrompt    = errors.New("edit instruction is empty")
	ErrEditInProgress = errors.New("an image edit is already running")
	ErrNoImage        = errors.New("no image data found in response")
)

// Request is one edit: the source image and what to do with it.
type Request struct {
	Image    []byte
	MIMEType string
	Prompt   string
}

// Validate checks the request before it leaves the process.
func (r Request) Validate() error {
	if len(r.Image) == 0 {
		return ErrEmptyImage
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// Result is the image returned by the service.
type Result struct {
	Image    []byte
	MIMEType string
}

// Editor edits images through some external service.
type Editor interface {
	Edit(ctx context.Context, req Request) (*Result, error)
}

// Disabled is used when no API key is configured. Every call fails.
type Disabled struct{}

func (Disabled) Edit(context.Context, Request) (*Result, error) {
	return nil, &models.ExternalServiceError{Op: "edit image", Err: ErrMissingAPIKey}
}

// Guard lets at most one edit per key run at a time. A second request for
// the same key is rejected, not queued.
type Guard struct {
	editor Editor

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewGuard wraps editor.
func NewGuard(editor Editor) *Guard {
	return &Guard{editor: editor, inFlight: make(map[string]bool)}
}

// Edit validates req and forwards it unless an edit for key is running.
func (g *Guard) Edit(ctx context.Context, key string, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.inFlight[key] {
		g.mu.Unlock()
		return nil, ErrEditInProgress
	}
	g.inFlight[key] = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.inFlight, key)
		g.mu.Unlock()
	}()

	res, err := g.editor.Edit(ctx, req)
	if err != nil {
		logger.Errorf("image edit for %s failed: %v", key, err)
		var ext *models.ExternalServiceError
		if errors.As(err, &ext) {
			return nil, err
		}
		return nil, &models.ExternalServiceError{Op: "edit image", Err: err}
	}
	if res == nil || len(res.Image) == 0 {
		return nil, &models.ExternalServiceError{Op: "edit image", Err: ErrNoImage}
	}
	logger.Infof("image edit for %s returned %d bytes", key, len(res.Image))
	return res, nil
}
