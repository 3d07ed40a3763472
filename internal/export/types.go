// Package export renders idea records into paginated PDF artifacts and keeps
// them cached next to the record they were rendered from.
package export

import (
	"context"
	"errors"

	"ideajournal/internal/models"
)

const (
	// ArtifactName is the rendered document inside an idea folder.
	ArtifactName = "idea.pdf"
	// FingerprintName holds the fingerprint of the record ArtifactName was
	// rendered from.
	FingerprintName = ArtifactName + ".sum"
	// MimeType is the content type of every artifact.
	MimeType = "application/pdf"
)

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnknownEngine is returned by EngineByName for an unsupported engine.
	ErrUnknownEngine = errors.New("export unknown engine")
)

// Engine turns an idea into PDF bytes.
type Engine interface {
	Name() string
	Render(ctx context.Context, idea models.Idea) ([]byte, error)
}

// Mirror receives a copy of every artifact written. Mirror failures never
// fail a render.
type Mirror interface {
	Put(ctx context.Context, folder string, data []byte) error
	Remove(ctx context.Context, folder string) error
}

// EngineByName resolves the configured engine.
func EngineByName(name string) (Engine, error) {
	switch name {
	case "", "fpdf":
		return NewPDFEngine(), nil
	case "chrome":
		return NewChromeEngine(), nil
	default:
		return nil, ErrUnknownEngine
	}
}
