package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"ideajournal/internal/logging"
	"ideajournal/internal/models"
	"ideajournal/internal/util"
)

// Renderer writes artifacts into idea folders and serves them back,
// re-rendering whenever the cached artifact no longer matches the record.
type Renderer struct {
	engine Engine
	mirror Mirror
	log    *zap.Logger
}

// NewRenderer creates a renderer. mirror may be nil.
func NewRenderer(engine Engine, mirror Mirror, log *zap.Logger) *Renderer {
	return &Renderer{engine: engine, mirror: mirror, log: logging.OrNop(log)}
}

func (r *Renderer) Engine() string { return r.engine.Name() }

// Render produces the artifact for idea into dir, replacing any previous one.
func (r *Renderer) Render(ctx context.Context, dir string, idea models.Idea) ([]byte, error) {
	sum, err := Fingerprint(r.engine.Name(), idea)
	if err != nil {
		return nil, err
	}
	data, err := r.engine.Render(ctx, idea)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", idea.Folder, err)
	}
	if err := util.WriteFileAtomic(filepath.Join(dir, ArtifactName), data, 0o644); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	if err := util.WriteFileAtomic(filepath.Join(dir, FingerprintName), []byte(sum+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write fingerprint: %w", err)
	}
	if r.mirror != nil {
		if err := r.mirror.Put(ctx, idea.Folder, data); err != nil {
			r.log.Warn("artifact mirror upload failed", zap.String("folder", idea.Folder), zap.Error(err))
		}
	}
	r.log.Debug("artifact rendered",
		zap.String("folder", idea.Folder),
		zap.String("engine", r.engine.Name()),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}

// Ensure returns the artifact for idea, rendering it when it is missing or
// was rendered from a different record.
func (r *Renderer) Ensure(ctx context.Context, dir string, idea models.Idea) ([]byte, error) {
	fresh, err := r.Fresh(dir, idea)
	if err != nil {
		return nil, err
	}
	if fresh {
		data, err := os.ReadFile(filepath.Join(dir, ArtifactName))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read artifact: %w", err)
		}
	}
	return r.Render(ctx, dir, idea)
}

// Fresh reports whether dir holds an artifact rendered from idea.
func (r *Renderer) Fresh(dir string, idea models.Idea) (bool, error) {
	if _, err := os.Stat(filepath.Join(dir, ArtifactName)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	stored, err := os.ReadFile(filepath.Join(dir, FingerprintName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	sum, err := Fingerprint(r.engine.Name(), idea)
	if err != nil {
		return false, err
	}
	return string(bytes.TrimSpace(stored)) == sum, nil
}

// Discard drops the mirrored copy of a deleted idea's artifact. The local
// copy goes away with the folder.
func (r *Renderer) Discard(ctx context.Context, folder string) {
	if r.mirror == nil {
		return
	}
	if err := r.mirror.Remove(ctx, folder); err != nil {
		r.log.Warn("artifact mirror remove failed", zap.String("folder", folder), zap.Error(err))
	}
}
