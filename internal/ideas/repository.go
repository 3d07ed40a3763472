// Package ideas stores one folder per idea and keeps each folder's rendered
// artifact in step with its record.
package ideas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"ideajournal/internal/logging"
	"ideajournal/internal/models"
	"ideajournal/internal/util"
)

// DocumentName is the idea record inside its folder.
const DocumentName = "idea.json"

var (
	ErrValidation = errors.New("idea validation failed")
	ErrNotFound   = errors.New("idea not found")
)

// Renderer produces and caches the artifact of an idea folder.
type Renderer interface {
	Render(ctx context.Context, dir string, idea models.Idea) ([]byte, error)
	Ensure(ctx context.Context, dir string, idea models.Idea) ([]byte, error)
	Discard(ctx context.Context, folder string)
}

// Journal records a committed change to an idea folder.
type Journal interface {
	Commit(ctx context.Context, folder, message string) error
}

type Option func(*Repository)

func WithJournal(j Journal) Option { return func(r *Repository) { r.journal = j } }

func WithClock(now func() time.Time) Option { return func(r *Repository) { r.now = now } }

func WithLogger(l *zap.Logger) Option { return func(r *Repository) { r.log = logging.OrNop(l) } }

// Repository persists ideas under root, one folder each. Every mutation of a
// folder runs under that folder's lock.
type Repository struct {
	root     string
	renderer Renderer
	journal  Journal
	locks    *util.KeyedMutex
	now      func() time.Time
	log      *zap.Logger
}

func NewRepository(root string, renderer Renderer, opts ...Option) (*Repository, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create ideas dir: %w", err)
	}
	r := &Repository{
		root:     root,
		renderer: renderer,
		locks:    util.NewKeyedMutex(),
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Repository) Root() string { return r.root }

func (r *Repository) dir(folder string) string { return filepath.Join(r.root, folder) }

// Create stores a new idea and renders its artifact. It returns the folder
// the idea was stored under: the cleaned title, or the first free
// "title (n)" variant.
func (r *Repository) Create(ctx context.Context, draft models.Draft) (string, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return "", fmt.Errorf("%w: title is required", ErrValidation)
	}
	base := Clean(draft.Title)
	if base == "" {
		return "", fmt.Errorf("%w: title has no usable characters", ErrValidation)
	}

	now := r.now()
	dateCreated := draft.DateCreated
	if strings.TrimSpace(dateCreated) == "" {
		dateCreated = now.Format(models.DateLayout)
	}

	folder, unlock, err := r.claim(base)
	if err != nil {
		return "", err
	}
	defer unlock()

	useCases := []string(draft.UseCases)
	if useCases == nil {
		useCases = []string{}
	}
	idea := models.Idea{
		Folder:               folder,
		Title:                draft.Title,
		DateCreated:          dateCreated,
		Summary:              draft.Summary,
		Trigger:              draft.Trigger,
		Description:          draft.Description,
		UseCases:             useCases,
		PotentialImpact:      draft.PotentialImpact,
		Challenges:           draft.Challenges,
		CurrentUnderstanding: draft.CurrentUnderstanding,
		Updates:              []models.Update{},
		GeneratedAt:          now.Format(models.TimestampLayout),
	}

	if err := r.commit(ctx, idea); err != nil {
		if rmErr := os.RemoveAll(r.dir(folder)); rmErr != nil {
			r.log.Warn("cleanup of failed create", zap.String("folder", folder), zap.Error(rmErr))
		}
		return "", err
	}
	r.record(ctx, folder, "create "+folder)
	r.log.Info("idea created", zap.String("folder", folder))
	return folder, nil
}

// claim reserves the first free folder for base. The returned folder is
// created and locked; the caller releases it with unlock.
func (r *Repository) claim(base string) (string, func(), error) {
	for n := 1; ; n++ {
		candidate := base
		if n > 1 {
			candidate = fmt.Sprintf("%s (%d)", base, n)
		}
		unlock := r.locks.Lock(candidate)
		err := os.Mkdir(r.dir(candidate), 0o755)
		if err == nil {
			return candidate, unlock, nil
		}
		unlock()
		if !errors.Is(err, fs.ErrExist) {
			return "", nil, fmt.Errorf("claim folder %q: %w", candidate, err)
		}
	}
}

// commit renders the artifact, then replaces the record. A record on disk
// therefore always has an artifact; a stale one is caught by the
// fingerprint check on read.
func (r *Repository) commit(ctx context.Context, idea models.Idea) error {
	dir := r.dir(idea.Folder)
	if _, err := r.renderer.Render(ctx, dir, idea); err != nil {
		return err
	}
	data, err := json.MarshalIndent(idea, "", "  ")
	if err != nil {
		return fmt.Errorf("encode idea: %w", err)
	}
	if err := util.WriteFileAtomic(filepath.Join(dir, DocumentName), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write idea: %w", err)
	}
	return nil
}

func (r *Repository) record(ctx context.Context, folder, message string) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Commit(ctx, folder, message); err != nil {
		r.log.Warn("history commit failed", zap.String("folder", folder), zap.Error(err))
	}
}

// Get returns the stored record of folder.
func (r *Repository) Get(_ context.Context, folder string) (models.Idea, error) {
	name := CleanFolder(folder)
	if name == "" {
		return models.Idea{}, ErrNotFound
	}
	return r.load(name)
}

func (r *Repository) load(folder string) (models.Idea, error) {
	data, err := os.ReadFile(filepath.Join(r.dir(folder), DocumentName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Idea{}, ErrNotFound
		}
		return models.Idea{}, fmt.Errorf("read idea %q: %w", folder, err)
	}
	var idea models.Idea
	if err := json.Unmarshal(data, &idea); err != nil {
		return models.Idea{}, fmt.Errorf("decode idea %q: %w", folder, err)
	}
	if idea.Folder == "" {
		idea.Folder = folder
	}
	if idea.UseCases == nil {
		idea.UseCases = []string{}
	}
	if idea.Updates == nil {
		idea.Updates = []models.Update{}
	}
	return idea, nil
}

// List summarizes every folder holding a readable record, sorted by folder
// name. Other folders are skipped.
func (r *Repository) List(_ context.Context) ([]models.Summary, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Summary{}, nil
		}
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	out := make([]models.Summary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		idea, err := r.load(entry.Name())
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				r.log.Debug("skipping unreadable idea", zap.String("folder", entry.Name()), zap.Error(err))
			}
			continue
		}
		out = append(out, idea.Summarize())
	}
	return out, nil
}

// AppendUpdate adds a dated entry to the idea whose cleaned title names its
// folder, then re-renders it.
func (r *Repository) AppendUpdate(ctx context.Context, ideaTitle, text string) (models.Idea, error) {
	if strings.TrimSpace(text) == "" {
		return models.Idea{}, fmt.Errorf("%w: update text is required", ErrValidation)
	}
	folder := Clean(ideaTitle)
	if folder == "" {
		return models.Idea{}, ErrNotFound
	}

	unlock := r.locks.Lock(folder)
	defer unlock()

	idea, err := r.load(folder)
	if err != nil {
		return models.Idea{}, err
	}
	now := r.now()
	idea.Updates = append(idea.Updates, models.Update{Date: now.Format(models.DateLayout), Text: text})
	idea.GeneratedAt = now.Format(models.TimestampLayout)

	if err := r.commit(ctx, idea); err != nil {
		return models.Idea{}, err
	}
	r.record(ctx, folder, fmt.Sprintf("update %s (%d)", folder, len(idea.Updates)))
	r.log.Info("idea updated", zap.String("folder", folder), zap.Int("updates", len(idea.Updates)))
	return idea, nil
}

// Delete removes a folder with its record and artifact. The folder is first
// renamed out of the namespace so readers never observe a half-removed idea.
func (r *Repository) Delete(ctx context.Context, folder string) error {
	name := CleanFolder(folder)
	if name == "" {
		return ErrNotFound
	}

	unlock := r.locks.Lock(name)
	defer unlock()

	info, err := os.Stat(r.dir(name))
	if err != nil || !info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("stat idea %q: %w", name, err)
	}

	token, err := util.NewToken("trash", 8)
	if err != nil {
		return err
	}
	tomb := r.dir("." + token)
	if err := os.Rename(r.dir(name), tomb); err != nil {
		return fmt.Errorf("delete idea %q: %w", name, err)
	}
	if err := os.RemoveAll(tomb); err != nil {
		r.log.Warn("removing deleted idea", zap.String("folder", name), zap.Error(err))
	}

	r.renderer.Discard(ctx, name)
	r.record(ctx, name, "delete "+name)
	r.log.Info("idea deleted", zap.String("folder", name))
	return nil
}

// Artifact returns the rendered document of folder, rendering it when the
// cached copy is missing or stale.
func (r *Repository) Artifact(ctx context.Context, folder string) ([]byte, error) {
	name := CleanFolder(folder)
	if name == "" {
		return nil, ErrNotFound
	}

	unlock := r.locks.Lock(name)
	defer unlock()

	idea, err := r.load(name)
	if err != nil {
		return nil, err
	}
	return r.renderer.Ensure(ctx, r.dir(name), idea)
}

// RenderAll re-renders every stored idea and reports how many were written.
func (r *Repository) RenderAll(ctx context.Context) (int, error) {
	summaries, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	rendered := 0
	for _, s := range summaries {
		if err := ctx.Err(); err != nil {
			return rendered, err
		}
		if err := r.renderOne(ctx, s.Folder); err != nil {
			return rendered, err
		}
		rendered++
	}
	return rendered, nil
}

func (r *Repository) renderOne(ctx context.Context, folder string) error {
	unlock := r.locks.Lock(folder)
	defer unlock()

	idea, err := r.load(folder)
	if err != nil {
		return err
	}
	_, err = r.renderer.Render(ctx, r.dir(folder), idea)
	return err
}
