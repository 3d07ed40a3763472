// Package history keeps a git log of idea records. The repository lives in
// the ideas directory itself; rendered artifacts are ignored.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"

	"ideajournal/internal/session"
)

const (
	documentName = "idea.json"
	systemAuthor = "ideajournal"
)

const ignoreRules = "*.pdf\n*.sum\n*.tmp-*\n.trash_*/\n"

// Entry is one commit touching an idea.
type Entry struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}

// Journal commits idea records to the git repository at its root. All git
// operations share one mutex since they share one index.
type Journal struct {
	mu   sync.Mutex
	repo *git.Repository
	root string
	now  func() time.Time
}

// Open opens the repository at root, initializing it on first use.
func Open(root string) (*Journal, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(root, false)
	}
	if err != nil {
		return nil, fmt.Errorf("open history repo: %w", err)
	}
	ignore := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(ignore); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(ignore, []byte(ignoreRules), 0o644); err != nil {
			return nil, fmt.Errorf("write .gitignore: %w", err)
		}
	}
	return &Journal{repo: repo, root: root, now: time.Now}, nil
}

// Commit stages the current state of folder's record, adding or removing
// it, and commits with message. Nothing is committed when the record is
// unchanged.
func (j *Journal) Commit(ctx context.Context, folder, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	worktree, err := j.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	rel := path.Join(folder, documentName)
	if _, err := os.Stat(filepath.Join(j.root, folder, documentName)); err == nil {
		if _, err := worktree.Add(rel); err != nil {
			return fmt.Errorf("git add %s: %w", rel, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if _, err := worktree.Remove(rel); err != nil && !errors.Is(err, index.ErrEntryNotFound) {
			return fmt.Errorf("git rm %s: %w", rel, err)
		}
	} else {
		return fmt.Errorf("stat %s: %w", rel, err)
	}

	author := authorFrom(ctx)
	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.ideajournal", sanitizeEmail(author)),
			When:  j.now(),
		},
	})
	if err != nil && !errors.Is(err, git.ErrEmptyCommit) {
		return fmt.Errorf("commit %s: %w", rel, err)
	}
	return nil
}

// Log returns the commits touching folder's record, newest first. limit <= 0
// means no limit.
func (j *Journal) Log(_ context.Context, folder string, limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	head, err := j.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	rel := path.Join(folder, documentName)
	iter, err := j.repo.Log(&git.LogOptions{
		From:       head.Hash(),
		PathFilter: func(p string) bool { return p == rel },
	})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Entry, 0)
	err = iter.ForEach(func(c *object.Commit) error {
		items = append(items, toEntry(c))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func authorFrom(ctx context.Context) string {
	if s, ok := session.FromContext(ctx); ok && s.User != "" {
		return s.User
	}
	return systemAuthor
}

func toEntry(c *object.Commit) Entry {
	return Entry{
		Hash:    c.Hash.String()[:7],
		Message: c.Message,
		Author:  c.Author.Name,
		When:    c.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' || r == '.' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
