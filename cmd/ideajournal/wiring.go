package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"ideajournal/internal/config"
	"ideajournal/internal/credentials"
	"ideajournal/internal/export"
	"ideajournal/internal/history"
	"ideajournal/internal/ideas"
	"ideajournal/internal/objectstore"
	"ideajournal/internal/store"
)

// closers runs cleanup funcs in reverse order.
type closers []func()

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// openCredentials opens the configured blob backend and checks that the
// existing blob decrypts. A corrupt store is returned as an error.
func openCredentials(ctx context.Context, cfg config.Config, log *zap.Logger, cleanup *closers) (*credentials.Store, *sql.DB, error) {
	var (
		blob credentials.Blob
		db   *sql.DB
	)
	switch cfg.CredentialBackend {
	case config.CredentialBackendPostgres:
		var err error
		db, err = store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		*cleanup = append(*cleanup, func() { _ = db.Close() })
		if err := store.ApplyMigrations(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("migrations failed: %w", err)
		}
		blob = store.NewPostgresBlob(db, store.DefaultBlobName)
		log.Info("credential store on postgres")
	default:
		fileBlob, err := credentials.NewFileBlob(cfg.UsersFile())
		if err != nil {
			return nil, nil, err
		}
		blob = fileBlob
		log.Info("credential store on disk", zap.String("path", cfg.UsersFile()))
	}

	creds, err := credentials.NewStore(blob, cfg.AdminPassword)
	if err != nil {
		return nil, nil, err
	}
	if err := creds.Verify(ctx); err != nil {
		return nil, nil, err
	}
	return creds, db, nil
}

// openRepository wires the renderer, the optional mirror and the optional
// history journal into the idea repository.
func openRepository(ctx context.Context, cfg config.Config, log *zap.Logger) (*ideas.Repository, *history.Journal, error) {
	engine, err := export.EngineByName(cfg.RenderEngine)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q", err, cfg.RenderEngine)
	}

	var mirror export.Mirror
	if cfg.MinIO.Endpoint != "" {
		m, err := objectstore.New(ctx, objectstore.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		mirror = m
		log.Info("artifact mirror enabled", zap.String("endpoint", cfg.MinIO.Endpoint), zap.String("bucket", cfg.MinIO.Bucket))
	}

	renderer := export.NewRenderer(engine, mirror, log.Named("export"))
	opts := []ideas.Option{ideas.WithLogger(log.Named("ideas"))}

	var journal *history.Journal
	if cfg.History {
		journal, err = history.Open(cfg.IdeasDir())
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, ideas.WithJournal(journal))
	}

	repo, err := ideas.NewRepository(cfg.IdeasDir(), renderer, opts...)
	if err != nil {
		return nil, nil, err
	}
	log.Info("idea repository ready",
		zap.String("dir", cfg.IdeasDir()),
		zap.String("engine", engine.Name()),
		zap.Bool("history", journal != nil),
	)
	return repo, journal, nil
}
