package storage

import (
	"ainews/internal/domain"
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresArchive сохраняет добавленные в хранилище статьи в таблицу articles.
type PostgresArchive struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgresArchive(pool *pgxpool.Pool, log *slog.Logger) *PostgresArchive {
	log = log.With(slog.String("component", "archive"))
	log.Info("Initializing Postgres article archive")
	return &PostgresArchive{
		pool: pool,
		log:  log,
	}
}

func (db *PostgresArchive) Name() string { return "postgres" }

func (db *PostgresArchive) Close() error {
	db.log.Info("Closing database connection pool")
	db.pool.Close()
	return nil
}

// Publish сохраняет статьи одной транзакцией. Повторная статья с той же ссылкой обновляет запись.
func (db *PostgresArchive) Publish(ctx context.Context, articles []domain.Article) (err error) {
	const op = "storage.postgres.Publish"
	if len(articles) == 0 {
		return nil
	}
	log := db.log.With(slog.String("op", op))
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		log.Error("Failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(context.Background()); rollbackErr != nil {
				log.Error("Failed to rollback transaction", slog.Any("error", rollbackErr))
			}
		}
	}()
	batch := &pgx.Batch{}
	query := `
	INSERT INTO articles (id, title, summary, content, link, published, published_at, source, scraped_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (link) DO UPDATE SET
		title = EXCLUDED.title,
		summary = EXCLUDED.summary,
		content = EXCLUDED.content,
		published = EXCLUDED.published,
		published_at = EXCLUDED.published_at,
		source = EXCLUDED.source,
		scraped_at = EXCLUDED.scraped_at;
	`
	for _, a := range articles {
		batch.Queue(
			query,
			a.ID,
			a.Title,
			a.Summary,
			a.Content,
			a.Link,
			a.Published,
			a.PublishedAt,
			a.Source,
			a.ScrapedAt,
		)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		log.Error("Failed to execute batch", slog.Any("error", err))
		return fmt.Errorf("%s: failed to execute batch: %w", op, err)
	}
	if err = tx.Commit(ctx); err != nil {
		log.Error("Failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	log.Debug("Articles archived", slog.Int("count", len(articles)))
	return nil
}
