// Package postgres provides a PostgreSQL-backed implementation of
// [recapstore.Store].
//
// One recap is three tables: a recaps row per finished session, a recap_goals
// row per goal, and a recap_pairs row per scored exchange. Lesson progress is
// an upsert keyed by (user_id, lesson_id).
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	recapID, err := store.SaveRecap(ctx, rec)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bualoitech/learnliko/pkg/recapstore"
)

// Compile-time interface check.
var _ recapstore.Store = (*Store)(nil)

const ddlRecaps = `
CREATE TABLE IF NOT EXISTS recaps (
    id                  UUID         PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id             TEXT         NOT NULL,
    conversation_id     TEXT         NOT NULL,
    correct_percentage  DOUBLE PRECISION NOT NULL,
    created_at          TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_recaps_user_conversation
    ON recaps (user_id, conversation_id);

CREATE TABLE IF NOT EXISTS recap_goals (
    id         BIGSERIAL PRIMARY KEY,
    recap_id   UUID      NOT NULL REFERENCES recaps (id) ON DELETE CASCADE,
    position   INT       NOT NULL,
    goal       TEXT      NOT NULL,
    hint_used  BOOLEAN   NOT NULL,
    coins      INT       NOT NULL,
    overall    DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recap_goals_recap_id
    ON recap_goals (recap_id);

CREATE TABLE IF NOT EXISTS recap_pairs (
    id                 BIGSERIAL PRIMARY KEY,
    goal_id            BIGINT    NOT NULL REFERENCES recap_goals (id) ON DELETE CASCADE,
    position           INT       NOT NULL,
    assistant_text     TEXT      NOT NULL,
    user_text          TEXT      NOT NULL,
    suggestion         TEXT      NOT NULL DEFAULT '',
    advancement_score  DOUBLE PRECISION NOT NULL,
    grammar_score      DOUBLE PRECISION NOT NULL,
    blended_score      DOUBLE PRECISION NOT NULL,
    appropriate        BOOLEAN   NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recap_pairs_goal_id
    ON recap_pairs (goal_id);

CREATE TABLE IF NOT EXISTS lesson_progress (
    user_id         TEXT NOT NULL,
    lesson_id       TEXT NOT NULL,
    conversation_id TEXT NOT NULL,
    recap_id        UUID NOT NULL REFERENCES recaps (id),
    section_index   INT  NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, lesson_id)
);
`

// Store is the PostgreSQL recap store. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure the recap tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("recap store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("recap store: ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithPool wraps an existing pool without running migrations.
// Useful in tests that manage their own schema.
func NewStoreWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates all recap tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, ddlRecaps); err != nil {
		return fmt.Errorf("recap store: migrate: %w", err)
	}
	return nil
}

// Ping verifies database connectivity, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveRecap implements [recapstore.Store]. The recap row, its goal rows, and
// their pair rows are written in a single transaction.
func (s *Store) SaveRecap(ctx context.Context, rec recapstore.RecapRecord) (string, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("recap store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var recapID string
	err = tx.QueryRow(ctx, `
		INSERT INTO recaps (user_id, conversation_id, correct_percentage)
		VALUES ($1, $2, $3)
		RETURNING id`,
		rec.UserID, rec.ConversationID, rec.CorrectPercentage,
	).Scan(&recapID)
	if err != nil {
		return "", fmt.Errorf("recap store: insert recap: %w", err)
	}

	for gi, g := range rec.Goals {
		var goalID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO recap_goals (recap_id, position, goal, hint_used, coins, overall)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			recapID, gi, g.Goal, g.HintUsed, g.Coins, g.Overall,
		).Scan(&goalID)
		if err != nil {
			return "", fmt.Errorf("recap store: insert goal %d: %w", gi, err)
		}

		for pi, p := range g.Pairs {
			_, err = tx.Exec(ctx, `
				INSERT INTO recap_pairs
				    (goal_id, position, assistant_text, user_text, suggestion,
				     advancement_score, grammar_score, blended_score, appropriate)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				goalID, pi, p.Assistant, p.User, p.Suggestion,
				p.AdvancementScore, p.GrammarScore, p.Blended, p.Appropriate,
			)
			if err != nil {
				return "", fmt.Errorf("recap store: insert pair %d/%d: %w", gi, pi, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("recap store: commit: %w", err)
	}
	return recapID, nil
}

// UpdateLessonProgress implements [recapstore.Store].
func (s *Store) UpdateLessonProgress(ctx context.Context, p recapstore.LessonProgressUpdate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO lesson_progress (user_id, lesson_id, conversation_id, recap_id, section_index)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, lesson_id) DO UPDATE
		SET conversation_id = EXCLUDED.conversation_id,
		    recap_id        = EXCLUDED.recap_id,
		    section_index   = EXCLUDED.section_index,
		    updated_at      = now()`,
		p.UserID, p.LessonID, p.ConversationID, p.RecapID, p.SectionIndex,
	)
	if err != nil {
		return fmt.Errorf("recap store: update lesson progress: %w", err)
	}
	return nil
}
