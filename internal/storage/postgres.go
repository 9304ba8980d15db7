package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xwp/ga4-extensions/internal/config"
	"github.com/xwp/ga4-extensions/internal/content"
)

//go:embed schema.sql
var schema string

const queryTimeout = 5 * time.Second

type Store struct {
	pool    *pgxpool.Pool
	channel string
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool, channel: cfg.Listener.Channel}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// GetOption returns ErrNotFound when the option was never saved.
func (s *Store) GetOption(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM options WHERE name = $1`, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get option %s: %w", name, err)
	}
	return value, nil
}

// SetOption upserts the option and notifies listeners in the same
// transaction. Concurrent writers are last-write-wins.
func (s *Store) SetOption(ctx context.Context, name, value string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO options (name, value) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
		`, name, value); err != nil {
			return fmt.Errorf("set option %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, s.ListenChannel(), name); err != nil {
			return fmt.Errorf("notify option %s: %w", name, err)
		}
		return nil
	})
}

// LoadOptions returns every stored option.
func (s *Store) LoadOptions(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT name, value FROM options`)
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}

func (s *Store) PostBySlug(ctx context.Context, slug string) (*content.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p content.Post
	err := s.pool.QueryRow(ctx, `
		SELECT id, slug, title, body, author_id FROM posts WHERE slug = $1
	`, slug).Scan(&p.ID, &p.Slug, &p.Title, &p.Body, &p.AuthorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", slug, err)
	}
	return &p, nil
}

// ListPosts returns the newest posts first.
func (s *Store) ListPosts(ctx context.Context, limit int) ([]content.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, slug, title, body, author_id FROM posts ORDER BY id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var out []content.Post
	for rows.Next() {
		var p content.Post
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Body, &p.AuthorID); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UserByID(ctx context.Context, id int64) (*content.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u content.User
	err := s.pool.QueryRow(ctx, `SELECT id, login, roles FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Login, &u.Roles)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

func (s *Store) UserBySession(ctx context.Context, token string) (*content.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u content.User
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.login, u.roles
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1
	`, token).Scan(&u.ID, &u.Login, &u.Roles)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session user: %w", err)
	}
	return &u, nil
}

// Terms returns the post's terms of one taxonomy in assignment order.
func (s *Store) Terms(ctx context.Context, postID int64, taxonomy string) ([]content.Term, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.taxonomy, t.slug, t.name
		FROM term_relationships r
		JOIN terms t ON t.id = r.term_id
		WHERE r.post_id = $1 AND t.taxonomy = $2
		ORDER BY r.term_order, t.id
	`, postID, taxonomy)
	if err != nil {
		return nil, fmt.Errorf("query terms: %w", err)
	}
	defer rows.Close()

	var out []content.Term
	for rows.Next() {
		var t content.Term
		if err := rows.Scan(&t.ID, &t.Taxonomy, &t.Slug, &t.Name); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListenChannel() string {
	if s.channel == "" {
		return "ga4_options_change"
	}
	return s.channel
}

func (s *Store) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}
