package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gopkg.in/yaml.v3"

	"github.com/xwp/ga4-extensions/internal/content"
)

// Fixtures is the YAML seed format shared by dev mode and cmd/seed.
type Fixtures struct {
	Options  map[string]string `yaml:"options"`
	Users    []content.User    `yaml:"users"`
	Sessions map[string]int64  `yaml:"sessions"`
	Posts    []FixturePost     `yaml:"posts"`
}

type FixturePost struct {
	content.Post `yaml:",inline"`
	Categories   []string `yaml:"categories"`
	Tags         []string `yaml:"tags"`
}

func LoadFixtures(path string) (*Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures %s: %w", path, err)
	}
	defer f.Close()

	var fx Fixtures
	if err := yaml.NewDecoder(f).Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	return &fx, nil
}

// terms assigns stable ids to every distinct (taxonomy, slug) pair. The ids
// only serve the memory store; Postgres assigns its own on seed.
func (fx *Fixtures) terms() map[string]map[string]content.Term {
	out := map[string]map[string]content.Term{
		content.TaxonomyCategory: {},
		content.TaxonomyTag:      {},
	}
	var next int64 = 1
	add := func(tax string, slugs []string) {
		for _, s := range slugs {
			if _, ok := out[tax][s]; ok {
				continue
			}
			out[tax][s] = content.Term{ID: next, Taxonomy: tax, Slug: s, Name: s}
			next++
		}
	}
	for _, p := range fx.Posts {
		add(content.TaxonomyCategory, p.Categories)
		add(content.TaxonomyTag, p.Tags)
	}
	return out
}

func pick(all map[string]content.Term, slugs []string) []content.Term {
	out := make([]content.Term, 0, len(slugs))
	for _, s := range slugs {
		out = append(out, all[s])
	}
	return out
}

// Apply loads the fixtures into the memory store.
func (m *MemoryStore) Apply(fx *Fixtures) {
	for k, v := range fx.Options {
		_ = m.SetOption(context.Background(), k, v)
	}
	for _, u := range fx.Users {
		m.PutUser(u)
	}
	for token, id := range fx.Sessions {
		m.PutSession(token, id)
	}
	terms := fx.terms()
	for _, p := range fx.Posts {
		m.PutPost(p.Post)
		m.SetTerms(p.ID, content.TaxonomyCategory, pick(terms[content.TaxonomyCategory], p.Categories))
		m.SetTerms(p.ID, content.TaxonomyTag, pick(terms[content.TaxonomyTag], p.Tags))
	}
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Seed writes the fixtures to Postgres in one transaction. Term ids are
// assigned by Postgres; terms are matched by (taxonomy, slug) so re-seeding
// another fixture set never collides on the primary key.
func (s *Store) Seed(ctx context.Context, fx *Fixtures) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return seedFixtures(ctx, tx, fx)
	})
}

func seedFixtures(ctx context.Context, tx execer, fx *Fixtures) error {
	for _, u := range fx.Users {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (id, login, roles) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET login = EXCLUDED.login, roles = EXCLUDED.roles
		`, u.ID, u.Login, u.Roles); err != nil {
			return fmt.Errorf("seed user %d: %w", u.ID, err)
		}
	}
	for token, id := range fx.Sessions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sessions (token, user_id) VALUES ($1, $2)
			ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id
		`, token, id); err != nil {
			return fmt.Errorf("seed session: %w", err)
		}
	}
	for _, byTax := range fx.terms() {
		for _, t := range byTax {
			if _, err := tx.Exec(ctx, `
				INSERT INTO terms (taxonomy, slug, name) VALUES ($1, $2, $3)
				ON CONFLICT (taxonomy, slug) DO NOTHING
			`, t.Taxonomy, t.Slug, t.Name); err != nil {
				return fmt.Errorf("seed term %s: %w", t.Slug, err)
			}
		}
	}
	for _, p := range fx.Posts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO posts (id, slug, title, body, author_id) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET slug = EXCLUDED.slug, title = EXCLUDED.title,
				body = EXCLUDED.body, author_id = EXCLUDED.author_id
		`, p.ID, p.Slug, p.Title, p.Body, p.AuthorID); err != nil {
			return fmt.Errorf("seed post %s: %w", p.Slug, err)
		}
		if err := seedRelationships(ctx, tx, p.ID, content.TaxonomyCategory, p.Categories); err != nil {
			return err
		}
		if err := seedRelationships(ctx, tx, p.ID, content.TaxonomyTag, p.Tags); err != nil {
			return err
		}
	}
	for k, v := range fx.Options {
		if _, err := tx.Exec(ctx, `
			INSERT INTO options (name, value) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
		`, k, v); err != nil {
			return fmt.Errorf("seed option %s: %w", k, err)
		}
	}
	return nil
}

func seedRelationships(ctx context.Context, tx execer, postID int64, taxonomy string, slugs []string) error {
	for i, slug := range slugs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO term_relationships (post_id, term_id, term_order)
			SELECT $1, id, $4 FROM terms WHERE taxonomy = $2 AND slug = $3
			ON CONFLICT (post_id, term_id) DO UPDATE SET term_order = EXCLUDED.term_order
		`, postID, taxonomy, slug, i); err != nil {
			return fmt.Errorf("seed relationship %d/%s: %w", postID, slug, err)
		}
	}
	return nil
}
