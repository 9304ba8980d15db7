package facts

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xwp/ga4-extensions/internal/content"
)

// Sentinels for data that exists but could not be resolved.
const (
	UnknownAuthor = "unknown"
	Uncategorized = "uncategorized"
)

type UserLookup interface {
	UserByID(ctx context.Context, id int64) (*content.User, error)
}

type TermLookup interface {
	Terms(ctx context.Context, postID int64, taxonomy string) ([]content.Term, error)
}

// Facts are derived per render and never cached.
type Facts struct {
	Single       bool
	PostAuthor   string
	PostCategory string
	PostTags     string
	IsSubscriber int
}

// Resolver derives Facts from an explicit request context. Lookup failures
// degrade to "" or a sentinel; nothing here returns an error.
type Resolver struct {
	Users UserLookup
	Terms TermLookup
}

func NewResolver(users UserLookup, terms TermLookup) *Resolver {
	return &Resolver{Users: users, Terms: terms}
}

func singlePost(rc content.RequestContext) (*content.Post, bool) {
	if !rc.Single || rc.Post == nil {
		return nil, false
	}
	return rc.Post, true
}

// PostAuthor returns the author's login on a single view.
func (r *Resolver) PostAuthor(ctx context.Context, rc content.RequestContext) string {
	p, ok := singlePost(rc)
	if !ok {
		return ""
	}
	u, err := r.Users.UserByID(ctx, p.AuthorID)
	if err != nil || u == nil {
		log.Debug().Err(err).Int64("post_id", p.ID).Msg("post author unresolved")
		return UnknownAuthor
	}
	return u.Login
}

// PostCategory returns the space-joined category slugs on a single view.
func (r *Resolver) PostCategory(ctx context.Context, rc content.RequestContext) string {
	p, ok := singlePost(rc)
	if !ok {
		return ""
	}
	terms, err := r.Terms.Terms(ctx, p.ID, content.TaxonomyCategory)
	if err != nil || len(terms) == 0 {
		if err != nil {
			log.Debug().Err(err).Int64("post_id", p.ID).Msg("category lookup failed")
		}
		return Uncategorized
	}
	return joinSlugs(terms)
}

// PostTags returns the space-joined tag slugs on a single view.
func (r *Resolver) PostTags(ctx context.Context, rc content.RequestContext) string {
	p, ok := singlePost(rc)
	if !ok {
		return ""
	}
	terms, err := r.Terms.Terms(ctx, p.ID, content.TaxonomyTag)
	if err != nil {
		log.Debug().Err(err).Int64("post_id", p.ID).Msg("tag lookup failed")
		return ""
	}
	return joinSlugs(terms)
}

// IsSubscriber is 1 for an authenticated visitor holding the subscriber
// role. It does not depend on the view.
func IsSubscriber(rc content.RequestContext) int {
	if rc.Authenticated() && rc.User.HasRole(content.RoleSubscriber) {
		return 1
	}
	return 0
}

func (r *Resolver) Resolve(ctx context.Context, rc content.RequestContext) Facts {
	f := Facts{Single: rc.Single, IsSubscriber: IsSubscriber(rc)}
	if rc.Single {
		f.PostAuthor = r.PostAuthor(ctx, rc)
		f.PostCategory = r.PostCategory(ctx, rc)
		f.PostTags = r.PostTags(ctx, rc)
	}
	return f
}

func joinSlugs(terms []content.Term) string {
	slugs := make([]string, len(terms))
	for i, t := range terms {
		slugs[i] = t.Slug
	}
	return strings.TrimSpace(strings.Join(slugs, " "))
}
