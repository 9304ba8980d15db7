package content

// Taxonomies the facts resolver reads.
const (
	TaxonomyCategory = "category"
	TaxonomyTag      = "post_tag"
)

const (
	RoleSubscriber    = "subscriber"
	RoleAdministrator = "administrator"
)

type Post struct {
	ID       int64  `json:"id" yaml:"id"`
	Slug     string `json:"slug" yaml:"slug"`
	Title    string `json:"title" yaml:"title"`
	Body     string `json:"body" yaml:"body"`
	AuthorID int64  `json:"author_id" yaml:"author_id"`
}

type User struct {
	ID    int64    `json:"id" yaml:"id"`
	Login string   `json:"login" yaml:"login"`
	Roles []string `json:"roles" yaml:"roles"`
}

// HasRole is an exact, case-sensitive match.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Term struct {
	ID       int64  `json:"id" yaml:"id"`
	Taxonomy string `json:"taxonomy" yaml:"taxonomy"`
	Slug     string `json:"slug" yaml:"slug"`
	Name     string `json:"name" yaml:"name"`
}

// RequestContext is everything a page render knows about the request.
// Post is nil off single-content views; User is nil for anonymous visitors.
type RequestContext struct {
	Single bool
	Post   *Post
	User   *User
}

func (rc RequestContext) Authenticated() bool { return rc.User != nil }
