package scope

import (
	"slices"
	"strings"

	"github.com/khanghh/blogapi/params"
)

const (
	WriteProfile  = "write:profile"
	WritePosts    = "write:posts"
	VotePosts     = "vote:posts"
	DeletePosts   = "delete:posts"
	WriteReplies  = "write:replies"
	VoteReplies   = "vote:replies"
	DeleteReplies = "delete:replies"
)

// DefaultCatalog is the ordered set of scopes the blog API recognizes.
var DefaultCatalog = []string{
	WriteProfile,
	WritePosts,
	VotePosts,
	DeletePosts,
	WriteReplies,
	VoteReplies,
	DeleteReplies,
}

// DefaultRestricted holds the scopes withheld from users whose email is not
// verified yet.
var DefaultRestricted = []string{
	WritePosts,
	VotePosts,
	DeletePosts,
	WriteReplies,
	VoteReplies,
	DeleteReplies,
}

// Policy computes the scope granted to a token. It is immutable once built.
type Policy struct {
	catalog    []string
	known      map[string]struct{}
	restricted map[string]struct{}
}

// Catalog returns a copy of the recognized scopes in catalog order.
func (p *Policy) Catalog() []string {
	return slices.Clone(p.catalog)
}

// Effective returns the space-delimited scope granted for the requested scope.
// "*" expands to the whole catalog, unknown scopes are dropped, and restricted
// scopes are dropped for unverified users. The result is in catalog order.
func (p *Policy) Effective(requested string, verified bool) string {
	requested = strings.TrimSpace(requested)

	wanted := make(map[string]struct{})
	if requested == params.ScopeAll {
		for _, s := range p.catalog {
			wanted[s] = struct{}{}
		}
	} else {
		for _, s := range strings.Fields(requested) {
			wanted[s] = struct{}{}
		}
	}

	granted := make([]string, 0, len(p.catalog))
	for _, s := range p.catalog {
		if _, ok := wanted[s]; !ok {
			continue
		}
		if _, ok := p.restricted[s]; ok && !verified {
			continue
		}
		granted = append(granted, s)
	}
	return strings.Join(granted, " ")
}

// Contains reports whether the granted scope string includes every required scope.
func Contains(granted string, required ...string) bool {
	have := strings.Fields(granted)
	for _, s := range required {
		if !slices.Contains(have, s) {
			return false
		}
	}
	return true
}

// NewPolicy builds a policy from a catalog and its restricted subset.
// Duplicates in the catalog keep their first position; restricted scopes that
// are not in the catalog are ignored.
func NewPolicy(catalog []string, restricted []string) *Policy {
	p := &Policy{
		known:      make(map[string]struct{}, len(catalog)),
		restricted: make(map[string]struct{}, len(restricted)),
	}
	for _, s := range catalog {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := p.known[s]; dup {
			continue
		}
		p.known[s] = struct{}{}
		p.catalog = append(p.catalog, s)
	}
	for _, s := range restricted {
		if _, ok := p.known[s]; ok {
			p.restricted[s] = struct{}{}
		}
	}
	return p
}

// NewDefaultPolicy returns the policy for the blog API's built-in scopes.
func NewDefaultPolicy() *Policy {
	return NewPolicy(DefaultCatalog, DefaultRestricted)
}
