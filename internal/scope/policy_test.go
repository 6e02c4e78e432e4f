package scope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffective_WildcardVerified(t *testing.T) {
	p := NewDefaultPolicy()
	assert.Equal(t, strings.Join(DefaultCatalog, " "), p.Effective("*", true))
	assert.Equal(t, strings.Join(DefaultCatalog, " "), p.Effective("  *  ", true))
}

func TestEffective_WildcardUnverified(t *testing.T) {
	p := NewDefaultPolicy()
	assert.Equal(t, WriteProfile, p.Effective("*", false))
}

func TestEffective_UnknownScopeDropped(t *testing.T) {
	p := NewDefaultPolicy()
	assert.Equal(t, "", p.Effective("bogus:scope", true))
	assert.Equal(t, WritePosts, p.Effective("bogus:scope write:posts", true))
}

func TestEffective_CatalogOrder(t *testing.T) {
	p := NewDefaultPolicy()
	assert.Equal(t, "write:posts vote:posts", p.Effective("vote:posts write:posts vote:posts", true))
	assert.Equal(t, "write:profile delete:replies", p.Effective("delete:replies write:profile", true))
}

func TestEffective_RestrictedNeverGrantedToUnverified(t *testing.T) {
	p := NewDefaultPolicy()
	requests := []string{
		"*",
		"",
		"write:posts vote:posts",
		strings.Join(DefaultCatalog, " "),
		"delete:replies write:profile bogus",
	}
	for _, req := range requests {
		granted := strings.Fields(p.Effective(req, false))
		for _, s := range granted {
			assert.NotContains(t, DefaultRestricted, s, "request %q", req)
		}
	}
	assert.Equal(t, "", p.Effective("write:posts vote:posts", false))
}

func TestEffective_EmptyRequest(t *testing.T) {
	p := NewDefaultPolicy()
	assert.Equal(t, "", p.Effective("", true))
	assert.Equal(t, "", p.Effective("   ", true))
}

func TestNewPolicy_CustomCatalog(t *testing.T) {
	p := NewPolicy([]string{"read", "write", "read", " "}, []string{"write", "admin"})
	assert.Equal(t, []string{"read", "write"}, p.Catalog())
	assert.Equal(t, "read write", p.Effective("*", true))
	assert.Equal(t, "read", p.Effective("*", false))
	assert.Equal(t, "", p.Effective("admin", true))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("write:posts vote:posts", WritePosts))
	assert.True(t, Contains("write:posts vote:posts", VotePosts, WritePosts))
	assert.False(t, Contains("write:posts", VotePosts))
	assert.False(t, Contains("", WriteProfile))
	assert.True(t, Contains(""))
}
