package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_HasRole(t *testing.T) {
	var anon *User
	assert.False(t, anon.HasRole(RoleSubscriber))

	u := &User{Login: "reader", Roles: []string{"editor", "subscriber"}}
	assert.True(t, u.HasRole(RoleSubscriber))
	assert.False(t, u.HasRole("Subscriber"))
	assert.False(t, (&User{}).HasRole(RoleSubscriber))
}

func TestRequestContext_Authenticated(t *testing.T) {
	assert.False(t, RequestContext{}.Authenticated())
	assert.True(t, RequestContext{User: &User{ID: 1}}.Authenticated())
}
