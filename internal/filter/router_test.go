package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterIdentity(t *testing.T) {
	r := NewRouter("", "", "", "")
	db, tb := r.Route("app", "users")
	assert.Equal(t, "app", db)
	assert.Equal(t, "users", tb)
}

func TestRouterDBMap(t *testing.T) {
	r := NewRouter("app:prod_app", "", "", "")
	db, tb := r.Route("app", "users")
	assert.Equal(t, "prod_app", db)
	assert.Equal(t, "users", tb)
}

func TestRouterTbMapOverridesDBMap(t *testing.T) {
	r := NewRouter("app:prod_app", "app.users:other.people", "", "")
	db, tb := r.Route("app", "users")
	assert.Equal(t, "other", db)
	assert.Equal(t, "people", tb)

	db, tb = r.Route("app", "orders")
	assert.Equal(t, "prod_app", db)
	assert.Equal(t, "orders", tb)
}

func TestRouterCol(t *testing.T) {
	r := NewRouter("", "", "app.users.full_name:name", "")
	assert.Equal(t, "name", r.RouteCol("app", "users", "full_name"))
	assert.Equal(t, "id", r.RouteCol("app", "users", "id"))
}

func TestRouterTopicFallback(t *testing.T) {
	r := NewRouter("", "", "", "app.users:users-topic,app.*:app-topic,*.*:default-topic")

	topic, ok := r.Topic("app", "users")
	assert.True(t, ok)
	assert.Equal(t, "users-topic", topic)

	topic, ok = r.Topic("app", "orders")
	assert.True(t, ok)
	assert.Equal(t, "app-topic", topic)

	topic, ok = r.Topic("other", "tbl")
	assert.True(t, ok)
	assert.Equal(t, "default-topic", topic)
}

func TestRouterTopicNoMatch(t *testing.T) {
	r := NewRouter("", "", "", "")
	_, ok := r.Topic("app", "users")
	assert.False(t, ok)
}
