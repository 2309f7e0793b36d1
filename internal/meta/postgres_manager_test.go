package meta

import (
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestPostgresManagerInvalidateDropsBothIndexes(t *testing.T) {
	m := NewPostgresManager(nil, false)
	tm := &model.TableMeta{Schema: "app", Table: "users", OID: 42}
	m.byName["app.users"] = tm
	m.byOID[42] = tm

	m.Invalidate("app", "users")
	assert.NotContains(t, m.byName, "app.users")
	assert.NotContains(t, m.byOID, uint32(42))
}

func TestPostgresManagerInvalidateAllClearsBothIndexes(t *testing.T) {
	m := NewPostgresManager(nil, false)
	m.byName["app.users"] = &model.TableMeta{OID: 1}
	m.byOID[1] = &model.TableMeta{OID: 1}

	m.InvalidateAll()
	assert.Empty(t, m.byName)
	assert.Empty(t, m.byOID)
}

func TestPostgresManagerUpdateByOIDReplacesBothIndexes(t *testing.T) {
	m := NewPostgresManager(nil, false)
	tm := &model.TableMeta{Schema: "app", Table: "users", OID: 7}
	m.UpdateByOID(7, tm)

	assert.Same(t, tm, m.byOID[7])
	assert.Same(t, tm, m.byName["app.users"])
}

func TestPostgresManagerGetUsesCacheWithoutTouchingPool(t *testing.T) {
	m := NewPostgresManager(nil, false)
	tm := &model.TableMeta{Schema: "app", Table: "users"}
	m.byName["app.users"] = tm

	got, err := m.Get(nil, "app", "users") //nolint:staticcheck
	assert.NoError(t, err)
	assert.Same(t, tm, got)
}

func TestPostgresManagerGetByOIDUsesCacheWithoutTouchingPool(t *testing.T) {
	m := NewPostgresManager(nil, false)
	tm := &model.TableMeta{Schema: "app", Table: "users", OID: 9}
	m.byOID[9] = tm

	got, err := m.GetByOID(nil, 9) //nolint:staticcheck
	assert.NoError(t, err)
	assert.Same(t, tm, got)
}
