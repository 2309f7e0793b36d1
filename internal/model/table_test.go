package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableMetaEqual(t *testing.T) {
	a := &TableMeta{Schema: "app", Table: "users", Cols: []string{"id", "name"}, IDCols: []string{"id"}}
	b := &TableMeta{Schema: "app", Table: "users", Cols: []string{"id", "name"}, IDCols: []string{"id"}}
	assert.True(t, a.Equal(b))

	c := &TableMeta{Schema: "app", Table: "users", Cols: []string{"id", "email"}, IDCols: []string{"id"}}
	assert.False(t, a.Equal(c))
}

func TestTableMetaEqualNilHandling(t *testing.T) {
	var a, b *TableMeta
	assert.True(t, a.Equal(b))

	a = &TableMeta{}
	assert.False(t, a.Equal(nil))
}

func isIntCol(cols map[string]bool) func(string) bool {
	return func(c string) bool { return cols[c] }
}

func TestDeriveOrderAndIDPrimaryKeySingleCol(t *testing.T) {
	keys := map[string]Key{"PRIMARY": {Name: "PRIMARY", Cols: []string{"id"}}}
	order, idCols := DeriveOrderAndID(keys, []string{"id", "name"}, isIntCol(nil))
	assert.Equal(t, "id", order)
	assert.Equal(t, []string{"id"}, idCols)
}

func TestDeriveOrderAndIDCompositePrimaryKeyHasNoOrderCol(t *testing.T) {
	keys := map[string]Key{"PRIMARY": {Name: "PRIMARY", Cols: []string{"a", "b"}}}
	order, idCols := DeriveOrderAndID(keys, []string{"a", "b", "c"}, isIntCol(nil))
	assert.Equal(t, "", order)
	assert.Equal(t, []string{"a", "b"}, idCols)
}

func TestDeriveOrderAndIDCompositePrimaryKeyStillUsesUniqueKeyForOrderCol(t *testing.T) {
	keys := map[string]Key{
		"PRIMARY": {Name: "PRIMARY", Cols: []string{"a", "b"}},
		"uniq_c":  {Name: "uniq_c", Cols: []string{"c"}},
	}
	order, idCols := DeriveOrderAndID(keys, []string{"a", "b", "c"}, isIntCol(map[string]bool{"c": true}))
	assert.Equal(t, "c", order)
	assert.Equal(t, []string{"a", "b"}, idCols, "idCols stay tied to the primary key, not the order-col key")
}

func TestDeriveOrderAndIDFallsBackToSmallestIntegerUniqueKey(t *testing.T) {
	keys := map[string]Key{
		"uniq_b": {Name: "uniq_b", Cols: []string{"b"}},
		"uniq_a": {Name: "uniq_a", Cols: []string{"a"}},
	}
	order, idCols := DeriveOrderAndID(keys, []string{"a", "b"}, isIntCol(map[string]bool{"a": true, "b": true}))
	assert.Equal(t, "a", order)
	assert.Equal(t, []string{"a"}, idCols)
}

func TestDeriveOrderAndIDSkipsNonIntegerUniqueKeys(t *testing.T) {
	keys := map[string]Key{"uniq_name": {Name: "uniq_name", Cols: []string{"name"}}}
	order, idCols := DeriveOrderAndID(keys, []string{"name", "id"}, isIntCol(nil))
	assert.Equal(t, "", order)
	assert.Equal(t, []string{"name", "id"}, idCols)
}

func TestDeriveOrderAndIDNoUsableKeyFallsBackToAllCols(t *testing.T) {
	order, idCols := DeriveOrderAndID(nil, []string{"a", "b"}, isIntCol(nil))
	assert.Equal(t, "", order)
	assert.Equal(t, []string{"a", "b"}, idCols)
}
