package extractor

import (
	"testing"

	"github.com/cockroachdb/rdb-replicate/internal/colval"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotRowCarriesPosition(t *testing.T) {
	row := model.Row{"id": colval.NewInt64(5)}
	item := snapshotRow("mysql", "app", "users", "id", "5", row)

	assert.Equal(t, model.PositionRdbSnapshot, item.Position.Type)
	assert.Equal(t, "5", item.Position.Value)

	dml, ok := item.Event.(model.Dml)
	assert.True(t, ok)
	assert.Equal(t, model.EventInsert, dml.Row.Kind)
	assert.Equal(t, row, dml.Row.After)
	assert.Nil(t, dml.Row.Before)
}

func TestLessLexNumericComparesAsIntegersWhenPossible(t *testing.T) {
	assert.True(t, lessLexNumeric("9", "10"))
	assert.False(t, lessLexNumeric("10", "9"))
}

func TestLessLexNumericFallsBackToLexicalForNonNumeric(t *testing.T) {
	assert.True(t, lessLexNumeric("abc", "abd"))
	// Mixed numeric/non-numeric cursors fall back to a plain byte
	// comparison rather than a numeric one.
	assert.True(t, lessLexNumeric("10", "abc"))
}
