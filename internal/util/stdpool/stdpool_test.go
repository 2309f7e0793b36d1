package stdpool

import (
	sqldriver "database/sql/driver"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsStartupErrorMatchesBadConn(t *testing.T) {
	assert.True(t, isStartupError(sqldriver.ErrBadConn))
	assert.True(t, isStartupError(errors.Wrap(sqldriver.ErrBadConn, "dialing")))
}

func TestIsStartupErrorRejectsOtherErrors(t *testing.T) {
	assert.False(t, isStartupError(errors.New("permission denied")))
}
