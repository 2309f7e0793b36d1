package stopper

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopClosesStoppingChannel(t *testing.T) {
	sctx := WithContext(context.Background())
	assert.False(t, sctx.IsStopping())

	sctx.Stop()
	assert.True(t, sctx.IsStopping())

	select {
	case <-sctx.Stopping():
	default:
		t.Fatal("Stopping channel should be closed after Stop")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	sctx := WithContext(context.Background())
	assert.NotPanics(t, func() {
		sctx.Stop()
		sctx.Stop()
	})
}

func TestWaitReturnsNilWhenNoTaskErrors(t *testing.T) {
	sctx := WithContext(context.Background())
	sctx.Go(func() error { return nil })
	require.NoError(t, sctx.Wait())
}

func TestGoErrorTriggersStopAndIsReturnedByWait(t *testing.T) {
	sctx := WithContext(context.Background())
	boom := errors.New("task failed")
	sctx.Go(func() error { return boom })

	err := sctx.Wait()
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.True(t, sctx.IsStopping())
}

func TestGoErrorStopsSiblingTasks(t *testing.T) {
	sctx := WithContext(context.Background())
	sctx.Go(func() error { return errors.New("boom") })
	sctx.Go(func() error {
		<-sctx.Stopping()
		return nil
	})

	done := make(chan struct{})
	go func() {
		sctx.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sibling task did not observe Stop in time")
	}
}

func TestEmbeddedContextDoneFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	sctx := WithContext(parent)

	select {
	case <-sctx.Done():
		t.Fatal("should not be done before parent cancel")
	default:
	}

	cancel()
	<-sctx.Done()
}
