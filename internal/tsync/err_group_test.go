package tsync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/topi314/campus-events/internal/xerrors"
)

func TestErrorGroupRunsAllTasks(t *testing.T) {
	eg, _ := ErrorGroupWithContext(context.Background())
	eg.SetLimit(2)

	var ran atomic.Int32
	errA := errors.New("a")
	errB := errors.New("b")
	for i := range 5 {
		eg.Go(func() error {
			ran.Add(1)
			switch i {
			case 1:
				return errA
			case 3:
				return errB
			}
			return nil
		})
	}

	err := eg.Wait()
	assert.Equal(t, int32(5), ran.Load())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, xerrors.Unwrap(err), 2)
}
