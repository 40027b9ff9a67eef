package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendsim/vendsim-go/pkg/vending"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

func newTestFixture(t *testing.T, broken bool) *Fixture {
	t.Helper()
	f, err := NewFixture(vending.DefaultConfig(), broken)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestFixtureCollectQuiet(t *testing.T) {
	f := newTestFixture(t, false)

	f.UserOut.Push(wire.AddValueFrame(100))
	msgs, err := f.Collect(context.Background(), 0, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, wire.KeyCurFunds, msgs[0].Key)
	assert.Equal(t, uint32(100), f.Funds())

	// Nothing further arrives.
	msgs, err = f.Collect(context.Background(), 0, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestFixtureCollectCount(t *testing.T) {
	f := newTestFixture(t, false)

	small, err := f.Pin("SMALL")
	require.NoError(t, err)
	require.NoError(t, small.Press(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msgs, err := f.Collect(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, wire.KeyOrder, msgs[0].Key)
}

func TestFixtureCollectCountTimesOutOnInertDevice(t *testing.T) {
	f := newTestFixture(t, true)

	f.UserOut.Push(wire.AddValueFrame(100))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.Collect(ctx, 1, 0)
	require.Error(t, err)
	assert.Equal(t, ErrCatDevice, Classify(err))
}

func TestFixtureCollectAfterClose(t *testing.T) {
	f := newTestFixture(t, false)
	require.NoError(t, f.Device.Close())
	<-f.Device.Done()

	msgs, err := f.Collect(context.Background(), 0, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = f.Collect(context.Background(), 2, 0)
	assert.Equal(t, ErrCatDevice, Classify(err))
}

func TestFixtureUnknownPin(t *testing.T) {
	f := newTestFixture(t, false)
	_, err := f.Pin("coin")
	assert.Error(t, err)
}
