package cancel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_Trigger(t *testing.T) {
	t.Run("fires exactly once", func(t *testing.T) {
		tok := New()
		assert.False(t, tok.Fired())
		assert.Equal(t, ReasonNone, tok.Reason())

		assert.True(t, tok.Trigger(ReasonTimeout))
		assert.False(t, tok.Trigger(ReasonCanceled))

		assert.True(t, tok.Fired())
		assert.Equal(t, ReasonTimeout, tok.Reason())
	})

	t.Run("closes done channel", func(t *testing.T) {
		tok := New()
		tok.Trigger(ReasonCanceled)

		select {
		case <-tok.Done():
		default:
			t.Fatal("expected done channel to be closed")
		}
	})

	t.Run("concurrent triggers fire once", func(t *testing.T) {
		tok := New()
		var calls int32
		tok.OnFire(func(Reason) { atomic.AddInt32(&calls, 1) })

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if tok.Trigger(ReasonTimeout) {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestToken_OnFire(t *testing.T) {
	t.Run("invoked at trigger time", func(t *testing.T) {
		tok := New()
		var got Reason
		tok.OnFire(func(r Reason) { got = r })
		assert.Equal(t, ReasonNone, got)

		tok.Trigger(ReasonSuperseded)
		assert.Equal(t, ReasonSuperseded, got)
	})

	t.Run("invoked immediately when already fired", func(t *testing.T) {
		tok := New()
		tok.Trigger(ReasonTimeout)

		var got Reason
		tok.OnFire(func(r Reason) { got = r })
		assert.Equal(t, ReasonTimeout, got)
	})
}

func TestToken_Detach(t *testing.T) {
	t.Run("drops observers and ignores later triggers", func(t *testing.T) {
		tok := New()
		called := false
		tok.OnFire(func(Reason) { called = true })

		tok.Detach()
		assert.True(t, tok.Detached())
		assert.False(t, tok.Trigger(ReasonTimeout))
		assert.False(t, tok.Fired())
		assert.False(t, called)
	})

	t.Run("keeps fired state", func(t *testing.T) {
		tok := New()
		tok.Trigger(ReasonCanceled)
		tok.Detach()

		assert.True(t, tok.Fired())
		assert.Equal(t, ReasonCanceled, tok.Reason())
	})
}

func TestToken_Bind(t *testing.T) {
	t.Run("cancels context with cause when fired", func(t *testing.T) {
		tok := New()
		ctx, release := tok.Bind(context.Background())
		defer release()

		tok.Trigger(ReasonTimeout)

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("bound context was not canceled")
		}
		require.ErrorIs(t, context.Cause(ctx), ErrFired)
	})

	t.Run("release cancels without firing", func(t *testing.T) {
		tok := New()
		ctx, release := tok.Bind(context.Background())
		release()

		<-ctx.Done()
		assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
		assert.False(t, tok.Fired())
	})

	t.Run("already fired token yields canceled context", func(t *testing.T) {
		tok := New()
		tok.Trigger(ReasonCanceled)

		ctx, release := tok.Bind(context.Background())
		defer release()
		assert.Error(t, ctx.Err())
		assert.ErrorIs(t, context.Cause(ctx), ErrFired)
	})

	t.Run("bound contexts cancel before observers run", func(t *testing.T) {
		tok := New()
		var canceledFirst bool
		var ctx context.Context
		tok.OnFire(func(Reason) {
			canceledFirst = ctx.Err() != nil
		})
		ctx, release := tok.Bind(context.Background())
		defer release()

		tok.Trigger(ReasonTimeout)
		assert.True(t, canceledFirst, "observer ran while the bound context was still live")
	})

	t.Run("detached token never cancels bound context", func(t *testing.T) {
		tok := New()
		tok.Detach()
		ctx, release := tok.Bind(context.Background())
		defer release()

		tok.Trigger(ReasonTimeout)
		assert.NoError(t, ctx.Err())
	})
}
