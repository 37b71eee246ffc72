package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSignal_Coalesces(t *testing.T) {
	o := New()
	for i := 0; i < 5; i++ {
		o.DataReady()
	}
	assert.True(t, o.SensorDataReady.Pending())

	require.NoError(t, o.WaitDataReady(context.Background()))
	assert.False(t, o.SensorDataReady.Pending())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.WaitDataReady(ctx), context.DeadlineExceeded)
}

func TestSignal_Clear(t *testing.T) {
	o := New()
	assert.False(t, o.EnrollRequested.Clear())
	o.Raise(RequestEnroll)
	assert.True(t, o.EnrollRequested.Clear())
	assert.False(t, o.EnrollRequested.Pending())
}

func TestWaitRequest(t *testing.T) {
	t.Run("enroll", func(t *testing.T) {
		o := New()
		o.Raise(RequestEnroll)
		r, err := o.WaitRequest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, RequestEnroll, r)
	})

	t.Run("authenticate", func(t *testing.T) {
		o := New()
		o.Raise(RequestAuthenticate)
		r, err := o.WaitRequest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, RequestAuthenticate, r)
	})

	t.Run("both pending prefers enroll and consumes both", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			o := New()
			o.Raise(RequestAuthenticate)
			o.Raise(RequestEnroll)
			r, err := o.WaitRequest(context.Background())
			require.NoError(t, err)
			assert.Equal(t, RequestEnroll, r)
			assert.False(t, o.EnrollRequested.Pending())
			assert.False(t, o.AuthenticateRequested.Pending())
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		o := New()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := o.WaitRequest(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("blocks until raised", func(t *testing.T) {
		o := New()
		done := make(chan Request)
		go func() {
			r, _ := o.WaitRequest(context.Background())
			done <- r
		}()
		time.Sleep(10 * time.Millisecond)
		o.Raise(RequestAuthenticate)
		select {
		case r := <-done:
			assert.Equal(t, RequestAuthenticate, r)
		case <-time.After(time.Second):
			t.Fatal("WaitRequest did not wake")
		}
	})
}

func TestClearRequests(t *testing.T) {
	o := New()
	o.Raise(RequestEnroll)
	o.Raise(RequestAuthenticate)
	o.ClearRequests()
	assert.False(t, o.EnrollRequested.Pending())
	assert.False(t, o.AuthenticateRequested.Pending())
}

func TestDataReady_ConcurrentRaisers(t *testing.T) {
	o := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				o.DataReady()
			}
		}()
	}
	wg.Wait()

	require.NoError(t, o.WaitDataReady(context.Background()))
	assert.False(t, o.SensorDataReady.Pending(), "raises must coalesce into one occurrence")
}

func TestParseRequest(t *testing.T) {
	for in, want := range map[string]Request{
		"enroll": RequestEnroll, "record": RequestEnroll,
		"authenticate": RequestAuthenticate, "unlock": RequestAuthenticate,
	} {
		got, err := ParseRequest(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseRequest("reset")
	assert.Error(t, err)
	assert.Equal(t, "enroll", RequestEnroll.String())
}
