package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchChannel(t *testing.T) {
	cases := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*", "anything", true},
		{"*", "a/b/c", true},
		{"tx", "tx", true},
		{"tx", "rx", false},
		{"tx", "tx/sub", false},
		{"demo/*", "demo/temp", true},
		{"demo/*", "demo/temp/celsius", true},
		{"demo/*", "demo", false},
		{"demo/*", "demonstration/temp", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MatchChannel(c.pattern, c.name), "pattern %q name %q", c.pattern, c.name)
	}
}

func TestValidateChannel(t *testing.T) {
	assert.NoError(t, ValidateChannel("tx"))
	assert.NoError(t, ValidateChannel("demo/*"))
	assert.ErrorIs(t, ValidateChannel(""), ErrSubscribe)
	assert.ErrorIs(t, ValidateChannel("a b"), ErrSubscribe)
}

// startRouter binds a router on a loopback port and serves it until the test ends.
func startRouter(t *testing.T, scout bool) *Router {
	t.Helper()
	scoutAddr := ""
	if scout {
		scoutAddr = "127.0.0.1:0"
	}
	r := NewRouter("127.0.0.1:0", scoutAddr, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, r.Listen(ctx))
	go r.Serve(ctx)
	return r
}

func TestSessionPublishSubscribe(t *testing.T) {
	r := startRouter(t, false)

	sub, err := Dial(context.Background(), r.Addr().String(), zerolog.Nop())
	require.NoError(t, err)
	defer sub.Close()

	samples, err := sub.Subscribe("tx")
	require.NoError(t, err)

	pub, err := Dial(context.Background(), r.Addr().String(), zerolog.Nop())
	require.NoError(t, err)
	defer pub.Close()

	// Give the router a moment to register the subscription.
	time.Sleep(50 * time.Millisecond)

	payloads := [][]byte{{0x01, 0x02}, []byte("second"), {0xff}}
	for _, p := range payloads {
		require.NoError(t, pub.Publish("tx", p))
	}

	for i, want := range payloads {
		select {
		case got := <-samples:
			assert.Equal(t, "tx", got.Channel)
			assert.Equal(t, want, got.Payload)
			assert.False(t, got.ReceivedAt.IsZero())
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for sample %d", i)
		}
	}
}

func TestSessionWildcardSubscription(t *testing.T) {
	r := startRouter(t, false)

	sub, err := Dial(context.Background(), r.Addr().String(), zerolog.Nop())
	require.NoError(t, err)
	defer sub.Close()

	samples, err := sub.Subscribe("demo/*")
	require.NoError(t, err)

	pub, err := Dial(context.Background(), r.Addr().String(), zerolog.Nop())
	require.NoError(t, err)
	defer pub.Close()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, pub.Publish("other/temp", []byte("skip")))
	require.NoError(t, pub.Publish("demo/temp", []byte("keep")))

	select {
	case got := <-samples:
		assert.Equal(t, "demo/temp", got.Channel)
		assert.Equal(t, []byte("keep"), got.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for matching sample")
	}
}

func TestSessionFanOutToMultipleSubscribers(t *testing.T) {
	r := startRouter(t, false)

	var chans []<-chan Sample
	for i := 0; i < 3; i++ {
		s, err := Dial(context.Background(), r.Addr().String(), zerolog.Nop())
		require.NoError(t, err)
		defer s.Close()
		ch, err := s.Subscribe("*")
		require.NoError(t, err)
		chans = append(chans, ch)
	}

	pub, err := Dial(context.Background(), r.Addr().String(), zerolog.Nop())
	require.NoError(t, err)
	defer pub.Close()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, pub.Publish("tx", []byte("fan")))

	for i, ch := range chans {
		select {
		case got := <-ch:
			assert.Equal(t, []byte("fan"), got.Payload, "subscriber %d", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d got nothing", i)
		}
	}
}

func TestDialUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, "127.0.0.1:1", zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnect))
}

func TestSubscribeInvalidChannel(t *testing.T) {
	r := startRouter(t, false)
	s, err := Dial(context.Background(), r.Addr().String(), zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Subscribe("")
	assert.ErrorIs(t, err, ErrSubscribe)
}

func TestSubscriptionChannelClosesWithSession(t *testing.T) {
	r := startRouter(t, false)
	s, err := Dial(context.Background(), r.Addr().String(), zerolog.Nop())
	require.NoError(t, err)

	samples, err := s.Subscribe("tx")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	select {
	case _, ok := <-samples:
		assert.False(t, ok, "sample channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("sample channel not closed after session close")
	}
}

func TestScoutFindsRouter(t *testing.T) {
	r := startRouter(t, true)

	scoutAddr := r.pc.LocalAddr().String()
	locator, err := Scout(context.Background(), scoutAddr, time.Second)
	require.NoError(t, err)
	assert.Equal(t, r.Addr().String(), locator)

	s, err := Dial(context.Background(), locator, zerolog.Nop())
	require.NoError(t, err)
	s.Close()
}

func TestScoutTimesOutWithoutRouter(t *testing.T) {
	_, err := Scout(context.Background(), "127.0.0.1:65000", 100*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnect)
}
