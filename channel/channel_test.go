package channel_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/concurrency-kit/syncx/channel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// S1 — bounded backpressure.
func TestScenarioS1BoundedBackpressure(t *testing.T) {
	ctx := context.Background()
	sender, receiver := channel.Bounded[int](2)
	defer sender.Close()
	defer receiver.Close()

	require.NoError(t, sender.Send(ctx, 1))
	require.NoError(t, sender.Send(ctx, 2))

	thirdSent := make(chan struct{})
	go func() {
		require.NoError(t, sender.Send(ctx, 3))
		close(thirdSent)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-thirdSent:
		t.Fatal("third send should have blocked on a full buffer")
	default:
	}

	v, err := receiver.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	select {
	case <-thirdSent:
	case <-time.After(time.Second):
		t.Fatal("third send never completed after headroom freed")
	}

	v, err = receiver.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, v)

	v, err = receiver.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, v)
}

// S2 — unbounded multi-producer: 4 senders each send 100 sequential
// integers; order is preserved per-sender, and the multiset received
// equals the union of everything sent.
func TestScenarioS2UnboundedMultiProducer(t *testing.T) {
	ctx := context.Background()
	sender, receiver := channel.Unbounded[int]()
	defer receiver.Close()

	const producers = 4
	const perProducer = 100

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		s := sender.Clone()
		p := p
		go func() {
			defer wg.Done()
			defer s.Close()
			for i := 0; i < perProducer; i++ {
				require.NoError(t, s.Send(ctx, p*perProducer+i))
			}
		}()
	}
	sender.Close()
	wg.Wait()

	got := make([]int, 0, producers*perProducer)
	for i := 0; i < producers*perProducer; i++ {
		v, err := receiver.Recv(ctx)
		require.NoError(t, err)
		got = append(got, v)
	}

	perProducerSeen := make([][]int, producers)
	for _, v := range got {
		p := v / perProducer
		perProducerSeen[p] = append(perProducerSeen[p], v)
	}
	for p := 0; p < producers; p++ {
		want := make([]int, perProducer)
		for i := range want {
			want[i] = p*perProducer + i
		}
		if diff := cmp.Diff(want, perProducerSeen[p]); diff != "" {
			t.Fatalf("producer %d stream order mismatch (-want +got):\n%s", p, diff)
		}
	}

	sortedGot := append([]int(nil), got...)
	sort.Ints(sortedGot)
	wantAll := make([]int, producers*perProducer)
	for i := range wantAll {
		wantAll[i] = i
	}
	if diff := cmp.Diff(wantAll, sortedGot); diff != "" {
		t.Fatalf("received multiset mismatch (-want +got):\n%s", diff)
	}
}

// S3 — disconnect with value return.
func TestScenarioS3DisconnectReturnsValue(t *testing.T) {
	ctx := context.Background()
	sender, receiver := channel.Bounded[string](1)
	receiver.Close()

	err := sender.Send(ctx, "x")
	var sendErr *channel.SendError[string]
	require.True(t, errors.As(err, &sendErr))
	require.Equal(t, "x", sendErr.Value)
}

func TestRecvAfterSenderDropDrainsThenErrors(t *testing.T) {
	ctx := context.Background()
	sender, receiver := channel.Unbounded[int]()
	defer receiver.Close()

	require.NoError(t, sender.Send(ctx, 1))
	sender.Close()

	v, err := receiver.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, err = receiver.Recv(ctx)
	require.ErrorIs(t, err, channel.RecvError{})
}

func TestBlockedRecvWokenBySenderDisconnect(t *testing.T) {
	sender, receiver := channel.Unbounded[int]()
	defer receiver.Close()

	recvErr := make(chan error, 1)
	go func() {
		_, err := receiver.Recv(context.Background())
		recvErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	sender.Close()

	select {
	case err := <-recvErr:
		require.ErrorIs(t, err, channel.RecvError{})
	case <-time.After(time.Second):
		t.Fatal("receiver blocked on empty channel was never woken by sender disconnect")
	}
}

func TestBlockedSendWokenByReceiverDisconnect(t *testing.T) {
	sender, receiver := channel.Bounded[int](1)
	defer sender.Close()

	require.NoError(t, sender.Send(context.Background(), 1))

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- sender.Send(context.Background(), 2)
	}()
	time.Sleep(20 * time.Millisecond)
	receiver.Close()

	select {
	case err := <-sendErr:
		var se *channel.SendError[int]
		require.ErrorAs(t, err, &se)
		require.Equal(t, 2, se.Value)
	case <-time.After(time.Second):
		t.Fatal("sender blocked on a full channel was never woken by receiver disconnect")
	}
}

func TestSendCancelLeavesCallerOwningValue(t *testing.T) {
	sender, receiver := channel.Bounded[int](1)
	defer sender.Close()
	defer receiver.Close()

	require.NoError(t, sender.Send(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := sender.Send(ctx, 2)
	require.ErrorIs(t, err, context.Canceled)
}
