package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classattend/internal/classroom"
	"classattend/internal/ledger"
	"classattend/internal/queue"
)

type call struct {
	classID string
	date    string
}

type fakeSweeper struct {
	mu    sync.Mutex
	calls []call
	err   error
	done  chan struct{}
}

func (f *fakeSweeper) Sweep(_ context.Context, _ time.Time, classID, date string) (classroom.SweepReport, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{classID, date})
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return classroom.SweepReport{Classes: 1, Marked: 2}, f.err
}

func TestSchedule(t *testing.T) {
	edt := time.FixedZone("EDT", -4*3600)
	at := ledger.Clock{Hour: 20, Minute: 0}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2024, 9, 3, 9, 0, 0, 0, edt),
			want: time.Date(2024, 9, 3, 20, 0, 0, 0, edt),
		},
		{
			name: "exactly at run time goes to tomorrow",
			now:  time.Date(2024, 9, 3, 20, 0, 0, 0, edt),
			want: time.Date(2024, 9, 4, 20, 0, 0, 0, edt),
		},
		{
			name: "after run time",
			now:  time.Date(2024, 9, 3, 22, 30, 0, 0, edt),
			want: time.Date(2024, 9, 4, 20, 0, 0, 0, edt),
		},
		{
			name: "utc input is read in the zone",
			now:  time.Date(2024, 9, 4, 1, 0, 0, 0, time.UTC),
			want: time.Date(2024, 9, 4, 20, 0, 0, 0, edt),
		},
		{
			name: "month rollover",
			now:  time.Date(2024, 9, 30, 21, 0, 0, 0, edt),
			want: time.Date(2024, 10, 1, 20, 0, 0, 0, edt),
		},
	}
	sched, err := Schedule(at, edt)
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sched.Next(tt.now)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestScheduleMinute(t *testing.T) {
	sched, err := Schedule(ledger.Clock{Hour: 7, Minute: 45}, time.UTC)
	require.NoError(t, err)
	got := sched.Next(time.Date(2024, 9, 3, 7, 44, 30, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 9, 3, 7, 45, 0, 0, time.UTC), got.UTC())
}

func TestHandle(t *testing.T) {
	f := &fakeSweeper{}
	r := New(f, nil, ledger.Clock{Hour: 20}, time.UTC)
	ctx := context.Background()

	msg, err := queue.NewSweep(queue.SweepRequest{ClassID: "c1", Date: "2024-09-03", RequestedBy: "t1"})
	require.NoError(t, err)
	require.NoError(t, r.Handle(ctx, msg))
	require.NoError(t, r.Handle(ctx, queue.Message{Type: "checkin"}))
	assert.Equal(t, []call{{"c1", "2024-09-03"}}, f.calls)

	assert.Error(t, r.Handle(ctx, queue.Message{Type: queue.TypeSweep, Body: []byte("{")}))

	f.err = classroom.ErrClassNotFound
	err = r.Handle(ctx, msg)
	assert.True(t, errors.Is(err, classroom.ErrClassNotFound))
}

func TestRunConsumesQueue(t *testing.T) {
	f := &fakeSweeper{done: make(chan struct{}, 1)}
	q := queue.NewInMemory(4)
	// daily run about 23 hours away
	earlier := time.Now().UTC().Add(-time.Hour)
	r := New(f, q, ledger.Clock{Hour: earlier.Hour(), Minute: earlier.Minute()}, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	msg, err := queue.NewSweep(queue.SweepRequest{ClassID: "c9"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, msg))

	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep message not handled")
	}
	cancel()
	require.NoError(t, <-errc)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []call{{"c9", ""}}, f.calls)
}
