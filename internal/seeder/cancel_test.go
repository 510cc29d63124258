package seeder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Lumos-Labs-HQ/formseed/internal/schema"
	"github.com/Lumos-Labs-HQ/formseed/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// memTarget records calls in memory. onCall runs before each call returns;
// fail, when set, decides the call's error. overlap is set if calls of two
// different kinds are ever in flight at once.
type memTarget struct {
	calls    atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64
	overlap  atomic.Bool
	byKind   [3]atomic.Int64
	onCall   func(ctx context.Context)
	fail     func(kind schema.Kind) error
}

var kindSlot = map[schema.Kind]int{schema.KindAccount: 0, schema.KindSurvey: 1, schema.KindResponse: 2}

func (m *memTarget) call(ctx context.Context, kind schema.Kind) (string, error) {
	n := m.calls.Add(1)
	cur := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if cur <= p || m.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	slot := kindSlot[kind]
	m.byKind[slot].Add(1)
	defer m.byKind[slot].Add(-1)
	for other := range m.byKind {
		if other != slot && m.byKind[other].Load() > 0 {
			m.overlap.Store(true)
		}
	}

	if m.onCall != nil {
		m.onCall(ctx)
	}
	if m.fail != nil {
		if err := m.fail(kind); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s_%d", kind, n), nil
}

func (m *memTarget) CreateAccount(ctx context.Context, _ target.AccountPayload) (string, error) {
	return m.call(ctx, schema.KindAccount)
}

func (m *memTarget) CreateSurvey(ctx context.Context, _ target.SurveyPayload) (string, error) {
	return m.call(ctx, schema.KindSurvey)
}

func (m *memTarget) SubmitResponse(ctx context.Context, _ string, _ target.ResponsePayload) (string, error) {
	return m.call(ctx, schema.KindResponse)
}

func TestSeedCancellationStopsNewCalls(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	mem := &memTarget{}
	mem.onCall = func(callCtx context.Context) {
		once.Do(cancel)
		// The in-flight call itself is not cancelled.
		assert.NoError(t, callCtx.Err())
	}

	opts := fastRetry
	opts.Concurrency = 1
	s := NewSeeder(writeBatch(t, testBatch()), mem, mem, opts, nil)

	report, err := s.Seed(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)

	assert.Equal(t, int64(1), mem.calls.Load())
	assert.Equal(t, 1, report.Created[schema.KindAccount])
	assert.Equal(t, 11, report.Total())

	// a2 and s1 could have been sent; everything below an uncreated
	// parent is an unresolved reference even in a cancelled run.
	for _, key := range []string{"a2", "s1"} {
		o := outcomeOf(t, report, key)
		assert.Equal(t, StatusSkipped, o.Status, key)
		assert.Equal(t, ReasonCancelled, o.Reason, key)
	}
	assert.Equal(t, ReasonUnresolvedReference, outcomeOf(t, report, "s2").Reason)
	for _, o := range report.Outcomes {
		if o.Kind == schema.KindResponse {
			assert.Equal(t, StatusSkipped, o.Status, o.Key)
			assert.Equal(t, ReasonUnresolvedReference, o.Reason, o.Key)
		}
	}
}

func TestSeedCancelledDuringBackoff(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	mem := &memTarget{
		onCall: func(context.Context) { once.Do(cancel) },
		fail: func(schema.Kind) error {
			return &target.Error{Op: "create account", Status: 503, Body: "unavailable", Transient: true}
		},
	}

	opts := Options{Concurrency: 1, MaxAttempts: 10, InitialBackoff: time.Second, MaxBackoff: 2 * time.Second}
	s := NewSeeder(writeBatch(t, testBatch()), mem, mem, opts, nil)

	start := time.Now()
	report, err := s.Seed(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "the backoff wait is abandoned")

	a1 := outcomeOf(t, report, "a1")
	assert.Equal(t, StatusFailed, a1.Status)
	assert.Equal(t, ReasonCancelled, a1.Reason)
	assert.Equal(t, 1, a1.Attempts)
	assert.Equal(t, 503, a1.HTTPStatus)
	assert.Contains(t, a1.Detail, "status 503")

	assert.Equal(t, ReasonCancelled, outcomeOf(t, report, "a2").Reason)
	assert.Equal(t, ReasonUnresolvedReference, outcomeOf(t, report, "s1").Reason)
	assert.Equal(t, int64(1), mem.calls.Load())
}

func TestSeedTiersDoNotOverlap(t *testing.T) {
	defer goleak.VerifyNone(t)

	mem := &memTarget{onCall: func(context.Context) { time.Sleep(2 * time.Millisecond) }}
	opts := fastRetry
	opts.Concurrency = 8
	s := NewSeeder(writeBatch(t, testBatch()), mem, mem, opts, nil)

	report, err := s.Seed(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Greater(t, mem.peak.Load(), int64(1), "calls within a tier run concurrently")
	assert.False(t, mem.overlap.Load(), "a tier started before the previous one finished")
}

func TestSeedRespectsConcurrencyLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := testBatch()
	for i := 0; i < 40; i++ {
		b.Responses = append(b.Responses, schema.Response{
			Key: fmt.Sprintf("bulk-%d", i), SurveyKey: "s2", Finished: true,
			Answers: []schema.Answer{{QuestionID: "q1", Value: "ok"}},
		})
	}

	mem := &memTarget{}
	opts := fastRetry
	opts.Concurrency = 4
	s := NewSeeder(writeBatch(t, b), mem, mem, opts, nil)

	report, err := s.Seed(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, int64(51), mem.calls.Load())
	assert.LessOrEqual(t, mem.peak.Load(), int64(4))
}
