package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roster/internal/ledger"
)

func sampleState() ledger.State {
	paid := time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC)
	return ledger.State{
		Students: []ledger.Student{
			{ID: "s1", Name: "Ana Silva", ContractedPackage: 8, LessonBalance: 7, LastPaymentDate: paid, CycleExpiration: paid.AddDate(0, 0, 20)},
			{ID: "s2", Name: "Bruno", ContractedPackage: 4, LessonBalance: 4, LastPaymentDate: paid, CycleExpiration: paid.AddDate(0, 0, 20)},
		},
		Entries: []ledger.Entry{
			{ID: "e3", Timestamp: paid.Add(time.Hour), StudentID: "s1", StudentName: "Ana Silva", Action: ledger.ActionCheckIn, Adjustment: -1},
			{ID: "e2", Timestamp: paid, StudentID: "s2", StudentName: "Bruno", Action: ledger.ActionDeposit, Adjustment: 4},
			{ID: "e1", Timestamp: paid, StudentID: "s1", StudentName: "Ana Silva", Action: ledger.ActionDeposit, Adjustment: 8},
		},
	}
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewState(NewMemory(), zerolog.Nop())
	want := sampleState()

	require.NoError(t, st.Save(ctx, want))

	assert.Equal(t, want, st.Load(ctx))
}

func TestStateRoundTripThroughLedger(t *testing.T) {
	ctx := context.Background()
	st := NewState(NewMemory(), zerolog.Nop())

	l := ledger.New()
	s := l.Register("Ana Silva", 8)
	_, _ = l.CheckIn(s.ID)
	_, _ = l.Deposit(s.ID, 12)
	require.NoError(t, st.Save(ctx, l.Snapshot()))

	restored := ledger.New()
	restored.Restore(st.Load(ctx))
	assert.Equal(t, l.Snapshot(), restored.Snapshot())
}

func TestStateWireFormat(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	st := NewState(kv, zerolog.Nop())
	require.NoError(t, st.Save(ctx, sampleState()))

	raw, err := kv.Get(ctx, LogsKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"studentId":"s1"`)
	assert.Contains(t, string(raw), `"action":"CHECK_IN"`)

	raw, err = kv.Get(ctx, StudentsKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"lessonBalance":7`)
	assert.Contains(t, string(raw), `"cycleExpiration":"2026-04-21T10:30:00Z"`)
}

func TestStateLoadAbsentKeys(t *testing.T) {
	got := NewState(NewMemory(), zerolog.Nop()).Load(context.Background())

	assert.NotNil(t, got.Students)
	assert.NotNil(t, got.Entries)
	assert.Empty(t, got.Students)
	assert.Empty(t, got.Entries)
}

func TestStateLoadCorruptValueFallsBackPerKey(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	st := NewState(kv, zerolog.Nop())
	require.NoError(t, st.Save(ctx, sampleState()))
	require.NoError(t, kv.Set(ctx, StudentsKey, []byte(`{not json`)))

	got := st.Load(ctx)

	assert.Empty(t, got.Students)
	assert.Equal(t, sampleState().Entries, got.Entries)
}

func TestStateLoadNullValue(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Set(ctx, LogsKey, []byte(`null`)))

	got := NewState(kv, zerolog.Nop()).Load(ctx)
	assert.NotNil(t, got.Entries)
	assert.Empty(t, got.Entries)
}

type brokenKV struct {
	*Memory
	failKey string
	writes  []string
}

func (b *brokenKV) Get(ctx context.Context, key string) ([]byte, error) {
	if key == b.failKey {
		return nil, errors.New("disk on fire")
	}
	return b.Memory.Get(ctx, key)
}

func (b *brokenKV) Set(ctx context.Context, key string, value []byte) error {
	b.writes = append(b.writes, key)
	if key == b.failKey {
		return errors.New("disk on fire")
	}
	return b.Memory.Set(ctx, key, value)
}

func TestStateLoadUnreadableKey(t *testing.T) {
	ctx := context.Background()
	kv := &brokenKV{Memory: NewMemory(), failKey: LogsKey}
	require.NoError(t, kv.Memory.Set(ctx, StudentsKey, []byte(`[{"id":"s1","name":"Ana"}]`)))

	got := NewState(kv, zerolog.Nop()).Load(ctx)

	require.Len(t, got.Students, 1)
	assert.Equal(t, "Ana", got.Students[0].Name)
	assert.Empty(t, got.Entries)
}

func TestStateSaveAttemptsBothKeys(t *testing.T) {
	kv := &brokenKV{Memory: NewMemory(), failKey: StudentsKey}

	err := NewState(kv, zerolog.Nop()).Save(context.Background(), sampleState())

	assert.Error(t, err)
	assert.Equal(t, []string{StudentsKey, LogsKey}, kv.writes)
	_, getErr := kv.Memory.Get(context.Background(), LogsKey)
	assert.NoError(t, getErr)
}

func TestStateSaveNilCollections(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, NewState(kv, zerolog.Nop()).Save(ctx, ledger.State{}))

	raw, err := kv.Get(ctx, StudentsKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}
