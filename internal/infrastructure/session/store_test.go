package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/session"
)

const testReturnID = "v1:1:03/28/78/0033:10021668:2018-04-01:2019-03-31"

type recordingWriter struct {
	saved []*returns.WaterReturn
	err   error
}

func (w *recordingWriter) SaveCompleted(_ context.Context, wr *returns.WaterReturn) error {
	if w.err != nil {
		return w.err
	}
	w.saved = append(w.saved, wr)
	return nil
}

func newTestStore(t *testing.T) (*session.Store, *miniredis.Miniredis, *recordingWriter) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	writer := &recordingWriter{}
	return session.NewStore(client, writer, zaptest.NewLogger(t)), mr, writer
}

func newSessionReturn(t *testing.T) *returns.WaterReturn {
	t.Helper()

	wr, err := returns.NewWaterReturn(
		testReturnID,
		"03/28/78/0033",
		time.Date(2018, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2019, 3, 31, 0, 0, 0, 0, time.UTC),
		values.MustNewFrequency(values.FrequencyMonth),
		returns.Metadata{Nald: values.MustNewAbstractionPeriod(1, 4, 31, 10)},
	)
	require.NoError(t, err)
	return wr
}

func TestStoreRoundTrip(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	wr := newSessionReturn(t)
	require.NoError(t, wr.Reading.SetMethod(returns.MethodOneMeter))
	wr.SetNilReturn(false)

	require.NoError(t, store.Set(ctx, wr))

	got, err := store.Get(ctx, testReturnID)
	require.NoError(t, err)
	assert.Equal(t, wr.ReturnID, got.ReturnID)
	assert.Equal(t, wr.LicenceNumber, got.LicenceNumber)
	assert.True(t, got.Reading.IsOneMeter())
	assert.True(t, got.Reading.IsMeasured(), "cascaded reading type survives the round trip")
}

func TestStoreGetMissing(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.Get(context.Background(), testReturnID)
	assert.True(t, errors.IsNotFound(err))
}

func TestStoreSetRefreshesTTL(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, newSessionReturn(t)))

	mr.FastForward(session.DefaultTTL - time.Hour)
	require.NoError(t, store.Set(ctx, newSessionReturn(t)))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, testReturnID)
	assert.NoError(t, err, "second set refreshed the TTL")

	mr.FastForward(session.DefaultTTL)
	_, err = store.Get(ctx, testReturnID)
	assert.True(t, errors.IsNotFound(err), "state expires after the TTL")
}

func TestStoreSubmit(t *testing.T) {
	store, mr, writer := newTestStore(t)
	ctx := context.Background()

	wr := newSessionReturn(t)
	require.NoError(t, store.Set(ctx, wr))

	wr.SetStatus(returns.StatusCompleted)
	wr.IncrementVersionNumber()
	require.NoError(t, store.Submit(ctx, wr))

	require.Len(t, writer.saved, 1)
	assert.Equal(t, returns.StatusCompleted, writer.saved[0].Status)
	assert.False(t, mr.Exists(session.ReturnPrefix+testReturnID),
		"working copy cleared after submission")
}

func TestStoreSubmitWriterFailure(t *testing.T) {
	store, mr, writer := newTestStore(t)
	ctx := context.Background()

	wr := newSessionReturn(t)
	require.NoError(t, store.Set(ctx, wr))

	writer.err = assert.AnError
	require.Error(t, store.Submit(ctx, wr))
	assert.True(t, mr.Exists(session.ReturnPrefix+testReturnID),
		"working copy kept when persistence fails")
}

func TestStoreGetCorruptPayload(t *testing.T) {
	store, mr, _ := newTestStore(t)

	require.NoError(t, mr.Set(session.ReturnPrefix+testReturnID, "{not json"))
	_, err := store.Get(context.Background(), testReturnID)
	assert.Error(t, err)
}
