package collector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/newthinker/bigthing/internal/collector/mocks"
	"github.com/newthinker/bigthing/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cached, *mocks.Provider, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	m := mocks.New()
	c := NewCached(m, db, CacheConfig{Prefix: "t:", TTL: time.Hour}, nil)
	c.now = func() time.Time { return time.Date(2025, 6, 2, 21, 0, 0, 0, time.UTC) }
	return c, m, mock
}

func TestCached_MissFetchesAndStores(t *testing.T) {
	c, m, mock := newTestCache(t)
	series := mocks.Series("AAA", mocks.Flat(5, 10))
	m.SetSeries(series)

	want, err := json.Marshal(series)
	require.NoError(t, err)

	key := "t:series:AAA:5:2025-06-02"
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, want, time.Hour).SetVal("OK")

	got, err := c.FetchSeries(context.Background(), "AAA", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Len())
	assert.Equal(t, 1, m.Calls("AAA"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCached_HitSkipsProvider(t *testing.T) {
	c, m, mock := newTestCache(t)
	series := mocks.Series("AAA", mocks.Flat(5, 10))
	b, err := json.Marshal(series)
	require.NoError(t, err)

	mock.ExpectGet("t:series:AAA:5:2025-06-02").SetVal(string(b))

	got, err := c.FetchSeries(context.Background(), "AAA", 5)
	require.NoError(t, err)
	assert.Equal(t, "AAA", got.Symbol)
	assert.Equal(t, 10.0, got.Last().Close)
	assert.Equal(t, 0, m.Calls("AAA"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCached_RedisDownFallsThrough(t *testing.T) {
	c, m, mock := newTestCache(t)
	series := mocks.Series("AAA", mocks.Flat(5, 10))
	m.SetSeries(series)
	want, _ := json.Marshal(series)

	key := "t:series:AAA:5:2025-06-02"
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, want, time.Hour).SetErr(errors.New("connection refused"))

	got, err := c.FetchSeries(context.Background(), "AAA", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	c, _, mock := newTestCache(t)

	mock.ExpectGet("t:fund:ZZZ:2025-06-02").RedisNil()

	_, err := c.FetchFundamentals(context.Background(), "ZZZ")
	assert.ErrorIs(t, err, core.ErrMissingFundamentals)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCached_Fundamentals(t *testing.T) {
	c, m, mock := newTestCache(t)
	f := &core.Fundamental{Symbol: "AAA", Sector: "Technology", EPSGrowth: core.Float(0.2)}
	m.SetFundamentals(f)
	want, _ := json.Marshal(f)

	key := "t:fund:AAA:2025-06-02"
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, want, time.Hour).SetVal("OK")

	got, err := c.FetchFundamentals(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Equal(t, "Technology", got.Sector)
	assert.InDelta(t, 0.2, *got.EPSGrowth, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}
