package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
)

type CacheTestSuite struct {
	suite.Suite
	client *Client
	mock   redismock.ClientMock
	cache  Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.client = &Client{rdb: db, logger: logging.NewNopLogger()}
	s.cache = NewCache(s.client, logging.NewNopLogger(), WithPrefix("test:"))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

type scanSummary struct {
	ParentKey  string `json:"parent_key"`
	ChildCount int    `json:"child_count"`
}

func (s *CacheTestSuite) TestGetHit() {
	want := scanSummary{ParentKey: "parent_51.53_-0.05", ChildCount: 144}
	data, err := json.Marshal(want)
	require.NoError(s.T(), err)
	s.mock.ExpectGet("test:parent:parent_51.53_-0.05").SetVal(string(data))

	var got scanSummary
	err = s.cache.Get(context.Background(), "parent:parent_51.53_-0.05", &got)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), want, got)
}

func (s *CacheTestSuite) TestGetMiss() {
	s.mock.ExpectGet("test:missing").RedisNil()

	var got scanSummary
	err := s.cache.Get(context.Background(), "missing", &got)
	assert.ErrorIs(s.T(), err, ErrCacheMiss)
}

func (s *CacheTestSuite) TestGetCorruptPayload() {
	s.mock.ExpectGet("test:bad").SetVal("{not json")

	var got scanSummary
	err := s.cache.Get(context.Background(), "bad", &got)
	assert.ErrorIs(s.T(), err, ErrSerializationFailed)
}

func (s *CacheTestSuite) TestSet() {
	// The write TTL carries jitter, so only the command shape is asserted.
	s.mock.CustomMatch(func(expected, actual []interface{}) error {
		return nil
	}).ExpectSet("test:k", nil, time.Minute).SetVal("OK")

	err := s.cache.Set(context.Background(), "k", scanSummary{ParentKey: "p"}, time.Minute)
	assert.NoError(s.T(), err)
}

func (s *CacheTestSuite) TestDelete() {
	s.mock.ExpectDel("test:a", "test:b").SetVal(2)
	assert.NoError(s.T(), s.cache.Delete(context.Background(), "a", "b"))
}

func (s *CacheTestSuite) TestDeleteNoKeys() {
	assert.NoError(s.T(), s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestExists() {
	s.mock.ExpectExists("test:k").SetVal(1)
	ok, err := s.cache.Exists(context.Background(), "k")
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)
}

func (s *CacheTestSuite) TestGetOrLoadHitSkipsLoader() {
	want := scanSummary{ParentKey: "parent_48.2_16.37", ChildCount: 9}
	data, err := json.Marshal(want)
	require.NoError(s.T(), err)
	s.mock.ExpectGet("test:parent:parent_48.2_16.37").SetVal(string(data))

	var got scanSummary
	err = s.cache.GetOrLoad(context.Background(), "parent:parent_48.2_16.37", &got, time.Minute,
		func(ctx context.Context) (interface{}, error) {
			s.T().Fatal("loader must not run on a cache hit")
			return nil, nil
		})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), want, got)
}

func (s *CacheTestSuite) TestGetOrLoadMissRunsLoader() {
	s.mock.ExpectGet("test:k").RedisNil()
	s.mock.CustomMatch(func(expected, actual []interface{}) error {
		return nil
	}).ExpectSet("test:k", nil, time.Minute).SetVal("OK")

	calls := 0
	var got scanSummary
	err := s.cache.GetOrLoad(context.Background(), "k", &got, time.Minute,
		func(ctx context.Context) (interface{}, error) {
			calls++
			return scanSummary{ParentKey: "p", ChildCount: 3}, nil
		})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, calls)
	assert.Equal(s.T(), scanSummary{ParentKey: "p", ChildCount: 3}, got)
}

func (s *CacheTestSuite) TestGetOrLoadLoaderError() {
	s.mock.ExpectGet("test:k").RedisNil()

	var got scanSummary
	err := s.cache.GetOrLoad(context.Background(), "k", &got, time.Minute,
		func(ctx context.Context) (interface{}, error) {
			return nil, assert.AnError
		})
	assert.ErrorIs(s.T(), err, assert.AnError)
}

func TestCacheTestSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}
