package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
)

type CacheTestSuite struct {
	suite.Suite
	client *Client
	mock   redismock.ClientMock
	cache  Cache
	log    logging.Logger
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.log = logging.NewNopLogger()

	s.client = &Client{
		rdb:    db,
		config: &RedisConfig{},
		logger: s.log,
	}

	s.cache = NewRedisCache(s.client, s.log, WithPrefix("test:"))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

type testStruct struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func (s *CacheTestSuite) TestGet_CacheHit() {
	val := testStruct{Name: "John", Age: 30}
	bytes, _ := json.Marshal(val)

	s.mock.ExpectGet("test:key1").SetVal(string(bytes))

	var dest testStruct
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), val, dest)
}

func (s *CacheTestSuite) TestGet_CacheMiss() {
	s.mock.ExpectGet("test:key1").RedisNil()

	var dest testStruct
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.Equal(s.T(), ErrCacheMiss, err)
}

func (s *CacheTestSuite) TestGet_NullCacheMarker() {
	s.mock.ExpectGet("test:key1").SetVal("__null__")

	var dest testStruct
	err := s.cache.Get(context.Background(), "key1", &dest)

	// Negative-cached entries read as misses.
	assert.Equal(s.T(), ErrCacheMiss, err)
}

func (s *CacheTestSuite) TestDelete_Success() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)

	err := s.cache.Delete(context.Background(), "k1", "k2")
	assert.NoError(s.T(), err)
}

func (s *CacheTestSuite) TestDelete_NoKeys() {
	assert.NoError(s.T(), s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestExists_True() {
	s.mock.ExpectExists("test:k1").SetVal(1)

	exists, err := s.cache.Exists(context.Background(), "k1")
	assert.NoError(s.T(), err)
	assert.True(s.T(), exists)
}

func (s *CacheTestSuite) TestGetOrSet_HitSkipsLoader() {
	val := testStruct{Name: "John", Age: 30}
	bytes, _ := json.Marshal(val)

	s.mock.ExpectGet("test:key1").SetVal(string(bytes))

	loaderCalled := false
	var dest testStruct
	err := s.cache.GetOrSet(context.Background(), "key1", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		loaderCalled = true
		return &val, nil
	})

	assert.NoError(s.T(), err)
	assert.False(s.T(), loaderCalled)
	assert.Equal(s.T(), val, dest)
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestJitterTTL_Bounds(t *testing.T) {
	c := &redisCache{defaultTTL: time.Minute}

	for i := 0; i < 100; i++ {
		got := c.jitterTTL(time.Minute)
		assert.GreaterOrEqual(t, got, 54*time.Second)
		assert.LessOrEqual(t, got, 66*time.Second)
	}
	assert.Equal(t, time.Duration(0), c.jitterTTL(0))
}
