package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"deeptrace-backend-controller/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Names []string `json:"names"`
	Count int      `json:"count"`
}

func countingLoader(counter *int32, value payload) func() (any, error) {
	return func() (any, error) {
		atomic.AddInt32(counter, 1)
		return value, nil
	}
}

func TestMemory_HitAndExpire(t *testing.T) {
	cache := NewMemory()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	var loads int32
	load := countingLoader(&loads, payload{Names: []string{"a"}, Count: 1})

	var out payload
	require.Nil(t, cache.GetOrLoad(context.TODO(), "k", time.Minute, load, &out))
	assert.Equal(t, payload{Names: []string{"a"}, Count: 1}, out)

	var again payload
	require.Nil(t, cache.GetOrLoad(context.TODO(), "k", time.Minute, load, &again))
	assert.Equal(t, out, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))

	now = now.Add(2 * time.Minute)
	require.Nil(t, cache.GetOrLoad(context.TODO(), "k", time.Minute, load, &again))
	assert.Equal(t, int32(2), atomic.LoadInt32(&loads))
}

func TestMemory_Invalidate(t *testing.T) {
	cache := NewMemory()

	var loads int32
	load := countingLoader(&loads, payload{Count: 7})

	var out payload
	require.Nil(t, cache.GetOrLoad(context.TODO(), "k", time.Hour, load, &out))
	require.Nil(t, cache.InvalidateAll(context.TODO()))
	require.Nil(t, cache.GetOrLoad(context.TODO(), "k", time.Hour, load, &out))
	assert.Equal(t, int32(2), atomic.LoadInt32(&loads))
	assert.Equal(t, 7, out.Count)
}

func TestMemory_LoadError(t *testing.T) {
	cache := NewMemory()
	loadErr := errors.New("db down")

	var out payload
	err := cache.GetOrLoad(context.TODO(), "k", time.Hour, func() (any, error) {
		return nil, loadErr
	}, &out)
	assert.ErrorIs(t, err, loadErr)

	// 错误不会被缓存
	var loads int32
	require.Nil(t, cache.GetOrLoad(context.TODO(), "k", time.Hour, countingLoader(&loads, payload{Count: 1}), &out))
	assert.Equal(t, int32(1), loads)
}

func TestMemory_ConcurrentLoadsCollapse(t *testing.T) {
	cache := NewMemory()

	release := make(chan struct{})
	var loads int32
	load := func() (any, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return payload{Count: 3}, nil
	}

	const workers = 8
	var started, finished sync.WaitGroup
	started.Add(workers)
	finished.Add(workers)
	results := make([]payload, workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer finished.Done()
			started.Done()
			assert.Nil(t, cache.GetOrLoad(context.TODO(), "k", time.Hour, load, &results[i]))
		}(i)
	}

	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	finished.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	for _, res := range results {
		assert.Equal(t, 3, res.Count)
	}
}

func TestMemory_InvalidateDuringLoad(t *testing.T) {
	cache := NewMemory()

	var out payload
	require.Nil(t, cache.GetOrLoad(context.TODO(), "k", time.Hour, func() (any, error) {
		// 加载期间发生写入，旧的结果不能回填缓存
		assert.Nil(t, cache.InvalidateAll(context.TODO()))
		return payload{Count: 1}, nil
	}, &out))
	assert.Equal(t, 1, out.Count)

	var loads int32
	require.Nil(t, cache.GetOrLoad(context.TODO(), "k", time.Hour, countingLoader(&loads, payload{Count: 2}), &out))
	assert.Equal(t, int32(1), loads)
	assert.Equal(t, 2, out.Count)
}

func TestRedis(t *testing.T) {
	logging.SetDefaultConfig(logging.GenerateTestConfig(t))

	config := GenerateTestConfig()
	config.Backend = BackendRedis
	config.RedisPrefix = "deeptrace_test_" + time.Now().Format("150405.000000")

	cache, err := NewRedis(config)
	if err != nil {
		t.Skipf("redis not reachable: %s", err)
	}
	defer cache.Close()

	var loads int32
	load := countingLoader(&loads, payload{Names: []string{"x"}, Count: 2})

	var out payload
	require.Nil(t, cache.GetOrLoad(context.TODO(), "k", time.Minute, load, &out))
	require.Nil(t, cache.GetOrLoad(context.TODO(), "k", time.Minute, load, &out))
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	assert.Equal(t, []string{"x"}, out.Names)

	require.Nil(t, cache.InvalidateAll(context.TODO()))
	require.Nil(t, cache.GetOrLoad(context.TODO(), "k", time.Minute, load, &out))
	assert.Equal(t, int32(2), atomic.LoadInt32(&loads))
}

func TestNew(t *testing.T) {
	cache, err := New(GenerateTestConfig())
	require.Nil(t, err)
	assert.IsType(t, &Memory{}, cache)

	_, err = New(&Config{Backend: "memcached"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
