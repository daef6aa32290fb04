package querycache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"deeptrace-backend-controller/utils"
	"golang.org/x/sync/singleflight"
)

type memoryEntry struct {
	data     []byte
	expireAt time.Time
}

// Memory 进程内缓存，值以 JSON 保存，调用方拿到的总是独立的副本。
type Memory struct {
	lock    sync.Mutex
	gen     uint64
	entries map[string]memoryEntry
	group   singleflight.Group
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) lookup(key string) ([]byte, uint64, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	entry, ok := m.entries[key]
	if ok && m.now().Before(entry.expireAt) {
		return entry.data, m.gen, true
	}
	if ok {
		delete(m.entries, key)
	}
	return nil, m.gen, false
}

func (m *Memory) GetOrLoad(_ context.Context, key string, ttl time.Duration, load func() (any, error), out any) error {
	data, gen, hit := m.lookup(key)
	if !hit {
		// 失效之后发起的加载使用新的 flight key，不会拿到旧的结果
		v, err, _ := m.group.Do(strconv.FormatUint(gen, 10)+":"+key, func() (any, error) {
			value, err := load()
			if err != nil {
				return nil, err
			}

			data, err := json.Marshal(value)
			if err != nil {
				return nil, utils.WrapErrorf(err, "encode value of [%s] fail", key)
			}

			m.lock.Lock()
			if m.gen == gen {
				m.entries[key] = memoryEntry{data: data, expireAt: m.now().Add(ttl)}
			}
			m.lock.Unlock()

			return data, nil
		})
		if err != nil {
			return err
		}
		data = v.([]byte)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return utils.WrapErrorf(err, "decode value of [%s] fail", key)
	}
	return nil
}

func (m *Memory) InvalidateAll(_ context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.gen++
	m.entries = make(map[string]memoryEntry)
	return nil
}
