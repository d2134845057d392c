package progress

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_UpdateAndGet(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get("kb_abcd1234.pdf")
	assert.False(t, ok)

	r.Update("kb_abcd1234.pdf", 30, "正在连接RAG服务...")
	entry, ok := r.Get("kb_abcd1234.pdf")
	require.True(t, ok)
	assert.Equal(t, 30, entry.Progress)
	assert.Equal(t, "正在连接RAG服务...", entry.Message)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestRegistry_LastWriteWins(t *testing.T) {
	r := NewRegistry()

	// 登记表本身不做单调保护，乱序上报以最后一次为准
	r.Update("key", 90, "验证中")
	r.Update("key", 50, "迟到的轮询命中")

	entry, ok := r.Get("key")
	require.True(t, ok)
	assert.Equal(t, 50, entry.Progress)
	assert.Equal(t, "迟到的轮询命中", entry.Message)
}

func TestRegistry_Delete(t *testing.T) {
	r := NewRegistry()
	r.Update("key", 100, "完成")
	r.Delete("key")

	_, ok := r.Get("key")
	assert.False(t, ok)

	// 删除不存在的键不报错
	r.Delete("missing")
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("file-%d", n%3)
			for p := 0; p <= 100; p += 10 {
				r.Update(key, p, "处理中")
				r.Get(key)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 3; i++ {
		entry, ok := r.Get(fmt.Sprintf("file-%d", i))
		require.True(t, ok)
		assert.Equal(t, 100, entry.Progress)
	}
}
