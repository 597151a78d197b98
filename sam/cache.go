package sam

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/getcharzp/go-clickseg"
	"github.com/redis/go-redis/v9"
)

// Cache 图片特征缓存, 以图片 MD5 与模型类型为键
type Cache interface {
	Get(ctx context.Context, key string) (Bundle, bool, error)
	Set(ctx context.Context, key string, bundle Bundle) error
}

// CacheKey 生成缓存键
func CacheKey(imageMD5 string, v Variant) string {
	return "embedding:" + v.String() + ":" + imageMD5
}

// MemoryCache 进程内缓存, 超过容量时淘汰最早写入的条目
type MemoryCache struct {
	mu    sync.RWMutex
	m     map[string]Bundle
	order []string
	size  int
}

// NewMemoryCache 创建容量为 size 的内存缓存
func NewMemoryCache(size int) *MemoryCache {
	return &MemoryCache{m: make(map[string]Bundle), size: max(size, 1)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Bundle, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.m[key]
	if !ok {
		return nil, false, nil
	}
	return b.Clone(), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, bundle Bundle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[key]; !ok {
		c.order = append(c.order, key)
	}
	c.m[key] = bundle.Clone()
	for len(c.order) > c.size {
		delete(c.m, c.order[0])
		c.order = c.order[1:]
	}
	return nil
}

// RedisCache 使用 Redis 保存特征, 条目带过期时间
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Bundle, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // 缓存未命中
		}
		return nil, false, err
	}
	b, err := UnmarshalBundle(data)
	if err != nil {
		return nil, false, fmt.Errorf("解析缓存 %s 失败: %w", key, err)
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, bundle Bundle) error {
	data, err := MarshalBundle(bundle)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

var bundleMagic = [4]byte{'C', 'S', 'B', '1'}

// MarshalBundle 将特征序列化为小端二进制
//
// 格式: magic, 张量个数; 每个张量: 名称长度, 名称, 维数, 各维度, float32 数据
func MarshalBundle(b Bundle) ([]byte, error) {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := &bytes.Buffer{}
	buf.Write(bundleMagic[:])
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(names)))
	for _, name := range names {
		t := b[name]
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("特征 %s: %w", name, err)
		}
		_ = binary.Write(buf, binary.LittleEndian, uint16(len(name)))
		buf.WriteString(name)
		_ = binary.Write(buf, binary.LittleEndian, uint32(len(t.Shape)))
		_ = binary.Write(buf, binary.LittleEndian, t.Shape)
		if err := binary.Write(buf, binary.LittleEndian, t.Data); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBundle 解析 MarshalBundle 的输出
func UnmarshalBundle(data []byte) (Bundle, error) {
	r := bytes.NewReader(data)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != bundleMagic {
		return nil, fmt.Errorf("特征缓存格式错误")
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	b := make(Bundle, count)
	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, err
		}
		var rank uint32
		if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
			return nil, err
		}
		if int(rank)*8 > r.Len() {
			return nil, fmt.Errorf("特征 %s 数据被截断", name)
		}
		shape := make([]int64, rank)
		if err := binary.Read(r, binary.LittleEndian, shape); err != nil {
			return nil, err
		}
		t := clickseg.Tensor{Shape: shape}
		n := t.Elements()
		if n < 0 || n > r.Len()/4 {
			return nil, fmt.Errorf("特征 %s 数据被截断", name)
		}
		t.Data = make([]float32, n)
		if err := binary.Read(r, binary.LittleEndian, t.Data); err != nil {
			return nil, err
		}
		b[string(name)] = t
	}
	return b, nil
}
