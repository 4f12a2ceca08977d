// Package limiter provides token bucket rate limiting keyed by request path
// Package limiter 按请求路径进行令牌桶限流
package limiter

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/ratelimit"
)

// Face 限流器接口
type Face interface {
	Key(c *gin.Context) string
	GetBucket(key string) (*ratelimit.Bucket, bool)
	AddBuckets(rules ...BucketRule) Face
}

// BucketRule 令牌桶规则
type BucketRule struct {
	Key          string        // 路径前缀
	FillInterval time.Duration // 放入令牌的间隔
	Capacity     int64         // 桶容量
	Quantum      int64         // 每次放入的令牌数
}

type base struct {
	buckets map[string]*ratelimit.Bucket
}

func (b *base) GetBucket(key string) (*ratelimit.Bucket, bool) {
	bucket, ok := b.buckets[key]
	return bucket, ok
}

func (b *base) add(rules ...BucketRule) {
	for _, rule := range rules {
		if _, ok := b.buckets[rule.Key]; ok {
			continue
		}
		b.buckets[rule.Key] = ratelimit.NewBucketWithQuantum(rule.FillInterval, rule.Capacity, rule.Quantum)
	}
}

// MethodLimiter limits requests by the longest matching path prefix
// MethodLimiter 按最长匹配的路径前缀限流
type MethodLimiter struct {
	base
	keys []string
}

func NewMethodLimiter() *MethodLimiter {
	return &MethodLimiter{base: base{buckets: make(map[string]*ratelimit.Bucket)}}
}

func (l *MethodLimiter) Key(c *gin.Context) string {
	uri := c.Request.URL.Path
	match := ""
	for _, k := range l.keys {
		if strings.HasPrefix(uri, k) && len(k) > len(match) {
			match = k
		}
	}
	return match
}

func (l *MethodLimiter) AddBuckets(rules ...BucketRule) Face {
	l.add(rules...)
	for _, r := range rules {
		l.keys = append(l.keys, r.Key)
	}
	return l
}
