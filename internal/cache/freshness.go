package cache

import (
	"math"
	"math/rand/v2"
	"time"
)

// RefetchProbability 返回年龄为 age 的条目在 ttl 下被视为过期的概率：
// age >= ttl 时为 1，否则为 log2(age/ttl + 1)，落在 [0, 1)。
func RefetchProbability(age, ttl time.Duration) float64 {
	if ttl <= 0 || age >= ttl {
		return 1
	}
	if age <= 0 {
		return 0
	}
	return math.Log2(age.Seconds()/ttl.Seconds() + 1)
}

// ShouldRefetch 使用 [0,1) 内的随机数 draw 做出一次过期判定。
func ShouldRefetch(age, ttl time.Duration, draw float64) bool {
	if age >= ttl {
		return true
	}
	return draw < RefetchProbability(age, ttl)
}

// Freshness 绑定 TTL、时钟与随机源，供存储层判定缓存是否可直接复用。
type Freshness struct {
	ttl  time.Duration
	now  func() time.Time
	draw func() float64
}

// NewFreshness 构造过期判定器，nil 的时钟/随机源分别回退到 time.Now 与 rand.Float64。
func NewFreshness(ttl time.Duration, now func() time.Time, draw func() float64) Freshness {
	if now == nil {
		now = time.Now
	}
	if draw == nil {
		draw = rand.Float64
	}
	return Freshness{ttl: ttl, now: now, draw: draw}
}

// TTL 返回硬过期时间。
func (f Freshness) TTL() time.Duration {
	return f.ttl
}

// Now 返回判定器使用的当前时间。
func (f Freshness) Now() time.Time {
	return f.now()
}

// Stale 根据文件 ModTime 计算年龄并抽样判定；硬过期时不消耗随机数。
func (f Freshness) Stale(modTime time.Time) bool {
	age := f.now().Sub(modTime)
	if age >= f.ttl {
		return true
	}
	return ShouldRefetch(age, f.ttl, f.draw())
}
