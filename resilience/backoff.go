package resilience

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy 计算第 attempt 次重试前的等待时间（attempt 从 1 开始）
type BackoffStrategy interface {
	Delay(attempt int) time.Duration
}

// FixedBackoff 固定间隔退避
type FixedBackoff struct {
	Interval time.Duration
}

func (b FixedBackoff) Delay(attempt int) time.Duration {
	return b.Interval
}

// LinearBackoff 线性退避：delay = initial + step*(attempt-1)，封顶 max
type LinearBackoff struct {
	Initial time.Duration
	Step    time.Duration
	Max     time.Duration
}

func (b LinearBackoff) Delay(attempt int) time.Duration {
	delay := b.Initial + time.Duration(attempt-1)*b.Step
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}

// ExponentialBackoff 指数退避 + 可选随机抖动
// delay = initial * multiplier^(attempt-1)，封顶 max
type ExponentialBackoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     bool
}

// DefaultBackoff 返回默认的指数退避策略
// 适用于大部分外部调用场景
func DefaultBackoff() ExponentialBackoff {
	return ExponentialBackoff{
		Initial:    1 * time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = 1 * time.Second
	}
	multiplier := b.Multiplier
	if multiplier < 1.0 {
		multiplier = 2.0
	}
	max := b.Max
	if max <= 0 {
		max = 30 * time.Second
	}

	delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))

	// 限制最大延迟
	if delay > float64(max) {
		delay = float64(max)
	}

	// 添加随机抖动（±25%）
	// 目的：防止多个客户端同时重试导致的雪崩效应
	if b.Jitter {
		jitter := delay * 0.25
		delay = delay + (rand.Float64()*2-1)*jitter
	}

	// 确保延迟不小于初始延迟
	if delay < float64(initial) {
		delay = float64(initial)
	}

	return time.Duration(delay)
}
