package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/types"
)

// CircuitState 熔断器状态
type CircuitState int

const (
	// CircuitClosed 正常状态，允许请求通过
	CircuitClosed CircuitState = iota
	// CircuitOpen 熔断状态，拒绝所有请求
	CircuitOpen
	// CircuitHalfOpen 半开状态，允许探测请求
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	// FailureThreshold 连续失败次数阈值，达到后触发熔断
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`
	// RecoveryTimeout 熔断后等待恢复的时间
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`
	// HalfOpenMaxProbes 半开状态允许的探测请求数
	HalfOpenMaxProbes int `json:"half_open_max_probes" yaml:"half_open_max_probes"`
	// SuccessThreshold 半开状态下连续成功多少次后恢复
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`
}

// DefaultCircuitBreakerConfig 默认熔断器配置
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:  5,
		RecoveryTimeout:   30 * time.Second,
		HalfOpenMaxProbes: 3,
		SuccessThreshold:  2,
	}
}

// CircuitBreaker 熔断包装器
// 连续失败达到阈值后打开熔断，在恢复窗口内直接拒绝请求（Transient，
// 调用方可重试或降级）；窗口过后进入半开状态放行探测请求。
type CircuitBreaker struct {
	inner  primitive.Primitive
	config CircuitBreakerConfig
	logger *zap.Logger

	mu              sync.Mutex
	state           CircuitState
	failures        int // 连续失败次数
	successes       int // 半开状态下连续成功次数
	probeCount      int // 半开状态下已探测次数
	lastFailureTime time.Time
}

// NewCircuitBreaker 创建熔断包装器
func NewCircuitBreaker(inner primitive.Primitive, config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.FailureThreshold <= 0 {
		config = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{
		inner:  inner,
		config: config,
		state:  CircuitClosed,
		logger: logger.With(zap.String("component", "circuit_breaker"), zap.String("primitive", inner.Name())),
	}
}

func (cb *CircuitBreaker) Name() string {
	return "breaker:" + cb.inner.Name()
}

func (cb *CircuitBreaker) Execute(ctx context.Context, input any) (any, error) {
	if err := cb.allowRequest(); err != nil {
		return nil, err
	}

	result, err := cb.inner.Execute(ctx, input)
	if err != nil {
		cb.recordFailure()
		return nil, err
	}

	cb.recordSuccess()
	return result, nil
}

// State 返回当前熔断器状态
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset 重置熔断器
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(CircuitClosed, "manual reset")
	cb.failures = 0
	cb.successes = 0
	cb.probeCount = 0
}

func (cb *CircuitBreaker) allowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return nil

	case CircuitOpen:
		// 检查是否到了恢复时间
		if time.Since(cb.lastFailureTime) >= cb.config.RecoveryTimeout {
			cb.transitionTo(CircuitHalfOpen, "recovery timeout elapsed")
			cb.probeCount = 1
			cb.successes = 0
			return nil
		}
		return types.Transient(fmt.Sprintf("circuit open for %s: %d consecutive failures, retry after %v",
			cb.inner.Name(), cb.failures, cb.config.RecoveryTimeout-time.Since(cb.lastFailureTime))).
			WithPrimitive(cb.inner.Name())

	case CircuitHalfOpen:
		if cb.probeCount < cb.config.HalfOpenMaxProbes {
			cb.probeCount++
			return nil
		}
		return types.Transient(fmt.Sprintf("circuit half-open for %s: max probes (%d) reached",
			cb.inner.Name(), cb.config.HalfOpenMaxProbes)).
			WithPrimitive(cb.inner.Name())

	default:
		return types.Permanent(fmt.Sprintf("unknown circuit state: %d", cb.state))
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0 // 重置失败计数

	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionTo(CircuitClosed, fmt.Sprintf("%d consecutive successes in half-open", cb.successes))
			cb.failures = 0
			cb.successes = 0
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen, fmt.Sprintf("%d consecutive failures", cb.failures))
		}

	case CircuitHalfOpen:
		// 半开状态下任何失败都重新熔断
		cb.successes = 0
		cb.transitionTo(CircuitOpen, "failure in half-open state")
	}
}

// transitionTo 状态转换（必须在锁内调用）
func (cb *CircuitBreaker) transitionTo(newState CircuitState, reason string) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState

	cb.logger.Info("circuit breaker state change",
		zap.String("old_state", oldState.String()),
		zap.String("new_state", newState.String()),
		zap.String("reason", reason),
		zap.Int("failures", cb.failures))
}
