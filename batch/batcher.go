package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/primflow/primitive"
)

var (
	ErrBatcherClosed = errors.New("batcher closed")
	ErrQueueFull     = errors.New("batch queue full")
)

// Config 批处理配置
type Config struct {
	// 单批最大条数，达到后立即派发
	MaxBatchSize int `yaml:"max_batch_size" json:"max_batch_size"`

	// 时间窗口，窗口到期派发已累积的请求
	MaxWait time.Duration `yaml:"max_wait" json:"max_wait"`

	// 等待队列容量，满时 Execute 快速失败
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// DefaultConfig 返回默认批处理配置
func DefaultConfig() Config {
	return Config{
		MaxBatchSize: 10,
		MaxWait:      100 * time.Millisecond,
		QueueSize:    1000,
	}
}

// Batcher 批处理包装器
// 在时间 / 条数窗口内累积多次逻辑调用，打包为一次内层执行（输入为
// []any），再按位置把结果拆回给各调用者。内层必须返回与输入等长的
// []any，否则整批失败。
type Batcher struct {
	inner  primitive.Primitive
	config Config
	queue  chan *pendingCall
	wg     sync.WaitGroup
	logger *zap.Logger

	// closeMu 保证入队与 close(queue) 互斥：
	// 没有它，Execute 在检查 closed 和发送之间被并发 Close 关闭通道会 panic
	closeMu sync.RWMutex
	closed  bool

	// 计量
	submitted atomic.Int64
	batches   atomic.Int64
}

type pendingCall struct {
	input any
	resp  chan callResult
	ctx   context.Context
}

type callResult struct {
	output any
	err    error
}

// NewBatcher 创建批处理包装器并启动派发循环
func NewBatcher(inner primitive.Primitive, config Config, logger *zap.Logger) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultConfig().MaxBatchSize
	}
	if config.MaxWait <= 0 {
		config.MaxWait = DefaultConfig().MaxWait
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}

	b := &Batcher{
		inner:  inner,
		config: config,
		queue:  make(chan *pendingCall, config.QueueSize),
		logger: logger.With(zap.String("component", "batch"), zap.String("primitive", inner.Name())),
	}

	b.wg.Add(1)
	go b.dispatchLoop()

	return b
}

func (b *Batcher) Name() string {
	return "batch:" + b.inner.Name()
}

// Execute 提交一次逻辑调用并等待所在批次的结果
func (b *Batcher) Execute(ctx context.Context, input any) (any, error) {
	call := &pendingCall{
		input: input,
		resp:  make(chan callResult, 1),
		ctx:   ctx,
	}

	if err := b.enqueue(ctx, call); err != nil {
		return nil, err
	}

	select {
	case res := <-call.resp:
		return res.output, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enqueue 在读锁下入队，队列只会在写锁下关闭
func (b *Batcher) enqueue(ctx context.Context, call *pendingCall) error {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()

	if b.closed {
		return ErrBatcherClosed
	}

	b.submitted.Add(1)

	// 带 default 的 select 不会阻塞，持读锁是安全的
	select {
	case b.queue <- call:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (b *Batcher) dispatchLoop() {
	defer b.wg.Done()

	pending := make([]*pendingCall, 0, b.config.MaxBatchSize)
	timer := time.NewTimer(b.config.MaxWait)
	defer timer.Stop()

	for {
		select {
		case call, ok := <-b.queue:
			if !ok {
				if len(pending) > 0 {
					b.flush(pending)
				}
				return
			}

			pending = append(pending, call)

			if len(pending) >= b.config.MaxBatchSize {
				b.flush(pending)
				pending = pending[:0]
				timer.Reset(b.config.MaxWait)
			}

		case <-timer.C:
			if len(pending) > 0 {
				b.flush(pending)
				pending = pending[:0]
			}
			timer.Reset(b.config.MaxWait)
		}
	}
}

func (b *Batcher) flush(batch []*pendingCall) {
	b.batches.Add(1)

	inputs := make([]any, len(batch))
	for i, call := range batch {
		inputs[i] = call.input
	}

	// 批次沿用首个调用者的 context
	outputs, err := b.inner.Execute(batch[0].ctx, inputs)
	if err != nil {
		b.deliverError(batch, err)
		return
	}

	slice, ok := outputs.([]any)
	if !ok {
		b.deliverError(batch, fmt.Errorf("batch handler returned %T, want []any", outputs))
		return
	}
	if len(slice) != len(batch) {
		b.deliverError(batch, fmt.Errorf("batch handler returned %d results for %d inputs", len(slice), len(batch)))
		return
	}

	b.logger.Debug("batch dispatched", zap.Int("size", len(batch)))
	for i, call := range batch {
		call.resp <- callResult{output: slice[i]}
	}
}

func (b *Batcher) deliverError(batch []*pendingCall, err error) {
	for _, call := range batch {
		call.resp <- callResult{err: err}
	}
}

// Close 停止接收新调用，派发剩余批次后返回
func (b *Batcher) Close() {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.closeMu.Unlock()

	b.wg.Wait()
}

// Stats 返回批处理统计
func (b *Batcher) Stats() Stats {
	return Stats{
		Submitted: b.submitted.Load(),
		Batches:   b.batches.Load(),
		Queued:    len(b.queue),
	}
}

// Stats 批处理统计
type Stats struct {
	Submitted int64 `json:"submitted"`
	Batches   int64 `json:"batches"`
	Queued    int   `json:"queued"`
}
