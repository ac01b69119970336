// 配置热重载。
//
// 轮询配置文件修改时间，变更时重新加载并校验，校验失败保留当前配置。
package config

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadCallback 重新加载配置后调用
type ReloadCallback func(oldConfig, newConfig *Config)

// Reloader 监听配置文件并热重载
type Reloader struct {
	mu sync.RWMutex

	// 当前配置
	config     *Config
	configPath string

	// 轮询间隔
	interval    time.Duration
	lastModTime time.Time

	// 回调
	callbacks []ReloadCallback

	logger *zap.Logger

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewReloader 创建配置热重载器
func NewReloader(initial *Config, configPath string, interval time.Duration, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Reloader{
		config:     initial,
		configPath: configPath,
		interval:   interval,
		logger:     logger.With(zap.String("component", "config_reload")),
	}
}

// Current 返回当前生效配置
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// OnReload 注册重载回调
func (r *Reloader) OnReload(cb ReloadCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// Start 启动轮询
func (r *Reloader) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()

	if info, err := os.Stat(r.configPath); err == nil {
		r.lastModTime = info.ModTime()
	}

	go r.watchLoop(ctx)
	r.logger.Info("config reloader started",
		zap.String("path", r.configPath),
		zap.Duration("interval", r.interval),
	)
}

// Stop 停止轮询
func (r *Reloader) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	done := r.done
	r.mu.Unlock()

	<-done
	r.logger.Info("config reloader stopped")
}

func (r *Reloader) watchLoop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkAndReload()
		}
	}
}

func (r *Reloader) checkAndReload() {
	info, err := os.Stat(r.configPath)
	if err != nil {
		// 文件暂时不可读不算致命，下一轮再试
		r.logger.Debug("config file not readable", zap.Error(err))
		return
	}
	if !info.ModTime().After(r.lastModTime) {
		return
	}
	r.lastModTime = info.ModTime()

	newCfg, err := NewLoader().WithConfigPath(r.configPath).Load()
	if err != nil {
		r.logger.Warn("config reload failed, keeping current config", zap.Error(err))
		return
	}
	if err := newCfg.Validate(); err != nil {
		r.logger.Warn("reloaded config invalid, keeping current config", zap.Error(err))
		return
	}

	r.mu.Lock()
	old := r.config
	r.config = newCfg
	callbacks := make([]ReloadCallback, len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	r.logger.Info("config reloaded", zap.String("path", r.configPath))
	for _, cb := range callbacks {
		cb(old, newCfg)
	}
}
