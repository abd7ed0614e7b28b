package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Watcher 配置文件监听器, 文件变更后重新解析并通知订阅者
type Watcher struct {
	mu        sync.RWMutex
	current   *Config
	viper     *viper.Viper
	listeners []func(old, updated *Config)
	stopped   bool
	log       logrus.FieldLogger
}

// NewWatcher 创建配置监听器
func NewWatcher(cfg *Config, configPath string, log logrus.FieldLogger) *Watcher {
	v := viper.New()
	v.SetConfigFile(configPath)
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Watcher{
		current: cfg,
		viper:   v,
		log:     log.WithField("config", configPath),
	}
}

// OnChange 注册配置变更回调
func (w *Watcher) OnChange(fn func(old, updated *Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Start 启动监听
func (w *Watcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.reload()
	})
	w.viper.WatchConfig()
	return nil
}

func (w *Watcher) reload() {
	w.mu.RLock()
	if w.stopped {
		w.mu.RUnlock()
		return
	}
	old := w.current
	listeners := make([]func(old, updated *Config), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.RUnlock()

	// 以当前配置为底, 只覆盖文件中出现的字段
	updated := *old
	if err := w.viper.Unmarshal(&updated); err != nil {
		w.log.WithError(err).Warn("failed to reload config")
		return
	}

	w.mu.Lock()
	w.current = &updated
	w.mu.Unlock()

	// 回调在锁外执行
	for _, fn := range listeners {
		fn(old, &updated)
	}
	w.log.Info("config reloaded")
}

// Stop 停止监听, viper 没有取消监听的接口, 停止后忽略后续事件
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}

// Current 获取当前配置
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}
