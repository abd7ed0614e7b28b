package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Source 由收集器定期调用的指标来源
type Source interface {
	Name() string
	Collect(ctx context.Context) error
}

// Collector 指标收集器
type Collector struct {
	db       *gorm.DB
	interval time.Duration
	sources  []Source
	log      logrus.FieldLogger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  atomic.Bool
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, interval time.Duration, log logrus.FieldLogger, sources ...Source) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		interval: interval,
		sources:  sources,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器, 启动时立即收集一次
func (c *Collector) Start() {
	if c.started.CompareAndSwap(false, true) {
		go c.collect()
	}
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	if c.started.Load() {
		<-c.done
	}
}

// collect 定期收集指标
func (c *Collector) collect() {
	defer close(c.done)
	if c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.RunOnce(c.ctx)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(c.ctx)
		}
	}
}

// RunOnce 执行一次收集
func (c *Collector) RunOnce(ctx context.Context) {
	_ = UpdateDatabaseConnections(c.db)
	for _, s := range c.sources {
		if ctx.Err() != nil {
			return
		}
		if err := s.Collect(ctx); err != nil && c.log != nil {
			c.log.WithError(err).WithField("source", s.Name()).Warn("metrics source failed")
		}
	}
}
