package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/procurement-gin/internal/metrics"
	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Broadcaster 把事件推送给在线客户端
type Broadcaster interface {
	Broadcast(message []byte) bool
}

// Message 推送给客户端和 Webhook 的事件内容
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	ResourceID string          `json:"resource_id"`
	Data       json.RawMessage `json:"data"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Options 事件处理器配置
type Options struct {
	Workers    int
	QueueSize  int
	Webhooks   []string
	MaxRetries int
	Backoff    time.Duration
}

// EventHandler 基于数据库的事件处理器
// 实现 service.EventPublisher, 发布不阻塞调用方
type EventHandler struct {
	eventRepo   repository.EventRepository
	broadcaster Broadcaster
	httpClient  *http.Client
	log         logrus.FieldLogger
	opts        Options
	queue       chan *model.EventModel
	stop        chan struct{}
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// NewEventHandler 创建事件处理器并启动 worker
func NewEventHandler(db *gorm.DB, broadcaster Broadcaster, opts Options, log logrus.FieldLogger) *EventHandler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	h := &EventHandler{
		eventRepo:   repository.NewEventRepository(db),
		broadcaster: broadcaster,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log.WithField("component", "events"),
		opts:        opts,
		queue:       make(chan *model.EventModel, opts.QueueSize),
		stop:        make(chan struct{}),
	}

	for i := 0; i < opts.Workers; i++ {
		h.wg.Add(1)
		go h.worker()
	}
	return h
}

// Publish 持久化事件并放入投递队列, 队列满时丢弃
func (h *EventHandler) Publish(ctx context.Context, eventType, resourceID string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.log.WithError(err).WithField("type", eventType).Error("failed to marshal event")
		return
	}

	now := time.Now()
	evt := &model.EventModel{
		ID:         uuid.New().String(),
		Type:       eventType,
		ResourceID: resourceID,
		Data:       payload,
		Status:     model.EventStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	// 请求结束后事件仍需保存
	if err := h.eventRepo.Save(context.WithoutCancel(ctx), evt); err != nil {
		h.log.WithError(err).WithField("type", eventType).Warn("failed to save event")
	}

	select {
	case h.queue <- evt:
	default:
		metrics.RecordEventDropped(eventType)
		h.log.WithFields(logrus.Fields{
			"type":        eventType,
			"resource_id": resourceID,
		}).Warn("event queue full, dropping event")
	}
}

// Replay 重新投递上次退出时未完成的事件
func (h *EventHandler) Replay(ctx context.Context, limit int) (int, error) {
	pending, err := h.eventRepo.FindPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending events: %w", err)
	}
	queued := 0
	for _, evt := range pending {
		select {
		case h.queue <- evt:
			queued++
		default:
			return queued, nil
		}
	}
	return queued, nil
}

// worker 事件投递 worker
func (h *EventHandler) worker() {
	defer h.wg.Done()
	for {
		select {
		case evt := <-h.queue:
			h.deliver(evt)
		case <-h.stop:
			return
		}
	}
}

// deliver 推送给在线客户端, 然后投递到 Webhook
func (h *EventHandler) deliver(evt *model.EventModel) {
	msg, err := json.Marshal(Message{
		ID:         evt.ID,
		Type:       evt.Type,
		ResourceID: evt.ResourceID,
		Data:       json.RawMessage(evt.Data),
		Timestamp:  evt.CreatedAt,
	})
	if err != nil {
		h.log.WithError(err).WithField("event_id", evt.ID).Error("failed to marshal event message")
		return
	}

	if h.broadcaster != nil && !h.broadcaster.Broadcast(msg) {
		h.log.WithField("event_id", evt.ID).Debug("broadcast skipped")
	}

	ctx := context.Background()
	if len(h.opts.Webhooks) == 0 {
		h.mark(ctx, evt, model.EventStatusSuccess, "")
		return
	}

	backoff := h.opts.Backoff
	var lastErr error
	for i := 0; i < h.opts.MaxRetries; i++ {
		lastErr = nil
		for _, url := range h.opts.Webhooks {
			if err := h.sendWebhookRequest(ctx, url, msg); err != nil {
				lastErr = err
				h.log.WithError(err).WithFields(logrus.Fields{
					"event_id": evt.ID,
					"webhook":  url,
					"attempt":  i + 1,
				}).Warn("failed to send webhook request")
			}
		}
		if lastErr == nil {
			h.mark(ctx, evt, model.EventStatusSuccess, "")
			return
		}

		evt.RetryCount++
		if i < h.opts.MaxRetries-1 {
			select {
			case <-time.After(backoff):
			case <-h.stop:
				h.mark(ctx, evt, model.EventStatusPending, lastErr.Error())
				return
			}
			backoff *= 2 // 指数退避
		}
	}

	h.mark(ctx, evt, model.EventStatusFailed, lastErr.Error())
}

func (h *EventHandler) mark(ctx context.Context, evt *model.EventModel, status, lastErr string) {
	if err := h.eventRepo.MarkStatus(ctx, evt.ID, status, evt.RetryCount, lastErr); err != nil {
		h.log.WithError(err).WithField("event_id", evt.ID).Warn("failed to update event status")
	}
}

// sendWebhookRequest 发送 Webhook 请求
func (h *EventHandler) sendWebhookRequest(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status code: %d", resp.StatusCode)
	}
	return nil
}

// Stop 停止事件处理器, 等待 worker 退出
func (h *EventHandler) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	h.wg.Wait()
}
