package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const namespace = "procurement"

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 采购申请创建数
	requestsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_requests_created_total",
			Help:      "Total number of purchase requests created",
		},
		[]string{"type"},
	)

	// 生命周期动作数
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_request_transitions_total",
			Help:      "Total number of purchase request lifecycle transitions",
		},
		[]string{"action"}, // submit, approve-level-1, approve-final, reject, resubmit
	)

	// 软失败数
	softFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Best-effort side effects that failed without aborting the transition",
		},
		[]string{"step"},
	)

	// 库存扣减不足和无法匹配的行项
	stockShortfallsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_shortfalls_total",
			Help:      "Stock deductions clamped at zero",
		},
	)

	stockUnresolvedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_unresolved_total",
			Help:      "Line items whose stock line could not be resolved",
		},
	)

	// 被丢弃的事件
	eventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because the queue was full",
		},
		[]string{"type"},
	)

	// OpenFGA 权限检查, result: hit, miss, error
	permissionChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_checks_total",
			Help:      "Purchase request permission checks by cache result",
		},
		[]string{"result"},
	)

	// 项目预算使用率
	budgetUsedPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "project_budget_used_percent",
			Help:      "Share of project budget consumed by approved and pending requests",
		},
		[]string{"project"},
	)

	// 采购申请状态分布
	requestsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "purchase_requests_by_status",
			Help:      "Number of purchase requests by status",
		},
		[]string{"status"},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_connections_active",
			Help:      "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_connections_idle",
			Help:      "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_connections_max",
			Help:      "Maximum number of database connections",
		},
	)
)

var once sync.Once

func init() {
	prometheus.MustRegister(
		apiRequestsTotal,
		apiRequestDuration,
		requestsCreatedTotal,
		transitionsTotal,
		softFailuresTotal,
		stockShortfallsTotal,
		stockUnresolvedTotal,
		eventsDroppedTotal,
		permissionChecksTotal,
		budgetUsedPercent,
		requestsByStatus,
		databaseConnectionsActive,
		databaseConnectionsIdle,
		databaseConnectionsMax,
	)

	// Go 运行时指标, 已注册时忽略错误
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordRequestCreated 记录采购申请创建
func RecordRequestCreated(requestType string) {
	requestsCreatedTotal.WithLabelValues(requestType).Inc()
}

// RecordTransition 记录生命周期动作
func RecordTransition(action string) {
	transitionsTotal.WithLabelValues(action).Inc()
}

// RecordSoftFailure 记录软失败
func RecordSoftFailure(step string) {
	softFailuresTotal.WithLabelValues(step).Inc()
}

// RecordStockDiagnostics 记录库存扣减诊断
func RecordStockDiagnostics(shortfalls, unresolved int) {
	stockShortfallsTotal.Add(float64(shortfalls))
	stockUnresolvedTotal.Add(float64(unresolved))
}

// RecordEventDropped 记录被丢弃的事件
func RecordEventDropped(eventType string) {
	eventsDroppedTotal.WithLabelValues(eventType).Inc()
}

// RecordPermissionCheck 记录权限检查结果
func RecordPermissionCheck(result string) {
	permissionChecksTotal.WithLabelValues(result).Inc()
}

// SetBudgetUsed 更新项目预算使用率
func SetBudgetUsed(projectID string, percent float64) {
	budgetUsedPercent.WithLabelValues(projectID).Set(percent)
}

// SetRequestsByStatus 更新状态分布
func SetRequestsByStatus(status string, count float64) {
	requestsByStatus.WithLabelValues(status).Set(count)
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}
