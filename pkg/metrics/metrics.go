package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 同步周期耗时（秒）
	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_cycle_duration_seconds",
			Help:    "Duration of a full sync cycle in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
		},
	)

	// 每个 owner 的同步结果计数
	OwnerSyncCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owner_sync_count",
			Help: "Total number of per-owner sync attempts",
		},
		[]string{"status"}, // status: success, failed, reauth_required, locked
	)

	// Gmail API 调用延迟（秒）
	GmailCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gmail_call_duration_seconds",
			Help:    "Gmail API call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"operation", "status"}, // operation: list, get
	)

	// 抓取的邮件计数
	MessagesFetchedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_fetched_count",
			Help: "Total number of messages fetched from Gmail",
		},
		[]string{"status"}, // status: success, failed
	)

	// upsert 结果计数
	MessageUpsertCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_upsert_count",
			Help: "Total number of message upsert outcomes",
		},
		[]string{"result"}, // result: inserted, updated, skipped
	)

	// token 刷新计数
	TokenRefreshCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refresh_count",
			Help: "Total number of OAuth token refresh attempts",
		},
		[]string{"status"}, // status: success, failed
	)

	// 清理删除的邮件计数
	RetentionDeletedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_deleted_count",
			Help: "Total number of messages deleted by retention sweeps",
		},
	)
)

// RecordSyncCycleDuration 记录同步周期耗时
func RecordSyncCycleDuration(duration time.Duration) {
	SyncCycleDuration.Observe(duration.Seconds())
}

// RecordGmailCall 记录 Gmail API 调用延迟
func RecordGmailCall(operation, status string, duration time.Duration) {
	GmailCallDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// IncrementOwnerSync 增加 owner 同步计数
func IncrementOwnerSync(status string) {
	OwnerSyncCount.WithLabelValues(status).Inc()
}

// IncrementMessagesFetched 增加抓取计数
func IncrementMessagesFetched(status string) {
	MessagesFetchedCount.WithLabelValues(status).Inc()
}

// IncrementMessageUpsert 增加 upsert 计数
func IncrementMessageUpsert(result string) {
	MessageUpsertCount.WithLabelValues(result).Inc()
}

// IncrementTokenRefresh 增加 token 刷新计数
func IncrementTokenRefresh(status string) {
	TokenRefreshCount.WithLabelValues(status).Inc()
}

// AddRetentionDeleted 增加清理删除计数
func AddRetentionDeleted(n int64) {
	RetentionDeletedCount.Add(float64(n))
}
