// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値。
const (
	ResultSuccess         = "success"
	ResultUnknownProvider = "unknown_provider"
	ResultFetchFailed     = "fetch_failed"
	ResultParseFailed     = "parse_failed"
	ResultAccountNotFound = "account_not_found"
	ResultConflict        = "conflict"
	ResultInvalidToken    = "invalid_token"
	ResultError           = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービスやワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(provider, result string)
	RecordSignup(provider string)
	RecordProfileFetchLatency(provider string, duration time.Duration)
	RecordProviderHTTPStatus(provider string, statusCode int)
	RecordTokenRefresh(result string)
	RecordExpiredTokensPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins         *prometheus.CounterVec
	signups        *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	providerStatus *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	tokensPurged   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sociallogin_login_total",
			Help: "ソーシャルログイン試行の合計数（プロバイダー・結果別）",
		}, []string{"provider", "result"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sociallogin_signup_total",
			Help: "初回ログインで作成されたアカウントの合計数",
		}, []string{"provider"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sociallogin_profile_fetch_duration_seconds",
			Help:    "IdPからのプロフィール取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		providerStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sociallogin_provider_http_status_total",
			Help: "IdPのHTTPステータスコード別のレスポンス数",
		}, []string{"provider", "status_code"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sociallogin_token_refresh_total",
			Help: "リフレッシュトークンによる再発行の合計数（結果別）",
		}, []string{"result"}),
		tokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sociallogin_expired_refresh_tokens_purged_total",
			Help: "クリーンアップで削除された期限切れリフレッシュトークンの合計数",
		}),
	}

	reg.MustRegister(
		c.logins,
		c.signups,
		c.fetchLatency,
		c.providerStatus,
		c.refreshes,
		c.tokensPurged,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(provider, result string) {
	c.logins.WithLabelValues(provider, result).Inc()
}

// RecordSignup は初回ログインによるアカウント作成を記録する。
func (c *Collector) RecordSignup(provider string) {
	c.signups.WithLabelValues(provider).Inc()
}

// RecordProfileFetchLatency はプロフィール取得のレイテンシを記録する。
func (c *Collector) RecordProfileFetchLatency(provider string, duration time.Duration) {
	c.fetchLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordProviderHTTPStatus はIdPのHTTPステータスコードを記録する。
func (c *Collector) RecordProviderHTTPStatus(provider string, statusCode int) {
	c.providerStatus.WithLabelValues(provider, strconv.Itoa(statusCode)).Inc()
}

// RecordTokenRefresh はトークン再発行の結果を記録する。
func (c *Collector) RecordTokenRefresh(result string) {
	c.refreshes.WithLabelValues(result).Inc()
}

// RecordExpiredTokensPurged は削除された期限切れトークン数を記録する。
func (c *Collector) RecordExpiredTokensPurged(count int64) {
	c.tokensPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type NopCollector struct{}

func (NopCollector) RecordLogin(string, string)                      {}
func (NopCollector) RecordSignup(string)                             {}
func (NopCollector) RecordProfileFetchLatency(string, time.Duration) {}
func (NopCollector) RecordProviderHTTPStatus(string, int)            {}
func (NopCollector) RecordTokenRefresh(string)                       {}
func (NopCollector) RecordExpiredTokensPurged(int64)                 {}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
