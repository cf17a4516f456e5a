package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily はレジストリから指定名のメトリクスファミリーを取得する。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue はメトリクスから指定ラベルの値を返す。
func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLogin_IncrementsCounterWithLabels はログインカウンタがラベル付きで増加することを検証する。
func TestRecordLogin_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("google", ResultSuccess)
	c.RecordLogin("google", ResultSuccess)
	c.RecordLogin("github", ResultFetchFailed)

	mf := findMetricFamily(t, reg, "sociallogin_login_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		provider := labelValue(m, "provider")
		result := labelValue(m, "result")
		val := m.GetCounter().GetValue()
		switch {
		case provider == "google" && result == ResultSuccess:
			if val != 2 {
				t.Errorf("login_total{google,success} = %v, want 2", val)
			}
		case provider == "github" && result == ResultFetchFailed:
			if val != 1 {
				t.Errorf("login_total{github,fetch_failed} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected labels: provider=%s result=%s", provider, result)
		}
	}
}

// TestRecordSignup_IncrementsCounter はサインアップカウンタが増加することを検証する。
func TestRecordSignup_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignup("google")

	mf := findMetricFamily(t, reg, "sociallogin_signup_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("signup_total = %v, want 1", val)
	}
}

// TestRecordProfileFetchLatency_RecordsHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordProfileFetchLatency_RecordsHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProfileFetchLatency("google", 150*time.Millisecond)
	c.RecordProfileFetchLatency("google", 250*time.Millisecond)

	mf := findMetricFamily(t, reg, "sociallogin_profile_fetch_duration_seconds")
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if sum := h.GetSampleSum(); sum < 0.39 || sum > 0.41 {
		t.Errorf("sample sum = %v, want ~0.4", sum)
	}
}

// TestRecordProviderHTTPStatus_IncrementsCounterWithLabel はステータスコード別に記録されることを検証する。
func TestRecordProviderHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderHTTPStatus("google", 200)
	c.RecordProviderHTTPStatus("google", 401)
	c.RecordProviderHTTPStatus("google", 401)

	mf := findMetricFamily(t, reg, "sociallogin_provider_http_status_total")
	for _, m := range mf.GetMetric() {
		val := m.GetCounter().GetValue()
		switch labelValue(m, "status_code") {
		case "200":
			if val != 1 {
				t.Errorf("status 200 = %v, want 1", val)
			}
		case "401":
			if val != 2 {
				t.Errorf("status 401 = %v, want 2", val)
			}
		default:
			t.Errorf("unexpected status label: %s", labelValue(m, "status_code"))
		}
	}
}

// TestRecordTokenRefresh_IncrementsCounter はトークン再発行カウンタが増加することを検証する。
func TestRecordTokenRefresh_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTokenRefresh(ResultInvalidToken)

	mf := findMetricFamily(t, reg, "sociallogin_token_refresh_total")
	if got := labelValue(mf.GetMetric()[0], "result"); got != ResultInvalidToken {
		t.Errorf("result label = %q, want %q", got, ResultInvalidToken)
	}
}

// TestRecordExpiredTokensPurged_AddsCount は削除件数が加算されることを検証する。
func TestRecordExpiredTokensPurged_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordExpiredTokensPurged(5)
	c.RecordExpiredTokensPurged(3)

	mf := findMetricFamily(t, reg, "sociallogin_expired_refresh_tokens_purged_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 8 {
		t.Errorf("tokens_purged_total = %v, want 8", val)
	}
}

// TestNewCollector_DoubleRegistration_Panics は同一レジストリへの二重登録がpanicすることを検証する。
func TestNewCollector_DoubleRegistration_Panics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}
