//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsEnqueued(t *testing.T) {
	want := []prometheus.Collector{buildInfo, webhookReconcileFailuresTotal, demoClaimsTotal}
	for _, c := range want {
		found := false
		for _, got := range collectors {
			if got == c {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("collector %T not enqueued for registration", c)
		}
	}
}

func TestIncWebhookReconcileFailure(t *testing.T) {
	before := testutil.ToFloat64(webhookReconcileFailuresTotal)
	IncWebhookReconcileFailure()
	if got := testutil.ToFloat64(webhookReconcileFailuresTotal); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("1.2.3", "abc")
	if got := testutil.ToFloat64(buildInfo.WithLabelValues("1.2.3", "abc")); got != 1 {
		t.Errorf("expected build_info 1, got %v", got)
	}
}
