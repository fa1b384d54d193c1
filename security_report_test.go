package hsAuth

import (
	"testing"

	"github.com/MrEthical07/hsAuth/stage"
)

func TestSecurityReportReflectsPosture(t *testing.T) {
	cfg := testConfig()
	cfg.Flows = [][]string{{stage.Password}}
	cfg.Security.EnableIPThrottle = true

	engine, _ := buildTestEngine(t, cfg, newMemUserProvider(t, nil))
	report := engine.SecurityReport()

	if report.ServerName != "example.org" {
		t.Fatalf("ServerName = %q", report.ServerName)
	}
	if report.DefaultSecret || report.DummyOnlyFlow {
		t.Fatalf("unexpected posture: %+v", report)
	}
	if !report.RateLimitingActive || !report.IPThrottleActive {
		t.Fatal("expected throttling active in report")
	}
	if len(report.Flows) != 1 || report.Flows[0][0] != stage.Password {
		t.Fatalf("Flows = %v", report.Flows)
	}

	// The test password cost is deliberately low.
	if len(report.Warnings) != 1 {
		t.Fatalf("expected only the argon2 warning, got %v", report.Warnings)
	}
}

func TestSecurityReportNilEngine(t *testing.T) {
	var engine *Engine
	if r := engine.SecurityReport(); r.ServerName != "" || r.Warnings != nil {
		t.Fatalf("expected zero report, got %+v", r)
	}
}
