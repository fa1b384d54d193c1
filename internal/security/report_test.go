package security

import "testing"

func TestBuildReportWarnings(t *testing.T) {
	r := BuildReport(ReportInput{
		ServerSecret:  "macaroon_seed",
		DefaultSecret: "macaroon_seed",
		Flows:         [][]string{{"m.login.password"}, {"m.login.dummy"}},
		DummyStage:    "m.login.dummy",
		Password:      PasswordReport{Memory: 8192},
	})

	if !r.DefaultSecret || !r.DummyOnlyFlow || r.RateLimitingActive {
		t.Fatalf("unexpected posture: %+v", r)
	}
	if len(r.Warnings) != 4 {
		t.Fatalf("expected 4 warnings, got %v", r.Warnings)
	}
}

func TestBuildReportHardened(t *testing.T) {
	input := ReportInput{
		ServerSecret:          "s3cret",
		DefaultSecret:         "macaroon_seed",
		Flows:                 [][]string{{"m.login.recaptcha", "m.login.dummy"}},
		DummyStage:            "m.login.dummy",
		Password:              PasswordReport{Memory: 65536},
		MaxLoginAttempts:      5,
		LoginCooldownDuration: 1,
		EnableIPThrottle:      true,
	}
	r := BuildReport(input)

	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", r.Warnings)
	}
	if !r.IPThrottleActive {
		t.Fatal("expected IP throttle active")
	}

	input.Flows[0][0] = "m.login.password"
	if r.Flows[0][0] != "m.login.recaptcha" {
		t.Fatal("report flows alias the input")
	}
}
