package internaldefs

import (
	"strings"
	"testing"

	hsAuth "github.com/MrEthical07/hsAuth"
)

func TestCounterDefsUniqueAndPrefixed(t *testing.T) {
	names := make(map[string]struct{}, len(CounterDefs))
	ids := make(map[hsAuth.MetricID]struct{}, len(CounterDefs))
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "hsauth_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %q must be hsauth_*_total", def.Name)
		}
		if _, dup := names[def.Name]; dup {
			t.Fatalf("duplicate counter name %q", def.Name)
		}
		if _, dup := ids[def.ID]; dup {
			t.Fatalf("duplicate counter id %d", def.ID)
		}
		if def.ID == hsAuth.MetricAuthenticateLatency {
			t.Fatal("latency histogram must not be exported as a counter")
		}
		names[def.Name] = struct{}{}
		ids[def.ID] = struct{}{}
	}
}

func TestCumulative(t *testing.T) {
	got := Cumulative([]uint64{1, 2, 3})
	want := [BucketCount]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}

	long := Cumulative([]uint64{1, 1, 1, 1, 1, 1, 1, 1, 9})
	if long[BucketCount-1] != 8 {
		t.Fatalf("extra buckets must be ignored, got %v", long)
	}
	if Bounds[BucketCount-1].Le != "+Inf" {
		t.Fatalf("last bound must be +Inf, got %q", Bounds[BucketCount-1].Le)
	}
}
