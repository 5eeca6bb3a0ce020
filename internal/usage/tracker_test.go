package usage

import (
	"math"
	"sync"
	"testing"

	"pgregory.net/rapid"
)

func TestRecordSingleProvider(t *testing.T) {
	tr := NewTracker()
	tr.Record("openai", 100, 10)
	tr.Record("openai", 200, 5)

	s, ok := tr.Get("openai")
	if !ok {
		t.Fatal("expected openai to be tracked")
	}
	if s.Requests != 2 {
		t.Errorf("expected 2 requests, got %d", s.Requests)
	}
	if s.Tokens != 15 {
		t.Errorf("expected 15 tokens, got %d", s.Tokens)
	}
	if s.AvgLatencyMillis != 150 {
		t.Errorf("expected avg latency 150, got %.2f", s.AvgLatencyMillis)
	}
}

func TestGetUnknownProvider(t *testing.T) {
	tr := NewTracker()
	s, ok := tr.Get("anthropic")
	if ok {
		t.Error("unknown provider should not be reported as tracked")
	}
	if s.Requests != 0 || s.ProviderID != "anthropic" {
		t.Errorf("unexpected zero snapshot: %+v", s)
	}
	if len(tr.Snapshot()) != 0 {
		t.Error("Get must not create an entry")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker()
	tr.Record("google", 50, 1)

	snap := tr.Snapshot()
	s := snap["google"]
	s.Requests = 999
	snap["google"] = s

	got, _ := tr.Get("google")
	if got.Requests != 1 {
		t.Errorf("mutating a snapshot changed the tracker: requests=%d", got.Requests)
	}
}

func TestListSortedByProvider(t *testing.T) {
	tr := NewTracker()
	tr.Record("openrouter", 1, 0)
	tr.Record("anthropic", 1, 0)
	tr.Record("ollama", 1, 0)

	list := tr.List()
	want := []string{"anthropic", "ollama", "openrouter"}
	if len(list) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ProviderID != id {
			t.Errorf("list[%d] = %s, want %s", i, list[i].ProviderID, id)
		}
	}
}

func TestConcurrentRecordSameProvider(t *testing.T) {
	tr := NewTracker()
	const n = 100

	var wg sync.WaitGroup
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(i + 1)
		wg.Add(1)
		go func(latency int64) {
			defer wg.Done()
			tr.Record("anthropic", latency, 3)
		}(int64(i + 1))
	}
	wg.Wait()

	s, _ := tr.Get("anthropic")
	if s.Requests != n {
		t.Errorf("expected %d requests, got %d", n, s.Requests)
	}
	if s.Tokens != 3*n {
		t.Errorf("expected %d tokens, got %d", 3*n, s.Tokens)
	}
	if want := sum / n; math.Abs(s.AvgLatencyMillis-want) > 1e-9 {
		t.Errorf("avg latency = %f, want %f", s.AvgLatencyMillis, want)
	}
}

func TestConcurrentSnapshotDuringRecord(t *testing.T) {
	tr := NewTracker()
	done := make(chan struct{})

	var wg sync.WaitGroup
	for _, p := range []string{"openai", "google", "ollama"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				tr.Record(p, 10, 2)
			}
		}(p)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		for _, s := range tr.Snapshot() {
			// Every record adds exactly 2 tokens, so a consistent copy always
			// has tokens == 2*requests and the constant latency as its mean.
			if s.Tokens != 2*s.Requests {
				t.Fatalf("torn snapshot for %s: %+v", s.ProviderID, s)
			}
			if s.AvgLatencyMillis != 10 {
				t.Fatalf("unexpected mean for %s: %+v", s.ProviderID, s)
			}
		}
		select {
		case <-done:
			return
		default:
		}
	}
}

func TestMeanMatchesArithmeticMean(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		latencies := rapid.SliceOfN(rapid.Int64Range(0, 60_000), 1, 200).Draw(rt, "latencies")

		tr := NewTracker()
		var sum float64
		for _, l := range latencies {
			tr.Record("openai", l, 1)
			sum += float64(l)
		}

		s, _ := tr.Get("openai")
		if s.Requests != int64(len(latencies)) {
			rt.Fatalf("requests = %d, want %d", s.Requests, len(latencies))
		}
		want := sum / float64(len(latencies))
		if math.Abs(s.AvgLatencyMillis-want) > 1e-6*math.Max(1, want) {
			rt.Fatalf("avg = %f, want %f", s.AvgLatencyMillis, want)
		}
	})
}
