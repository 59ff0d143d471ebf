package ttl

import (
	"sync"
	"testing"
	"time"

	"arkdrop/internal/models"
)

func TestComputeNeverExpires(t *testing.T) {
	now := time.Unix(10_000, 0)
	tests := []struct {
		name   string
		item   models.Item
		expire int64
	}{
		{name: "favorite", item: models.Item{UpdatedAt: 0, Favorite: true}, expire: 3600},
		{name: "zero window", item: models.Item{UpdatedAt: 0}, expire: 0},
		{name: "favorite and expired", item: models.Item{UpdatedAt: -1_000_000, Favorite: true}, expire: 60},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := Compute(tc.item, tc.expire, now)
			if info.Progress != nil || info.TimeLeft != nil || info.Expires() {
				t.Fatalf("expected no countdown, got %+v", info)
			}
		})
	}
}

func TestComputeHalfway(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	item := models.Item{UpdatedAt: now.Unix() - 1800}

	info := Compute(item, 3600, now)
	if info.Progress == nil || *info.Progress != 50 {
		t.Fatalf("expected 50%% progress, got %+v", info.Progress)
	}
	if info.TimeLeft == nil || *info.TimeLeft != "30m0s" {
		t.Fatalf("expected 30m0s, got %v", info.TimeLeft)
	}
}

func TestComputeExpired(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	for _, age := range []int64{3600, 7200} {
		info := Compute(models.Item{UpdatedAt: now.Unix() - age}, 3600, now)
		if info.Progress == nil || *info.Progress != 0 {
			t.Fatalf("age %d: expected 0 progress, got %+v", age, info.Progress)
		}
		if info.TimeLeft == nil || *info.TimeLeft != "expired" {
			t.Fatalf("age %d: expected expired label, got %v", age, info.TimeLeft)
		}
	}
}

func TestUnitsFormat(t *testing.T) {
	tests := []struct {
		units     Units
		remaining int64
		want      string
	}{
		{English, 7322, "2h2m"},
		{English, 3600, "1h0m"},
		{English, 3599, "59m59s"},
		{English, 60, "1m0s"},
		{English, 59, "59s"},
		{English, 1, "1s"},
		{Chinese, 5400, "1小时30分钟"},
		{Chinese, 125, "2分钟5秒"},
		{Chinese, 9, "9秒"},
	}
	for _, tc := range tests {
		if got := tc.units.Format(tc.remaining); got != tc.want {
			t.Fatalf("Format(%d) = %q, want %q", tc.remaining, got, tc.want)
		}
	}
}

func TestComputeWithChineseExpired(t *testing.T) {
	now := time.Unix(100, 0)
	info := ComputeWith(UnitsFor("zh"), models.Item{UpdatedAt: 0}, 10, now)
	if info.TimeLeft == nil || *info.TimeLeft != "已过期" {
		t.Fatalf("expected chinese expired label, got %v", info.TimeLeft)
	}
	if UnitsFor("de") != English {
		t.Fatal("expected unknown locale to fall back to english")
	}
}

type staticSource models.ListSnapshot

func (s staticSource) Snapshot() models.ListSnapshot { return models.ListSnapshot(s) }

func TestClockRowsUseInjectedNow(t *testing.T) {
	source := staticSource{
		List: []models.Item{
			{ID: 1, UpdatedAt: 1000},
			{ID: 2, UpdatedAt: 1000, Favorite: true},
		},
		ExpireSeconds: 100,
	}
	clock := NewClock(source, English, time.Second, nil)
	clock.Now = func() time.Time { return time.Unix(1050, 0) }

	rows := clock.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].TTL.TimeLeft == nil || *rows[0].TTL.TimeLeft != "50s" {
		t.Fatalf("unexpected first row %+v", rows[0].TTL)
	}
	if rows[1].TTL.Expires() {
		t.Fatalf("favorite should not expire: %+v", rows[1].TTL)
	}
}

func TestClockStartStop(t *testing.T) {
	var mu sync.Mutex
	ticks := 0
	rendered := make(chan struct{}, 16)
	clock := NewClock(staticSource{}, English, 5*time.Millisecond, func([]Row) {
		mu.Lock()
		ticks++
		mu.Unlock()
		select {
		case rendered <- struct{}{}:
		default:
		}
	})

	clock.Start()
	clock.Start()
	if !clock.Running() {
		t.Fatal("expected clock running")
	}
	for i := 0; i < 2; i++ {
		select {
		case <-rendered:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tick")
		}
	}
	clock.Stop()
	clock.Stop()
	if clock.Running() {
		t.Fatal("expected clock stopped")
	}

	mu.Lock()
	after := ticks
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if ticks != after {
		t.Fatalf("clock ticked after stop: %d -> %d", after, ticks)
	}
}
