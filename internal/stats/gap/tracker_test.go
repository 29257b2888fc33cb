// Package gap 价差统计测试
package gap

import (
	"testing"
)

func TestTracker_Quantiles(t *testing.T) {
	tr := NewTracker(100)
	for i := 1; i <= 100; i++ {
		tr.Add(float64(i)/100, -float64(i)/100)
	}

	ab := tr.StatsAB()
	if ab.Count != 100 {
		t.Fatalf("Count=%d, want 100", ab.Count)
	}
	if ab.P50Pct < 0.4 || ab.P50Pct > 0.6 {
		t.Fatalf("P50=%v, want ≈0.5", ab.P50Pct)
	}
	if ab.MaxPct != 1.0 {
		t.Fatalf("Max=%v, want 1.0", ab.MaxPct)
	}

	ba := tr.StatsBA()
	if ba.MaxPct != -0.01 {
		t.Fatalf("BA Max=%v, want -0.01", ba.MaxPct)
	}
}

func TestTracker_WindowRollsOver(t *testing.T) {
	tr := NewTracker(10)
	for i := 0; i < 100; i++ {
		tr.Add(1, 1)
	}
	tr.Add(50, 50)

	ab := tr.StatsAB()
	if ab.Count != 101 {
		t.Fatalf("Count=%d, want 101", ab.Count)
	}
	if ab.MaxPct != 50 {
		t.Fatalf("窗口应包含最新样本: Max=%v", ab.MaxPct)
	}
}

func TestTracker_Empty(t *testing.T) {
	tr := NewTracker(10)
	ab := tr.StatsAB()
	if ab.Count != 0 || ab.P50Pct != 0 {
		t.Fatalf("空窗口统计应为零值: %+v", ab)
	}
}
