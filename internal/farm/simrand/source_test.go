package simrand

import "testing"

func TestSameSeedSameSequence(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		if a.Uniform(0, 1) != b.Uniform(0, 1) {
			t.Fatalf("sequences diverged at %d", i)
		}
	}
}

func TestUniformBounds(t *testing.T) {
	s := New(7)
	for i := 0; i < 10000; i++ {
		v := s.Uniform(-3, 3)
		if v < -3 || v >= 3 {
			t.Fatalf("value out of range: %v", v)
		}
	}
}

func TestIntRangeInclusive(t *testing.T) {
	s := New(7)
	seen := map[int]bool{}
	for i := 0; i < 5000; i++ {
		v := s.IntRange(-3, 3)
		if v < -3 || v > 3 {
			t.Fatalf("value out of range: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 7 {
		t.Fatalf("expected all 7 values, saw %d", len(seen))
	}
}

func TestSampleDistinct(t *testing.T) {
	s := New(11)
	idx := s.Sample(2700, 50)
	if len(idx) != 50 {
		t.Fatalf("expected 50 indices, got %d", len(idx))
	}
	seen := make(map[int]struct{}, len(idx))
	for _, i := range idx {
		if i < 0 || i >= 2700 {
			t.Fatalf("index out of range: %d", i)
		}
		if _, dup := seen[i]; dup {
			t.Fatalf("duplicate index %d", i)
		}
		seen[i] = struct{}{}
	}
	if got := s.Sample(3, 10); len(got) != 3 {
		t.Fatalf("expected sample capped at population, got %d", len(got))
	}
}
