package zopfli

import "testing"

func TestStoreHistogramRanges(t *testing.T) {
	var s lz77Store

	// A mixed stream long enough to cross several histogram buckets.
	pos := 0
	for i := 0; i < 2000; i++ {
		switch i % 3 {
		case 0:
			s.push(uint16(i%256), 0, pos)
			pos++
		case 1:
			s.push(uint16(3+i%250), uint16(1+i%1024), pos)
			pos += 3 + i%250
		default:
			s.push(uint16(i%200), 0, pos)
			pos++
		}
	}

	direct := func(lstart, lend int) (ll [numLL]uint32, d [numD]uint32) {
		for i := lstart; i < lend; i++ {
			ll[s.entries[i].llSym]++
			if s.entries[i].dist != 0 {
				d[s.entries[i].dSym]++
			}
		}
		return ll, d
	}

	ranges := [][2]int{
		{0, 2000}, {0, 1}, {0, 287}, {0, 288}, {0, 289},
		{1, 2000}, {287, 1153}, {576, 577}, {1999, 2000}, {500, 1500},
	}
	for _, r := range ranges {
		gotLL, gotD := s.histogram(r[0], r[1])
		wantLL, wantD := direct(r[0], r[1])
		if gotLL != wantLL {
			t.Fatalf("histogram(%d, %d) litlen mismatch", r[0], r[1])
		}
		if gotD != wantD {
			t.Fatalf("histogram(%d, %d) distance mismatch", r[0], r[1])
		}
	}
}

func TestStoreByteRange(t *testing.T) {
	var s lz77Store
	s.push('a', 0, 0)
	s.push(10, 5, 1)
	s.push('b', 0, 11)

	start, end, err := s.byteRange(0, 3)
	if err != nil {
		t.Fatalf("byteRange: %v", err)
	}
	if start != 0 || end != 12 {
		t.Fatalf("byteRange(0, 3) = [%d, %d), want [0, 12)", start, end)
	}

	start, end, err = s.byteRange(1, 2)
	if err != nil {
		t.Fatalf("byteRange: %v", err)
	}
	if start != 1 || end != 11 {
		t.Fatalf("byteRange(1, 2) = [%d, %d), want [1, 11)", start, end)
	}
}

func TestStoreStealFrom(t *testing.T) {
	var a, b lz77Store
	a.push('x', 0, 0)
	b.push('y', 0, 1)
	b.push(4, 1, 2)

	a.stealFrom(&b)
	if a.size() != 3 {
		t.Fatalf("size = %d, want 3", a.size())
	}
	if b.size() != 0 {
		t.Fatalf("donor size = %d, want 0", b.size())
	}

	ll, d := a.histogram(0, 3)
	if ll['x'] != 1 || ll['y'] != 1 || ll[lengthSymbols[4]] != 1 {
		t.Fatalf("unexpected litlen histogram after steal")
	}
	if d[distanceSymbols[1]] != 1 {
		t.Fatalf("unexpected distance histogram after steal")
	}
}
