package util

import "testing"

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{in: 1.005, want: 1.01},
		{in: 2.675, want: 2.68},
		{in: -1.005, want: -1.01},
		{in: 9.0000001, want: 9},
		{in: 0.125, want: 0.13},
		{in: 54, want: 54},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Fatalf("Round2(%v)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestCellFloat(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{in: "12.5", want: 12.5},
		{in: " 3kg", want: 3},
		{in: "£1,299.99", want: 1299.99},
		{in: "N/A", want: 0},
		{in: "", want: 0},
		{in: "-2", want: -2},
	}
	for _, tc := range cases {
		if got := CellFloat(tc.in); got != tc.want {
			t.Fatalf("CellFloat(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
	if got := CellInt("2.9"); got != 2 {
		t.Fatalf("CellInt=%d", got)
	}
}

func TestFirstMoney(t *testing.T) {
	v, ok := FirstMoney("ABC-123 Widget qty 1 £ 40.00 £12.00")
	if !ok || v != 40 {
		t.Fatalf("got %v %v", v, ok)
	}
	if _, ok := FirstMoney("no prices here"); ok {
		t.Fatal("expected no match")
	}
}
