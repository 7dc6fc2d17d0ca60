// SPDX-License-Identifier: MIT
package sample

import (
	"errors"
	"slices"
	"testing"
)

func TestNewShape(t *testing.T) {
	tests := []struct {
		name     string
		raw      []float64
		channels int
		wantLen  int
		wantErr  bool
	}{
		{"Stereo", []float64{1, 2, 3, 4, 5, 6}, 2, 3, false},
		{"Mono", []float64{1, 2, 3}, 1, 3, false},
		{"Empty", nil, 2, 0, false},
		{"Uneven", []float64{1, 2, 3}, 2, 0, true},
		{"Zero channels", []float64{1, 2}, 0, 0, true},
		{"Negative channels", []float64{1, 2}, -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.raw, tt.channels)
			if tt.wantErr {
				if !errors.Is(err, ErrShape) {
					t.Fatalf("expected ErrShape, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", b.Len(), tt.wantLen)
			}
			if b.Len()*b.Channels() != len(b.Raw()) {
				t.Errorf("shape invariant broken: %d*%d != %d", b.Len(), b.Channels(), len(b.Raw()))
			}
		})
	}
}

func TestSampleAcrossChannels(t *testing.T) {
	b := MustNew([]float64{0, 1, 2, 10, 11, 12}, 2)

	for i := range b.Len() {
		got := b.Sample(i)
		want := []float64{float64(i), float64(10 + i)}
		if !slices.Equal(got, want) {
			t.Errorf("Sample(%d) = %v, want %v", i, got, want)
		}
	}

	if got := b.Channel(1); !slices.Equal(got, []float64{10, 11, 12}) {
		t.Errorf("Channel(1) = %v", got)
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	b := MustNew(src, 2)

	src[0] = 99
	raw := b.Raw()
	raw[1] = 99
	ch := b.Channel(0)
	ch[0] = 99
	s := b.Sample(0)
	s[1] = 99

	if !slices.Equal(b.Raw(), []float64{1, 2, 3, 4}) {
		t.Errorf("buffer was mutated through a returned slice: %v", b.Raw())
	}
}

func TestMaxAndClear(t *testing.T) {
	b := MustNew([]float64{0.1, 0.7, 0.3, 0.2}, 2)
	if got := b.Max(); got != 0.7 {
		t.Errorf("Max() = %v, want 0.7", got)
	}
	b.Clear()
	if got := b.Max(); got != 0 {
		t.Errorf("Max() after Clear = %v, want 0", got)
	}
	if b.Len() != 2 || b.Channels() != 2 {
		t.Errorf("Clear changed the shape")
	}
}

func TestAllIteration(t *testing.T) {
	b := MustNew([]float64{1, 2, 3, 4, 5, 6}, 3)
	var got [][]float64
	for i, v := range b.All() {
		if i != len(got) {
			t.Fatalf("unexpected index %d", i)
		}
		got = append(got, v)
	}
	want := [][]float64{{1, 3, 5}, {2, 4, 6}}
	if len(got) != len(want) {
		t.Fatalf("iterated %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}

	// Early break must stop the iterator.
	n := 0
	for range b.All() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("break did not stop iteration")
	}
}

func TestIndexOutOfRangePanics(t *testing.T) {
	b := MustNew([]float64{1, 2}, 2)
	cases := map[string]func(){
		"Sample": func() { b.Sample(1) },
		"Channel": func() { b.Channel(2) },
		"At":      func() { b.At(-1) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("%s did not panic", name)
				}
			}()
			fn()
		})
	}
}

func BenchmarkRawInto(b *testing.B) {
	buf := MustNew(make([]float64, 128), 2)
	dst := make([]float64, 128)
	b.ReportAllocs()
	for b.Loop() {
		buf.RawInto(dst)
	}
}
