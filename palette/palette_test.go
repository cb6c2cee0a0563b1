package palette

import (
	"image/color"
	"testing"
)

func TestClassify_WhiteRegardlessOfHue(t *testing.T) {
	for h := 0.0; h <= 180; h += 5 {
		for s := 0.0; s < 60; s += 7 {
			for v := 131.0; v <= 255; v += 31 {
				if got := Classify(HSV{H: h, S: s, V: v}); got != White {
					t.Fatalf("Classify(%v,%v,%v): got %s, want white", h, s, v, got)
				}
			}
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   HSV
		want string
	}{
		{"black", HSV{H: 100, S: 200, V: 30}, Black},
		{"dark desaturated is black not white", HSV{H: 0, S: 10, V: 40}, Black},
		{"red low hue", HSV{H: 5, S: 200, V: 200}, Red},
		{"red wrapped hue", HSV{H: 175, S: 200, V: 200}, Red},
		{"hue 170 is red before purple", HSV{H: 170, S: 200, V: 200}, Red},
		{"brown low saturation red", HSV{H: 5, S: 65, V: 120}, Brown},
		{"orange", HSV{H: 18, S: 200, V: 200}, Orange},
		{"dim orange is brown", HSV{H: 18, S: 200, V: 120}, Brown},
		{"yellow", HSV{H: 30, S: 200, V: 200}, Yellow},
		{"green", HSV{H: 60, S: 200, V: 200}, Green},
		{"blue", HSV{H: 110, S: 200, V: 200}, Blue},
		{"purple", HSV{H: 150, S: 200, V: 200}, Purple},
		{"gap between blue and purple dark", HSV{H: 135.5, S: 200, V: 80}, Purple},
		{"gap between blue and purple bright", HSV{H: 135.5, S: 200, V: 200}, Unknown},
		{"gap between orange and yellow dark", HSV{H: 25.5, S: 200, V: 80}, Unknown},
		{"gap between red and orange dark", HSV{H: 10.5, S: 200, V: 80}, Brown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.in); got != tt.want {
				t.Errorf("Classify(%+v): got %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestGammaTable(t *testing.T) {
	table := GammaTable(1.6)

	if table[0] != 0 {
		t.Errorf("table[0]: got %d, want 0", table[0])
	}
	if table[255] != 255 {
		t.Errorf("table[255]: got %d, want 255", table[255])
	}
	for i := 1; i < 255; i++ {
		if table[i] < uint8(i) {
			t.Errorf("table[%d] = %d darkens, gamma > 1 should brighten", i, table[i])
		}
		if table[i] < table[i-1] {
			t.Errorf("table not monotonic at %d", i)
		}
	}

	identity := GammaTable(1)
	for i := range identity {
		if int(identity[i]) != i && int(identity[i]) != i-1 {
			t.Errorf("gamma 1 table[%d]: got %d", i, identity[i])
		}
	}
}

func TestToleranceMatches(t *testing.T) {
	tol := Tolerance{Hue: 15, Saturation: 80, Value: 80}
	cloth := HSV{H: 60, S: 180, V: 120}

	tests := []struct {
		name   string
		sample HSV
		ref    HSV
		want   bool
	}{
		{"same", cloth, cloth, true},
		{"hue edge", HSV{H: 75, S: 180, V: 120}, cloth, true},
		{"hue too far", HSV{H: 76, S: 180, V: 120}, cloth, false},
		{"saturation too far", HSV{H: 60, S: 90, V: 120}, cloth, false},
		{"value too far", HSV{H: 60, S: 180, V: 201}, cloth, false},
		{"hue wraps", HSV{H: 178, S: 100, V: 100}, HSV{H: 5, S: 100, V: 100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tol.Matches(tt.sample, tt.ref); got != tt.want {
				t.Errorf("Matches(%+v, %+v): got %v, want %v", tt.sample, tt.ref, got, tt.want)
			}
		})
	}
}

func TestIsShadow(t *testing.T) {
	s := Shadow{MaxValue: 40, MaxSaturation: 60}

	if !s.IsShadow(HSV{V: 20, S: 30}) {
		t.Error("dark desaturated sample should be shadow")
	}
	if s.IsShadow(HSV{V: 20, S: 120}) {
		t.Error("dark saturated sample is a ball, not shadow")
	}
	if s.IsShadow(HSV{V: 40, S: 30}) {
		t.Error("value 40 is not below the shadow bound")
	}
}

func TestDisplayColor(t *testing.T) {
	if got := DisplayColor("Yellow"); got != (color.RGBA{R: 255, G: 215, A: 255}) {
		t.Errorf("Yellow: got %v", got)
	}
	if got, want := DisplayColor("N7"), DisplayColor(Unknown); got != want {
		t.Errorf("unmapped label: got %v, want %v", got, want)
	}
}
