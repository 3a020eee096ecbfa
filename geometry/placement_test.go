package geometry

import (
	"image"
	"testing"

	"multinpainter/core"
)

func TestComputePlacementCentered(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		outW, outH int
		focus      image.Point
		wantX      int
		wantY      int
	}{
		{
			name: "centered focus splits evenly",
			srcW: 512, srcH: 512,
			outW: 1920, outH: 1080,
			focus: image.Pt(256, 256),
			wantX: 704, wantY: 284,
		},
		{
			name: "no expansion",
			srcW: 640, srcH: 480,
			outW: 640, outH: 480,
			focus: image.Pt(320, 240),
			wantX: 0, wantY: 0,
		},
		{
			name: "focus near left edge keeps expansion on the right",
			srcW: 400, srcH: 400,
			outW: 1200, outH: 400,
			focus: image.Pt(40, 200),
			wantX: 80, wantY: 0,
		},
		{
			name: "focus near bottom pushes source down",
			srcW: 400, srcH: 400,
			outW: 400, outH: 1200,
			focus: image.Pt(200, 360),
			wantX: 0, wantY: 720,
		},
		{
			name: "focus outside source clamps to flush placement",
			srcW: 100, srcH: 100,
			outW: 300, outH: 300,
			focus: image.Pt(-50, 500),
			wantX: 0, wantY: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputePlacement(tt.srcW, tt.srcH, tt.outW, tt.outH, tt.focus)
			if err != nil {
				t.Fatalf("ComputePlacement() error = %v", err)
			}
			if got.X != tt.wantX || got.Y != tt.wantY {
				t.Errorf("ComputePlacement() = (%d,%d), want (%d,%d)", got.X, got.Y, tt.wantX, tt.wantY)
			}
			if got.Width != tt.srcW || got.Height != tt.srcH {
				t.Errorf("ComputePlacement() size = (%d,%d), want (%d,%d)", got.Width, got.Height, tt.srcW, tt.srcH)
			}
		})
	}
}

func TestComputePlacementRejectsShrink(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		outW, outH int
	}{
		{"narrower output", 800, 600, 640, 600},
		{"shorter output", 800, 600, 800, 480},
		{"both smaller", 800, 600, 400, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputePlacement(tt.srcW, tt.srcH, tt.outW, tt.outH, DefaultFocus(tt.srcW, tt.srcH))
			if err == nil {
				t.Fatal("ComputePlacement() succeeded, want InvalidDimensions")
			}
			if core.GetErrorCode(err) != core.ErrCodeInvalidDimensions {
				t.Errorf("error code = %q, want %q", core.GetErrorCode(err), core.ErrCodeInvalidDimensions)
			}
		})
	}
}

func TestComputePlacementRejectsEmptySource(t *testing.T) {
	_, err := ComputePlacement(0, 100, 200, 200, image.Pt(0, 50))
	if err == nil {
		t.Fatal("ComputePlacement() accepted a zero-width source")
	}
}

func TestFocusFromBox(t *testing.T) {
	got := FocusFromBox(core.Box{X0: 100, Y0: 40, X1: 200, Y1: 120})
	want := image.Pt(150, 80)
	if got != want {
		t.Errorf("FocusFromBox() = %v, want %v", got, want)
	}
}

func TestValidSquareSize(t *testing.T) {
	for _, size := range AllowedSquareSizes {
		if !ValidSquareSize(size) {
			t.Errorf("ValidSquareSize(%d) = false", size)
		}
	}
	for _, size := range []int{0, 100, 768, 2048, -512} {
		if ValidSquareSize(size) {
			t.Errorf("ValidSquareSize(%d) = true", size)
		}
	}
}
