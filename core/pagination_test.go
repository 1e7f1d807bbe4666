package core

import "testing"

func TestPagesClean(t *testing.T) {
	tests := []struct {
		name     string
		in       Pages
		wantNum  int
		wantSize int
	}{
		{"defaults", Pages{}, 1, DefaultPageSize},
		{"negative number", Pages{Number: -3, Size: 10}, 1, 10},
		{"zero size", Pages{Number: 2}, 2, DefaultPageSize},
		{"size over max", Pages{Number: 1, Size: 5000}, 1, MaxPageSize},
		{"valid untouched", Pages{Number: 4, Size: 25}, 4, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Clean()
			if tt.in.Number != tt.wantNum || tt.in.Size != tt.wantSize {
				t.Errorf("Clean() = {%d %d}; want {%d %d}", tt.in.Number, tt.in.Size, tt.wantNum, tt.wantSize)
			}
		})
	}
}

func TestPagesClamp(t *testing.T) {
	tests := []struct {
		name       string
		in         Pages
		count      int
		wantNum    int
		wantTotal  int
		wantOffset int
	}{
		{"first page", Pages{Number: 1, Size: 10}, 25, 1, 3, 0},
		{"overflow resolves to last page", Pages{Number: 9, Size: 10}, 25, 3, 3, 20},
		{"exact last page", Pages{Number: 3, Size: 10}, 30, 3, 3, 20},
		{"empty result still one page", Pages{Number: 5, Size: 10}, 0, 1, 1, 0},
		{"single page", Pages{Number: 1, Size: 50}, 12, 1, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, total := tt.in.Clamp(tt.count)
			if pages.Number != tt.wantNum {
				t.Errorf("Clamp() number = %d; want %d", pages.Number, tt.wantNum)
			}
			if total != tt.wantTotal {
				t.Errorf("Clamp() totalPages = %d; want %d", total, tt.wantTotal)
			}
			if pages.Offset() != tt.wantOffset {
				t.Errorf("Offset() = %d; want %d", pages.Offset(), tt.wantOffset)
			}
		})
	}
}
