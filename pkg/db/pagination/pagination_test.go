package pagination

import "testing"

func TestNormalizeClampsBounds(t *testing.T) {
	tests := []struct {
		name     string
		in       Pagination
		page     int
		pageSize int
	}{
		{"defaults", Pagination{}, 1, 10},
		{"negative page", Pagination{Page: -3, PageSize: 20}, 1, 20},
		{"oversized page size", Pagination{Page: 2, PageSize: 5000}, 2, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if got.Page != tt.page || got.PageSize != tt.pageSize {
				t.Fatalf("got page=%d size=%d, want page=%d size=%d", got.Page, got.PageSize, tt.page, tt.pageSize)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	p := Pagination{Page: 3, PageSize: 25}
	if got := p.Offset(); got != 50 {
		t.Fatalf("offset = %d, want 50", got)
	}
}
