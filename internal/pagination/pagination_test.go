package pagination

import "testing"

func TestDefaults(t *testing.T) {
	tests := []struct {
		in, want PageRequest
	}{
		{PageRequest{}, PageRequest{Page: 1, PageSize: 20}},
		{PageRequest{Page: 3, PageSize: 10}, PageRequest{Page: 3, PageSize: 10}},
		{PageRequest{Page: -1, PageSize: 500}, PageRequest{Page: 1, PageSize: 100}},
	}

	for _, tt := range tests {
		got := tt.in
		got.Defaults()
		if got != tt.want {
			t.Errorf("Defaults(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse[int](nil, 2, 10, 21)
	if resp.Data == nil || len(resp.Data) != 0 {
		t.Errorf("expected empty non-nil data, got %v", resp.Data)
	}
	if resp.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", resp.TotalPages)
	}
	if (PageRequest{Page: 2, PageSize: 10}).Offset() != 10 {
		t.Error("expected offset 10 for page 2")
	}
}
