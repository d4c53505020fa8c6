package exchange

import "testing"

func TestChunkSymbols(t *testing.T) {
	tests := []struct {
		name    string
		symbols []string
		size    int
		want    [][]string
	}{
		{"empty", nil, 20, nil},
		{"exact fit", []string{"A", "B", "C", "D"}, 2, [][]string{{"A", "B"}, {"C", "D"}}},
		{"remainder", []string{"A", "B", "C"}, 2, [][]string{{"A", "B"}, {"C"}}},
		{"single chunk", []string{"A", "B"}, 100, [][]string{{"A", "B"}}},
		{"zero size falls back to 1", []string{"A", "B"}, 0, [][]string{{"A"}, {"B"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunkSymbols(tt.symbols, tt.size)
			if len(got) != len(tt.want) {
				t.Fatalf("chunkSymbols() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if len(got[i]) != len(tt.want[i]) {
					t.Fatalf("chunk %d = %v, want %v", i, got[i], tt.want[i])
				}
				for j := range got[i] {
					if got[i][j] != tt.want[i][j] {
						t.Fatalf("chunk %d = %v, want %v", i, got[i], tt.want[i])
					}
				}
			}
		})
	}
}
