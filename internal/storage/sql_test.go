package storage

import "testing"

func TestRebindPerDialect(t *testing.T) {
	const query = "SELECT x FROM t WHERE a = ? AND b = ? LIMIT ? OFFSET ?"
	tests := []struct {
		driver string
		want   string
	}{
		{"sqlite3", query},
		{"postgres", "SELECT x FROM t WHERE a = $1 AND b = $2 LIMIT $3 OFFSET $4"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			s := newSQLStore(nil, tt.driver, Options{Collection: "attestations"})
			if got := s.rebind(query); got != tt.want {
				t.Fatalf("rebind = %q, want %q", got, tt.want)
			}
		})
	}
}
