package store

import (
	"context"
	"database/sql"
	"io"
	"testing"

	"github.com/chengjon/mem-claude/internal/logging"
)

// Pragmas like foreign_keys and busy_timeout only apply to the connection
// that runs them, and database/sql hands statements to an arbitrary pooled
// connection. Pin two connections at once and check both carry the
// settings the DSN encodes.
func TestNew_PragmasApplyToEveryConnection(t *testing.T) {
	st, err := New(Config{
		DataDir: t.TempDir(),
		Logger:  logging.New("test").WithOutput(io.Discard),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	c1, err := st.db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn: %v", err)
	}
	defer c1.Close()
	c2, err := st.db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn: %v", err)
	}
	defer c2.Close()

	checks := []struct {
		pragma string
		want   int64
	}{
		{"foreign_keys", 1},
		{"busy_timeout", 5000},
	}
	for _, conn := range []*sql.Conn{c1, c2} {
		for _, c := range checks {
			var got int64
			if err := conn.QueryRowContext(ctx, "PRAGMA "+c.pragma).Scan(&got); err != nil {
				t.Fatalf("PRAGMA %s: %v", c.pragma, err)
			}
			if got != c.want {
				t.Errorf("PRAGMA %s = %d, want %d", c.pragma, got, c.want)
			}
		}
	}
}
