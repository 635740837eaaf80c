package store

import (
	"path/filepath"
	"testing"

	"github.com/stellarlinkco/evobench/internal/config"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	if _, err := Open(nil); err == nil {
		t.Fatalf("nil config: expected error")
	}

	st, err := Open(&config.Config{Storage: config.StorageConfig{Type: "memory"}})
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	_ = st.Close()

	path := filepath.Join(t.TempDir(), "open.db")
	st, err = Open(&config.Config{Storage: config.StorageConfig{Type: "sqlite", Path: path}})
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	_ = st.Close()

	// Empty type defaults to sqlite at the configured path.
	path = filepath.Join(t.TempDir(), "default.db")
	st, err = Open(&config.Config{Storage: config.StorageConfig{Path: path}})
	if err != nil {
		t.Fatalf("Open(default): %v", err)
	}
	_ = st.Close()

	if _, err := Open(&config.Config{Storage: config.StorageConfig{Type: "postgres"}}); err == nil {
		t.Fatalf("unsupported type: expected error")
	}
}
