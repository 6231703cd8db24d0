package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// runStoreContract checks the behaviour every Store implementation must share
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := s.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get(missing) = found %v, err %v", found, err)
	}

	if err := s.Set(ctx, "token", "t1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, found, err := s.Get(ctx, "token")
	if err != nil || !found || v != "t1" {
		t.Fatalf("Get(token) = %q, %v, %v", v, found, err)
	}

	if err := s.Set(ctx, "token", "t2"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if v, _, _ := s.Get(ctx, "token"); v != "t2" {
		t.Errorf("expected overwritten value t2, got %q", v)
	}

	if err := s.Delete(ctx, "token"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, _ := s.Get(ctx, "token"); found {
		t.Errorf("expected token to be deleted")
	}

	if err := s.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete() of a missing key should not fail, got %v", err)
	}
}

func TestStores(t *testing.T) {
	tests := []struct {
		name  string
		store func(t *testing.T) Store
	}{
		{
			name:  "memory",
			store: func(t *testing.T) Store { return NewMemoryStore() },
		},
		{
			name: "file",
			store: func(t *testing.T) Store {
				return NewFileStore(filepath.Join(t.TempDir(), "nested", "session.yaml"))
			},
		},
		{
			name:  "scoped",
			store: func(t *testing.T) Store { return Scoped(NewMemoryStore(), "browser-1") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runStoreContract(t, tt.store(t))
		})
	}
}

func TestScopedStoreIsolation(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	a := Scoped(backend, "a")
	b := Scoped(backend, "b")

	if err := a.Set(ctx, TokenKey, "token-a"); err != nil {
		t.Fatal(err)
	}

	if _, found, _ := b.Get(ctx, TokenKey); found {
		t.Errorf("scope b should not see scope a's token")
	}
	if v, found, _ := backend.Get(ctx, "a:"+TokenKey); !found || v != "token-a" {
		t.Errorf("expected prefixed key in backend, got %q found=%v", v, found)
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.yaml")

	if err := NewFileStore(path).Set(ctx, UserIDKey, "42"); err != nil {
		t.Fatal(err)
	}

	v, found, err := NewFileStore(path).Get(ctx, UserIDKey)
	if err != nil || !found || v != "42" {
		t.Fatalf("Get() from new instance = %q, %v, %v", v, found, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected file mode 0600, got %o", perm)
	}
}

func TestFileStoreEmptyAndCorruptFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, found, err := NewFileStore(empty).Get(ctx, TokenKey); err != nil || found {
		t.Errorf("empty file: found %v, err %v", found, err)
	}

	corrupt := filepath.Join(dir, "corrupt.yaml")
	if err := os.WriteFile(corrupt, []byte("token: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewFileStore(corrupt).Get(ctx, TokenKey); err == nil {
		t.Errorf("expected an error for a corrupt session file")
	}
}

func TestMemoryStoreConcurrentUse(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, TokenKey, "t")
			_, _, _ = s.Get(ctx, TokenKey)
			_ = s.Delete(ctx, UserIDKey)
		}()
	}
	wg.Wait()

	if v, found, _ := s.Get(ctx, TokenKey); !found || v != "t" {
		t.Errorf("expected token t after concurrent writes, got %q", v)
	}
}
