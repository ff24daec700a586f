package blob

import (
	"bytes"
	"context"
	"io"
	"testing"

	"somacore/internal/config"
	"somacore/internal/errors"
)

func TestOpenMemory(t *testing.T) {
	store, err := Open(context.Background(), config.StorageConfig{Driver: config.StorageMemory})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %s", store.Driver())
	}
	exerciseStore(t, store)
}

func TestOpenFilesystem(t *testing.T) {
	store, err := Open(context.Background(), config.StorageConfig{Driver: config.StorageFilesystem, FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("expected fs driver, got %s", store.Driver())
	}
	exerciseStore(t, store)
}

func TestMockS3(t *testing.T) {
	exerciseStore(t, NewMockS3ForTests())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "tape"})
	if !errors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestOpenS3RequiresBucket(t *testing.T) {
	if _, err := Open(context.Background(), config.StorageConfig{Driver: config.StorageS3}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

// exerciseStore checks the Store contract shared by every driver.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	key := "exp/obs/__fragments/a.frag"
	if _, err := store.Put(ctx, key, bytes.NewReader([]byte("frag")), PutOptions{ContentType: "application/octet-stream"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, key, bytes.NewReader([]byte("again")), PutOptions{}); !errors.Is(err, errors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "frag" {
		t.Fatalf("unexpected body %q", b)
	}
	list, err := store.List(ctx, "exp/obs/")
	if err != nil || len(list) != 1 || list[0].Key != key {
		t.Fatalf("unexpected list %+v %v", list, err)
	}
	if _, _, err := store.Get(ctx, "exp/absent"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if ok, err := store.Delete(ctx, key); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
}
