package fs

import (
	"context"
	"io"
	"strings"
	"testing"

	"ogencore/internal/blob/core"
)

func TestFilesystemPutGetHeadListDelete(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	mask := `{"rows":2,"cols":2,"data":[1,0,0,1]}`
	info, err := store.Put(ctx, "patterns/p1/sweep_mask.json", strings.NewReader(mask), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"pattern": "p1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(mask)) || info.ETag == "" {
		t.Fatalf("unexpected info: %+v", info)
	}

	if _, err := store.Put(ctx, "patterns/p1/sweep_mask.json", strings.NewReader(mask), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put to fail")
	}

	got, rc, err := store.Get(ctx, "patterns/p1/sweep_mask.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != mask {
		t.Fatalf("content mismatch: %q", body)
	}
	if got.Metadata["pattern"] != "p1" {
		t.Fatalf("metadata lost: %+v", got.Metadata)
	}

	head, err := store.Head(ctx, "patterns/p1/sweep_mask.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", head.ContentType)
	}

	infos, err := store.List(ctx, "patterns/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "patterns/p1/sweep_mask.json" {
		t.Fatalf("unexpected listing: %+v", infos)
	}

	ok, err := store.Delete(ctx, "patterns/p1/sweep_mask.json")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, err = store.Delete(ctx, "patterns/p1/sweep_mask.json")
	if err != nil || ok {
		t.Fatalf("second delete should be (false, nil), got ok=%v err=%v", ok, err)
	}
}

func TestFilesystemKeySanitization(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"", "  ", "../escape", "/absolute", "a/../../b"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestFilesystemPresignURL(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	url, err := store.PresignURL(context.Background(), "patterns/p1/sweep_mask.json", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "local.blob") {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "PUT"}); err != core.ErrUnsupported {
		t.Fatalf("expected ErrUnsupported for PUT, got %v", err)
	}
}
