package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"arkdrop/internal/api"
	"arkdrop/internal/blobstore"
	"arkdrop/internal/config"
	"arkdrop/internal/server"
	"arkdrop/internal/store"
)

func startBoard(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, dbFileName))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	bs, err := blobstore.NewLocalFiles(filepath.Join(dir, filesDirName))
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	srv, err := server.New(server.Options{Store: st, Blobs: bs})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().Close()
		ts.Close()
	})

	t.Setenv("DROP_CONFIG_DIR", t.TempDir())
	cfg := config.Default()
	cfg.APIURL = ts.URL
	return &cfg
}

func runCLI(t *testing.T, cfg *config.Config, args ...string) error {
	t.Helper()
	cmd := newRootCmd(cfg)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestCreateFavDeleteCommands(t *testing.T) {
	cfg := startBoard(t)
	client := api.NewClient(cfg.APIURL)
	ctx := context.Background()

	attachment := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(attachment, []byte("attached"), 0o644); err != nil {
		t.Fatalf("write attachment: %v", err)
	}

	if err := runCLI(t, cfg, "create", "-m", "from the cli", attachment); err != nil {
		t.Fatalf("create: %v", err)
	}
	snap, err := client.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snap.List) != 1 {
		t.Fatalf("expected one item, got %d", len(snap.List))
	}
	item := snap.List[0]
	if item.Content != "from the cli" || len(item.Attachments) != 1 || item.Attachments[0].FileName != "notes.txt" {
		t.Fatalf("unexpected item %+v", item)
	}

	id := "#" + strconv.FormatInt(item.ID, 10)
	if err := runCLI(t, cfg, "fav", id); err != nil {
		t.Fatalf("fav: %v", err)
	}
	snap, _ = client.List(ctx)
	if !snap.List[0].Favorite {
		t.Fatal("expected favorite after fav command")
	}

	outDir := t.TempDir()
	if err := runCLI(t, cfg, "get", id, "-o", outDir, "--quiet"); err != nil {
		t.Fatalf("get: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "notes.txt"))
	if err != nil || string(data) != "attached" {
		t.Fatalf("expected downloaded attachment, got %q err=%v", data, err)
	}
	if err := runCLI(t, cfg, "get", id, "-o", outDir, "--quiet"); err == nil {
		t.Fatal("expected refusal to overwrite without --force")
	}

	if err := runCLI(t, cfg, "delete", "--yes", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snap, _ = client.List(ctx)
	if len(snap.List) != 0 {
		t.Fatalf("expected empty board, got %d", len(snap.List))
	}
}

func TestCreateRejectsEmptyDraft(t *testing.T) {
	cfg := startBoard(t)
	if err := runCLI(t, cfg, "create"); err == nil {
		t.Fatal("expected empty submission error")
	}
}

func TestCreateFromNote(t *testing.T) {
	cfg := startBoard(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pic.png"), []byte("\x89PNG"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	notePath := filepath.Join(dir, "note.md")
	if err := os.WriteFile(notePath, []byte("---\nfiles: [pic.png]\n---\nsee attached\n"), 0o644); err != nil {
		t.Fatalf("write note: %v", err)
	}

	if err := runCLI(t, cfg, "create", "-f", notePath); err != nil {
		t.Fatalf("create: %v", err)
	}
	snap, err := api.NewClient(cfg.APIURL).List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snap.List) != 1 || snap.List[0].Content != "see attached" || len(snap.List[0].Images()) != 1 {
		t.Fatalf("unexpected board %+v", snap.List)
	}
}
