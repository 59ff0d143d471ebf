package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestClientListSendsTokenAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/list" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		cookie, err := r.Cookie(TokenCookie)
		if err != nil || cookie.Value != "tok" {
			t.Fatalf("expected token cookie, got %v (%v)", cookie, err)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		_, _ = io.WriteString(w, `{"list":[{"id":7,"content":"hi","attachments":[],"created_at":1,"updated_at":2,"favorite":true}],"expire_seconds":3600}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/")
	client.SetToken("tok")
	snapshot, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if snapshot.ExpireSeconds != 3600 || len(snapshot.List) != 1 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if item := snapshot.List[0]; item.ID != 7 || !item.Favorite || item.Content != "hi" {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestClientMutationsUseIDQuery(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		paths = append(paths, r.URL.RequestURI())
		_, _ = io.WriteString(w, "OK\n")
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ctx := context.Background()
	if got, err := client.Favorite(ctx, 3); err != nil || got != "OK" {
		t.Fatalf("favorite: %q %v", got, err)
	}
	if _, err := client.Delete(ctx, 4); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.Clean(ctx); err != nil {
		t.Fatalf("clean: %v", err)
	}

	want := []string{"/api/favorite?id=3", "/api/delete?id=4", "/api/clean"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, paths)
	}
}

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "json message", status: 400, body: `{"message":"内容不能为空"}`, message: "内容不能为空"},
		{name: "json error", status: 500, body: `{"error":"db down"}`, message: "db down"},
		{name: "plain text", status: 401, body: "unauthorized\n", message: "unauthorized"},
		{name: "empty", status: 502, body: "", message: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Clean(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T %v", err, err)
			}
			if apiErr.Status != tc.status || apiErr.Reason() != tc.message {
				t.Fatalf("unexpected error %+v", apiErr)
			}
			if tc.message == "" && !strings.Contains(apiErr.Error(), "502") {
				t.Fatalf("expected status in message, got %q", apiErr.Error())
			}
		})
	}
}

func TestClientCreateStreamsMultipartWithProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 200_000)
	var gotLength int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLength = r.ContentLength
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("content"); got != "note" {
			t.Fatalf("unexpected content %q", got)
		}
		files := r.MultipartForm.File["files"]
		if len(files) != 2 {
			t.Fatalf("expected 2 files, got %d", len(files))
		}
		if files[0].Filename != `a "b".png` || files[0].Header.Get("Content-Type") != "image/png" {
			t.Fatalf("unexpected first file %+v", files[0].Header)
		}
		if files[1].Size != int64(len(payload)) {
			t.Fatalf("unexpected second file size %d", files[1].Size)
		}
		if files[1].Header.Get("Content-Type") != defaultContentType {
			t.Fatalf("expected default content type, got %q", files[1].Header.Get("Content-Type"))
		}
		_, _ = io.WriteString(w, "OK")
	}))
	defer srv.Close()

	var calls []int64
	var total int64
	req := CreateRequest{
		Content: "note",
		Files: []FilePart{
			bytesPart(`a "b".png`, "image/png", []byte("png")),
			bytesPart("blob.bin", "", payload),
		},
		Progress: func(sent, n int64) {
			calls = append(calls, sent)
			total = n
		},
	}

	if _, err := NewClient(srv.URL).Create(context.Background(), req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if total != gotLength {
		t.Fatalf("expected progress total %d to equal content length %d", total, gotLength)
	}
	if len(calls) == 0 || calls[len(calls)-1] != total {
		t.Fatalf("expected final progress at %d, got %v", total, calls)
	}
	for i := 1; i < len(calls); i++ {
		if calls[i] < calls[i-1] {
			t.Fatalf("progress went backwards: %v", calls)
		}
	}
}

func TestClientCreateRejectsSizeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
	}))
	defer srv.Close()

	part := bytesPart("short.txt", "text/plain", []byte("abc"))
	part.Size = 10
	_, err := NewClient(srv.URL).Create(context.Background(), CreateRequest{Files: []FilePart{part}})
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		sent, total int64
		want        int
	}{
		{0, 100, 0},
		{1, 3, 33},
		{2, 3, 67},
		{50, 100, 50},
		{100, 100, 100},
		{5, 0, 100},
	}
	for _, tc := range tests {
		if got := Percent(tc.sent, tc.total); got != tc.want {
			t.Fatalf("Percent(%d, %d) = %d, want %d", tc.sent, tc.total, got, tc.want)
		}
	}
}

func TestClientLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"密码错误"}`)
			return
		}
		_, _ = io.WriteString(w, "jwt-token")
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	token, err := client.Login(context.Background(), "secret")
	if err != nil || token != "jwt-token" {
		t.Fatalf("login: %q %v", token, err)
	}
	if _, err := client.Login(context.Background(), "wrong"); err == nil {
		t.Fatal("expected login failure")
	}
}

func TestClientURLs(t *testing.T) {
	client := NewClient("https://drop.example.com/base/")
	got, err := client.WebSocketURL("team", false)
	if err != nil {
		t.Fatalf("ws url: %v", err)
	}
	if got != "wss://drop.example.com/base/api/ws?channel=team&echo=false" {
		t.Fatalf("unexpected ws url %q", got)
	}
	if got := client.FileURL("2024/a b.png"); got != "https://drop.example.com/base/files/2024/a%20b.png" {
		t.Fatalf("unexpected file url %q", got)
	}

	plain := NewClient("http://localhost:8080")
	got, err = plain.WebSocketURL("", true)
	if err != nil || got != "ws://localhost:8080/api/ws?echo=true" {
		t.Fatalf("unexpected ws url %q (%v)", got, err)
	}
	if len(plain.AuthHeader()) != 0 {
		t.Fatalf("expected no auth header without token")
	}
}

func bytesPart(name, contentType string, data []byte) FilePart {
	return FilePart{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
