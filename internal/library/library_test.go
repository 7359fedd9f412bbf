package library

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirgibblets/achew-core/internal/model"
)

func TestFetchBookDecodesMetadata(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/books/abc" {
			t.Errorf("path = %s, want /books/abc", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Book{
			ID:       "abc",
			Duration: 3600,
			Files: []model.AudioFile{
				{Ino: "1", MimeType: "audio/mpeg", Duration: 3600},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	book, err := c.FetchBook(context.Background(), "abc")
	if err != nil {
		t.Fatalf("FetchBook: %v", err)
	}
	if book.ID != "abc" || book.Duration != 3600 || len(book.Files) != 1 {
		t.Errorf("FetchBook = %+v, unexpected shape", book)
	}
}

func TestFetchBookPropagatesServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.FetchBook(context.Background(), "abc"); err == nil {
		t.Errorf("FetchBook with 500 response: want error, got nil")
	}
}

func TestDownloadFileFullDownloadReportsProgress(t *testing.T) {
	t.Parallel()

	content := []byte("0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	var lastDownloaded, lastTotal int64
	c := New(srv.URL)
	err := c.DownloadFile(context.Background(), "a.mp3", dest, func(downloaded, total int64) {
		lastDownloaded, lastTotal = downloaded, total
	})
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("downloaded content = %q, want %q", got, content)
	}
	if lastDownloaded != int64(len(content)) {
		t.Errorf("final progress downloaded = %d, want %d", lastDownloaded, len(content))
	}
	if lastTotal != int64(len(content)) {
		t.Errorf("final progress total = %d, want %d", lastTotal, len(content))
	}
}

func TestDownloadFileResumesFromPartial(t *testing.T) {
	t.Parallel()

	full := []byte("0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Write(full)
			return
		}
		w.WriteHeader(http.StatusPartialContent)
		w.Write(full[5:])
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(dest, full[:5], 0o644); err != nil {
		t.Fatalf("seed partial file: %v", err)
	}

	c := New(srv.URL)
	if err := c.DownloadFile(context.Background(), "a.mp3", dest, nil); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(full) {
		t.Errorf("resumed content = %q, want %q", got, full)
	}
}

func TestDownloadFileCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	c := New(srv.URL)
	if err := c.DownloadFile(ctx, "a.mp3", dest, nil); err == nil {
		t.Errorf("DownloadFile with cancelled context: want error, got nil")
	}
}

func TestFetchExternalChaptersNotFoundReturnsNil(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL)
	chapters, err := c.FetchExternalChapters(context.Background(), "B00XYZ")
	if err != nil {
		t.Fatalf("FetchExternalChapters: %v", err)
	}
	if chapters != nil {
		t.Errorf("FetchExternalChapters on 404 = %v, want nil", chapters)
	}
}

func TestSubmitSendsChapterList(t *testing.T) {
	t.Parallel()

	var gotBody struct {
		Chapters []SubmittedChapter `json:"chapters"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	want := []SubmittedChapter{{Timestamp: 0, Title: "Chapter 1"}, {Timestamp: 600, Title: "Chapter 2"}}
	if err := c.Submit(context.Background(), "abc", want); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(gotBody.Chapters) != 2 || gotBody.Chapters[1].Title != "Chapter 2" {
		t.Errorf("server received = %+v, want %+v", gotBody.Chapters, want)
	}
}

func TestReachableTrueOnHealthyServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if !c.Reachable(context.Background()) {
		t.Errorf("Reachable = false, want true")
	}
}

func TestReachableFalseOnUnreachableServer(t *testing.T) {
	t.Parallel()

	c := New("http://127.0.0.1:1")
	if c.Reachable(context.Background()) {
		t.Errorf("Reachable = true, want false")
	}
}
