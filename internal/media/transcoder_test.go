package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"server/internal/domain"
)

func TestMuxArgs(t *testing.T) {
	args := muxArgs("/tmp/v.mp4", "/tmp/a.mp3", "/tmp/out.mp4")

	want := map[string]string{
		"-stream_loop": "-1",
		"-c:v":         "libx264",
		"-c:a":         "aac",
		"-movflags":    "+faststart",
	}
	for flag, value := range want {
		found := false
		for i, a := range args {
			if a == flag && i+1 < len(args) && args[i+1] == value {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("args missing %s %s: %v", flag, value, args)
		}
	}
	hasShortest := false
	for _, a := range args {
		if a == "-shortest" {
			hasShortest = true
		}
	}
	if !hasShortest {
		t.Fatalf("args missing -shortest: %v", args)
	}
	if args[len(args)-1] != "/tmp/out.mp4" {
		t.Fatalf("output path must be last arg, got %v", args)
	}
}

func TestMuxDownloadFailureIsTranscodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	scratch := t.TempDir()
	tr := New(Options{ScratchDir: scratch})

	_, err := tr.Mux(context.Background(), srv.URL+"/video.mp4", srv.URL+"/audio.mp3")
	var tErr *domain.TranscodeError
	if !errors.As(err, &tErr) {
		t.Fatalf("err = %v, want TranscodeError", err)
	}
	assertScratchEmpty(t, scratch)
}

func TestMuxEncoderFailureCleansScratch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not really media"))
	}))
	defer srv.Close()

	scratch := t.TempDir()
	tr := New(Options{FFmpegPath: "/nonexistent/ffmpeg", ScratchDir: scratch})

	_, err := tr.Mux(context.Background(), srv.URL+"/video.mp4", srv.URL+"/audio.mp3")
	var tErr *domain.TranscodeError
	if !errors.As(err, &tErr) {
		t.Fatalf("err = %v, want TranscodeError", err)
	}
	assertScratchEmpty(t, scratch)
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("scratch files left behind: %v", names)
	}
}
