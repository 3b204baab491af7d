package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"newsforge/internal/config"
	"newsforge/internal/core"
)

// ttsService simulates the external TTS HTTP API. pollScript entries are
// consumed one per status poll; an entry of "429" or "500" produces that HTTP
// status instead of a body.
type ttsService struct {
	t          *testing.T
	pollScript []string
	polls      atomic.Int32
	audio      []byte
}

func (s *ttsService) handler(audioPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/tts":
			_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "T"})
		case strings.HasPrefix(r.URL.Path, "/tts/"):
			n := int(s.polls.Add(1)) - 1
			if n >= len(s.pollScript) {
				n = len(s.pollScript) - 1
			}
			switch s.pollScript[n] {
			case "429":
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			case "500":
				http.Error(w, "boom", http.StatusInternalServerError)
			case "SUCCESS":
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "SUCCESS", "run_id": "R"})
			default:
				_ = json.NewEncoder(w).Encode(map[string]string{"status": s.pollScript[n]})
			}
		case strings.HasPrefix(r.URL.Path, "/tts-result/"):
			_ = json.NewEncoder(w).Encode(map[string]string{"url": audioPath})
		case r.URL.Path == "/audio.wav":
			_, _ = w.Write(s.audio)
		default:
			s.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func newTestManager(t *testing.T, svc *ttsService, maxPolls int) (*Manager, *config.Config) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/", svc.handler(srv.URL+"/audio.wav"))

	cfg := &config.Config{
		App: config.App{SiteDir: t.TempDir()},
		TTS: config.TTS{
			Enabled:         true,
			Endpoint:        srv.URL,
			PollInterval:    time.Millisecond,
			MaxPollAttempts: maxPolls,
		},
	}
	return NewManager(cfg), cfg
}

func TestProcessHappyPath(t *testing.T) {
	svc := &ttsService{
		t:          t,
		pollScript: []string{"PROCESSING", "PROCESSING", "SUCCESS"},
		audio:      []byte("RIFFfakewav"),
	}
	m, cfg := newTestManager(t, svc, 60)

	rec := &core.ArticleRecord{
		ID:                     "art-1",
		FinalPageH1:            "Chip Ships",
		AssembledArticleBodyMD: "## Intro\n\nThe chip shipped.",
	}
	if err := m.Process(context.Background(), rec); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if rec.TTSTaskState != StateDone {
		t.Errorf("state = %q, want DONE", rec.TTSTaskState)
	}
	if rec.AudioURL != "audio/art-1.wav" {
		t.Errorf("audio_url = %q", rec.AudioURL)
	}
	if rec.StageStatus("tts") != core.StatusSuccess {
		t.Errorf("stage status = %q", rec.StageStatus("tts"))
	}
	data, err := os.ReadFile(filepath.Join(cfg.AudioDir(), "art-1.wav"))
	if err != nil {
		t.Fatalf("audio file not written: %v", err)
	}
	if string(data) != "RIFFfakewav" {
		t.Errorf("audio bytes = %q", data)
	}
	if got := svc.polls.Load(); got != 3 {
		t.Errorf("polls = %d, want 3", got)
	}
}

func TestProcessTimesOut(t *testing.T) {
	svc := &ttsService{t: t, pollScript: []string{"PROCESSING"}}
	m, _ := newTestManager(t, svc, 5)

	rec := &core.ArticleRecord{ID: "art-2", FinalPageH1: "T", Summary: "body"}
	if err := m.Process(context.Background(), rec); err == nil {
		t.Fatal("expected timeout error")
	}
	if rec.TTSTaskState != StateTimedOut {
		t.Errorf("state = %q, want TIMED_OUT", rec.TTSTaskState)
	}
	if rec.AudioURL != "" {
		t.Errorf("audio_url should be absent, got %q", rec.AudioURL)
	}
	if got := svc.polls.Load(); got != 5 {
		t.Errorf("polls = %d, want max attempts 5", got)
	}
}

func TestProcessRecoversFromTransientErrors(t *testing.T) {
	svc := &ttsService{
		t:          t,
		pollScript: []string{"429", "500", "SUCCESS"},
		audio:      []byte("bytes"),
	}
	m, _ := newTestManager(t, svc, 60)

	rec := &core.ArticleRecord{ID: "art-3", FinalPageH1: "T", Summary: "body"}
	if err := m.Process(context.Background(), rec); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if rec.TTSTaskState != StateDone {
		t.Errorf("state = %q", rec.TTSTaskState)
	}
}

func TestProcessServiceFailure(t *testing.T) {
	svc := &ttsService{t: t, pollScript: []string{"FAILURE"}}
	m, _ := newTestManager(t, svc, 60)

	rec := &core.ArticleRecord{ID: "art-4", FinalPageH1: "T", Summary: "body"}
	if err := m.Process(context.Background(), rec); err == nil {
		t.Fatal("expected failure error")
	}
	if rec.TTSTaskState != StateFailed {
		t.Errorf("state = %q, want FAILED", rec.TTSTaskState)
	}

	// A prior service failure is non-recoverable: re-invocation skips.
	before := svc.polls.Load()
	if err := m.Process(context.Background(), rec); err != nil {
		t.Fatalf("re-invocation should skip, got %v", err)
	}
	if svc.polls.Load() != before {
		t.Error("re-invocation re-submitted the task")
	}
}

func TestProcessSkipsWhenDone(t *testing.T) {
	svc := &ttsService{t: t}
	m, _ := newTestManager(t, svc, 60)

	rec := &core.ArticleRecord{ID: "art-5", TTSTaskState: StateDone, AudioURL: "audio/art-5.mp3"}
	if err := m.Process(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if svc.polls.Load() != 0 {
		t.Error("completed record triggered new polls")
	}
}

func TestProcessMissingText(t *testing.T) {
	svc := &ttsService{t: t}
	m, _ := newTestManager(t, svc, 60)

	rec := &core.ArticleRecord{ID: "art-6"}
	if err := m.Process(context.Background(), rec); err == nil {
		t.Fatal("expected missing-text error")
	}
	if rec.StageStatus("tts") != core.StatusSkippedInsufficient {
		t.Errorf("stage status = %q", rec.StageStatus("tts"))
	}
}

func TestSpeechTextStripsMarkdownAndCaps(t *testing.T) {
	rec := &core.ArticleRecord{
		FinalPageH1:            "The Title",
		AssembledArticleBodyMD: "## Heading\n\nSome **bold** prose with a [link](https://example.com).",
	}
	got := speechText(rec)
	if strings.Contains(got, "##") || strings.Contains(got, "**") || strings.Contains(got, "](") {
		t.Errorf("markdown syntax leaked into speech text: %q", got)
	}
	if !strings.HasPrefix(got, "The Title. ") {
		t.Errorf("title not prefixed: %q", got)
	}

	rec.AssembledArticleBodyMD = strings.Repeat("word ", 2000)
	if n := len([]rune(speechText(rec))); n > maxSpeechChars {
		t.Errorf("speech text length %d exceeds cap", n)
	}
}
