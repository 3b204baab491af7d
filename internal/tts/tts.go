// Package tts drives the external asynchronous text-to-speech service through
// a trigger/poll/download state machine and stores the audio artifact.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"newsforge/internal/config"
	"newsforge/internal/core"
	"newsforge/internal/logger"
	"newsforge/internal/publish"
)

// Task states persisted in tts_task_state.
const (
	StateIdle        = "IDLE"
	StateCreated     = "CREATED"
	StatePolling     = "POLLING"
	StateFetching    = "FETCHING"
	StateDownloading = "DOWNLOADING"
	StateDone        = "DONE"
	StateFailed      = "FAILED"
	StateTimedOut    = "TIMED_OUT"
)

const maxSpeechChars = 4500

// Manager runs the TTS state machine for one record at a time.
type Manager struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type triggerRequest struct {
	Text     string `json:"text"`
	VoiceID  string `json:"voice_id,omitempty"`
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Age      string `json:"age,omitempty"`
}

type triggerResponse struct {
	TaskID string `json:"task_id"`
}

type statusResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

type resultResponse struct {
	URL string `json:"url"`
}

// Process runs the full state machine for a record: trigger, poll until a
// terminal status, fetch the result URL, download the audio. The record's
// tts_task_state tracks progress; terminal failure states from a prior run
// cause a skip rather than a re-submit.
func (m *Manager) Process(ctx context.Context, rec *core.ArticleRecord) error {
	if rec.TTSTaskState == StateDone && rec.AudioURL != "" {
		rec.SetStageStatus("tts", core.StatusSuccess)
		return nil
	}
	if rec.TTSTaskState == StateFailed {
		rec.SetStageStatus("tts", core.StatusSkippedInsufficient)
		logger.Info("Skipping TTS, prior service failure", "article_id", rec.ID)
		return nil
	}

	text := speechText(rec)
	if strings.TrimSpace(text) == "" {
		rec.TTSTaskState = StateFailed
		rec.SetStageStatus("tts", core.StatusSkippedInsufficient)
		return fmt.Errorf("no source text for speech synthesis on %s", rec.ID)
	}

	rec.TTSTaskState = StateIdle

	taskID, err := m.trigger(ctx, text)
	if err != nil {
		rec.SetStageStatus("tts", core.StatusFailedLLMCall)
		return fmt.Errorf("triggering TTS task: %w", err)
	}
	rec.TTSTaskState = StateCreated
	logger.Debug("TTS task created", "article_id", rec.ID, "task_id", taskID)

	runID, err := m.poll(ctx, rec, taskID)
	if err != nil {
		return err
	}

	rec.TTSTaskState = StateFetching
	audioURL, err := m.fetchResultURL(ctx, runID)
	if err != nil {
		rec.TTSTaskState = StateFailed
		rec.SetStageStatus("tts", core.StatusFailedLLMCall)
		return fmt.Errorf("fetching TTS result: %w", err)
	}

	rec.TTSTaskState = StateDownloading
	relPath, err := m.download(ctx, rec.ID, audioURL)
	if err != nil {
		rec.TTSTaskState = StateFailed
		rec.SetStageStatus("tts", core.StatusFailedLLMCall)
		return fmt.Errorf("downloading TTS audio: %w", err)
	}

	rec.AudioURL = relPath
	rec.TTSTaskState = StateDone
	rec.SetStageStatus("tts", core.StatusSuccess)
	logger.Info("TTS audio ready", "article_id", rec.ID, "audio_url", relPath)
	return nil
}

func (m *Manager) trigger(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(triggerRequest{
		Text:     text,
		VoiceID:  m.cfg.TTS.VoiceID,
		Language: m.cfg.TTS.LanguageID,
		Gender:   m.cfg.TTS.Gender,
		Age:      m.cfg.TTS.Age,
	})
	if err != nil {
		return "", err
	}

	var resp triggerResponse
	if err := m.postJSON(ctx, m.endpoint("/tts"), body, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("TTS service returned no task_id")
	}
	return resp.TaskID, nil
}

// poll queries the task status every poll interval until the service reports
// success or failure, backing off harder on 429 (3x) and 5xx/transport (2x).
// After the configured attempt budget the task is marked TIMED_OUT.
func (m *Manager) poll(ctx context.Context, rec *core.ArticleRecord, taskID string) (string, error) {
	rec.TTSTaskState = StatePolling

	interval := m.cfg.TTS.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	maxAttempts := m.cfg.TTS.MaxPollAttempts
	if maxAttempts <= 0 {
		maxAttempts = 60
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := sleepCtx(ctx, interval); err != nil {
			return "", err
		}

		var status statusResponse
		code, err := m.getJSON(ctx, m.endpoint("/tts/"+url.PathEscape(taskID)), &status)
		switch {
		case err != nil && code == http.StatusTooManyRequests:
			// 3x the interval including the sleep at the top of the loop.
			if err := sleepCtx(ctx, 2*interval); err != nil {
				return "", err
			}
			continue
		case err != nil:
			// 2x for 5xx and transport errors.
			if err := sleepCtx(ctx, interval); err != nil {
				return "", err
			}
			continue
		}

		switch strings.ToUpper(status.Status) {
		case "PENDING", "PROCESSING", "QUEUED":
			continue
		case "SUCCESS":
			if status.RunID == "" {
				rec.TTSTaskState = StateFailed
				rec.SetStageStatus("tts", core.StatusFailedLLMCall)
				return "", fmt.Errorf("TTS task %s succeeded without run_id", taskID)
			}
			return status.RunID, nil
		case "FAILURE", "FAILED":
			rec.TTSTaskState = StateFailed
			rec.SetStageStatus("tts", core.StatusFailedLLMCall)
			return "", fmt.Errorf("TTS task %s failed: %s", taskID, status.Error)
		default:
			continue
		}
	}

	rec.TTSTaskState = StateTimedOut
	rec.SetStageStatus("tts", core.StatusFailedLLMCall)
	return "", fmt.Errorf("TTS task %s did not finish within %d polls", taskID, maxAttempts)
}

func (m *Manager) fetchResultURL(ctx context.Context, runID string) (string, error) {
	var result resultResponse
	if _, err := m.getJSON(ctx, m.endpoint("/tts-result/"+url.PathEscape(runID)), &result); err != nil {
		return "", err
	}
	if result.URL == "" {
		return "", fmt.Errorf("TTS result for run %s has no url", runID)
	}
	return result.URL, nil
}

// download streams the audio to {audio_dir}/{article_id}.<ext> and returns
// the relative web path audio/{filename}.
func (m *Manager) download(ctx context.Context, articleID, audioURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("audio download returned HTTP %d", resp.StatusCode)
	}

	ext := path.Ext(path.Base(audioURL))
	if ext == "" || len(ext) > 5 {
		ext = ".mp3"
	}
	if err := os.MkdirAll(m.cfg.AudioDir(), 0o755); err != nil {
		return "", err
	}
	filename := articleID + ext
	f, err := os.Create(filepath.Join(m.cfg.AudioDir(), filename))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return "audio/" + filename, nil
}

func (m *Manager) endpoint(suffix string) string {
	return strings.TrimRight(m.cfg.TTS.Endpoint, "/") + suffix
}

func (m *Manager) postJSON(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.TTS.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.TTS.APIKey)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("TTS service returned HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// getJSON returns the HTTP status code alongside the error so the poll loop
// can distinguish rate limiting from other failures.
func (m *Manager) getJSON(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	if m.cfg.TTS.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.TTS.APIKey)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("TTS service returned HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

// speechText builds the narration input: title plus the article body with
// markdown structure stripped, capped for the service's input limit.
func speechText(rec *core.ArticleRecord) string {
	body := rec.GeneratedArticleBodyMDFinal
	if body == "" {
		body = rec.AssembledArticleBodyMD
	}
	if body == "" {
		body = rec.Summary
	}

	title := rec.FinalPageH1
	if title == "" {
		title = rec.InitialTitle
	}

	plain := publish.MarkdownToPlainText(body)
	if title == "" && plain == "" {
		return ""
	}
	text := plain
	if title != "" {
		text = strings.TrimSpace(title + ". " + plain)
	}
	runes := []rune(text)
	if len(runes) > maxSpeechChars {
		text = string(runes[:maxSpeechChars])
	}
	return text
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
