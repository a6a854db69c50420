package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-transcriber/internal/batch"
	"video-transcriber/internal/domain"
	"video-transcriber/internal/instagram"
	"video-transcriber/internal/jobs"
)

type fakeBackend struct {
	settings   domain.Settings
	startPaths []string
	startURLs  []string
	startErr   error
	cancelErr  error
	testErr    error
	urlFile    []string
	bus        *jobs.EventBus
	history    []domain.HistoryEntry
	notionSave [2]string
	session    string
	savedLimit int
	savedErr   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{bus: jobs.NewEventBus(10)}
}

func (f *fakeBackend) GetSettings() (domain.Settings, error) { return f.settings, nil }

func (f *fakeBackend) SaveSettings(s domain.Settings) (domain.Settings, error) {
	s.OutputDir = strings.TrimSpace(s.OutputDir)
	f.settings = s
	return s, nil
}

func (f *fakeBackend) GetCredentials() (domain.CredentialStatus, error) {
	return domain.CredentialStatus{NotionConfigured: f.notionSave[0] != ""}, nil
}

func (f *fakeBackend) SaveNotionCredentials(token, databaseID string) error {
	if token == "" {
		return errors.New("notion token and database ID are required")
	}
	f.notionSave = [2]string{token, databaseID}
	return nil
}

func (f *fakeBackend) SaveSummarizerCredentials(provider, apiKey, prompt string) error { return nil }
func (f *fakeBackend) TestNotion() error                                                 { return f.testErr }
func (f *fakeBackend) TestSummarizer(provider string) error                              { return f.testErr }

func (f *fakeBackend) SaveInstagramSession(id string) error {
	if id == "" {
		return errors.New("instagram sessionid cookie is required")
	}
	f.session = id
	return nil
}

func (f *fakeBackend) TestInstagram() (string, error) {
	if f.session == "" {
		return "", instagram.ErrNoSession
	}
	return "catlover", nil
}

func (f *fakeBackend) StartSavedPostsBatch(limit int) (domain.Job, error) {
	f.savedLimit = limit
	if f.savedErr != nil {
		return domain.Job{}, f.savedErr
	}
	return domain.Job{ID: "run-3", Status: domain.JobStatusRunning}, nil
}

func (f *fakeBackend) GetDiagnostics() domain.DiagnosticReport {
	return domain.DiagnosticReport{Items: []domain.DiagnosticItem{{ID: "ffmpeg", Status: domain.DiagnosticStatusPass}}}
}

func (f *fakeBackend) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	return f.GetDiagnostics(), nil
}

func (f *fakeBackend) InstallOrFixDiagnostic(id string) (domain.DiagnosticReport, error) {
	return f.GetDiagnostics(), errors.New("restart required")
}

func (f *fakeBackend) GetWhisperModels() []domain.WhisperModelOption {
	return []domain.WhisperModelOption{{ID: "base", FileName: "ggml-base.bin"}}
}

func (f *fakeBackend) DownloadWhisperModel(id string) (domain.Settings, error) {
	return domain.Settings{ModelPath: "/models/" + id}, nil
}

func (f *fakeBackend) StartBatch(paths []string) (domain.Job, error) {
	f.startPaths = paths
	if f.startErr != nil {
		return domain.Job{}, f.startErr
	}
	return domain.Job{ID: "run-1", Status: domain.JobStatusRunning}, nil
}

func (f *fakeBackend) StartInstagramBatch(urls []string) (domain.Job, error) {
	f.startURLs = urls
	if len(urls) == 0 {
		return domain.Job{}, batch.ErrNoURLs
	}
	return domain.Job{ID: "run-2", Status: domain.JobStatusRunning}, nil
}

func (f *fakeBackend) LoadURLsFromFile(path string) ([]string, error) { return f.urlFile, nil }
func (f *fakeBackend) CancelBatch() error                           { return f.cancelErr }

func (f *fakeBackend) BatchSnapshot() domain.BatchSnapshot {
	return domain.BatchSnapshot{Status: "Ready for batch processing", Job: domain.JobStatusIdle}
}

func (f *fakeBackend) JobEvents(since int64) []jobs.Event { return f.bus.Since(since) }
func (f *fakeBackend) Events() *jobs.EventBus              { return f.bus }

func (f *fakeBackend) History(limit int) ([]domain.HistoryEntry, error) {
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func newTestServer(t *testing.T, backend Backend) *Server {
	t.Helper()
	assets := fstest.MapFS{"index.html": {Data: []byte("<html>video transcriber</html>")}}
	return New(backend, assets, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, newFakeBackend())
	resp, body := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))
}

func TestSettingsRoundTrip(t *testing.T) {
	backend := newFakeBackend()
	s := newTestServer(t, backend)

	resp, body := do(t, s, http.MethodPut, "/api/settings", `{"outputDir":"  /tmp/out "}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var saved domain.Settings
	require.NoError(t, json.Unmarshal(body, &saved))
	assert.Equal(t, "/tmp/out", saved.OutputDir)
	assert.Equal(t, "/tmp/out", backend.settings.OutputDir)

	resp, _ = do(t, s, http.MethodPut, "/api/settings", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartBatchAccepted(t *testing.T) {
	backend := newFakeBackend()
	s := newTestServer(t, backend)

	resp, body := do(t, s, http.MethodPost, "/api/batch", `{"paths":["/videos/a.mp4"]}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []string{"/videos/a.mp4"}, backend.startPaths)

	var job domain.Job
	require.NoError(t, json.Unmarshal(body, &job))
	assert.Equal(t, "run-1", job.ID)
}

func TestStartBatchErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"already running", jobs.ErrJobAlreadyRunning, http.StatusConflict},
		{"no inputs", batch.ErrNoInputs, http.StatusBadRequest},
		{"summarizer", batch.ErrSummarizerNotConfigured, http.StatusBadRequest},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.startErr = tt.err
			s := newTestServer(t, backend)

			resp, body := do(t, s, http.MethodPost, "/api/batch", `{"paths":["x"]}`)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Contains(t, string(body), tt.err.Error())
		})
	}
}

func TestStartInstagramMergesURLFile(t *testing.T) {
	backend := newFakeBackend()
	backend.urlFile = []string{"https://www.instagram.com/p/B/"}
	s := newTestServer(t, backend)

	resp, _ := do(t, s, http.MethodPost, "/api/instagram", `{"urls":["https://www.instagram.com/p/A/"],"file":"urls.txt"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []string{"https://www.instagram.com/p/A/", "https://www.instagram.com/p/B/"}, backend.startURLs)

	backend.urlFile = nil
	resp, _ = do(t, s, http.MethodPost, "/api/instagram", `{"urls":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelWithoutBatchConflicts(t *testing.T) {
	backend := newFakeBackend()
	backend.cancelErr = jobs.ErrNoRunningJob
	s := newTestServer(t, backend)

	resp, _ := do(t, s, http.MethodPost, "/api/cancel", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestEventsSince(t *testing.T) {
	backend := newFakeBackend()
	backend.bus.Publish(jobs.Event{Type: jobs.EventTypeLog, Message: "one"})
	backend.bus.Publish(jobs.Event{Type: jobs.EventTypeLog, Message: "two"})
	s := newTestServer(t, backend)

	resp, body := do(t, s, http.MethodGet, "/api/events?since=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []jobs.Event
	require.NoError(t, json.Unmarshal(body, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "two", events[0].Message)

	resp, _ = do(t, s, http.MethodGet, "/api/events?since=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryReturnsEmptyList(t *testing.T) {
	s := newTestServer(t, newFakeBackend())
	resp, body := do(t, s, http.MethodGet, "/api/history?limit=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestCredentialEndpoints(t *testing.T) {
	backend := newFakeBackend()
	s := newTestServer(t, backend)

	resp, _ := do(t, s, http.MethodPut, "/api/credentials/notion", `{"token":"","databaseId":"db"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, s, http.MethodPut, "/api/credentials/notion", `{"token":"secret","databaseId":"db"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, [2]string{"secret", "db"}, backend.notionSave)

	backend.testErr = errors.New("unauthorized")
	resp, body := do(t, s, http.MethodPost, "/api/credentials/notion/test", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":false,"error":"unauthorized"}`, string(body))
}

func TestFixDiagnosticReportsErrorWithReport(t *testing.T) {
	s := newTestServer(t, newFakeBackend())
	resp, body := do(t, s, http.MethodPost, "/api/diagnostics/ffmpeg/fix", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"error":"restart required"`)
	assert.Contains(t, string(body), `"id":"ffmpeg"`)
}

func TestStaticIndex(t *testing.T) {
	s := newTestServer(t, newFakeBackend())
	resp, body := do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "video transcriber")
}

func TestEventsSocketRequiresUpgrade(t *testing.T) {
	s := newTestServer(t, newFakeBackend())
	resp, _ := do(t, s, http.MethodGet, "/ws/events", "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestCrossOriginRequestsRefused(t *testing.T) {
	backend := newFakeBackend()
	backend.settings.WhisperPath = "/usr/bin/whisper-cli"
	s := newTestServer(t, backend)

	send := func(method, origin, body string) *http.Response {
		req := httptest.NewRequest(method, "/api/settings", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", origin)
		if method == http.MethodOptions {
			req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		}
		resp, err := s.App().Test(req, -1)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	preflight := send(http.MethodOptions, "https://evil.example", "")
	assert.Equal(t, http.StatusForbidden, preflight.StatusCode)
	assert.Empty(t, preflight.Header.Get("Access-Control-Allow-Origin"))

	put := send(http.MethodPut, "https://evil.example", `{"whisperPath":"/tmp/other-binary"}`)
	assert.Equal(t, http.StatusForbidden, put.StatusCode)
	assert.Equal(t, "/usr/bin/whisper-cli", backend.settings.WhisperPath)

	// httptest requests target example.com.
	same := send(http.MethodPut, "http://example.com", `{"whisperPath":"/opt/whisper-cli"}`)
	assert.Equal(t, http.StatusOK, same.StatusCode)
	assert.Equal(t, "/opt/whisper-cli", backend.settings.WhisperPath)
}

func TestSavedPostsEndpoints(t *testing.T) {
	backend := newFakeBackend()
	s := newTestServer(t, backend)

	resp, body := do(t, s, http.MethodPost, "/api/credentials/instagram/test", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":false,"error":"no Instagram session cookie is saved"}`, string(body))

	resp, _ = do(t, s, http.MethodPut, "/api/credentials/instagram", `{"sessionId":"abc"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, body = do(t, s, http.MethodPost, "/api/credentials/instagram/test", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true,"username":"catlover"}`, string(body))

	resp, _ = do(t, s, http.MethodPost, "/api/saved", `{"limit":20}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 20, backend.savedLimit)

	resp, _ = do(t, s, http.MethodPost, "/api/saved", `{"limit":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	backend.savedErr = instagram.ErrLoginFailed
	resp, _ = do(t, s, http.MethodPost, "/api/saved", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	backend.savedErr = instagram.ErrNoSavedVideos
	resp, _ = do(t, s, http.MethodPost, "/api/saved", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
