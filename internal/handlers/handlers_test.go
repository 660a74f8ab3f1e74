package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/video-summarize/internal/auth"
	"github.com/codebuildervaibhav/video-summarize/internal/queue"
	"github.com/codebuildervaibhav/video-summarize/internal/summarizer"
	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

type fakeMetadata struct {
	err   error
	calls int
}

func (f *fakeMetadata) Validate(u string) error {
	if !strings.Contains(u, "youtube.com/watch?v=") {
		return fmt.Errorf("%w: not a YouTube URL", types.ErrInvalidInput)
	}
	return nil
}

func (f *fakeMetadata) FetchMetadata(context.Context, string) (*types.VideoMetadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.VideoMetadata{VideoID: "abc", Title: "A Video", Channel: "Chan", Duration: 125}, nil
}

type fakeRecords struct {
	mu   sync.Mutex
	recs map[string]*types.JobRecord
}

func (f *fakeRecords) Load(_ context.Context, id string) (*types.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRecords) List(context.Context, int) ([]types.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.HistoryEntry
	for _, r := range f.recs {
		out = append(out, types.HistoryEntry{ID: r.ID, Title: r.Title()})
	}
	return out, nil
}

type testEnv struct {
	app     *fiber.App
	store   *queue.Store
	pool    *queue.WorkerPool
	meta    *fakeMetadata
	records *fakeRecords
	ready   summarizer.Readiness
}

func newTestEnv(t *testing.T, rateLimit int) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   queue.NewStore(),
		meta:    &fakeMetadata{},
		records: &fakeRecords{recs: map[string]*types.JobRecord{}},
		ready:   summarizer.Readiness{OK: true, Summarizer: "openrouter"},
	}
	// never started: submitted jobs stay confirmed
	env.pool = queue.NewWorkerPool(1, t.TempDir(), queue.Stages{})
	manager := queue.NewManager(env.store, env.pool, env.meta, env.records)

	env.app = fiber.New()
	Register(env.app, Deps{
		Manager:      manager,
		Metadata:     env.meta,
		Gate:         auth.NewGate(""),
		Limiter:      auth.NewRateLimiter(rateLimit),
		Ready:        func() summarizer.Readiness { return env.ready },
		Logs:         func() []string { return []string{"line one"} },
		PollInterval: 5 * time.Millisecond,
	})
	return env
}

func postURL(path, u string) *http.Request {
	form := url.Values{"url": {u}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestCreateJob(t *testing.T) {
	env := newTestEnv(t, 10)

	req := postURL("/api/jobs", "https://www.youtube.com/watch?v=abc")
	req.AddCookie(&http.Cookie{Name: auth.UserCookie, Value: "alice"})
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	id, _ := body["job_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, string(types.StatusConfirmed), body["status"])
	assert.Equal(t, "A Video", body["title"])
	assert.Equal(t, "alice", body["created_by"])

	job, ok := env.store.Get(id)
	require.True(t, ok)
	assert.Equal(t, types.StatusConfirmed, job.Status())
}

func TestCreateJobJSONBody(t *testing.T) {
	env := newTestEnv(t, 10)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"url":"https://www.youtube.com/watch?v=abc"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestCreateJobValidation(t *testing.T) {
	env := newTestEnv(t, 10)

	resp, err := env.app.Test(postURL("/api/jobs", "https://example.com/video"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "ERR_INVALID_URL", body["code"])

	resp, err = env.app.Test(postURL("/api/jobs", "  "))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Zero(t, env.meta.calls)
	assert.Empty(t, env.store.Active())
}

func TestCreateJobMetadataFailure(t *testing.T) {
	env := newTestEnv(t, 10)
	env.meta.err = errors.New("video unavailable")

	resp, err := env.app.Test(postURL("/api/jobs", "https://www.youtube.com/watch?v=abc"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, string(types.StatusFailed), body["status"])
	assert.Equal(t, "Failed to fetch metadata: video unavailable", body["error"])
}

func TestCreateJobQueueFull(t *testing.T) {
	env := newTestEnv(t, 10)
	env.pool.Stop()

	resp, err := env.app.Test(postURL("/api/jobs", "https://www.youtube.com/watch?v=abc"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "ERR_QUEUE_FULL", body["code"])
	job, ok := env.store.Get(body["job_id"].(string))
	require.True(t, ok)
	assert.Equal(t, types.StatusFailed, job.Status())
}

func TestCreateJobRateLimited(t *testing.T) {
	env := newTestEnv(t, 1)

	resp, err := env.app.Test(postURL("/api/jobs", "https://www.youtube.com/watch?v=abc"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = env.app.Test(postURL("/api/jobs", "https://www.youtube.com/watch?v=abc"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t, 10)

	live := env.store.Create("https://www.youtube.com/watch?v=live")
	env.records.recs["stored000001"] = &types.JobRecord{
		ID:             "stored000001",
		Status:         types.StatusCompleted,
		Progress:       100,
		Metadata:       &types.VideoMetadata{Title: "Stored"},
		TranscriptText: "one two three",
		DownloadTime:   1.5,
		TranscribeTime: 2,
		SummarizeTime:  0.5,
	}

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/"+live.ID(), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, live.ID(), body["id"])
	assert.Equal(t, "Unknown", body["title"])
	assert.Equal(t, string(types.StatusPending), body["status"])

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/stored000001", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = nil
	decode(t, resp, &body)
	assert.Equal(t, "Stored", body["title"])
	assert.InDelta(t, 4.0, body["total_time"], 0.001)
	assert.EqualValues(t, 3, body["word_count"])

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetadataPreview(t *testing.T) {
	env := newTestEnv(t, 10)

	resp, err := env.app.Test(postURL("/api/metadata", "https://www.youtube.com/watch?v=abc"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "2:05", body["duration_string"])
	assert.Empty(t, env.store.Active(), "preview creates no job")

	resp, err = env.app.Test(postURL("/api/metadata", "not a url"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.meta.err = errors.New("boom")
	resp, err = env.app.Test(postURL("/api/metadata", "https://www.youtube.com/watch?v=abc"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestIndexAndHistory(t *testing.T) {
	env := newTestEnv(t, 10)
	env.records.recs["done00000001"] = &types.JobRecord{ID: "done00000001", Metadata: &types.VideoMetadata{Title: "Done"}}

	resp, err := env.app.Test(postURL("/api/jobs", "https://www.youtube.com/watch?v=abc"))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	var index struct {
		History []types.HistoryEntry `json:"history"`
		Active  []activeJob          `json:"active"`
	}
	decode(t, resp, &index)
	require.Len(t, index.History, 1)
	assert.Equal(t, "Done", index.History[0].Title)
	require.Len(t, index.Active, 1)
	assert.Equal(t, "A Video", index.Active[0].Title)
	assert.Equal(t, types.StatusConfirmed, index.Active[0].Status)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil))
	require.NoError(t, err)
	var entries []types.HistoryEntry
	decode(t, resp, &entries)
	assert.Len(t, entries, 1)
}

func TestStatusRoutes(t *testing.T) {
	env := newTestEnv(t, 10)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env.ready = summarizer.Readiness{Error: "Ollama is not reachable. Is it running?"}
	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var r summarizer.Readiness
	decode(t, resp, &r)
	assert.False(t, r.OK)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/logs", nil))
	require.NoError(t, err)
	var logs map[string][]string
	decode(t, resp, &logs)
	assert.Equal(t, []string{"line one"}, logs["logs"])
}

func readEvents(t *testing.T, body io.Reader) []types.JobEvent {
	t.Helper()
	var events []types.JobEvent
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev types.JobEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestEventStreamFollowsJob(t *testing.T) {
	env := newTestEnv(t, 10)
	job := env.store.Create("https://www.youtube.com/watch?v=abc")

	go func() {
		step := func() { time.Sleep(20 * time.Millisecond) }
		step()
		_ = job.StartStage(types.StatusFetchingMetadata, 0, "Fetching video info...")
		step()
		_ = job.Confirm(types.VideoMetadata{Title: "A Video"})
		step()
		_ = job.StartStage(types.StatusDownloading, 0, "Downloading audio...")
		step()
		_ = job.StartStage(types.StatusTranscribing, 0, "Transcribing...")
		job.SetProgress(40, "Transcribing... (4 segments)")
		step()
		_ = job.StartStage(types.StatusSummarizing, 50, "Summarizing...")
		step()
		_ = job.Complete()
	}()

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID()+"/events", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	events := readEvents(t, resp.Body)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, types.StatusCompleted, last.Status)
	assert.Equal(t, 100, last.Progress)

	order := map[types.Status]int{
		types.StatusPending: 0, types.StatusFetchingMetadata: 1, types.StatusConfirmed: 2,
		types.StatusDownloading: 3, types.StatusTranscribing: 4, types.StatusSummarizing: 5,
		types.StatusCompleted: 6,
	}
	for i := 1; i < len(events); i++ {
		assert.NotEqual(t, events[i-1], events[i], "only changes are emitted")
		assert.GreaterOrEqual(t, order[events[i].Status], order[events[i-1].Status])
	}
}

func TestEventStreamFailedJob(t *testing.T) {
	env := newTestEnv(t, 10)
	job := env.store.Create("https://www.youtube.com/watch?v=abc")
	require.NoError(t, job.StartStage(types.StatusFetchingMetadata, 0, ""))
	require.NoError(t, job.Fail("Failed to fetch metadata: gone"))

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID()+"/events", nil), -1)
	require.NoError(t, err)
	events := readEvents(t, resp.Body)
	require.Len(t, events, 1)
	assert.Equal(t, types.StatusFailed, events[0].Status)
	assert.Equal(t, "Failed to fetch metadata: gone", events[0].Error)
}

func TestEventStreamDurableOnly(t *testing.T) {
	env := newTestEnv(t, 10)
	env.records.recs["stored000001"] = &types.JobRecord{ID: "stored000001", Status: types.StatusCompleted, Progress: 100}

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/stored000001/events", nil), -1)
	require.NoError(t, err)
	events := readEvents(t, resp.Body)
	require.Len(t, events, 1)
	assert.Equal(t, types.StatusCompleted, events[0].Status)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/missing/events", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWatchJobTimeout(t *testing.T) {
	store := queue.NewStore()
	job := store.Create("https://www.youtube.com/watch?v=abc")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	var emitted int
	err := watchJob(ctx, store, job, 5*time.Millisecond, func(types.JobEvent) error {
		emitted++
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, emitted, "an unchanged job is reported once")
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	env := newTestEnv(t, 10)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/ws/jobs/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
