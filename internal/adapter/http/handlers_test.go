package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"

	redisadapter "github.com/wikirace/wikipath/internal/adapter/redis"
	"github.com/wikirace/wikipath/internal/domain/search"
	"github.com/wikirace/wikipath/internal/domain/task"
	"github.com/wikirace/wikipath/internal/port/messagequeue"
	"github.com/wikirace/wikipath/internal/service"
	"github.com/wikirace/wikipath/internal/worker"
)

// fakeBroker records published messages.
type fakeBroker struct {
	published [][]byte
	connected bool
}

func (b *fakeBroker) Publish(_ context.Context, _ string, data []byte) error {
	b.published = append(b.published, data)
	return nil
}

func (b *fakeBroker) Subscribe(_ context.Context, _ string, _ messagequeue.SubscribeOptions, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (b *fakeBroker) Drain() error      { return nil }
func (b *fakeBroker) Close() error      { return nil }
func (b *fakeBroker) IsConnected() bool { return b.connected }

// fakeLinks serves a fixed link graph.
type fakeLinks struct {
	links map[string][]string
}

func (f *fakeLinks) GetLinksBulk(_ context.Context, titles []string) (map[string][]string, error) {
	out := make(map[string][]string, len(titles))
	for _, t := range titles {
		out[t] = f.links[t]
	}
	return out, nil
}

func (f *fakeLinks) PageExists(_ context.Context, title string) bool {
	_, ok := f.links[title]
	return ok
}

type webFixture struct {
	router  chi.Router
	broker  *fakeBroker
	records *worker.TaskStore
}

func newWebFixture(t *testing.T) *webFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	c := redisadapter.NewFromAddr(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })
	store := redisadapter.NewStore(c)

	broker := &fakeBroker{connected: true}
	records := worker.NewTaskStore(store, time.Hour)
	links := &fakeLinks{links: map[string][]string{
		"Hub": {"A", "B", "C"},
	}}

	h := &Handlers{
		Explore: service.NewExploreService(links, store, 30*time.Minute),
		Records: records,
		Broker:  broker,
		Store:   store,
	}

	r := chi.NewRouter()
	MountRoutes(r, h)
	return &webFixture{router: r, broker: broker, records: records}
}

func (f *webFixture) post(t *testing.T, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *webFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("undecodable response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestGetPathAccepted(t *testing.T) {
	f := newWebFixture(t)

	rec := f.post(t, "/getPath", "application/json", `{"start":"A","end":"B"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["status"] != "IN_PROGRESS" {
		t.Fatalf("expected IN_PROGRESS, got %v", body["status"])
	}
	taskID, _ := body["task_id"].(string)
	if taskID == "" {
		t.Fatal("expected task_id in response")
	}
	if body["poll_url"] != "/tasks/status/"+taskID {
		t.Fatalf("unexpected poll_url: %v", body["poll_url"])
	}
	if body["start_page"] != "A" || body["end_page"] != "B" {
		t.Fatalf("unexpected echo: %v", body)
	}

	if len(f.broker.published) != 1 {
		t.Fatalf("expected one published job, got %d", len(f.broker.published))
	}
	var job task.Job
	if err := json.Unmarshal(f.broker.published[0], &job); err != nil {
		t.Fatal(err)
	}
	if job.TaskID != taskID || job.StartPage != "A" || job.EndPage != "B" || job.Algorithm != search.AlgorithmBFS {
		t.Fatalf("unexpected job: %+v", job)
	}

	// Submission leaves a PENDING record behind.
	info, ok, err := f.records.Get(context.Background(), taskID)
	if err != nil || !ok {
		t.Fatalf("expected record, ok=%v err=%v", ok, err)
	}
	if info.Status != task.StatusPending {
		t.Fatalf("expected PENDING record, got %s", info.Status)
	}
}

func TestGetPathContentType(t *testing.T) {
	f := newWebFixture(t)

	rec := f.post(t, "/getPath", "text/plain", `{"start":"A","end":"B"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != codeInvalidContentType {
		t.Fatalf("expected INVALID_CONTENT_TYPE, got %v", body["code"])
	}
}

func TestGetPathValidation(t *testing.T) {
	f := newWebFixture(t)

	cases := []string{
		`{"end":"B"}`,
		`{"start":"A"}`,
		`{"start":"  ","end":"B"}`,
		`{"start":"A","end":"B","algorithm":"dfs"}`,
		`{"start":"A","end":"B","max_depth":99}`,
		`not json`,
	}
	for _, body := range cases {
		rec := f.post(t, "/getPath", "application/json", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
		if resp := decodeBody(t, rec); resp["code"] != codeValidationError {
			t.Fatalf("body %s: expected VALIDATION_ERROR, got %v", body, resp["code"])
		}
	}

	if len(f.broker.published) != 0 {
		t.Fatalf("invalid requests must not publish jobs, got %d", len(f.broker.published))
	}
}

func TestTaskStatusUnknownReadsPending(t *testing.T) {
	f := newWebFixture(t)

	rec := f.get(t, "/tasks/status/nope")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "PENDING" {
		t.Fatalf("expected PENDING, got %v", body["status"])
	}
}

func TestTaskStatusSuccess(t *testing.T) {
	f := newWebFixture(t)
	ctx := context.Background()

	_ = f.records.Save(ctx, &task.Info{
		TaskID: "t1",
		Status: task.StatusSuccess,
		Result: &search.PathResult{
			Path:          []string{"A", "B"},
			Length:        2,
			StartPage:     "A",
			EndPage:       "B",
			SearchTime:    1.5,
			NodesExplored: 3,
		},
	})

	body := decodeBody(t, f.get(t, "/tasks/status/t1"))
	if body["status"] != "SUCCESS" {
		t.Fatalf("expected SUCCESS, got %v", body["status"])
	}
	result, _ := body["result"].(map[string]any)
	if result == nil {
		t.Fatalf("expected result object, got %v", body)
	}
	if result["length"] != float64(2) || result["nodes_explored"] != float64(3) {
		t.Fatalf("unexpected result: %v", result)
	}
}

func TestTaskStatusFailure(t *testing.T) {
	f := newWebFixture(t)

	_ = f.records.Save(context.Background(), &task.Info{
		TaskID: "t2",
		Status: task.StatusFailure,
		Error:  "no route",
		Code:   task.CodePathNotFound,
	})

	body := decodeBody(t, f.get(t, "/tasks/status/t2"))
	if body["status"] != "FAILURE" || body["code"] != task.CodePathNotFound {
		t.Fatalf("unexpected failure body: %v", body)
	}
}

func TestTaskStatusRetryReadsInProgress(t *testing.T) {
	f := newWebFixture(t)

	_ = f.records.Save(context.Background(), &task.Info{
		TaskID:     "t3",
		Status:     task.StatusRetry,
		RetryCount: 2,
	})

	body := decodeBody(t, f.get(t, "/tasks/status/t3"))
	if body["status"] != "IN_PROGRESS" {
		t.Fatalf("expected IN_PROGRESS for RETRY, got %v", body["status"])
	}
	if body["retry_count"] != float64(2) {
		t.Fatalf("expected retry_count 2, got %v", body["retry_count"])
	}
}

func TestExploreEndpoint(t *testing.T) {
	f := newWebFixture(t)

	rec := f.post(t, "/explore", "application/json", `{"start":"Hub","max_links":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["start_page"] != "Hub" || body["total_links"] != float64(3) {
		t.Fatalf("unexpected explore body: %v", body)
	}
}

func TestExploreMissingPage(t *testing.T) {
	f := newWebFixture(t)

	rec := f.post(t, "/explore", "application/json", `{"start":"Ghost"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != codeInvalidPage {
		t.Fatalf("expected INVALID_PAGE, got %v", body["code"])
	}
}

func TestExploreMaxLinksBounds(t *testing.T) {
	f := newWebFixture(t)

	rec := f.post(t, "/explore", "application/json", `{"start":"Hub","max_links":51}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range max_links, got %d", rec.Code)
	}
}

func TestCacheClearDefaultPattern(t *testing.T) {
	f := newWebFixture(t)

	rec := f.post(t, "/cache/clear", "application/json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["pattern"] != defaultClearPattern {
		t.Fatalf("unexpected clear body: %v", body)
	}
}

func TestCacheClearCustomPattern(t *testing.T) {
	f := newWebFixture(t)

	rec := f.post(t, "/cache/clear", "application/json", `{"pattern":"path:*"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["pattern"] != "path:*" {
		t.Fatalf("expected custom pattern echoed, got %v", body["pattern"])
	}
}

func TestHealthHealthy(t *testing.T) {
	f := newWebFixture(t)

	rec := f.get(t, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["status"] != "healthy" {
		t.Fatalf("expected healthy, got %v", body)
	}
}

func TestHealthDegradedBroker(t *testing.T) {
	f := newWebFixture(t)
	f.broker.connected = false

	rec := f.get(t, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "degraded" {
		t.Fatalf("expected degraded, got %v", body["status"])
	}
	if !strings.HasPrefix(body["broker_status"].(string), "unhealthy") {
		t.Fatalf("expected unhealthy broker status, got %v", body["broker_status"])
	}
}
