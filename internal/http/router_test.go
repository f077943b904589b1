package http_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoflux/internal/analysis"
	"memoflux/internal/auth"
	"memoflux/internal/db/dbtest"
	httpx "memoflux/internal/http"
	"memoflux/internal/inbox"
	"memoflux/internal/jobs"
	"memoflux/internal/memo"
	"memoflux/internal/pipeline"
	"memoflux/internal/schedule"
	"memoflux/internal/tags"
)

const scheduleBody = `{
  "mostPossibleCategory": "schedule",
  "schedule": {
    "title": "周会",
    "tasks": [
      {"startTime": "2024-05-16T10:00:00+08:00", "endTime": "2024-05-16T11:00:00+08:00", "theme": "会议", "category": "工作", "tags": ["work"]},
      {"id": "t-2", "startTime": "2024-05-18T09:00:00+08:00", "theme": "复盘", "tags": ["work"]}
    ]
  }
}`

type env struct {
	h      http.Handler
	ai     *httptest.Server
	status int
	body   string
}

func newEnv(t *testing.T, jwtSvc *auth.JWT) *env {
	t.Helper()
	e := &env{status: http.StatusOK, body: scheduleBody}
	e.ai = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(e.status)
		_, _ = w.Write([]byte(e.body))
	}))
	t.Cleanup(e.ai.Close)

	gdb := dbtest.Open(t)
	log := zerolog.Nop()
	store := schedule.NewStore(gdb, log)
	reg := tags.NewRegistry(gdb, log)
	repo := &jobs.Repo{DB: gdb}
	svc := memo.NewService(gdb, store, reg, repo, log)
	in := &inbox.Inbox{Dir: t.TempDir(), File: "shortcut.png", Memos: svc, Jobs: repo, Log: log}

	e.h = httpx.NewRouter(httpx.Deps{
		Memos:    svc,
		Tasks:    store,
		Tags:     reg,
		Analyzer: &pipeline.Analyzer{Memos: svc, Client: analysis.New(e.ai.URL), Tags: reg, Log: log},
		Images:   in,
		Inbox:    in,
		JWT:      jwtSvc,
		Log:      log,
	})
	return e
}

func (e *env) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type memoJSON struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Text         string   `json:"text"`
	Tags         []string `json:"tags"`
	HasImage     bool     `json:"hasImage"`
	IsProcessing bool     `json:"isProcessing"`
	HasResponse  bool     `json:"hasResponse"`
}

type taskJSON struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Theme  string `json:"theme"`
	Notes  string `json:"notes"`
}

func (e *env) createText(t *testing.T, text string) memoJSON {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/memos", strings.NewReader(`{"text":`+quote(text)+`}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[memoJSON](t, rec)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, c)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t, nil)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/metrics", nil).Code)
}

func TestMemos_CreateListGetDelete(t *testing.T) {
	e := newEnv(t, nil)

	m := e.createText(t, "buy milk #home")
	assert.Equal(t, "buy milk #home", m.Text)
	assert.Equal(t, []string{"home"}, m.Tags)

	list := decode[[]memoJSON](t, e.do(t, http.MethodGet, "/memos?tag=home", nil))
	require.Len(t, list, 1)
	assert.Equal(t, m.ID, list[0].ID)

	assert.Empty(t, decode[[]memoJSON](t, e.do(t, http.MethodGet, "/memos?q=bread", nil)))

	got := e.do(t, http.MethodGet, "/memos/"+m.ID, nil)
	require.Equal(t, http.StatusOK, got.Code)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/memos/"+m.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/memos/"+m.ID, nil).Code)
}

func TestMemos_BadInput(t *testing.T) {
	e := newEnv(t, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, e.do(t, http.MethodPost, "/memos", strings.NewReader(`{"text":"  "}`)).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/memos", strings.NewReader(`{`)).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/memos/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/memos/6f1c1c44-9d38-4b8e-9d43-2f0e0e0c7a11", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		e.do(t, http.MethodPost, "/memos", strings.NewReader(`{"text":"x","scheduledDate":"tomorrow"}`)).Code)
}

func TestMemos_ImageUpload(t *testing.T) {
	e := newEnv(t, nil)
	data := pngBytes(t, color.White)

	rec := e.do(t, http.MethodPost, "/memos/image?tags=photo", bytes.NewReader(data))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	m := decode[memoJSON](t, rec)
	assert.True(t, m.HasImage)
	assert.True(t, m.IsProcessing)
	assert.Equal(t, []string{"photo"}, m.Tags)

	img := e.do(t, http.MethodGet, "/memos/"+m.ID+"/image", nil)
	require.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image/png", img.Header().Get("Content-Type"))
	assert.Equal(t, data, img.Body.Bytes())

	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/memos/image", bytes.NewReader(data)).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, e.do(t, http.MethodPost, "/memos/image", strings.NewReader("not an image")).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, e.do(t, http.MethodPost, "/memos/image", nil).Code)
}

func TestMemos_EnqueueAnalysisDebounced(t *testing.T) {
	e := newEnv(t, nil)
	m := e.createText(t, "meeting thursday")

	rec := e.do(t, http.MethodPost, "/memos/"+m.ID+"/analyze", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, m.ID, decode[map[string]any](t, rec)["memoId"])

	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/memos/"+m.ID+"/analyze", nil).Code)
}

func TestMemos_AnalyzeAndUpdateTasks(t *testing.T) {
	e := newEnv(t, nil)
	m := e.createText(t, "meeting thursday")

	rec := e.do(t, http.MethodPost, "/memos/"+m.ID+"/analyze?wait=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[memoJSON](t, e.do(t, http.MethodGet, "/memos/"+m.ID, nil))
	assert.True(t, got.HasResponse)
	assert.False(t, got.IsProcessing)
	assert.Equal(t, "周会", got.Title)
	assert.Equal(t, []string{"work"}, got.Tags)

	resp := decode[map[string]any](t, e.do(t, http.MethodGet, "/memos/"+m.ID+"/response", nil))
	assert.Equal(t, "schedule", resp["mostPossibleCategory"])

	tasks := decode[[]taskJSON](t, e.do(t, http.MethodGet, "/memos/"+m.ID+"/tasks", nil))
	require.Len(t, tasks, 2)
	assert.Equal(t, "7dc2db2a-d1ce-0116-39ee-4fe5948f5dd3", tasks[0].ID)
	assert.Equal(t, "pending", tasks[0].Status)
	assert.Contains(t, tasks[0].Notes, "work")

	rec = e.do(t, http.MethodPatch, "/memos/"+m.ID+"/tasks/t-2", strings.NewReader(`{"status":"completed"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", decode[taskJSON](t, rec).Status)

	assert.Equal(t, http.StatusUnprocessableEntity,
		e.do(t, http.MethodPatch, "/memos/"+m.ID+"/tasks/t-2", strings.NewReader(`{"status":"later"}`)).Code)
	assert.Equal(t, http.StatusNotFound,
		e.do(t, http.MethodPatch, "/memos/"+m.ID+"/tasks/missing", strings.NewReader(`{"status":"ignored"}`)).Code)

	start, err := time.Parse(time.RFC3339, "2024-05-16T10:00:00+08:00")
	require.NoError(t, err)
	day := start.In(time.Local).Format(time.DateOnly)
	pending := decode[[]taskJSON](t, e.do(t, http.MethodGet, "/tasks?pending=true&date="+day, nil))
	require.Len(t, pending, 1)
	assert.Equal(t, "会议", pending[0].Theme)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/tasks?date=16/05/2024", nil).Code)
}

func TestMemos_AnalyzeFailureMapsToBadGateway(t *testing.T) {
	e := newEnv(t, nil)
	e.status = http.StatusInternalServerError
	e.body = "boom"
	m := e.createText(t, "anything")

	rec := e.do(t, http.MethodPost, "/memos/"+m.ID+"/analyze?wait=true", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "server", decode[map[string]any](t, rec)["kind"])

	got := decode[memoJSON](t, e.do(t, http.MethodGet, "/memos/"+m.ID, nil))
	assert.False(t, got.IsProcessing)
	assert.False(t, got.HasResponse)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/memos/"+m.ID+"/response", nil).Code)
}

func TestMemos_TagEditing(t *testing.T) {
	e := newEnv(t, nil)
	m := e.createText(t, "note")

	rec := e.do(t, http.MethodPut, "/memos/"+m.ID+"/tags", strings.NewReader(`{"tags":["a","b","a"]}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b"}, decode[memoJSON](t, rec).Tags)

	rec = e.do(t, http.MethodPost, "/memos/"+m.ID+"/tags/c", nil)
	assert.Equal(t, []string{"a", "b", "c"}, decode[memoJSON](t, rec).Tags)

	rec = e.do(t, http.MethodDelete, "/memos/"+m.ID+"/tags/a", nil)
	assert.Equal(t, []string{"b", "c"}, decode[memoJSON](t, rec).Tags)
}

func TestTags(t *testing.T) {
	e := newEnv(t, nil)
	e.createText(t, "#alpha #beta")

	rec := e.do(t, http.MethodPost, "/tags", strings.NewReader(`{"name":"gamma","color":"#ff0000"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, e.do(t, http.MethodPost, "/tags", strings.NewReader(`{"name":" "}`)).Code)

	type tagJSON struct {
		Name       string  `json:"name"`
		UsageCount int64   `json:"usageCount"`
		Color      *string `json:"color"`
	}
	all := decode[[]tagJSON](t, e.do(t, http.MethodGet, "/tags", nil))
	assert.Len(t, all, 3)

	found := decode[[]tagJSON](t, e.do(t, http.MethodGet, "/tags?q=ALP", nil))
	require.Len(t, found, 1)
	assert.Equal(t, "alpha", found[0].Name)

	swept := decode[map[string][]string](t, e.do(t, http.MethodPost, "/tags/sweep", nil))
	assert.Equal(t, []string{"gamma"}, swept["removed"])

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/tags/beta", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/tags/beta", nil).Code)
}

func TestInboxCheck(t *testing.T) {
	e := newEnv(t, nil)
	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/inbox/check", nil).Code)
}

func TestAuthRequired(t *testing.T) {
	j := auth.NewJWT("secret")
	e := newEnv(t, j)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/memos", nil).Code)

	tok, err := j.Sign("test", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/memos", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
