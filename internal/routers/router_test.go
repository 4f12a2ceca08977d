package routers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haierkeys/harvester-service/internal/app"
	"github.com/haierkeys/harvester-service/internal/dao"
	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/internal/harvest"
	"github.com/haierkeys/harvester-service/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Default()
}

type staticLister struct {
	files map[string]string
}

func (l *staticLister) List(context.Context) ([]*harvest.RemoteFile, error) {
	var out []*harvest.RemoteFile
	for name, content := range l.files {
		content := content
		out = append(out, harvest.NewRemoteFile(name, int64(len(content)), time.Time{}, func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		}))
	}
	return out, nil
}

func (l *staticLister) Close() error { return nil }

func (l *staticLister) NewLister(context.Context, *domain.HarvesterConfig) (harvest.Lister, error) {
	return l, nil
}

type memSink struct {
	mu   sync.Mutex
	keys []string
}

func (s *memSink) SendFile(_ context.Context, key string, r io.Reader, _ string, _ time.Time) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return key, nil
}

func (s *memSink) SendContent(_ context.Context, key string, _ []byte, _ time.Time) (string, error) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return key, nil
}

func (s *memSink) Delete(context.Context, string) error { return nil }

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

type testServer struct {
	app    *app.App
	router *gin.Engine
	sink   *memSink
}

func newTestServer(t *testing.T, yamlConfig string) *testServer {
	t.Helper()
	cfg, err := app.ParseConfig([]byte(yamlConfig))
	require.NoError(t, err)

	dbConf := cfg.GetDatabaseConfig()
	dbConf.Path = filepath.Join(t.TempDir(), "harvester.db")
	db, err := dao.NewDBEngineWithConfig(dbConf, nil)
	require.NoError(t, err)

	sink := &memSink{}
	lister := &staticLister{files: map[string]string{
		"v46.i21.xml": "old",
		"v46.i23.xml": "<a/>",
		"v46.i24.xml": "<b/>",
	}}
	a, err := app.NewApp(cfg, zap.NewNop(), db,
		app.WithRegistry(prometheus.NewRegistry()),
		app.WithSink(sink),
		app.WithListerFactory(lister),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})

	uni := ut.New(en.New(), en.New(), zh.New())
	r, err := NewRouter(a, uni)
	require.NoError(t, err)
	return &testServer{app: a, router: r, sink: sink}
}

func (s *testServer) do(method, path string, body []byte) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil && json.Valid(body) {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func ftpDocument(t *testing.T) []byte {
	t.Helper()
	doc, err := json.Marshal(map[string]any{
		"name":         "dbc ftp",
		"schedule":     "0 * * * *",
		"transfile":    "b=databroendpr3,t=xml,c=utf8,o=marc21",
		"seqno":        4622,
		"seqnoExtract": "2-3,6-7",
		"agency":       "010100",
		"enabled":      true,
		"host":         "ftp.example.org",
		"port":         21,
		"filesPattern": "v*.xml",
	})
	require.NoError(t, err)
	return doc
}

func TestRouter_ConfigLifecycle(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodPost, "/api/configs/ftp/add", ftpDocument(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var saved struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.EqualValues(t, 1, saved.ID)

	w = s.do(http.MethodGet, "/api/configs/ftp/get/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "dbc ftp", got["name"])
	assert.Equal(t, "ftp.example.org", got["host"])
	require.Contains(t, got, "progress")
	assert.Equal(t, false, got["progress"].(map[string]any)["running"])

	w = s.do(http.MethodGet, "/api/configs/http/get/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "another protocol does not see the config")

	w = s.do(http.MethodGet, "/api/configs/ftp/list?start=0&limit=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = s.do(http.MethodPost, "/api/configs/ftp/enable/1?enabled=false", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodDelete, "/api/configs/ftp/delete/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/configs/ftp/get/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodDelete, "/api/configs/ftp/delete/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AddValidation(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodPost, "/api/configs/ftp/add", []byte(`{"name":"x","schedule":"not a cron","transfile":"b=x","agency":"010100","host":"h"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/configs/ftp/add", []byte(`{"name":"x","schedule":"0 * * * *","transfile":"f=x","agency":"010100","host":"h"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code, "f= is reserved")

	w = s.do(http.MethodPost, "/api/configs/sftp/add", []byte(`{"name":"x","schedule":"0 * * * *","transfile":"b=x","agency":"010100","host":"h"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code, "sftp needs a username")

	w = s.do(http.MethodPost, "/api/configs/ftp/add", []byte(`{"id":99,"name":"x","schedule":"0 * * * *","transfile":"b=x","agency":"010100","host":"h"}`))
	assert.Equal(t, http.StatusNotFound, w.Code, "replacing an unknown id")

	w = s.do(http.MethodGet, "/api/configs/ftp/get/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_AddStringSeqno(t *testing.T) {
	s := newTestServer(t, "")

	body := `{"name":"gui","schedule":"0 * * * *","transfile":"b=x","agency":"010100","host":"h","seqno":"4622"}`
	w := s.do(http.MethodPost, "/api/configs/ftp/add", []byte(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/configs/ftp/get/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.EqualValues(t, 4622, got["seqno"], "served back as a number")

	body = `{"id":1,"name":"gui","schedule":"0 * * * *","transfile":"b=x","agency":"010100","host":"h","seqno":""}`
	w = s.do(http.MethodPost, "/api/configs/ftp/add", []byte(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body = `{"name":"gui","schedule":"0 * * * *","transfile":"b=x","agency":"010100","host":"h","seqno":"i24"}`
	w = s.do(http.MethodPost, "/api/configs/ftp/add", []byte(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = `{"name":"gui","schedule":"0 * * * *","transfile":"b=x","agency":"010100","host":"h","seqno":"-3"}`
	w = s.do(http.MethodPost, "/api/configs/ftp/add", []byte(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_TestAndRun(t *testing.T) {
	s := newTestServer(t, "")
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/configs/ftp/add", ftpDocument(t)).Code)

	w := s.do(http.MethodGet, "/api/configs/ftp/test/1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var entries []domain.TestEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "v46.i24.xml", entries[0].Filename)
	assert.Zero(t, s.sink.count(), "test writes nothing")

	w = s.do(http.MethodPost, "/api/configs/ftp/abort/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "nothing is running")
	w = s.do(http.MethodGet, "/api/configs/status/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/configs/ftp/run/1", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	assert.Eventually(t, func() bool {
		w := s.do(http.MethodGet, "/api/configs/status/1", nil)
		if w.Code != http.StatusOK {
			return false
		}
		var p domain.Progress
		return json.Unmarshal(w.Body.Bytes(), &p) == nil && p.State == domain.RunCompleted
	}, 5*time.Second, 20*time.Millisecond)

	w = s.do(http.MethodGet, "/api/configs/ftp/get/1", nil)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.EqualValues(t, 4624, got["seqno"])
	assert.NotNil(t, got["lastHarvested"])
	assert.Positive(t, s.sink.count())

	w = s.do(http.MethodGet, "/api/configs/ftp/runs/1?page=1&pageSize=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalRows":1`)
}

func TestRouter_CronFields(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodPost, "/api/fields/cron/validate", []byte("0 * * * *"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = s.do(http.MethodPost, "/api/fields/cron/validate", []byte(`"*/15 8-17 * * 1-5"`))
	assert.Equal(t, http.StatusOK, w.Code, "a JSON string is accepted")

	w = s.do(http.MethodPost, "/api/fields/cron/validate", []byte("61 * * * *"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var msg struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.NotEmpty(t, msg.Message)

	w = s.do(http.MethodPost, "/api/fields/cron/describe", []byte("0 * * * *"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
}

func TestRouter_HealthVersionAndNotFound(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"connected"`)

	w = s.do(http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), app.Version)

	w = s.do(http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_OperatorAuth(t *testing.T) {
	s := newTestServer(t, "security:\n  auth-token-key: s3cret\n")

	w := s.do(http.MethodGet, "/api/configs/ftp/list", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code, "health stays open")

	token, err := s.app.TokenManager.Generate("ops")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/configs/ftp/list", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestPrivateRouter(t *testing.T) {
	s := newTestServer(t, "")
	r := NewPrivateRouter("release", s.app.Registry, zap.NewNop())

	s.do(http.MethodGet, "/api/health", nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "harvester_http_requests_total")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, json.Valid(w.Body.Bytes()))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, DefaultPrefix+"/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "pprof only in debug mode")
}
