package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/Project-Sylos/Archivist/internal/cmis/cmistest"
	"github.com/Project-Sylos/Archivist/internal/config"
	"github.com/Project-Sylos/Archivist/internal/types"
	"github.com/Project-Sylos/Archivist/sdk"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	router  *chi.Mux
	repo    *cmistest.Repository
	binding *cmistest.Binding
	cfg     *types.Config
}

func newTestServer(t *testing.T, edit func(*types.Config)) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Repository.ConnectionName = "alfresco"
	cfg.Repository.Username = "admin"
	cfg.Repository.Password = "secret"
	cfg.Repository.FileDescription = "Ticket attachment"
	if edit != nil {
		edit(&cfg)
	}

	repo := cmistest.NewRepository()
	repo.MkdirAll("/CI/Test")
	binding := cmistest.NewBinding(repo)
	archivist := sdk.NewWithBinding(&cfg, binding, zaptest.NewLogger(t))

	return &testServer{
		router:  NewRouter(archivist, &cfg.API).SetupRoutes(),
		repo:    repo,
		binding: binding,
		cfg:     &cfg,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(method, target string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

type formFile struct {
	name, body string
}

func uploadRequest(t *testing.T, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = io.WriteString(part, f.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) types.APIResponse {
	t.Helper()
	var resp types.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestWelcome(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to the Alfresco Microservice", rec.Body.String())
}

func TestProcessDataTwice(t *testing.T) {
	s := newTestServer(t, nil)
	fields := map[string]string{"ticketNumber": "T1", "folderPath": "/CI"}

	for i := 0; i < 2; i++ {
		rec := s.do(uploadRequest(t, "/processData", fields, formFile{"report.pdf", "%PDF-1.4\n%body"}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Empty(t, rec.Body.String())
	}

	assert.Equal(t, []string{"report.pdf"}, s.repo.ChildNames("/CI/T1"))
	doc, ok := s.repo.Lookup("/CI/T1/report.pdf")
	require.True(t, ok)
	assert.Equal(t, "Ticket attachment", doc.Description)
	assert.Equal(t, "application/pdf", doc.ContentStreamMimeType)
	assert.Equal(t, int64(1), s.binding.Sessions(), "the session is reused")

	health := decode(t, s.do(httptest.NewRequest(http.MethodGet, "/health", nil)))
	assert.True(t, health.Success)
	assert.Equal(t, float64(1), health.Data.(map[string]any)["connections"])
}

func TestProcessDataMultipleFiles(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(uploadRequest(t, "/processData",
		map[string]string{"ticketNumber": "T2", "folderPath": "/CI"},
		formFile{"a.txt", "alpha"},
		formFile{"b.txt", "beta"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"a.txt", "b.txt"}, s.repo.ChildNames("/CI/T2"))
}

func TestProcessDataBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		files  []formFile
	}{
		{"no ticket", map[string]string{"folderPath": "/CI"}, []formFile{{"a.txt", "x"}}},
		{"no folder", map[string]string{"ticketNumber": "T1"}, []formFile{{"a.txt", "x"}}},
		{"no files", map[string]string{"ticketNumber": "T1", "folderPath": "/CI"}, nil},
		{"ticket with slash", map[string]string{"ticketNumber": "T1/x", "folderPath": "/CI"}, []formFile{{"a.txt", "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			rec := s.do(uploadRequest(t, "/processData", tt.fields, tt.files...))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, decode(t, rec).Success)
			assert.Equal(t, []string{"Test"}, s.repo.ChildNames("/CI"))
		})
	}

	t.Run("not multipart", func(t *testing.T) {
		s := newTestServer(t, nil)
		req := httptest.NewRequest(http.MethodPost, "/processData", strings.NewReader("ticketNumber=T1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
	})
}

func TestProcessDataFailures(t *testing.T) {
	fields := map[string]string{"ticketNumber": "T1", "folderPath": "/CI"}

	t.Run("permission", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.repo.Deny("/CI", cmis.CanCreateFolder)
		rec := s.do(uploadRequest(t, "/processData", fields, formFile{"a.txt", "x"}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		resp := decode(t, rec)
		assert.Equal(t, map[string]any{"ticket": "T1", "file": "a.txt", "stage": "folder"}, resp.Data)
	})

	t.Run("connection", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.binding.Err = &cmis.Error{Status: http.StatusServiceUnavailable, Exception: cmis.ExceptionServiceUnavailableRemote}
		rec := s.do(uploadRequest(t, "/processData", fields, formFile{"a.txt", "x"}))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("missing parent", func(t *testing.T) {
		s := newTestServer(t, nil)
		rec := s.do(uploadRequest(t, "/processData",
			map[string]string{"ticketNumber": "T1", "folderPath": "/Nowhere"}, formFile{"a.txt", "x"}))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTestEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(uploadRequest(t, "/test", nil, formFile{"a.txt", "x"}))
	assert.Equal(t, http.StatusNotFound, rec.Code, "disabled by default")

	s = newTestServer(t, func(cfg *types.Config) { cfg.API.EnableTestEndpoint = true })
	rec = s.do(uploadRequest(t, "/test",
		map[string]string{"ticketNumber": "ignored", "folderPath": "/ignored"}, formFile{"a.txt", "x"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, s.repo.Exists("/CI/Test/454444/a.txt"))
}

func TestRepositoryEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.doJSON(http.MethodPost, "/api/v1/repository/folder", map[string]string{"path": "/CI", "name": "T5"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = s.doJSON(http.MethodPost, "/api/v1/repository/folder", map[string]string{"path": "/CI", "name": "T5"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec).Data.(map[string]any)["created"])

	rec = s.do(uploadRequest(t, "/processData",
		map[string]string{"ticketNumber": "T5", "folderPath": "/CI"}, formFile{"notes.txt", "first"}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.doJSON(http.MethodPut, "/api/v1/repository/content",
		map[string]string{"path": "/CI/T5", "name": "notes.txt", "content": "second"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/repository/content?path=/CI/T5&name=notes.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "second", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename=notes.txt`)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/repository/object?path=/CI/T5&name=notes.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "notes.txt", decode(t, rec).Data.(map[string]any)["name"])

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/repository/object?path=/CI/T5&name=absent.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.doJSON(http.MethodPost, "/api/v1/repository/copy",
		map[string]string{"source_path": "/CI/T5", "name": "notes.txt", "destination_path": "/CI/Test"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec).Data.(map[string]any)["copied"])
	assert.True(t, s.repo.Exists("/CI/Test/notes.txt"))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/repository/children?path=/CI&max=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode(t, rec).Data.(map[string]any)
	assert.Len(t, page["objects"], 1)
	assert.Equal(t, true, page["has_more_items"])

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/repository/children?path=/CI&skip=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/repository/document?path=/CI/Test&name=notes.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, s.repo.Exists("/CI/Test/notes.txt"))

	rec = s.doJSON(http.MethodPost, "/api/v1/repository/folder/rename", map[string]string{"path": "/CI/T5", "new_name": "T6"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, s.repo.Exists("/CI/T6/notes.txt"))

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/repository/folder?path=/CI/T6", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec).Data.(map[string]any)["failed"])
	assert.False(t, s.repo.Exists("/CI/T6"))

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/repository/folder?path=/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/repository/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/repository/types", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNotifyEndpoint(t *testing.T) {
	var received atomic.Int32
	mail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer mail.Close()

	withMail := func(url string) func(*types.Config) {
		return func(cfg *types.Config) {
			cfg.Notification = types.NotificationConfig{
				Recipient:      "a@x.com,b@x.com",
				Sender:         "bot@x.com",
				Subject:        "Ticket filed",
				Message:        "Stored.",
				MailUtilityURL: url,
			}
		}
	}

	s := newTestServer(t, withMail(mail.URL))
	rec := s.doJSON(http.MethodPost, "/api/v1/notify", map[string]string{"subject": "Override"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int32(1), received.Load())
	email := decode(t, rec).Data.(map[string]any)
	assert.Equal(t, "Override", email["subject"])
	assert.Equal(t, []any{"a@x.com", "b@x.com"}, email["to"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notify", nil)
	rec = s.do(req)
	assert.Equal(t, http.StatusOK, rec.Code, "empty body uses the configured email")

	s = newTestServer(t, withMail(""))
	rec = s.doJSON(http.MethodPost, "/api/v1/notify", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s = newTestServer(t, func(cfg *types.Config) {
		withMail(mail.URL)(cfg)
		cfg.Notification.Recipient = ""
	})
	rec = s.doJSON(http.MethodPost, "/api/v1/notify", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSystemEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode(t, rec).Data.(map[string]any)
	assert.Equal(t, "********", cfg["repository"].(map[string]any)["password"])
	assert.Equal(t, "secret", s.cfg.Repository.Password, "the live config is untouched")

	rec = s.do(httptest.NewRequest(http.MethodPost, "/api/v1/reset", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec).Data.(map[string]any)
	assert.Equal(t, float64(0), stats["connections"])
	assert.NotContains(t, stats, "node_count")
}
