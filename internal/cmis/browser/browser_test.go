package browser

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is a minimal browser binding endpoint
type fakeRepo struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	actions  []string
	uploaded map[string]string // name -> content
	gzipped  bool
}

func newFakeRepo(t *testing.T) *fakeRepo {
	f := &fakeRepo{t: t, uploaded: make(map[string]string)}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRepo) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		f.mu.Lock()
		f.gzipped = true
		f.mu.Unlock()
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(status)
		zw := gzip.NewWriter(w)
		defer zw.Close()
		json.NewEncoder(zw).Encode(v)
		return
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func folderJSON(id, name, path string) map[string]any {
	return map[string]any{
		"succinctProperties": map[string]any{
			"cmis:objectId":     id,
			"cmis:name":         name,
			"cmis:path":         path,
			"cmis:baseTypeId":   "cmis:folder",
			"cmis:objectTypeId": "cmis:folder",
			"cmis:createdBy":    "admin",
			"cmis:creationDate": 1700000000000,
		},
		"allowableActions": map[string]bool{
			"canCreateFolder":   true,
			"canCreateDocument": true,
			"canDeleteTree":     false,
		},
	}
}

func (f *fakeRepo) handle(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != "admin" || pass != "secret" {
		f.writeJSON(w, r, http.StatusUnauthorized, map[string]string{"exception": "unauthorized", "message": "bad credentials"})
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/browser" && r.URL.Query().Get("cmisselector") == "":
		f.writeJSON(w, r, http.StatusOK, map[string]any{
			"-default-": map[string]any{
				"repositoryId":         "-default-",
				"repositoryName":       "Main Repository",
				"productName":          "Alfresco Community",
				"productVersion":       "7.4.0",
				"cmisVersionSupported": "1.1",
				"rootFolderId":         "root-id",
				"rootFolderUrl":        f.server.URL + "/browser/root",
				"repositoryUrl":        f.server.URL + "/browser",
				"capabilities": map[string]any{
					"capabilityContentStreamUpdatability": "anytime",
					"capabilityUnfiling":                  false,
				},
			},
		})

	case r.Method == http.MethodGet && r.URL.Query().Get("cmisselector") == "typeDescendants":
		f.writeJSON(w, r, http.StatusOK, []map[string]any{
			{
				"type":     map[string]any{"id": "cmis:document", "displayName": "Document", "baseId": "cmis:document", "fileable": true, "queryable": true, "versionable": true},
				"children": []map[string]any{{"type": map[string]any{"id": "cm:content", "displayName": "Content", "baseId": "cmis:document"}}},
			},
			{"type": map[string]any{"id": "cmis:folder", "displayName": "Folder", "baseId": "cmis:folder", "fileable": true}},
		})

	case r.Method == http.MethodGet && r.URL.Query().Get("cmisselector") == "object":
		switch r.URL.Path {
		case "/browser/root/CI":
			f.writeJSON(w, r, http.StatusOK, folderJSON("ci-id", "CI", "/CI"))
		case "/browser/root/CI/T 1":
			f.writeJSON(w, r, http.StatusOK, folderJSON("t1-id", "T 1", "/CI/T 1"))
		default:
			f.writeJSON(w, r, http.StatusNotFound, map[string]string{"exception": "objectNotFound", "message": "no such path"})
		}

	case r.Method == http.MethodGet && r.URL.Query().Get("cmisselector") == "children":
		assert.Equal(f.t, "ci-id", r.URL.Query().Get("objectId"))
		assert.Equal(f.t, "2", r.URL.Query().Get("maxItems"))
		f.writeJSON(w, r, http.StatusOK, map[string]any{
			"objects": []map[string]any{
				{"object": folderJSON("a", "A", "/CI/A")},
				{"object": folderJSON("b", "B", "/CI/B")},
			},
			"hasMoreItems": true,
			"numItems":     3,
		})

	case r.Method == http.MethodGet && r.URL.Query().Get("cmisselector") == "content":
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Disposition", `attachment; filename="notes.txt"`)
		io.WriteString(w, "hello content")

	case r.Method == http.MethodPost:
		f.handleAction(w, r)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeRepo) handleAction(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		require.NoError(f.t, r.ParseMultipartForm(1<<20))
	} else {
		require.NoError(f.t, r.ParseForm())
	}
	action := r.FormValue("cmisaction")
	f.mu.Lock()
	f.actions = append(f.actions, action)
	f.mu.Unlock()

	switch action {
	case "createFolder":
		assert.Equal(f.t, "cmis:name", r.FormValue("propertyId[0]"))
		name := r.FormValue("propertyValue[0]")
		if name == "dup" {
			f.writeJSON(w, r, http.StatusConflict, map[string]string{"exception": "contentAlreadyExists", "message": "exists"})
			return
		}
		f.writeJSON(w, r, http.StatusCreated, folderJSON("new-id", name, "/CI/"+name))
	case "createDocument":
		file, header, err := r.FormFile("content")
		require.NoError(f.t, err)
		data, _ := io.ReadAll(file)
		assert.Equal(f.t, "application/pdf", header.Header.Get("Content-Type"))
		assert.Equal(f.t, "major", r.FormValue("versioningState"))
		f.mu.Lock()
		f.uploaded[header.Filename] = string(data)
		f.mu.Unlock()
		f.writeJSON(w, r, http.StatusCreated, map[string]any{
			"succinctProperties": map[string]any{
				"cmis:objectId":              "doc-id",
				"cmis:name":                  header.Filename,
				"cmis:baseTypeId":            "cmis:document",
				"cmis:versionLabel":          "1.0",
				"cmis:contentStreamLength":   len(data),
				"cmis:contentStreamMimeType": "application/pdf",
			},
		})
	case "deleteTree":
		assert.Equal(f.t, "delete", r.FormValue("unfileObjects"))
		assert.Equal(f.t, "true", r.FormValue("continueOnFailure"))
		f.writeJSON(w, r, http.StatusOK, map[string]any{"ids": []string{"stuck-1", "stuck-2"}})
	case "delete":
		w.WriteHeader(http.StatusOK)
	case "createDocumentFromSource":
		f.writeJSON(w, r, http.StatusConflict, map[string]string{"exception": "contentAlreadyExists", "message": "already there"})
	default:
		f.writeJSON(w, r, http.StatusBadRequest, map[string]string{"exception": "invalidArgument", "message": "unknown action"})
	}
}

func openSession(t *testing.T, f *fakeRepo, compression bool) cmis.Session {
	t.Helper()
	b := NewBinding(Options{URL: f.server.URL + "/browser", Compression: compression}, nil)
	creds := cmis.Credentials{Username: "admin", Password: "secret"}

	repos, err := b.GetRepositories(context.Background(), creds)
	require.NoError(t, err)
	require.Len(t, repos, 1)

	session, err := b.CreateSession(context.Background(), creds, repos[0])
	require.NoError(t, err)
	return session
}

func TestGetRepositories(t *testing.T) {
	f := newFakeRepo(t)
	session := openSession(t, f, false)

	info := session.RepositoryInfo()
	assert.Equal(t, "-default-", info.ID)
	assert.Equal(t, "Alfresco Community", info.ProductName)
	assert.Equal(t, cmis.ContentStreamUpdatesAnytime, info.Capabilities.ContentStreamUpdatability)
	assert.False(t, info.Capabilities.Unfiling)
}

func TestBadCredentials(t *testing.T) {
	f := newFakeRepo(t)
	b := NewBinding(Options{URL: f.server.URL + "/browser"}, nil)
	_, err := b.GetRepositories(context.Background(), cmis.Credentials{Username: "admin", Password: "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cmis.ErrPermissionDenied))
}

func TestUnreachableEndpoint(t *testing.T) {
	b := NewBinding(Options{URL: "http://127.0.0.1:1/browser"}, nil)
	_, err := b.GetRepositories(context.Background(), cmis.Credentials{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cmis.ErrConnection))
}

func TestGetObjectByPath(t *testing.T) {
	f := newFakeRepo(t)
	session := openSession(t, f, true)
	ctx := context.Background()

	obj, err := session.GetObjectByPath(ctx, "/CI/T 1")
	require.NoError(t, err)
	assert.Equal(t, "t1-id", obj.ID)
	assert.Equal(t, "/CI/T 1", obj.Path)
	assert.True(t, obj.IsFolder())
	assert.True(t, obj.AllowableActions.Has(cmis.CanCreateFolder))
	assert.False(t, obj.AllowableActions.Has(cmis.CanDeleteTree))
	assert.Equal(t, int64(1700000000000), obj.CreationDate.UnixMilli())

	_, err = session.GetObjectByPath(ctx, "/CI/missing")
	require.Error(t, err)
	assert.True(t, cmis.IsNotFound(err))

	f.mu.Lock()
	assert.True(t, f.gzipped, "expected the client to ask for gzip")
	f.mu.Unlock()
}

func TestCreateFolderAndDocument(t *testing.T) {
	f := newFakeRepo(t)
	session := openSession(t, f, false)
	ctx := context.Background()

	folder, err := session.CreateFolder(ctx, "ci-id", "T2")
	require.NoError(t, err)
	assert.Equal(t, "T2", folder.Name)

	_, err = session.CreateFolder(ctx, "ci-id", "dup")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cmis.ErrContentAlreadyExists))

	doc, err := session.CreateDocument(ctx, "t1-id", cmis.DocumentProperties{Name: "report.pdf", Description: "d"},
		&cmis.ContentStream{FileName: "report.pdf", MimeType: "application/pdf", Length: 4, Stream: io.NopCloser(strings.NewReader("%PDF"))},
		cmis.VersioningMajor)
	require.NoError(t, err)
	assert.Equal(t, "doc-id", doc.ID)
	assert.Equal(t, int64(4), doc.ContentStreamLength)
	assert.True(t, doc.IsDocument())

	f.mu.Lock()
	assert.Equal(t, "%PDF", f.uploaded["report.pdf"])
	f.mu.Unlock()
}

func TestChildrenContentAndTypes(t *testing.T) {
	f := newFakeRepo(t)
	session := openSession(t, f, false)
	ctx := context.Background()

	page, err := session.GetChildren(ctx, "ci-id", 0, 2)
	require.NoError(t, err)
	assert.Len(t, page.Objects, 2)
	assert.True(t, page.HasMoreItems)
	assert.Equal(t, int64(3), page.NumItems)

	content, err := session.GetContentStream(ctx, "doc-id")
	require.NoError(t, err)
	defer content.Stream.Close()
	data, err := io.ReadAll(content.Stream)
	require.NoError(t, err)
	assert.Equal(t, "hello content", string(data))
	assert.Equal(t, "notes.txt", content.FileName)

	trees, err := session.GetTypeDescendants(ctx, "", -1, false)
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.Equal(t, "cmis:document", trees[0].Type.ID)
	require.Len(t, trees[0].Children, 1)
	assert.Equal(t, "cm:content", trees[0].Children[0].Type.ID)
}

func TestDeleteAndCopy(t *testing.T) {
	f := newFakeRepo(t)
	session := openSession(t, f, false)
	ctx := context.Background()

	failed, err := session.DeleteTree(ctx, "ci-id", true, cmis.DeleteUnfiledObjects, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"stuck-1", "stuck-2"}, failed)

	require.NoError(t, session.Delete(ctx, "doc-id", true))

	_, err = session.CopyDocument(ctx, "doc-id", "t1-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cmis.ErrContentAlreadyExists))

	f.mu.Lock()
	assert.Equal(t, []string{"deleteTree", "delete", "createDocumentFromSource"}, f.actions)
	f.mu.Unlock()
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "/", escapePath("/"))
	assert.Equal(t, "/CI/T%201", escapePath("/CI/T 1"))
	assert.Equal(t, "/a/b", escapePath("a//b/"))
}
