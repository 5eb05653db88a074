// Package browser talks to a repository through the CMIS 1.1 Browser
// Binding (JSON over HTTP). Objects are never cached: every lookup is a
// round trip.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"go.uber.org/zap"
)

// Options configures a Binding
type Options struct {
	URL         string // service URL, e.g. .../public/cmis/versions/1.1/browser
	Compression bool
	Timeout     time.Duration
	HTTPClient  *http.Client // optional, overrides Timeout
}

// Binding negotiates browser binding sessions against one service URL
type Binding struct {
	opts   Options
	client *http.Client
	logger *zap.Logger
}

// NewBinding creates a new browser binding
func NewBinding(opts Options, logger *zap.Logger) *Binding {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binding{
		opts:   opts,
		client: client,
		logger: logger.Named("cmis.browser"),
	}
}

// GetRepositories lists the repositories at the service URL, ordered by id
func (b *Binding) GetRepositories(ctx context.Context, creds cmis.Credentials) ([]cmis.RepositoryInfo, error) {
	api := newRestClient(b.client, creds, b.opts.Compression)

	var infos map[string]cmis.RepositoryInfo
	err := api.callJSON(ctx, &opts{Method: http.MethodGet, URL: b.opts.URL}, &infos)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch repository infos: %w", err)
	}

	ids := make([]string, 0, len(infos))
	for id := range infos {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	repos := make([]cmis.RepositoryInfo, 0, len(ids))
	for _, id := range ids {
		info := infos[id]
		if info.ID == "" {
			info.ID = id
		}
		repos = append(repos, info)
	}
	return repos, nil
}

// CreateSession opens a session on repo
func (b *Binding) CreateSession(ctx context.Context, creds cmis.Credentials, repo cmis.RepositoryInfo) (cmis.Session, error) {
	if repo.RootFolderURL == "" || repo.RepositoryURL == "" {
		return nil, fmt.Errorf("%w: repository %s advertises no root folder or repository URL", cmis.ErrConnection, repo.ID)
	}
	return &Session{
		api:    newRestClient(b.client, creds, b.opts.Compression),
		info:   repo,
		logger: b.logger.With(zap.String("repository", repo.ID)),
	}, nil
}

// Session is a browser binding session on one repository
type Session struct {
	api    *restClient
	info   cmis.RepositoryInfo
	logger *zap.Logger
}

// RepositoryInfo returns the info the session was opened with
func (s *Session) RepositoryInfo() cmis.RepositoryInfo {
	return s.info
}

func (s *Session) rootURL() string {
	return strings.TrimRight(s.info.RootFolderURL, "/")
}

func objectParams(selector string) url.Values {
	params := url.Values{}
	params.Set("cmisselector", selector)
	params.Set("succinct", "true")
	params.Set("includeAllowableActions", "true")
	return params
}

// GetObjectByPath fetches the object at an absolute repository path
func (s *Session) GetObjectByPath(ctx context.Context, path string) (*cmis.Object, error) {
	var raw objectJSON
	err := s.api.callJSON(ctx, &opts{
		Method:     http.MethodGet,
		URL:        s.rootURL() + escapePath(path),
		Parameters: objectParams("object"),
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", path, err)
	}
	obj := raw.toObject()
	if obj.Path == "" {
		obj.Path = path
	}
	return obj, nil
}

// GetChildren lists one page of a folder's children
func (s *Session) GetChildren(ctx context.Context, folderID string, skipCount, maxItems int) (*cmis.ChildrenPage, error) {
	params := objectParams("children")
	params.Set("objectId", folderID)
	params.Set("skipCount", strconv.Itoa(skipCount))
	if maxItems > 0 {
		params.Set("maxItems", strconv.Itoa(maxItems))
	}

	var raw childrenJSON
	err := s.api.callJSON(ctx, &opts{Method: http.MethodGet, URL: s.rootURL(), Parameters: params}, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %s: %w", folderID, err)
	}

	page := &cmis.ChildrenPage{
		Objects:      make([]*cmis.Object, 0, len(raw.Objects)),
		HasMoreItems: raw.HasMoreItems,
		NumItems:     -1,
	}
	if raw.NumItems != "" {
		if n, err := raw.NumItems.Int64(); err == nil {
			page.NumItems = n
		}
	}
	for _, child := range raw.Objects {
		page.Objects = append(page.Objects, child.Object.toObject())
	}
	return page, nil
}

// GetContentStream opens the document's content. The caller closes Stream.
func (s *Session) GetContentStream(ctx context.Context, objectID string) (*cmis.ContentStream, error) {
	params := url.Values{}
	params.Set("cmisselector", "content")
	params.Set("objectId", objectID)

	resp, err := s.api.call(ctx, &opts{Method: http.MethodGet, URL: s.rootURL(), Parameters: params})
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", objectID, err)
	}

	content := &cmis.ContentStream{
		Length:   resp.ContentLength,
		MimeType: resp.Header.Get("Content-Type"),
		Stream:   resp.Body,
	}
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		content.FileName = dispositionFileName(disposition)
	}
	return content, nil
}

// GetTypeDescendants returns the type tree below typeID (all base types when empty)
func (s *Session) GetTypeDescendants(ctx context.Context, typeID string, depth int, includePropertyDefinitions bool) ([]*cmis.TypeTree, error) {
	params := url.Values{}
	params.Set("cmisselector", "typeDescendants")
	params.Set("depth", strconv.Itoa(depth))
	params.Set("includePropertyDefinitions", strconv.FormatBool(includePropertyDefinitions))
	if typeID != "" {
		params.Set("typeId", typeID)
	}

	var trees []*cmis.TypeTree
	err := s.api.callJSON(ctx, &opts{Method: http.MethodGet, URL: s.info.RepositoryURL, Parameters: params}, &trees)
	if err != nil {
		return nil, fmt.Errorf("failed to get type descendants: %w", err)
	}
	return trees, nil
}

// CreateFolder creates a cmis:folder named name under parentID
func (s *Session) CreateFolder(ctx context.Context, parentID, name string) (*cmis.Object, error) {
	form := actionForm("createFolder", parentID)
	setProperties(form, map[string]any{
		cmis.PropObjectTypeID: cmis.BaseTypeFolder,
		cmis.PropName:         name,
	})
	return s.postObject(ctx, form, nil, "create folder "+name)
}

// CreateDocument uploads a new document under parentID
func (s *Session) CreateDocument(ctx context.Context, parentID string, props cmis.DocumentProperties, content *cmis.ContentStream, versioning cmis.VersioningState) (*cmis.Object, error) {
	typeID := props.ObjectTypeID
	if typeID == "" {
		typeID = cmis.BaseTypeDocument
	}
	form := actionForm("createDocument", parentID)
	setProperties(form, map[string]any{
		cmis.PropObjectTypeID: typeID,
		cmis.PropName:         props.Name,
		cmis.PropDescription:  props.Description,
	})
	if versioning != "" {
		form.Set("versioningState", string(versioning))
	}
	if content == nil {
		content = &cmis.ContentStream{FileName: props.Name}
	}
	return s.postObject(ctx, form, content, "create document "+props.Name)
}

// SetContentStream replaces a document's content. A nil object with a nil
// error means the repository created no new version.
func (s *Session) SetContentStream(ctx context.Context, objectID string, content *cmis.ContentStream, overwrite bool) (*cmis.Object, error) {
	form := actionForm("setContent", objectID)
	form.Set("overwriteFlag", strconv.FormatBool(overwrite))
	return s.postObject(ctx, form, content, "set content of "+objectID)
}

// UpdateProperties writes props onto the object
func (s *Session) UpdateProperties(ctx context.Context, objectID string, props map[string]any) (*cmis.Object, error) {
	form := actionForm("update", objectID)
	setProperties(form, props)
	return s.postObject(ctx, form, nil, "update "+objectID)
}

// CopyDocument copies sourceID into targetFolderID
func (s *Session) CopyDocument(ctx context.Context, sourceID, targetFolderID string) (*cmis.Object, error) {
	form := actionForm("createDocumentFromSource", targetFolderID)
	form.Set("sourceId", sourceID)
	return s.postObject(ctx, form, nil, "copy "+sourceID)
}

// Delete removes an object
func (s *Session) Delete(ctx context.Context, objectID string, allVersions bool) error {
	form := actionForm("delete", objectID)
	form.Set("allVersions", strconv.FormatBool(allVersions))
	_, err := s.api.call(ctx, &opts{Method: http.MethodPost, URL: s.rootURL(), Form: form, NoResponse: true})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", objectID, err)
	}
	return nil
}

// DeleteTree removes a folder and its descendants, returning the ids that
// could not be deleted
func (s *Session) DeleteTree(ctx context.Context, folderID string, allVersions bool, unfile cmis.UnfileObject, continueOnFailure bool) ([]string, error) {
	form := actionForm("deleteTree", folderID)
	form.Set("allVersions", strconv.FormatBool(allVersions))
	form.Set("unfileObjects", string(unfile))
	form.Set("continueOnFailure", strconv.FormatBool(continueOnFailure))

	var failed failedToDeleteJSON
	if err := s.api.callJSON(ctx, &opts{Method: http.MethodPost, URL: s.rootURL(), Form: form}, &failed); err != nil {
		return nil, fmt.Errorf("failed to delete tree %s: %w", folderID, err)
	}
	return failed.IDs, nil
}

func (s *Session) postObject(ctx context.Context, form url.Values, content *cmis.ContentStream, what string) (*cmis.Object, error) {
	var raw objectJSON
	err := s.api.callJSON(ctx, &opts{Method: http.MethodPost, URL: s.rootURL(), Form: form, Content: content}, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", what, err)
	}
	if raw.SuccinctProperties == nil && raw.Properties == nil {
		return nil, nil
	}
	return raw.toObject(), nil
}

func actionForm(action, objectID string) url.Values {
	form := url.Values{}
	form.Set("cmisaction", action)
	form.Set("succinct", "true")
	if objectID != "" {
		form.Set("objectId", objectID)
	}
	return form
}

// setProperties encodes props as propertyId[n]/propertyValue[n] pairs,
// ordered by property id
func setProperties(form url.Values, props map[string]any) {
	ids := make([]string, 0, len(props))
	for id := range props {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		form.Set(fmt.Sprintf("propertyId[%d]", i), id)
		form.Set(fmt.Sprintf("propertyValue[%d]", i), fmt.Sprint(props[id]))
	}
}

func escapePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	var b strings.Builder
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(segment))
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

func dispositionFileName(disposition string) string {
	for _, part := range strings.Split(disposition, ";") {
		part = strings.TrimSpace(part)
		if name, ok := strings.CutPrefix(part, "filename="); ok {
			return strings.Trim(name, `"`)
		}
	}
	return ""
}

// objectJSON is a succinct (or verbose) browser binding object
type objectJSON struct {
	SuccinctProperties map[string]any  `json:"succinctProperties"`
	Properties         map[string]any  `json:"properties"`
	AllowableActions   map[string]bool `json:"allowableActions"`
}

func (o *objectJSON) props() map[string]any {
	if o.SuccinctProperties != nil {
		return o.SuccinctProperties
	}
	// verbose form wraps each value as {"value": ...}
	flat := make(map[string]any, len(o.Properties))
	for id, raw := range o.Properties {
		if m, ok := raw.(map[string]any); ok {
			flat[id] = m["value"]
		}
	}
	return flat
}

func (o *objectJSON) toObject() *cmis.Object {
	props := o.props()
	obj := &cmis.Object{
		ID:                    propString(props, cmis.PropObjectID),
		Name:                  propString(props, cmis.PropName),
		Path:                  propString(props, cmis.PropPath),
		BaseTypeID:            propString(props, cmis.PropBaseTypeID),
		ObjectTypeID:          propString(props, cmis.PropObjectTypeID),
		ParentID:              propString(props, cmis.PropParentID),
		Description:           propString(props, cmis.PropDescription),
		CreatedBy:             propString(props, cmis.PropCreatedBy),
		CreationDate:          propTime(props, cmis.PropCreationDate),
		LastModifiedBy:        propString(props, cmis.PropLastModifiedBy),
		LastModificationDate:  propTime(props, cmis.PropLastModificationDate),
		VersionLabel:          propString(props, cmis.PropVersionLabel),
		ContentStreamLength:   propInt(props, cmis.PropContentStreamLength),
		ContentStreamMimeType: propString(props, cmis.PropContentStreamMimeType),
		AllowableActions:      make(cmis.AllowableActions, len(o.AllowableActions)),
		Properties:            props,
	}
	for action, allowed := range o.AllowableActions {
		obj.AllowableActions[cmis.Action(action)] = allowed
	}
	return obj
}

type childrenJSON struct {
	Objects []struct {
		Object objectJSON `json:"object"`
	} `json:"objects"`
	HasMoreItems bool        `json:"hasMoreItems"`
	NumItems     json.Number `json:"numItems"`
}

// failedToDeleteJSON accepts {"ids":[...]} or a bare array
type failedToDeleteJSON struct {
	IDs []string
}

func (f *failedToDeleteJSON) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(data, &f.IDs)
	}
	var wrapped struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	f.IDs = wrapped.IDs
	return nil
}

func propString(props map[string]any, id string) string {
	switch v := props[id].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
	return ""
}

func propInt(props map[string]any, id string) int64 {
	switch v := props[id].(type) {
	case json.Number:
		n, _ := v.Int64()
		return n
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// propTime reads a browser binding datetime, milliseconds since the epoch
func propTime(props map[string]any, id string) time.Time {
	ms := propInt(props, id)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
