// Package cmistest provides an in-memory repository implementing the cmis
// contract, with knobs for permissions, capabilities and delete failures.
package cmistest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/Project-Sylos/Archivist/internal/utils"
)

// AllActions is what every object allows unless denied
var AllActions = []cmis.Action{
	cmis.CanCreateFolder,
	cmis.CanCreateDocument,
	cmis.CanSetContentStream,
	cmis.CanDeleteObject,
	cmis.CanDeleteTree,
	cmis.CanGetContentStream,
	cmis.CanUpdateProperties,
	cmis.CanGetChildren,
	cmis.CanGetProperties,
}

type entry struct {
	obj     cmis.Object
	content []byte
}

// Repository is an in-memory cmis.Session
type Repository struct {
	mu         sync.Mutex
	info       cmis.RepositoryInfo
	byID       map[string]*entry
	byPath     map[string]string
	denied     map[string]map[cmis.Action]bool // path -> denied actions
	failDelete map[string]bool                 // paths DeleteTree cannot remove
	nextID     int
	user       string
	lastUnfile cmis.UnfileObject
}

// NewRepository creates a repository holding only the root folder
func NewRepository() *Repository {
	r := &Repository{
		info: cmis.RepositoryInfo{
			ID:                   "memory",
			Name:                 "In-memory repository",
			ProductName:          "cmistest",
			ProductVersion:       "1.0",
			CMISVersionSupported: "1.1",
			RootFolderID:         "root",
			Capabilities: cmis.Capabilities{
				ContentStreamUpdatability: cmis.ContentStreamUpdatesAnytime,
				Unfiling:                  true,
				GetDescendants:            true,
				GetFolderTree:             true,
			},
		},
		byID:       make(map[string]*entry),
		byPath:     make(map[string]string),
		denied:     make(map[string]map[cmis.Action]bool),
		failDelete: make(map[string]bool),
		user:       "admin",
	}
	now := time.Now().UTC()
	r.byID["root"] = &entry{obj: cmis.Object{
		ID:                   "root",
		Name:                 "",
		Path:                 "/",
		BaseTypeID:           cmis.BaseTypeFolder,
		ObjectTypeID:         cmis.BaseTypeFolder,
		CreatedBy:            "system",
		CreationDate:         now,
		LastModifiedBy:       "system",
		LastModificationDate: now,
	}}
	r.byPath["/"] = "root"
	return r
}

// Deny removes actions from the object at path
func (r *Repository) Deny(path string, actions ...cmis.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path = utils.JoinPath(path)
	if r.denied[path] == nil {
		r.denied[path] = make(map[cmis.Action]bool)
	}
	for _, action := range actions {
		r.denied[path][action] = true
	}
}

// FailDeleteOf makes DeleteTree unable to remove the node at path
func (r *Repository) FailDeleteOf(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failDelete[utils.JoinPath(path)] = true
}

// SetCapabilities edits the advertised capabilities
func (r *Repository) SetCapabilities(edit func(*cmis.Capabilities)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	edit(&r.info.Capabilities)
}

// MkdirAll creates every folder along path
func (r *Repository) MkdirAll(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := "/"
	for _, segment := range splitSegments(path) {
		next := utils.JoinPath(current, segment)
		if _, ok := r.byPath[next]; !ok {
			r.insert(r.byPath[current], segment, cmis.BaseTypeFolder, "", nil, "")
		}
		current = next
	}
}

// Exists reports whether anything lives at path
func (r *Repository) Exists(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byPath[utils.JoinPath(path)]
	return ok
}

// Content returns the bytes of the document at path
func (r *Repository) Content(path string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPath[utils.JoinPath(path)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), r.byID[id].content...), true
}

// Lookup returns a copy of the object at path
func (r *Repository) Lookup(path string) (*cmis.Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPath[utils.JoinPath(path)]
	if !ok {
		return nil, false
	}
	return r.snapshot(r.byID[id]), true
}

// ChildNames lists the names directly under path, sorted
func (r *Repository) ChildNames(path string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, e := range r.children(r.byPath[utils.JoinPath(path)]) {
		names = append(names, e.obj.Name)
	}
	return names
}

// Count returns the number of objects, root included
func (r *Repository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// LastUnfile returns the unfile mode of the most recent DeleteTree call
func (r *Repository) LastUnfile() cmis.UnfileObject {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUnfile
}

// RepositoryInfo implements cmis.Session
func (r *Repository) RepositoryInfo() cmis.RepositoryInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// GetObjectByPath implements cmis.Session
func (r *Repository) GetObjectByPath(ctx context.Context, path string) (*cmis.Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPath[utils.JoinPath(path)]
	if !ok {
		return nil, notFound(path)
	}
	return r.snapshot(r.byID[id]), nil
}

// GetChildren implements cmis.Session
func (r *Repository) GetChildren(ctx context.Context, folderID string, skipCount, maxItems int) (*cmis.ChildrenPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[folderID]; !ok {
		return nil, notFound(folderID)
	}
	all := r.children(folderID)
	page := &cmis.ChildrenPage{NumItems: int64(len(all))}
	if skipCount > len(all) {
		skipCount = len(all)
	}
	end := len(all)
	if maxItems > 0 && skipCount+maxItems < end {
		end = skipCount + maxItems
	}
	for _, e := range all[skipCount:end] {
		page.Objects = append(page.Objects, r.snapshot(e))
	}
	page.HasMoreItems = end < len(all)
	return page, nil
}

// GetContentStream implements cmis.Session
func (r *Repository) GetContentStream(ctx context.Context, objectID string) (*cmis.ContentStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[objectID]
	if !ok || e.obj.BaseTypeID != cmis.BaseTypeDocument {
		return nil, notFound(objectID)
	}
	data := append([]byte(nil), e.content...)
	return &cmis.ContentStream{
		FileName: e.obj.Name,
		Length:   int64(len(data)),
		MimeType: e.obj.ContentStreamMimeType,
		Stream:   io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// GetTypeDescendants implements cmis.Session
func (r *Repository) GetTypeDescendants(ctx context.Context, typeID string, depth int, includePropertyDefinitions bool) ([]*cmis.TypeTree, error) {
	return []*cmis.TypeTree{
		{Type: cmis.ObjectType{ID: cmis.BaseTypeDocument, DisplayName: "Document", BaseID: cmis.BaseTypeDocument, Fileable: true, Queryable: true, Versionable: true, ContentStreamAllowed: "allowed"}},
		{Type: cmis.ObjectType{ID: cmis.BaseTypeFolder, DisplayName: "Folder", BaseID: cmis.BaseTypeFolder, Fileable: true, Queryable: true}},
	}, nil
}

// CreateFolder implements cmis.Session
func (r *Repository) CreateFolder(ctx context.Context, parentID, name string) (*cmis.Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkCreate(parentID, name); err != nil {
		return nil, err
	}
	return r.snapshot(r.insert(parentID, name, cmis.BaseTypeFolder, "", nil, "")), nil
}

// CreateDocument implements cmis.Session
func (r *Repository) CreateDocument(ctx context.Context, parentID string, props cmis.DocumentProperties, content *cmis.ContentStream, versioning cmis.VersioningState) (*cmis.Object, error) {
	var data []byte
	mimeType := ""
	if content != nil && content.Stream != nil {
		var err error
		data, err = io.ReadAll(content.Stream)
		if err != nil {
			return nil, fmt.Errorf("failed to read content: %w", err)
		}
		mimeType = content.MimeType
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkCreate(parentID, props.Name); err != nil {
		return nil, err
	}
	e := r.insert(parentID, props.Name, cmis.BaseTypeDocument, props.Description, data, mimeType)
	if versioning == cmis.VersioningMinor {
		e.obj.VersionLabel = "0.1"
	}
	return r.snapshot(e), nil
}

// SetContentStream implements cmis.Session
func (r *Repository) SetContentStream(ctx context.Context, objectID string, content *cmis.ContentStream, overwrite bool) (*cmis.Object, error) {
	data, err := io.ReadAll(content.Stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[objectID]
	if !ok {
		return nil, notFound(objectID)
	}
	if len(e.content) > 0 && !overwrite {
		return nil, &cmis.Error{Exception: cmis.ExceptionContentAlreadyExists, Message: "content already set"}
	}
	e.content = data
	e.obj.ContentStreamLength = int64(len(data))
	e.obj.ContentStreamMimeType = content.MimeType
	e.obj.VersionLabel = bumpMinor(e.obj.VersionLabel)
	e.obj.LastModifiedBy = r.user
	e.obj.LastModificationDate = time.Now().UTC()
	return r.snapshot(e), nil
}

// UpdateProperties implements cmis.Session. Only cmis:name and
// cmis:description are writable.
func (r *Repository) UpdateProperties(ctx context.Context, objectID string, props map[string]any) (*cmis.Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[objectID]
	if !ok {
		return nil, notFound(objectID)
	}
	if desc, ok := props[cmis.PropDescription]; ok {
		e.obj.Description = fmt.Sprint(desc)
	}
	if name, ok := props[cmis.PropName]; ok {
		newName := fmt.Sprint(name)
		parentPath, _ := utils.SplitPath(e.obj.Path)
		newPath := utils.JoinPath(parentPath, newName)
		if _, taken := r.byPath[newPath]; taken {
			return nil, &cmis.Error{Exception: cmis.ExceptionNameConstraintViolation, Message: newPath + " exists"}
		}
		oldPath := e.obj.Path
		moved := make(map[string]string)
		for path, id := range r.byPath {
			if utils.IsWithin(path, oldPath) {
				moved[path] = id
			}
		}
		for path, id := range moved {
			delete(r.byPath, path)
			target := newPath + path[len(oldPath):]
			r.byID[id].obj.Path = target
			r.byPath[target] = id
		}
		e.obj.Name = newName
	}
	e.obj.LastModifiedBy = r.user
	e.obj.LastModificationDate = time.Now().UTC()
	return r.snapshot(e), nil
}

// CopyDocument implements cmis.Session
func (r *Repository) CopyDocument(ctx context.Context, sourceID, targetFolderID string) (*cmis.Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.byID[sourceID]
	if !ok {
		return nil, notFound(sourceID)
	}
	if err := r.checkCreate(targetFolderID, src.obj.Name); err != nil {
		return nil, err
	}
	e := r.insert(targetFolderID, src.obj.Name, cmis.BaseTypeDocument, src.obj.Description,
		append([]byte(nil), src.content...), src.obj.ContentStreamMimeType)
	return r.snapshot(e), nil
}

// Delete implements cmis.Session
func (r *Repository) Delete(ctx context.Context, objectID string, allVersions bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[objectID]
	if !ok {
		return notFound(objectID)
	}
	if e.obj.IsFolder() && len(r.children(objectID)) > 0 {
		return &cmis.Error{Exception: cmis.ExceptionConstraint, Message: "folder is not empty"}
	}
	delete(r.byPath, e.obj.Path)
	delete(r.byID, objectID)
	return nil
}

// DeleteTree implements cmis.Session. Nodes marked with FailDeleteOf stay,
// along with every ancestor up to the target, and are reported.
func (r *Repository) DeleteTree(ctx context.Context, folderID string, allVersions bool, unfile cmis.UnfileObject, continueOnFailure bool) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastUnfile = unfile
	root, ok := r.byID[folderID]
	if !ok {
		return nil, notFound(folderID)
	}

	var paths []string
	for path := range r.byPath {
		if utils.IsWithin(path, root.obj.Path) {
			paths = append(paths, path)
		}
	}
	// deepest first
	sort.Slice(paths, func(i, j int) bool { return len(paths[i]) > len(paths[j]) })

	keep := make(map[string]bool)
	for path := range r.failDelete {
		if !utils.IsWithin(path, root.obj.Path) {
			continue
		}
		for p := path; ; {
			keep[p] = true
			if p == root.obj.Path || p == "/" {
				break
			}
			p, _ = utils.SplitPath(p)
		}
	}

	var failed []string
	for _, path := range paths {
		id := r.byPath[path]
		if keep[path] {
			failed = append(failed, id)
			if !continueOnFailure {
				return failed, nil
			}
			continue
		}
		delete(r.byPath, path)
		delete(r.byID, id)
	}
	return failed, nil
}

func (r *Repository) checkCreate(parentID, name string) error {
	parent, ok := r.byID[parentID]
	if !ok || !parent.obj.IsFolder() {
		return notFound(parentID)
	}
	if name == "" {
		return &cmis.Error{Exception: cmis.ExceptionInvalidArgument, Message: "name is required"}
	}
	if _, exists := r.byPath[utils.JoinPath(parent.obj.Path, name)]; exists {
		return &cmis.Error{Exception: cmis.ExceptionContentAlreadyExists, Message: name + " already exists"}
	}
	return nil
}

func (r *Repository) insert(parentID, name, baseType, description string, content []byte, mimeType string) *entry {
	r.nextID++
	now := time.Now().UTC()
	parent := r.byID[parentID]
	e := &entry{
		obj: cmis.Object{
			ID:                   "obj-" + strconv.Itoa(r.nextID),
			Name:                 name,
			Path:                 utils.JoinPath(parent.obj.Path, name),
			BaseTypeID:           baseType,
			ObjectTypeID:         baseType,
			ParentID:             parentID,
			Description:          description,
			CreatedBy:            r.user,
			CreationDate:         now,
			LastModifiedBy:       r.user,
			LastModificationDate: now,
		},
		content: content,
	}
	if baseType == cmis.BaseTypeDocument {
		e.obj.VersionLabel = "1.0"
		e.obj.ContentStreamLength = int64(len(content))
		e.obj.ContentStreamMimeType = mimeType
	}
	r.byID[e.obj.ID] = e
	r.byPath[e.obj.Path] = e.obj.ID
	return e
}

func (r *Repository) children(folderID string) []*entry {
	var out []*entry
	for _, e := range r.byID {
		if e.obj.ParentID == folderID && e.obj.ID != folderID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].obj.Name < out[j].obj.Name })
	return out
}

func (r *Repository) snapshot(e *entry) *cmis.Object {
	obj := e.obj
	obj.AllowableActions = make(cmis.AllowableActions, len(AllActions))
	denied := r.denied[obj.Path]
	for _, action := range AllActions {
		if !denied[action] {
			obj.AllowableActions[action] = true
		}
	}
	obj.Properties = map[string]any{
		cmis.PropObjectID:     obj.ID,
		cmis.PropName:         obj.Name,
		cmis.PropBaseTypeID:   obj.BaseTypeID,
		cmis.PropObjectTypeID: obj.ObjectTypeID,
		cmis.PropCreatedBy:    obj.CreatedBy,
	}
	if obj.IsFolder() {
		obj.Properties[cmis.PropPath] = obj.Path
	}
	return &obj
}

func notFound(what string) error {
	return &cmis.Error{Exception: cmis.ExceptionObjectNotFound, Message: what + " not found"}
}

func splitSegments(path string) []string {
	var out []string
	for p := utils.JoinPath(path); p != "/"; {
		parent, name := utils.SplitPath(p)
		out = append([]string{name}, out...)
		p = parent
	}
	return out
}

func bumpMinor(label string) string {
	var major, minor int
	if _, err := fmt.Sscanf(label, "%d.%d", &major, &minor); err != nil {
		return "1.1"
	}
	return fmt.Sprintf("%d.%d", major, minor+1)
}
