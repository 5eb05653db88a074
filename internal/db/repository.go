package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/Project-Sylos/Archivist/internal/utils"
)

// RepositoryID is the single repository served by a local binding
const RepositoryID = "local"

// PropChecksum exposes the stored SHA256 of a document
const PropChecksum = "archivist:checksum"

// Binding serves the DuckDB store as a one-repository cmis.Binding
type Binding struct {
	db       *DB
	readOnly bool
}

// NewBinding wraps db. A read-only binding rejects every write.
func NewBinding(db *DB, readOnly bool) *Binding {
	return &Binding{db: db, readOnly: readOnly}
}

func (b *Binding) info() cmis.RepositoryInfo {
	return cmis.RepositoryInfo{
		ID:                   RepositoryID,
		Name:                 "Local repository",
		Description:          "Embedded DuckDB document store",
		VendorName:           "Project Sylos",
		ProductName:          "Archivist",
		ProductVersion:       "1.0",
		CMISVersionSupported: "1.1",
		RootFolderID:         RootID,
		Capabilities: cmis.Capabilities{
			ContentStreamUpdatability: cmis.ContentStreamUpdatesAnytime,
			Changes:                   "none",
			Renditions:                "none",
			Query:                     "none",
			Join:                      "none",
			ACL:                       "none",
			GetDescendants:            true,
			GetFolderTree:             true,
		},
	}
}

// GetRepositories implements cmis.Binding
func (b *Binding) GetRepositories(ctx context.Context, creds cmis.Credentials) ([]cmis.RepositoryInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []cmis.RepositoryInfo{b.info()}, nil
}

// CreateSession implements cmis.Binding
func (b *Binding) CreateSession(ctx context.Context, creds cmis.Credentials, repo cmis.RepositoryInfo) (cmis.Session, error) {
	if repo.ID != RepositoryID {
		return nil, &cmis.Error{Exception: cmis.ExceptionObjectNotFound, Message: "unknown repository " + repo.ID}
	}
	user := creds.Username
	if user == "" {
		user = "anonymous"
	}
	return &Session{db: b.db, info: b.info(), readOnly: b.readOnly, user: user}, nil
}

// Session is a cmis.Session over the DuckDB store
type Session struct {
	db       *DB
	info     cmis.RepositoryInfo
	readOnly bool
	user     string
}

// RepositoryInfo implements cmis.Session
func (s *Session) RepositoryInfo() cmis.RepositoryInfo {
	return s.info
}

// GetObjectByPath implements cmis.Session
func (s *Session) GetObjectByPath(ctx context.Context, path string) (*cmis.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	node, err := s.db.GetNodeByPath(utils.JoinPath(path))
	if err != nil {
		return nil, translate(err)
	}
	return s.toObject(node), nil
}

// GetChildren implements cmis.Session
func (s *Session) GetChildren(ctx context.Context, folderID string, skipCount, maxItems int) (*cmis.ChildrenPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.folder(folderID); err != nil {
		return nil, err
	}
	if skipCount < 0 {
		skipCount = 0
	}
	nodes, total, err := s.db.GetChildrenByParentID(folderID, skipCount, maxItems)
	if err != nil {
		return nil, translate(err)
	}
	page := &cmis.ChildrenPage{
		NumItems:     int64(total),
		HasMoreItems: skipCount+len(nodes) < total,
	}
	for _, node := range nodes {
		page.Objects = append(page.Objects, s.toObject(node))
	}
	return page, nil
}

// GetContentStream implements cmis.Session
func (s *Session) GetContentStream(ctx context.Context, objectID string) (*cmis.ContentStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	node, err := s.db.GetNodeByID(objectID)
	if err != nil {
		return nil, translate(err)
	}
	if node.BaseType != cmis.BaseTypeDocument {
		return nil, &cmis.Error{Exception: cmis.ExceptionConstraint, Message: node.Path + " has no content stream"}
	}
	data, err := s.db.GetContent(objectID)
	if err != nil {
		return nil, translate(err)
	}
	return &cmis.ContentStream{
		FileName: node.Name,
		Length:   int64(len(data)),
		MimeType: node.MimeType,
		Stream:   io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// GetTypeDescendants implements cmis.Session. The store knows only the two
// base types.
func (s *Session) GetTypeDescendants(ctx context.Context, typeID string, depth int, includePropertyDefinitions bool) ([]*cmis.TypeTree, error) {
	all := []*cmis.TypeTree{
		{Type: cmis.ObjectType{
			ID:                   cmis.BaseTypeDocument,
			DisplayName:          "Document",
			BaseID:               cmis.BaseTypeDocument,
			Fileable:             true,
			Queryable:            false,
			Versionable:          true,
			ContentStreamAllowed: "allowed",
		}},
		{Type: cmis.ObjectType{
			ID:          cmis.BaseTypeFolder,
			DisplayName: "Folder",
			BaseID:      cmis.BaseTypeFolder,
			Fileable:    true,
		}},
	}
	if typeID == "" {
		return all, nil
	}
	for _, tree := range all {
		if tree.Type.ID == typeID {
			// base types have no subtypes here
			return nil, nil
		}
	}
	return nil, &cmis.Error{Exception: cmis.ExceptionObjectNotFound, Message: "unknown type " + typeID}
}

// CreateFolder implements cmis.Session
func (s *Session) CreateFolder(ctx context.Context, parentID, name string) (*cmis.Object, error) {
	if err := s.writable(ctx); err != nil {
		return nil, err
	}
	parent, err := s.folder(parentID)
	if err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	node := s.newNode(parent, name, cmis.BaseTypeFolder)
	if err := s.db.InsertNode(node, nil); err != nil {
		return nil, translate(err)
	}
	return s.toObject(node), nil
}

// CreateDocument implements cmis.Session
func (s *Session) CreateDocument(ctx context.Context, parentID string, props cmis.DocumentProperties, content *cmis.ContentStream, versioning cmis.VersioningState) (*cmis.Object, error) {
	if err := s.writable(ctx); err != nil {
		return nil, err
	}
	parent, err := s.folder(parentID)
	if err != nil {
		return nil, err
	}
	if err := validName(props.Name); err != nil {
		return nil, err
	}

	var data []byte
	node := s.newNode(parent, props.Name, cmis.BaseTypeDocument)
	if props.ObjectTypeID != "" {
		node.ObjectTypeID = props.ObjectTypeID
	}
	node.Description = props.Description
	node.VersionLabel = initialVersion(versioning)
	if content != nil && content.Stream != nil {
		data, err = io.ReadAll(content.Stream)
		if err != nil {
			return nil, fmt.Errorf("failed to read content: %w", err)
		}
		node.MimeType = content.MimeType
	}
	node.Size = int64(len(data))
	checksum := ComputeChecksum(data)
	node.Checksum = &checksum

	if err := s.db.InsertNode(node, data); err != nil {
		return nil, translate(err)
	}
	return s.toObject(node), nil
}

// SetContentStream implements cmis.Session. Each replacement is a new
// minor version.
func (s *Session) SetContentStream(ctx context.Context, objectID string, content *cmis.ContentStream, overwrite bool) (*cmis.Object, error) {
	if err := s.writable(ctx); err != nil {
		return nil, err
	}
	node, err := s.db.GetNodeByID(objectID)
	if err != nil {
		return nil, translate(err)
	}
	if node.BaseType != cmis.BaseTypeDocument {
		return nil, &cmis.Error{Exception: cmis.ExceptionConstraint, Message: node.Path + " is not a document"}
	}
	if !overwrite && node.Size > 0 {
		return nil, &cmis.Error{Exception: cmis.ExceptionContentAlreadyExists, Message: node.Path + " already has content"}
	}

	data, err := io.ReadAll(content.Stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if err := s.db.UpdateContent(objectID, data, content.MimeType, nextMinor(node.VersionLabel), s.user); err != nil {
		return nil, translate(err)
	}
	updated, err := s.db.GetNodeByID(objectID)
	if err != nil {
		return nil, translate(err)
	}
	return s.toObject(updated), nil
}

// UpdateProperties implements cmis.Session for cmis:name and
// cmis:description
func (s *Session) UpdateProperties(ctx context.Context, objectID string, props map[string]any) (*cmis.Object, error) {
	if err := s.writable(ctx); err != nil {
		return nil, err
	}
	if objectID == RootID {
		return nil, &cmis.Error{Exception: cmis.ExceptionConstraint, Message: "the root folder cannot be modified"}
	}
	for key := range props {
		if key != cmis.PropName && key != cmis.PropDescription {
			return nil, &cmis.Error{Exception: cmis.ExceptionConstraint, Message: key + " is read-only"}
		}
	}

	if desc, ok := props[cmis.PropDescription]; ok {
		if err := s.db.UpdateDescription(objectID, fmt.Sprint(desc), s.user); err != nil {
			return nil, translate(err)
		}
	}
	if name, ok := props[cmis.PropName]; ok {
		newName := fmt.Sprint(name)
		if err := validName(newName); err != nil {
			return nil, err
		}
		if err := s.db.RenameNode(objectID, newName, s.user); err != nil {
			return nil, translate(err)
		}
	}

	node, err := s.db.GetNodeByID(objectID)
	if err != nil {
		return nil, translate(err)
	}
	return s.toObject(node), nil
}

// CopyDocument implements cmis.Session
func (s *Session) CopyDocument(ctx context.Context, sourceID, targetFolderID string) (*cmis.Object, error) {
	if err := s.writable(ctx); err != nil {
		return nil, err
	}
	source, err := s.db.GetNodeByID(sourceID)
	if err != nil {
		return nil, translate(err)
	}
	if source.BaseType != cmis.BaseTypeDocument {
		return nil, &cmis.Error{Exception: cmis.ExceptionConstraint, Message: source.Path + " is not a document"}
	}
	target, err := s.folder(targetFolderID)
	if err != nil {
		return nil, err
	}
	data, err := s.db.GetContent(sourceID)
	if err != nil {
		return nil, translate(err)
	}

	node := s.newNode(target, source.Name, cmis.BaseTypeDocument)
	node.ObjectTypeID = source.ObjectTypeID
	node.Description = source.Description
	node.MimeType = source.MimeType
	node.Size = source.Size
	node.Checksum = source.Checksum
	node.VersionLabel = "1.0"
	if err := s.db.InsertNode(node, data); err != nil {
		return nil, translate(err)
	}
	return s.toObject(node), nil
}

// Delete implements cmis.Session. Folders must be empty.
func (s *Session) Delete(ctx context.Context, objectID string, allVersions bool) error {
	if err := s.writable(ctx); err != nil {
		return err
	}
	if objectID == RootID {
		return &cmis.Error{Exception: cmis.ExceptionConstraint, Message: "the root folder cannot be deleted"}
	}
	node, err := s.db.GetNodeByID(objectID)
	if err != nil {
		return translate(err)
	}
	if node.BaseType == cmis.BaseTypeFolder {
		hasChildren, err := s.db.CheckChildrenExist(objectID)
		if err != nil {
			return err
		}
		if hasChildren {
			return &cmis.Error{Exception: cmis.ExceptionConstraint, Message: node.Path + " is not empty"}
		}
	}
	return translate(s.db.DeleteNode(objectID))
}

// DeleteTree implements cmis.Session. The subtree goes in one transaction,
// so nothing is ever left behind.
func (s *Session) DeleteTree(ctx context.Context, folderID string, allVersions bool, unfile cmis.UnfileObject, continueOnFailure bool) ([]string, error) {
	if err := s.writable(ctx); err != nil {
		return nil, err
	}
	if folderID == RootID {
		return nil, &cmis.Error{Exception: cmis.ExceptionConstraint, Message: "the root folder cannot be deleted"}
	}
	if unfile == cmis.UnfileObjects {
		return nil, &cmis.Error{Exception: cmis.ExceptionNotSupported, Message: "unfiling is not supported"}
	}
	folder, err := s.folder(folderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.DeleteSubtree(folder.Path); err != nil {
		return []string{folderID}, err
	}
	return nil, nil
}

func (s *Session) writable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.readOnly {
		return &cmis.Error{Exception: cmis.ExceptionPermissionDenied, Message: "repository is read-only"}
	}
	return nil
}

func (s *Session) folder(id string) (*Node, error) {
	node, err := s.db.GetNodeByID(id)
	if err != nil {
		return nil, translate(err)
	}
	if node.BaseType != cmis.BaseTypeFolder {
		return nil, &cmis.Error{Exception: cmis.ExceptionInvalidArgument, Message: node.Path + " is not a folder"}
	}
	return node, nil
}

func (s *Session) newNode(parent *Node, name, baseType string) *Node {
	now := time.Now().UTC()
	return &Node{
		ID:                   NewNodeID(),
		ParentID:             parent.ID,
		Name:                 name,
		Path:                 utils.JoinPath(parent.Path, name),
		BaseType:             baseType,
		ObjectTypeID:         baseType,
		CreatedBy:            s.user,
		CreationDate:         now,
		LastModifiedBy:       s.user,
		LastModificationDate: now,
	}
}

func (s *Session) toObject(node *Node) *cmis.Object {
	obj := &cmis.Object{
		ID:                   node.ID,
		Name:                 node.Name,
		Path:                 node.Path,
		BaseTypeID:           node.BaseType,
		ObjectTypeID:         node.ObjectTypeID,
		ParentID:             node.ParentID,
		Description:          node.Description,
		CreatedBy:            node.CreatedBy,
		CreationDate:         node.CreationDate,
		LastModifiedBy:       node.LastModifiedBy,
		LastModificationDate: node.LastModificationDate,
		AllowableActions:     s.actionsFor(node),
		Properties: map[string]any{
			cmis.PropObjectID:             node.ID,
			cmis.PropName:                 node.Name,
			cmis.PropBaseTypeID:           node.BaseType,
			cmis.PropObjectTypeID:         node.ObjectTypeID,
			cmis.PropCreatedBy:            node.CreatedBy,
			cmis.PropCreationDate:         node.CreationDate,
			cmis.PropLastModifiedBy:       node.LastModifiedBy,
			cmis.PropLastModificationDate: node.LastModificationDate,
		},
	}
	if node.Description != "" {
		obj.Properties[cmis.PropDescription] = node.Description
	}
	if node.BaseType == cmis.BaseTypeFolder {
		obj.Properties[cmis.PropPath] = node.Path
		if node.ParentID != "" {
			obj.Properties[cmis.PropParentID] = node.ParentID
		}
		return obj
	}

	obj.VersionLabel = node.VersionLabel
	obj.ContentStreamLength = node.Size
	obj.ContentStreamMimeType = node.MimeType
	obj.Properties[cmis.PropVersionLabel] = node.VersionLabel
	obj.Properties[cmis.PropContentStreamLength] = node.Size
	obj.Properties[cmis.PropContentStreamMimeType] = node.MimeType
	obj.Properties[cmis.PropContentStreamFileName] = node.Name
	if node.Checksum != nil {
		obj.Properties[PropChecksum] = *node.Checksum
	}
	return obj
}

func (s *Session) actionsFor(node *Node) cmis.AllowableActions {
	actions := []cmis.Action{cmis.CanGetProperties}
	if node.BaseType == cmis.BaseTypeFolder {
		actions = append(actions, cmis.CanGetChildren)
		if !s.readOnly {
			actions = append(actions, cmis.CanCreateFolder, cmis.CanCreateDocument)
			if node.ID != RootID {
				actions = append(actions, cmis.CanDeleteObject, cmis.CanDeleteTree, cmis.CanUpdateProperties)
			}
		}
		return cmis.NewAllowableActions(actions...)
	}

	actions = append(actions, cmis.CanGetContentStream)
	if !s.readOnly {
		actions = append(actions, cmis.CanSetContentStream, cmis.CanDeleteObject, cmis.CanUpdateProperties)
	}
	return cmis.NewAllowableActions(actions...)
}

// translate maps store errors onto cmis errors
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNodeNotFound):
		return &cmis.Error{Exception: cmis.ExceptionObjectNotFound, Message: err.Error()}
	case errors.Is(err, ErrPathExists):
		return &cmis.Error{Exception: cmis.ExceptionContentAlreadyExists, Message: err.Error()}
	}
	return err
}

func validName(name string) error {
	if !utils.ValidName(name) {
		return &cmis.Error{Exception: cmis.ExceptionInvalidArgument, Message: fmt.Sprintf("invalid name %q", name)}
	}
	return nil
}

func initialVersion(state cmis.VersioningState) string {
	if state == cmis.VersioningMinor {
		return "0.1"
	}
	return "1.0"
}

func nextMinor(label string) string {
	major, minor, ok := strings.Cut(label, ".")
	if !ok {
		return "1.1"
	}
	n, err := strconv.Atoi(minor)
	if err != nil {
		return "1.1"
	}
	return major + "." + strconv.Itoa(n+1)
}
