package cmis

import (
	"io"
	"time"
)

// Base type ids
const (
	BaseTypeFolder   = "cmis:folder"
	BaseTypeDocument = "cmis:document"
)

// Property ids used by this service
const (
	PropObjectID              = "cmis:objectId"
	PropObjectTypeID          = "cmis:objectTypeId"
	PropBaseTypeID            = "cmis:baseTypeId"
	PropName                  = "cmis:name"
	PropPath                  = "cmis:path"
	PropParentID              = "cmis:parentId"
	PropDescription           = "cmis:description"
	PropCreatedBy             = "cmis:createdBy"
	PropCreationDate          = "cmis:creationDate"
	PropLastModifiedBy        = "cmis:lastModifiedBy"
	PropLastModificationDate  = "cmis:lastModificationDate"
	PropVersionLabel          = "cmis:versionLabel"
	PropContentStreamLength   = "cmis:contentStreamLength"
	PropContentStreamMimeType = "cmis:contentStreamMimeType"
	PropContentStreamFileName = "cmis:contentStreamFileName"
)

// Action is a CMIS allowable action name
type Action string

// Allowable actions checked by the gateway
const (
	CanCreateFolder     Action = "canCreateFolder"
	CanCreateDocument   Action = "canCreateDocument"
	CanSetContentStream Action = "canSetContentStream"
	CanDeleteObject     Action = "canDeleteObject"
	CanDeleteTree       Action = "canDeleteTree"
	CanGetContentStream Action = "canGetContentStream"
	CanUpdateProperties Action = "canUpdateProperties"
	CanGetChildren      Action = "canGetChildren"
	CanGetProperties    Action = "canGetProperties"
)

// AllowableActions is the permission set returned with an object
type AllowableActions map[Action]bool

// Has reports whether the action is allowed
func (a AllowableActions) Has(action Action) bool {
	return a[action]
}

// NewAllowableActions builds a set from a list of granted actions
func NewAllowableActions(actions ...Action) AllowableActions {
	set := make(AllowableActions, len(actions))
	for _, action := range actions {
		set[action] = true
	}
	return set
}

// Object is a folder or document as seen through a session
type Object struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	Path                  string           `json:"path"`
	BaseTypeID            string           `json:"base_type_id"`
	ObjectTypeID          string           `json:"object_type_id"`
	ParentID              string           `json:"parent_id,omitempty"`
	Description           string           `json:"description,omitempty"`
	CreatedBy             string           `json:"created_by,omitempty"`
	CreationDate          time.Time        `json:"creation_date"`
	LastModifiedBy        string           `json:"last_modified_by,omitempty"`
	LastModificationDate  time.Time        `json:"last_modification_date"`
	VersionLabel          string           `json:"version_label,omitempty"`
	ContentStreamLength   int64            `json:"content_stream_length,omitempty"`
	ContentStreamMimeType string           `json:"content_stream_mime_type,omitempty"`
	AllowableActions      AllowableActions `json:"allowable_actions,omitempty"`
	Properties            map[string]any   `json:"properties,omitempty"`
}

// IsFolder reports whether the object is a folder
func (o *Object) IsFolder() bool {
	return o.BaseTypeID == BaseTypeFolder
}

// IsDocument reports whether the object is a document
func (o *Object) IsDocument() bool {
	return o.BaseTypeID == BaseTypeDocument
}

// ContentStream carries document bytes to or from a repository
type ContentStream struct {
	FileName string
	Length   int64
	MimeType string
	Stream   io.ReadCloser
}

// DocumentProperties are the properties set on document creation
type DocumentProperties struct {
	Name         string
	ObjectTypeID string
	Description  string
}

// VersioningState selects the version created by CreateDocument
type VersioningState string

const (
	VersioningNone  VersioningState = "none"
	VersioningMajor VersioningState = "major"
	VersioningMinor VersioningState = "minor"
)

// UnfileObject controls what DeleteTree does with multi-filed documents
type UnfileObject string

const (
	UnfileObjects        UnfileObject = "unfile"
	DeleteSingleFiled    UnfileObject = "deletesinglefiled"
	DeleteUnfiledObjects UnfileObject = "delete"
)

// ContentStreamUpdates is the repository's content stream updatability
type ContentStreamUpdates string

const (
	ContentStreamUpdatesNone    ContentStreamUpdates = "none"
	ContentStreamUpdatesAnytime ContentStreamUpdates = "anytime"
	ContentStreamUpdatesPWCOnly ContentStreamUpdates = "pwconly"
)

// Capabilities advertised by a repository
type Capabilities struct {
	ContentStreamUpdatability ContentStreamUpdates `json:"capabilityContentStreamUpdatability"`
	Changes                   string               `json:"capabilityChanges"`
	Renditions                string               `json:"capabilityRenditions"`
	Query                     string               `json:"capabilityQuery"`
	Join                      string               `json:"capabilityJoin"`
	ACL                       string               `json:"capabilityACL"`
	GetDescendants            bool                 `json:"capabilityGetDescendants"`
	GetFolderTree             bool                 `json:"capabilityGetFolderTree"`
	Multifiling               bool                 `json:"capabilityMultifiling"`
	Unfiling                  bool                 `json:"capabilityUnfiling"`
	VersionSpecificFiling     bool                 `json:"capabilityVersionSpecificFiling"`
	PWCUpdatable              bool                 `json:"capabilityPWCUpdatable"`
	PWCSearchable             bool                 `json:"capabilityPWCSearchable"`
	AllVersionsSearchable     bool                 `json:"capabilityAllVersionsSearchable"`
}

// RepositoryInfo describes one repository exposed by an endpoint
type RepositoryInfo struct {
	ID                   string       `json:"repositoryId"`
	Name                 string       `json:"repositoryName"`
	Description          string       `json:"repositoryDescription"`
	VendorName           string       `json:"vendorName"`
	ProductName          string       `json:"productName"`
	ProductVersion       string       `json:"productVersion"`
	CMISVersionSupported string       `json:"cmisVersionSupported"`
	RootFolderID         string       `json:"rootFolderId"`
	RootFolderURL        string       `json:"rootFolderUrl"`
	RepositoryURL        string       `json:"repositoryUrl"`
	Capabilities         Capabilities `json:"capabilities"`
}

// ChildrenPage is one page of a folder listing
type ChildrenPage struct {
	Objects      []*Object `json:"objects"`
	HasMoreItems bool      `json:"has_more_items"`
	NumItems     int64     `json:"num_items"` // -1 when the repository does not report it
}

// ObjectType describes a repository type definition
type ObjectType struct {
	ID                   string `json:"id"`
	DisplayName          string `json:"displayName"`
	BaseID               string `json:"baseId"`
	ParentID             string `json:"parentId,omitempty"`
	Fileable             bool   `json:"fileable"`
	Queryable            bool   `json:"queryable"`
	Versionable          bool   `json:"versionable,omitempty"`
	ContentStreamAllowed string `json:"contentStreamAllowed,omitempty"`
}

// TypeTree is a type and its descendants
type TypeTree struct {
	Type     ObjectType  `json:"type"`
	Children []*TypeTree `json:"children,omitempty"`
}

// Credentials authenticate a session
type Credentials struct {
	Username string
	Password string
}
