// Package cmis defines the repository contract the rest of the service is
// written against: a Binding negotiates sessions, a Session performs object
// operations. Implementations live in cmis/browser (CMIS Browser Binding over
// HTTP), db (embedded DuckDB repository) and cmis/cmistest (in-memory).
package cmis

import "context"

// Binding discovers repositories at an endpoint and opens sessions on them
type Binding interface {
	GetRepositories(ctx context.Context, creds Credentials) ([]RepositoryInfo, error)
	CreateSession(ctx context.Context, creds Credentials, repo RepositoryInfo) (Session, error)
}

// Session is a live connection to one repository.
// Lookups that find nothing return ErrObjectNotFound.
type Session interface {
	RepositoryInfo() RepositoryInfo

	GetObjectByPath(ctx context.Context, path string) (*Object, error)
	GetChildren(ctx context.Context, folderID string, skipCount, maxItems int) (*ChildrenPage, error)
	GetContentStream(ctx context.Context, objectID string) (*ContentStream, error)
	GetTypeDescendants(ctx context.Context, typeID string, depth int, includePropertyDefinitions bool) ([]*TypeTree, error)

	CreateFolder(ctx context.Context, parentID, name string) (*Object, error)
	CreateDocument(ctx context.Context, parentID string, props DocumentProperties, content *ContentStream, versioning VersioningState) (*Object, error)
	SetContentStream(ctx context.Context, objectID string, content *ContentStream, overwrite bool) (*Object, error)
	UpdateProperties(ctx context.Context, objectID string, props map[string]any) (*Object, error)
	CopyDocument(ctx context.Context, sourceID, targetFolderID string) (*Object, error)

	Delete(ctx context.Context, objectID string, allVersions bool) error
	DeleteTree(ctx context.Context, folderID string, allVersions bool, unfile UnfileObject, continueOnFailure bool) ([]string, error)
}
