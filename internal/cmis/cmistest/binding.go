package cmistest

import (
	"context"
	"sync/atomic"

	"github.com/Project-Sylos/Archivist/internal/cmis"
)

// Binding serves a fixed list of in-memory repositories
type Binding struct {
	Repositories []*Repository

	// Err, when set, fails every GetRepositories call
	Err error
	// Username and Password, when set, are the only accepted credentials
	Username string
	Password string

	discoveries atomic.Int64
	sessions    atomic.Int64
}

// NewBinding creates a binding over the given repositories
func NewBinding(repos ...*Repository) *Binding {
	return &Binding{Repositories: repos}
}

// GetRepositories implements cmis.Binding
func (b *Binding) GetRepositories(ctx context.Context, creds cmis.Credentials) ([]cmis.RepositoryInfo, error) {
	b.discoveries.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.Err != nil {
		return nil, b.Err
	}
	if !b.accepts(creds) {
		return nil, &cmis.Error{Status: 401, Exception: cmis.ExceptionUnauthorized, Message: "bad credentials"}
	}
	infos := make([]cmis.RepositoryInfo, 0, len(b.Repositories))
	for _, repo := range b.Repositories {
		infos = append(infos, repo.RepositoryInfo())
	}
	return infos, nil
}

// CreateSession implements cmis.Binding
func (b *Binding) CreateSession(ctx context.Context, creds cmis.Credentials, info cmis.RepositoryInfo) (cmis.Session, error) {
	b.sessions.Add(1)
	if !b.accepts(creds) {
		return nil, &cmis.Error{Status: 401, Exception: cmis.ExceptionUnauthorized, Message: "bad credentials"}
	}
	for _, repo := range b.Repositories {
		if repo.RepositoryInfo().ID == info.ID {
			return repo, nil
		}
	}
	return nil, &cmis.Error{Exception: cmis.ExceptionObjectNotFound, Message: "repository " + info.ID + " not found"}
}

// Discoveries counts GetRepositories calls
func (b *Binding) Discoveries() int64 { return b.discoveries.Load() }

// Sessions counts CreateSession calls
func (b *Binding) Sessions() int64 { return b.sessions.Load() }

func (b *Binding) accepts(creds cmis.Credentials) bool {
	if b.Username == "" && b.Password == "" {
		return true
	}
	return creds.Username == b.Username && creds.Password == b.Password
}

// WithID renames the repository, for tests that need several of them
func (r *Repository) WithID(id string) *Repository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info.ID = id
	r.info.Name = id
	return r
}
