// Package registry keeps one live repository session per connection name.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Registry hands out sessions keyed by connection name. A session is
// negotiated on first use and kept for the life of the registry.
type Registry struct {
	binding  cmis.Binding
	sessions *cache.Cache
	group    singleflight.Group
	logger   *zap.Logger
}

// New creates an empty registry over binding
func New(binding cmis.Binding, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		binding: binding,
		// no expiry and no janitor goroutine
		sessions: cache.New(cache.NoExpiration, -1),
		logger:   logger.Named("registry"),
	}
}

// GetSession returns the session for name, negotiating one with the given
// credentials if none exists. The first repository advertised by the
// endpoint is used. Concurrent first calls for the same name share a
// single negotiation.
func (r *Registry) GetSession(ctx context.Context, name, username, password string) (cmis.Session, error) {
	if x, found := r.sessions.Get(name); found {
		return x.(cmis.Session), nil
	}

	ch := r.group.DoChan(name, func() (interface{}, error) {
		if x, found := r.sessions.Get(name); found {
			return x, nil
		}
		// one caller giving up must not fail the others
		session, err := r.connect(context.WithoutCancel(ctx), name, cmis.Credentials{Username: username, Password: password})
		if err != nil {
			return nil, err
		}
		r.sessions.Set(name, session, cache.NoExpiration)
		return session, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(cmis.Session), nil
	}
}

func (r *Registry) connect(ctx context.Context, name string, creds cmis.Credentials) (cmis.Session, error) {
	repos, err := r.binding.GetRepositories(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories for connection %s: %w", name, err)
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("%w: no repositories advertised for connection %s", cmis.ErrConnection, name)
	}

	repo := repos[0]
	session, err := r.binding.CreateSession(ctx, creds, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to open session on repository %s: %w", repo.ID, err)
	}
	r.logger.Info("session created",
		zap.String("connection", name),
		zap.String("repository", repo.ID),
		zap.String("product", repo.ProductName+" "+repo.ProductVersion),
		zap.Int("advertised", len(repos)))
	return session, nil
}

// Names lists the connections with a live session, sorted
func (r *Registry) Names() []string {
	items := r.sessions.Items()
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	return r.sessions.ItemCount()
}
