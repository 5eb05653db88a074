package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/Project-Sylos/Archivist/internal/cmis/cmistest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedBinding holds discovery until the gate is closed
type gatedBinding struct {
	*cmistest.Binding
	gate chan struct{}
}

func (g *gatedBinding) GetRepositories(ctx context.Context, creds cmis.Credentials) ([]cmis.RepositoryInfo, error) {
	<-g.gate
	return g.Binding.GetRepositories(ctx, creds)
}

func TestGetSessionReusesEntry(t *testing.T) {
	binding := cmistest.NewBinding(cmistest.NewRepository())
	reg := New(binding, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := reg.GetSession(ctx, "alfresco", "admin", "admin")
	require.NoError(t, err)
	second, err := reg.GetSession(ctx, "alfresco", "ignored", "ignored")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, binding.Sessions())
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, []string{"alfresco"}, reg.Names())
}

func TestGetSessionPicksFirstRepository(t *testing.T) {
	a := cmistest.NewRepository().WithID("a")
	b := cmistest.NewRepository().WithID("b")
	reg := New(cmistest.NewBinding(a, b), nil)

	session, err := reg.GetSession(context.Background(), "x", "u", "p")
	require.NoError(t, err)
	assert.Equal(t, "a", session.RepositoryInfo().ID)
}

func TestGetSessionNoRepositories(t *testing.T) {
	reg := New(cmistest.NewBinding(), nil)

	_, err := reg.GetSession(context.Background(), "empty", "u", "p")
	assert.ErrorIs(t, err, cmis.ErrConnection)
	assert.Zero(t, reg.Len(), "failures are not cached")
}

func TestGetSessionBadCredentials(t *testing.T) {
	binding := cmistest.NewBinding(cmistest.NewRepository())
	binding.Username, binding.Password = "admin", "secret"
	reg := New(binding, nil)

	_, err := reg.GetSession(context.Background(), "alfresco", "admin", "wrong")
	assert.ErrorIs(t, err, cmis.ErrPermissionDenied)

	_, err = reg.GetSession(context.Background(), "alfresco", "admin", "secret")
	assert.NoError(t, err)
}

func TestGetSessionConcurrentFirstUse(t *testing.T) {
	binding := &gatedBinding{
		Binding: cmistest.NewBinding(cmistest.NewRepository()),
		gate:    make(chan struct{}),
	}
	reg := New(binding, nil)

	const callers = 16
	var wg sync.WaitGroup
	sessions := make([]cmis.Session, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = reg.GetSession(context.Background(), "shared", "admin", "admin")
		}(i)
	}

	// let every caller reach the registry before discovery completes
	time.Sleep(50 * time.Millisecond)
	close(binding.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, sessions[0], sessions[i])
	}
	assert.EqualValues(t, 1, binding.Sessions())
	assert.Equal(t, 1, reg.Len())
}

func TestGetSessionCallerCancelled(t *testing.T) {
	binding := &gatedBinding{
		Binding: cmistest.NewBinding(cmistest.NewRepository()),
		gate:    make(chan struct{}),
	}
	reg := New(binding, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := reg.GetSession(ctx, "slow", "admin", "admin")
	assert.ErrorIs(t, err, context.Canceled)

	// the negotiation carries on for later callers
	close(binding.gate)
	session, err := reg.GetSession(context.Background(), "slow", "admin", "admin")
	require.NoError(t, err)
	assert.NotNil(t, session)
}
