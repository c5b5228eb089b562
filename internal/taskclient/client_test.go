package taskclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tomlord1122/task-backend/internal/auth"
	"github.com/Tomlord1122/task-backend/internal/config"
	"github.com/Tomlord1122/task-backend/internal/domain"
	"github.com/Tomlord1122/task-backend/internal/realtime"
	"github.com/Tomlord1122/task-backend/internal/repository"
	"github.com/Tomlord1122/task-backend/internal/server"
	"github.com/Tomlord1122/task-backend/internal/service"
)

func startAPI(t *testing.T) (string, *realtime.Hub) {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := repository.NewMemoryStore()
	codec := auth.NewTokenCodec([]byte("client-test-secret"))
	hub := realtime.NewHub(false, false, log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	s := server.New(config.Config{CORSAllowedOrigins: []string{"http://*"}}, server.Dependencies{
		Tasks:    service.NewTaskService(store.Tasks(), hub, log),
		Auth:     service.NewAuthService(store.Users(), codec, log),
		Verifier: codec,
		Hub:      hub,
		Log:      log,
	})
	srv := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.Done()
	})
	return srv.URL, hub
}

func newClient(t *testing.T, baseURL, name, email string) *Client {
	t.Helper()
	c, err := New(baseURL, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	_, err = c.Register(context.Background(), service.RegisterRequest{Name: name, Email: email, Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, c.Token())
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)
}

func TestClientCRUDDrivesCache(t *testing.T) {
	baseURL, _ := startAPI(t)
	ctx := context.Background()
	c := newClient(t, baseURL, "Alice", "alice@example.com")

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)

	created, err := c.Create(ctx, service.CreateTaskRequest{Title: "Buy milk"})
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, ids(c.Cache().Snapshot()))

	updated, err := c.Update(ctx, created.ID, service.UpdateTaskRequest{Status: service.Some(domain.StatusDone)})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, updated.Status)
	assert.Equal(t, domain.StatusDone, c.Cache().Snapshot().Tasks[0].Status)

	got, err := c.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got.Title)
	require.NotNil(t, c.Cache().Snapshot().Selected)

	tasks, err := c.List(ctx, ListOptions{Status: "done"})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	require.NoError(t, c.Delete(ctx, created.ID))
	s := c.Cache().Snapshot()
	assert.Empty(t, s.Tasks)
	assert.Nil(t, s.Selected)

	err = c.Delete(ctx, created.ID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "404: Task not found", c.Cache().Snapshot().Error)

	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, c.Token())
	_, err = c.Me(ctx)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestSubscribeAppliesEvents(t *testing.T) {
	baseURL, hub := startAPI(t)
	alice := newClient(t, baseURL, "Alice", "alice@example.com")
	bob := newClient(t, baseURL, "Bob", "bob@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan realtime.Event, 8)
	errc := make(chan error, 1)
	go func() { errc <- bob.Subscribe(ctx, func(ev realtime.Event) { events <- ev }) }()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	created, err := alice.Create(context.Background(), service.CreateTaskRequest{Title: "Buy milk"})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, realtime.EventTaskCreated, ev.Event)
		assert.Equal(t, `Task "Buy milk" has been created`, ev.Data.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	assert.Equal(t, []string{created.ID}, ids(bob.Cache().Snapshot()))

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

func TestSubscribeWithoutCredential(t *testing.T) {
	baseURL, _ := startAPI(t)
	c, err := New(baseURL)
	require.NoError(t, err)

	err = c.Subscribe(context.Background(), nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}
