package repository

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/task-backend/internal/domain"
	"github.com/Tomlord1122/task-backend/internal/errs"
)

func TestMemoryStore_UsersUniqueEmail(t *testing.T) {
	t.Parallel()
	users := NewMemoryStore().Users()
	ctx := context.Background()

	u := &domain.User{Name: "A", Email: "a@example.com"}
	require.NoError(t, users.Create(ctx, u))
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.ErrorIs(t, users.Create(ctx, &domain.User{Email: "A@example.com"}), errs.ErrAlreadyExists)

	got, err := users.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = users.FindByID(ctx, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryStore_TasksScopedAndSorted(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }
	tasks := store.Tasks()
	ctx := context.Background()
	alice, bob := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	due := base.Add(24 * time.Hour)
	a := &domain.Task{Title: "b-second", UserID: alice}
	b := &domain.Task{Title: "a-first", UserID: alice, DueDate: &due, Status: domain.StatusDone}
	c := &domain.Task{Title: "bob's", UserID: bob}
	for _, task := range []*domain.Task{a, b, c} {
		require.NoError(t, tasks.Create(ctx, task))
	}
	assert.Equal(t, domain.StatusTodo, a.Status)

	list, err := tasks.List(ctx, alice, TaskFilter{Desc: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID, "newest first")

	list, err = tasks.List(ctx, alice, TaskFilter{SortBy: "title"})
	require.NoError(t, err)
	assert.Equal(t, "a-first", list[0].Title)

	list, err = tasks.List(ctx, alice, TaskFilter{SortBy: "dueDate"})
	require.NoError(t, err)
	assert.Equal(t, b.ID, list[0].ID, "null due dates sort last ascending")

	list, err = tasks.List(ctx, alice, TaskFilter{Status: domain.StatusDone})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	_, err = tasks.FindByID(ctx, bob, a.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = tasks.Update(ctx, bob, a.ID, map[string]any{"title": "x"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = tasks.Delete(ctx, bob, a.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	upd, err := tasks.Update(ctx, alice, b.ID, map[string]any{"due_date": nil, "status": domain.StatusInProgress})
	require.NoError(t, err)
	assert.Nil(t, upd.DueDate)
	assert.Equal(t, domain.StatusInProgress, upd.Status)
	assert.True(t, upd.UpdatedAt.After(upd.CreatedAt))

	_, err = tasks.Update(ctx, alice, b.ID, map[string]any{"owner": bob})
	assert.Error(t, err)

	_, err = tasks.Delete(ctx, alice, a.ID)
	require.NoError(t, err)
	_, err = tasks.Delete(ctx, alice, a.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
