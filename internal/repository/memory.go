package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/Tomlord1122/task-backend/internal/domain"
	"github.com/Tomlord1122/task-backend/internal/errs"
)

// MemoryStore keeps users and tasks in process memory. It backs `serve
// --memory` for local development and the handler tests; it follows the same
// owner scoping and ordering rules as the GORM repositories.
type MemoryStore struct {
	mu    sync.RWMutex
	seq   int64
	users map[uuid.UUID]domain.User
	tasks map[uuid.UUID]memTask
	now   func() time.Time
}

type memTask struct {
	seq  int64
	task domain.Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[uuid.UUID]domain.User),
		tasks: make(map[uuid.UUID]memTask),
		now:   time.Now,
	}
}

// Tasks returns a TaskRepository view of the store.
func (m *MemoryStore) Tasks() TaskRepository { return memTasks{m} }

// Users returns a UserRepository view of the store.
func (m *MemoryStore) Users() UserRepository { return memUsers{m} }

type memUsers struct{ m *MemoryStore }

func (r memUsers) Create(_ context.Context, user *domain.User) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return errs.ErrAlreadyExists
		}
	}
	if user.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		user.ID = id
	}
	now := m.now()
	user.CreatedAt, user.UpdatedAt = now, now
	m.users[user.ID] = *user
	return nil
}

func (r memUsers) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, u := range r.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, errs.ErrNotFound
}

type memTasks struct{ m *MemoryStore }

func (r memTasks) Create(_ context.Context, task *domain.Task) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if task.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		task.ID = id
	}
	if task.Status == "" {
		task.Status = domain.StatusTodo
	}
	now := m.now()
	task.CreatedAt, task.UpdatedAt = now, now
	m.seq++
	m.tasks[task.ID] = memTask{seq: m.seq, task: cloneTask(*task)}
	return nil
}

func (r memTasks) FindByID(_ context.Context, owner, id uuid.UUID) (*domain.Task, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	mt, ok := r.m.tasks[id]
	if !ok || mt.task.UserID != owner {
		return nil, errs.ErrNotFound
	}
	t := cloneTask(mt.task)
	return &t, nil
}

func (r memTasks) List(_ context.Context, owner uuid.UUID, filter TaskFilter) ([]domain.Task, error) {
	r.m.mu.RLock()
	rows := make([]memTask, 0, len(r.m.tasks))
	for _, mt := range r.m.tasks {
		if mt.task.UserID != owner {
			continue
		}
		if filter.Status.Valid() && mt.task.Status != filter.Status {
			continue
		}
		rows = append(rows, mt)
	}
	r.m.mu.RUnlock()

	col, ok := sortColumns[filter.SortBy]
	if !ok {
		col = "created_at"
	}
	slices.SortFunc(rows, func(a, b memTask) int {
		c := compareColumn(col, a.task, b.task)
		if filter.Desc {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.seq, b.seq)
			if filter.Desc {
				c = -c
			}
		}
		return c
	})

	tasks := make([]domain.Task, 0, len(rows))
	for _, mt := range rows {
		tasks = append(tasks, cloneTask(mt.task))
	}
	return tasks, nil
}

func (r memTasks) Update(_ context.Context, owner, id uuid.UUID, changes map[string]any) (*domain.Task, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()

	mt, ok := m.tasks[id]
	if !ok || mt.task.UserID != owner {
		return nil, errs.ErrNotFound
	}
	t := mt.task
	for col, v := range changes {
		switch col {
		case "title":
			t.Title = fmt.Sprint(v)
		case "description":
			t.Description = fmt.Sprint(v)
		case "status":
			t.Status = domain.TaskStatus(fmt.Sprint(v))
		case "due_date":
			switch due := v.(type) {
			case nil:
				t.DueDate = nil
			case time.Time:
				t.DueDate = &due
			case *time.Time:
				t.DueDate = due
			default:
				return nil, fmt.Errorf("due_date: unsupported value %T", v)
			}
		default:
			return nil, fmt.Errorf("update task: unknown column %q", col)
		}
	}
	t.UpdatedAt = m.now()
	mt.task = t
	m.tasks[id] = mt
	out := cloneTask(t)
	return &out, nil
}

func (r memTasks) Delete(_ context.Context, owner, id uuid.UUID) (*domain.Task, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()

	mt, ok := m.tasks[id]
	if !ok || mt.task.UserID != owner {
		return nil, errs.ErrNotFound
	}
	delete(m.tasks, id)
	return &mt.task, nil
}

// compareColumn orders NULL due dates last, as PostgreSQL does for ASC.
func compareColumn(col string, a, b domain.Task) int {
	switch col {
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "title":
		return cmp.Compare(a.Title, b.Title)
	case "status":
		return cmp.Compare(a.Status, b.Status)
	case "due_date":
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(*b.DueDate)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func cloneTask(t domain.Task) domain.Task {
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	return t
}
