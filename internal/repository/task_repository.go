package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tomlord1122/task-backend/internal/domain"
	"github.com/Tomlord1122/task-backend/internal/errs"
)

// TaskFilter narrows and orders a task listing.
type TaskFilter struct {
	// Status is applied only when it is a valid status.
	Status domain.TaskStatus
	// SortBy is an API field name (createdAt, updatedAt, dueDate, title, status).
	SortBy string
	Desc   bool
}

// sortColumns maps sortable API field names to columns. Anything else sorts by created_at.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"title":     "title",
	"status":    "status",
}

// TaskRepository defines task persistence. Every lookup, update and delete is
// scoped by the owning user id.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	FindByID(ctx context.Context, owner, id uuid.UUID) (*domain.Task, error)
	List(ctx context.Context, owner uuid.UUID, filter TaskFilter) ([]domain.Task, error)
	// Update applies column changes and returns the updated row.
	Update(ctx context.Context, owner, id uuid.UUID, changes map[string]any) (*domain.Task, error)
	// Delete removes the row and returns it as it was.
	Delete(ctx context.Context, owner, id uuid.UUID) (*domain.Task, error)
}

// gormTaskRepository implements TaskRepository using GORM
type gormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GORM task repository
func NewGormTaskRepository(db *gorm.DB) TaskRepository {
	return &gormTaskRepository{db: db}
}

// Create inserts task, generating its id when unset.
func (r *gormTaskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		task.ID = id
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *gormTaskRepository) FindByID(ctx context.Context, owner, id uuid.UUID) (*domain.Task, error) {
	var task domain.Task
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, owner).
		Take(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("select task: %w", err)
	}
	return &task, nil
}

func (r *gormTaskRepository) List(ctx context.Context, owner uuid.UUID, filter TaskFilter) ([]domain.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", owner)
	if filter.Status.Valid() {
		q = q.Where("status = ?", filter.Status)
	}

	col, ok := sortColumns[filter.SortBy]
	if !ok {
		col = "created_at"
	}
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: filter.Desc})

	tasks := []domain.Task{}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Update runs a single UPDATE ... WHERE id AND user_id ... RETURNING *, so a
// task owned by someone else is indistinguishable from a missing one.
func (r *gormTaskRepository) Update(ctx context.Context, owner, id uuid.UUID, changes map[string]any) (*domain.Task, error) {
	var task domain.Task
	res := r.db.WithContext(ctx).
		Model(&task).
		Clauses(clause.Returning{}).
		Where("id = ? AND user_id = ?", id, owner).
		Updates(changes)
	if res.Error != nil {
		return nil, fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errs.ErrNotFound
	}
	return &task, nil
}

func (r *gormTaskRepository) Delete(ctx context.Context, owner, id uuid.UUID) (*domain.Task, error) {
	var task domain.Task
	res := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id = ? AND user_id = ?", id, owner).
		Delete(&task)
	if res.Error != nil {
		return nil, fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errs.ErrNotFound
	}
	return &task, nil
}
