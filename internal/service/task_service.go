package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Tomlord1122/task-backend/internal/domain"
	"github.com/Tomlord1122/task-backend/internal/errs"
	"github.com/Tomlord1122/task-backend/internal/repository"
)

// Input/Output structs (DTOs) keep the HTTP layer decoupled from the GORM models.

// CreateTaskRequest holds the data needed to create a new task.
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	// DueDate accepts RFC 3339 or YYYY-MM-DD; empty means no due date.
	DueDate *string `json:"dueDate,omitempty"`
}

// UpdateTaskRequest is a partial patch: only fields present in the JSON body
// are touched. A null dueDate or description clears it; a null title or
// status is rejected.
type UpdateTaskRequest struct {
	Title       Optional[string]            `json:"title,omitzero"`
	Description Optional[string]            `json:"description,omitzero"`
	Status      Optional[domain.TaskStatus] `json:"status,omitzero"`
	DueDate     Optional[string]            `json:"dueDate,omitzero"`
}

// ListTasksRequest carries the raw query parameters of a listing.
type ListTasksRequest struct {
	Status    string
	SortBy    string
	SortOrder string
}

// TaskResponse is the representation of a task returned to clients.
type TaskResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      domain.TaskStatus `json:"status"`
	DueDate     *time.Time        `json:"dueDate,omitempty"`
	UserID      string            `json:"userId"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// DailyCount is the number of tasks created on one calendar day (UTC).
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DailyRate is the completion percentage, rounded, of the tasks created on
// or before Date.
type DailyRate struct {
	Date string `json:"date"`
	Rate int    `json:"rate"`
}

// StatsResponse summarises a user's tasks for the dashboard charts.
type StatsResponse struct {
	Total            int                       `json:"total"`
	ByStatus         map[domain.TaskStatus]int `json:"byStatus"`
	CompletionRate   float64                   `json:"completionRate"`
	Overdue          int                       `json:"overdue"`
	CreatedLast7Days []DailyCount              `json:"createdLast7Days"`
	CompletionTrend  []DailyRate               `json:"completionTrend"`
}

// MutationKind names the kind of a task mutation.
type MutationKind string

const (
	TaskCreated MutationKind = "created"
	TaskUpdated MutationKind = "updated"
	TaskDeleted MutationKind = "deleted"
)

// TaskMutation describes a successful store mutation. For deletions Task
// holds the record as it was before removal.
type TaskMutation struct {
	Kind  MutationKind
	Owner uuid.UUID
	Task  TaskResponse
}

// MutationPublisher receives every successful mutation. Publish must not
// block and has no way to fail the originating request.
type MutationPublisher interface {
	Publish(m TaskMutation)
}

type nopPublisher struct{}

func (nopPublisher) Publish(TaskMutation) {}

// TaskService defines the operations for managing tasks. Every method takes
// the authenticated owner explicitly and never touches other users' tasks.
type TaskService interface {
	ListTasks(ctx context.Context, owner uuid.UUID, req ListTasksRequest) ([]TaskResponse, error)
	CreateTask(ctx context.Context, owner uuid.UUID, req CreateTaskRequest) (*TaskResponse, error)
	// GetTask returns errs.ErrNotFound for absent or foreign tasks and
	// errs.ErrInvalidID (which also matches ErrNotFound) for malformed ids.
	GetTask(ctx context.Context, owner uuid.UUID, id string) (*TaskResponse, error)
	UpdateTask(ctx context.Context, owner uuid.UUID, id string, req UpdateTaskRequest) (*TaskResponse, error)
	// DeleteTask returns the id of the removed task.
	DeleteTask(ctx context.Context, owner uuid.UUID, id string) (string, error)
	Stats(ctx context.Context, owner uuid.UUID) (*StatsResponse, error)
}

type taskService struct {
	repo      repository.TaskRepository
	publisher MutationPublisher
	log       *zap.Logger
	now       func() time.Time
}

// NewTaskService creates a TaskService. publisher may be nil.
func NewTaskService(repo repository.TaskRepository, publisher MutationPublisher, log *zap.Logger) TaskService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &taskService{
		repo:      repo,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

func (s *taskService) ListTasks(ctx context.Context, owner uuid.UUID, req ListTasksRequest) ([]TaskResponse, error) {
	filter := repository.TaskFilter{
		Status: domain.TaskStatus(req.Status),
		SortBy: req.SortBy,
		// Only an explicit order other than "desc" sorts ascending.
		Desc: req.SortOrder == "" || req.SortOrder == "desc",
	}
	tasks, err := s.repo.List(ctx, owner, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		responses = append(responses, toTaskResponse(&tasks[i]))
	}
	return responses, nil
}

func (s *taskService) CreateTask(ctx context.Context, owner uuid.UUID, req CreateTaskRequest) (*TaskResponse, error) {
	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}

	task := &domain.Task{
		Title:  title,
		Status: domain.StatusTodo,
		UserID: owner,
	}
	if req.Description != nil {
		desc, err := validateDescription(*req.Description)
		if err != nil {
			return nil, err
		}
		task.Description = desc
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			return nil, err
		}
		task.DueDate = &due
	}

	if err := s.repo.Create(ctx, task); err != nil {
		s.log.Error("create task", zap.Stringer("owner", owner), zap.Error(err))
		return nil, err
	}

	resp := toTaskResponse(task)
	s.publisher.Publish(TaskMutation{Kind: TaskCreated, Owner: owner, Task: resp})
	return &resp, nil
}

func (s *taskService) GetTask(ctx context.Context, owner uuid.UUID, id string) (*TaskResponse, error) {
	taskID, err := parseTaskID(id)
	if err != nil {
		return nil, err
	}
	task, err := s.repo.FindByID(ctx, owner, taskID)
	if err != nil {
		return nil, err
	}
	resp := toTaskResponse(task)
	return &resp, nil
}

func (s *taskService) UpdateTask(ctx context.Context, owner uuid.UUID, id string, req UpdateTaskRequest) (*TaskResponse, error) {
	taskID, err := parseTaskID(id)
	if err != nil {
		return nil, err
	}

	// Validate the whole patch before writing anything.
	changes := map[string]any{}
	if req.Title.Set {
		if !req.Title.Valid {
			return nil, errs.Validation("title", "Title is required")
		}
		title, err := validateTitle(req.Title.Value)
		if err != nil {
			return nil, err
		}
		changes["title"] = title
	}
	if req.Description.Set {
		desc := ""
		if req.Description.Valid {
			if desc, err = validateDescription(req.Description.Value); err != nil {
				return nil, err
			}
		}
		changes["description"] = desc
	}
	if req.Status.Set {
		if !req.Status.Valid || !req.Status.Value.Valid() {
			return nil, errs.Validation("status", "Invalid status")
		}
		changes["status"] = req.Status.Value
	}
	if req.DueDate.Set {
		if !req.DueDate.Valid || req.DueDate.Value == "" {
			changes["due_date"] = nil
		} else {
			due, err := parseDueDate(req.DueDate.Value)
			if err != nil {
				return nil, err
			}
			changes["due_date"] = due
		}
	}

	var task *domain.Task
	if len(changes) == 0 {
		task, err = s.repo.FindByID(ctx, owner, taskID)
	} else {
		task, err = s.repo.Update(ctx, owner, taskID, changes)
	}
	if err != nil {
		return nil, err
	}

	resp := toTaskResponse(task)
	if len(changes) > 0 {
		s.publisher.Publish(TaskMutation{Kind: TaskUpdated, Owner: owner, Task: resp})
	}
	return &resp, nil
}

func (s *taskService) DeleteTask(ctx context.Context, owner uuid.UUID, id string) (string, error) {
	taskID, err := parseTaskID(id)
	if err != nil {
		return "", err
	}
	task, err := s.repo.Delete(ctx, owner, taskID)
	if err != nil {
		return "", err
	}
	s.publisher.Publish(TaskMutation{Kind: TaskDeleted, Owner: owner, Task: toTaskResponse(task)})
	return task.ID.String(), nil
}

// Stats computes the dashboard summary: status distribution, completion
// rate, overdue count, and per-day creation counts and cumulative completion
// rates over the last seven days.
func (s *taskService) Stats(ctx context.Context, owner uuid.UUID) (*StatsResponse, error) {
	tasks, err := s.repo.List(ctx, owner, repository.TaskFilter{Desc: true})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	stats := &StatsResponse{
		Total:    len(tasks),
		ByStatus: make(map[domain.TaskStatus]int, len(domain.TaskStatuses)),
	}
	for _, st := range domain.TaskStatuses {
		stats.ByStatus[st] = 0
	}

	today := now.Truncate(24 * time.Hour)
	days := make([]DailyCount, 7)
	index := make(map[string]int, 7)
	for i := range days {
		d := today.AddDate(0, 0, i-6).Format(time.DateOnly)
		days[i] = DailyCount{Date: d}
		index[d] = i
	}

	// Cumulative totals per day for the completion trend.
	upTo := make([]int, len(days))
	doneUpTo := make([]int, len(days))
	for _, t := range tasks {
		stats.ByStatus[t.Status]++
		if t.Status != domain.StatusDone && t.DueDate != nil && t.DueDate.Before(now) {
			stats.Overdue++
		}
		created := t.CreatedAt.UTC().Format(time.DateOnly)
		if i, ok := index[created]; ok {
			days[i].Count++
		}
		for i := range days {
			if created <= days[i].Date {
				upTo[i]++
				if t.Status == domain.StatusDone {
					doneUpTo[i]++
				}
			}
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.ByStatus[domain.StatusDone]) / float64(stats.Total) * 100
	}
	stats.CreatedLast7Days = days

	stats.CompletionTrend = make([]DailyRate, len(days))
	for i, d := range days {
		stats.CompletionTrend[i] = DailyRate{Date: d.Date}
		if upTo[i] > 0 {
			stats.CompletionTrend[i].Rate = int(math.Round(float64(doneUpTo[i]) / float64(upTo[i]) * 100))
		}
	}
	return stats, nil
}

func toTaskResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		DueDate:     t.DueDate,
		UserID:      t.UserID.String(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func parseTaskID(id string) (uuid.UUID, error) {
	parsed, err := uuid.FromString(id)
	if err != nil || parsed == uuid.Nil {
		return uuid.Nil, errs.ErrInvalidID
	}
	return parsed, nil
}

// validateTitle checks the submitted title and returns it trimmed. The length
// limit applies to the submitted value, counted in characters.
func validateTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", errs.Validation("title", "Title is required")
	}
	if utf8.RuneCountInString(title) > domain.MaxTitleLength {
		return "", errs.Validation("title", fmt.Sprintf("Title cannot be more than %d characters", domain.MaxTitleLength))
	}
	return trimmed, nil
}

func validateDescription(desc string) (string, error) {
	if utf8.RuneCountInString(desc) > domain.MaxDescriptionLength {
		return "", errs.Validation("description", fmt.Sprintf("Description cannot be more than %d characters", domain.MaxDescriptionLength))
	}
	return strings.TrimSpace(desc), nil
}

func parseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, errs.Validation("dueDate", "Invalid due date")
}
