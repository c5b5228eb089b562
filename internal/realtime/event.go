// Package realtime fans task mutations out to websocket clients.
package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/Tomlord1122/task-backend/internal/service"
)

// EventName is the channel event a payload is delivered under.
type EventName string

const (
	EventTaskCreated EventName = "task_created"
	EventTaskUpdated EventName = "task_updated"
	EventTaskDeleted EventName = "task_deleted"
)

// NotificationType tells clients how to style the notification.
type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyInfo    NotificationType = "info"
	NotifyWarning NotificationType = "warning"
)

// Payload is the body of a broadcast: a human-readable notification plus the
// task (created/updated) or its id (deleted).
type Payload struct {
	Type    NotificationType      `json:"type"`
	Title   string                `json:"title"`
	Message string                `json:"message"`
	Task    *service.TaskResponse `json:"task,omitempty"`
	TaskID  string                `json:"taskId,omitempty"`
}

// Event is the frame written to (and accepted from) the socket.
type Event struct {
	Event EventName `json:"event"`
	Data  Payload   `json:"data"`
}

// NewEvent turns a store mutation into its broadcast event.
func NewEvent(m service.TaskMutation) Event {
	task := m.Task
	switch m.Kind {
	case service.TaskCreated:
		return taskEvent(EventTaskCreated, &task)
	case service.TaskUpdated:
		return taskEvent(EventTaskUpdated, &task)
	default:
		return deletedEvent(task.ID, task.Title)
	}
}

func taskEvent(name EventName, task *service.TaskResponse) Event {
	ev := Event{Event: name, Data: Payload{Task: task}}
	if name == EventTaskCreated {
		ev.Data.Type = NotifySuccess
		ev.Data.Title = "New Task Created"
		ev.Data.Message = fmt.Sprintf("Task \"%s\" has been created", task.Title)
	} else {
		ev.Data.Type = NotifyInfo
		ev.Data.Title = "Task Updated"
		ev.Data.Message = fmt.Sprintf("Task \"%s\" has been updated", task.Title)
	}
	return ev
}

func deletedEvent(id, title string) Event {
	return Event{Event: EventTaskDeleted, Data: Payload{
		Type:    NotifyWarning,
		Title:   "Task Deleted",
		Message: fmt.Sprintf("Task \"%s\" has been deleted", title),
		TaskID:  id,
	}}
}

// inboundEvent re-formats a client-emitted frame. Clients send the task (or,
// for deletions, taskId and optionally the task for its title); notification
// fields are always rebuilt server-side.
func inboundEvent(raw []byte) (Event, bool) {
	var in Event
	if err := json.Unmarshal(raw, &in); err != nil {
		return Event{}, false
	}
	switch in.Event {
	case EventTaskCreated, EventTaskUpdated:
		if in.Data.Task == nil || in.Data.Task.ID == "" {
			return Event{}, false
		}
		return taskEvent(in.Event, in.Data.Task), true
	case EventTaskDeleted:
		id, title := in.Data.TaskID, ""
		if in.Data.Task != nil {
			title = in.Data.Task.Title
			if id == "" {
				id = in.Data.Task.ID
			}
		}
		if id == "" {
			return Event{}, false
		}
		return deletedEvent(id, title), true
	}
	return Event{}, false
}
