package taskclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/task-backend/internal/realtime"
	"github.com/Tomlord1122/task-backend/internal/service"
)

func task(id, title string) service.TaskResponse {
	return service.TaskResponse{ID: id, Title: title, Status: "todo"}
}

func ids(s State) []string {
	out := make([]string, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestCacheRESTTransitions(t *testing.T) {
	c := NewCache()

	c.Pending()
	assert.True(t, c.Snapshot().Loading)
	c.Reject(errors.New("boom"))
	s := c.Snapshot()
	assert.False(t, s.Loading)
	assert.Equal(t, "boom", s.Error)

	c.Pending()
	assert.Empty(t, c.Snapshot().Error, "a new request clears the error")
	c.FetchedAll([]service.TaskResponse{task("2", "b"), task("1", "a")})
	assert.Equal(t, []string{"2", "1"}, ids(c.Snapshot()))

	c.Created(task("3", "c"))
	assert.Equal(t, []string{"3", "2", "1"}, ids(c.Snapshot()))

	c.Fetched(task("2", "b"))
	updated := task("2", "b2")
	c.Updated(updated)
	s = c.Snapshot()
	assert.Equal(t, "b2", s.Tasks[1].Title)
	require.NotNil(t, s.Selected)
	assert.Equal(t, "b2", s.Selected.Title)

	c.Deleted("2")
	s = c.Snapshot()
	assert.Equal(t, []string{"3", "1"}, ids(s))
	assert.Nil(t, s.Selected)

	c.Reject(errors.New("later"))
	c.ClearError()
	assert.Empty(t, c.Snapshot().Error)

	c.Clear()
	assert.Equal(t, State{Tasks: []service.TaskResponse{}}, normalize(c.Snapshot()))
}

func normalize(s State) State {
	if s.Tasks == nil {
		s.Tasks = []service.TaskResponse{}
	}
	return s
}

func TestCacheApplyBroadcast(t *testing.T) {
	c := NewCache()
	c.FetchedAll([]service.TaskResponse{task("1", "a")})

	created := task("2", "b")
	c.Apply(realtime.Event{Event: realtime.EventTaskCreated, Data: realtime.Payload{Task: &created}})
	c.Apply(realtime.Event{Event: realtime.EventTaskCreated, Data: realtime.Payload{Task: &created}})
	assert.Equal(t, []string{"2", "1"}, ids(c.Snapshot()), "created is prepended once")

	missing := task("9", "ghost")
	c.Apply(realtime.Event{Event: realtime.EventTaskUpdated, Data: realtime.Payload{Task: &missing}})
	assert.Equal(t, []string{"2", "1"}, ids(c.Snapshot()), "updates for unknown tasks are ignored")

	renamed := task("1", "renamed")
	c.Apply(realtime.Event{Event: realtime.EventTaskUpdated, Data: realtime.Payload{Task: &renamed}})
	assert.Equal(t, "renamed", c.Snapshot().Tasks[1].Title)

	c.Apply(realtime.Event{Event: realtime.EventTaskDeleted, Data: realtime.Payload{TaskID: "9"}})
	c.Apply(realtime.Event{Event: realtime.EventTaskDeleted, Data: realtime.Payload{TaskID: "2"}})
	assert.Equal(t, []string{"1"}, ids(c.Snapshot()))
}

func TestCacheCreatedAfterBroadcast(t *testing.T) {
	c := NewCache()
	created := task("1", "a")
	c.Apply(realtime.Event{Event: realtime.EventTaskCreated, Data: realtime.Payload{Task: &created}})
	c.Created(created)
	assert.Equal(t, []string{"1"}, ids(c.Snapshot()))
}

func TestCacheLastWriteWins(t *testing.T) {
	c := NewCache()
	c.FetchedAll([]service.TaskResponse{task("1", "a")})

	stale := task("1", "from-broadcast")
	c.Updated(task("1", "from-rest"))
	c.Apply(realtime.Event{Event: realtime.EventTaskUpdated, Data: realtime.Payload{Task: &stale}})
	assert.Equal(t, "from-broadcast", c.Snapshot().Tasks[0].Title)
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewCache()
	c.FetchedAll([]service.TaskResponse{task("1", "a")})
	s := c.Snapshot()
	s.Tasks[0].Title = "mutated"
	assert.Equal(t, "a", c.Snapshot().Tasks[0].Title)
}

func TestCacheApplyLeavesSelectionAlone(t *testing.T) {
	c := NewCache()
	c.FetchedAll([]service.TaskResponse{task("1", "a")})
	c.Fetched(task("9", "detail only"))

	renamed := task("9", "renamed elsewhere")
	c.Apply(realtime.Event{Event: realtime.EventTaskUpdated, Data: realtime.Payload{Task: &renamed}})
	c.Apply(realtime.Event{Event: realtime.EventTaskDeleted, Data: realtime.Payload{TaskID: "9"}})

	s := c.Snapshot()
	assert.Equal(t, []string{"1"}, ids(s))
	require.NotNil(t, s.Selected)
	assert.Equal(t, "detail only", s.Selected.Title)

	c.Fetched(task("1", "a"))
	c.Apply(realtime.Event{Event: realtime.EventTaskDeleted, Data: realtime.Payload{TaskID: "1"}})
	s = c.Snapshot()
	assert.Empty(t, s.Tasks)
	require.NotNil(t, s.Selected, "only REST deletions clear the selection")
}
