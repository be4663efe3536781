// ABOUTME: Storage for asynchronous pass-through processor task records
// ABOUTME: Records expire an hour after creation; callers poll them by task id
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/callbridge/models"
)

// TaskTTL is the lifetime of a processor task record.
const TaskTTL = time.Hour

const taskPrefix = "task:"

// TaskStore persists ProcessorTask records as JSON.
type TaskStore struct {
	kv *KV
}

func NewTaskStore(kv *KV) *TaskStore {
	return &TaskStore{kv: kv}
}

// Save writes task. ExpireAt is set on first save and the remaining lifetime
// is kept on later status updates.
func (s *TaskStore) Save(task *models.ProcessorTask) error {
	if task.AsyncTaskID == "" {
		return fmt.Errorf("task id is required")
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.ExpireAt.IsZero() {
		task.ExpireAt = task.CreatedAt.Add(TaskTTL)
	}
	task.UpdatedAt = now

	ttl := time.Until(task.ExpireAt)
	if ttl <= 0 {
		return fmt.Errorf("task %s already expired", task.AsyncTaskID)
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	return s.kv.Set([]byte(taskPrefix+task.AsyncTaskID), data, ttl)
}

// Get returns the task with id, or nil when it does not exist or expired.
func (s *TaskStore) Get(id string) (*models.ProcessorTask, error) {
	data, err := s.kv.Get([]byte(taskPrefix + id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var task models.ProcessorTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

// UpdateStatus moves task id to status, recording errMsg for failures.
func (s *TaskStore) UpdateStatus(id, status, errMsg string) error {
	task, err := s.Get(id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	task.Status = status
	task.Error = errMsg
	return s.Save(task)
}

// List returns every live task.
func (s *TaskStore) List() ([]models.ProcessorTask, error) {
	keys, err := s.kv.KeysWithPrefix([]byte(taskPrefix))
	if err != nil {
		return nil, err
	}
	var tasks []models.ProcessorTask
	for _, k := range keys {
		task, err := s.Get(string(k[len(taskPrefix):]))
		if err != nil {
			return nil, err
		}
		if task != nil {
			tasks = append(tasks, *task)
		}
	}
	return tasks, nil
}
