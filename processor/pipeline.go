// ABOUTME: Runs the pass-through processors configured for a user around a log operation
// ABOUTME: Sync processors may rewrite the payload, async ones are queued and tracked as tasks
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/harperreed/callbridge/models"
	"github.com/oklog/ulid/v2"
)

// TaskStore persists async task state. cache.TaskStore satisfies it.
type TaskStore interface {
	Save(task *models.ProcessorTask) error
	Get(id string) (*models.ProcessorTask, error)
	UpdateStatus(id, status, errMsg string) error
}

// Observer receives one event per processor invocation.
type Observer interface {
	ProcessorRun(stage, mode, outcome string)
}

type noopObserver struct{}

func (noopObserver) ProcessorRun(string, string, string) {}

// RetryConfig bounds the retries of async jobs.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the retry policy used when none is given.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Pipeline invokes processors. Call Start once to begin serving async jobs.
type Pipeline struct {
	client   *http.Client
	tasks    TaskStore
	queue    Queue
	observer Observer
	logger   *slog.Logger
	retry    RetryConfig
}

type Option func(*Pipeline)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.client = c }
}

func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithRetry(r RetryConfig) Option {
	return func(p *Pipeline) { p.retry = r }
}

func NewPipeline(tasks TaskStore, queue Queue, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:   &http.Client{Timeout: 30 * time.Second},
		tasks:    tasks,
		queue:    queue,
		observer: noopObserver{},
		logger:   slog.Default(),
		retry:    DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins consuming async jobs from the queue.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.queue == nil {
		return nil
	}
	return p.queue.Start(ctx, p.handleJob)
}

// Invocation is one run of the processors of a stage.
type Invocation struct {
	User     *models.User
	Platform string
	Stage    string
	// CacheKey correlates async tasks with the operation, usually the session id.
	CacheKey string
	// Data is a pointer to the payload; sync processors may replace what it points to.
	Data any
}

// Run invokes every processor of inv.Stage in configuration order and returns
// the ids of the async tasks it created. Processor failures are logged and
// never fail the operation.
func (p *Pipeline) Run(ctx context.Context, inv Invocation) []string {
	configs, err := ParseConfigs(inv.User)
	if err != nil {
		p.logger.Warn("Ignoring invalid processor settings", "user_id", inv.User.ID, "error", err)
		return nil
	}

	var taskIDs []string
	for _, cfg := range ForStage(configs, inv.Stage) {
		payload, err := json.Marshal(inv.Data)
		if err != nil {
			p.logger.Error("Failed to encode processor payload", "processor", cfg.ID, "error", err)
			return taskIDs
		}
		body := Payload{UserID: inv.User.ID, Platform: inv.Platform, Stage: inv.Stage, Data: payload}

		if cfg.Async {
			id, err := p.enqueue(ctx, cfg, body, inv.CacheKey)
			if err != nil {
				p.observer.ProcessorRun(inv.Stage, cfg.mode(), "error")
				p.logger.Warn("Failed to queue processor", "processor", cfg.ID, "user_id", inv.User.ID, "error", err)
				continue
			}
			taskIDs = append(taskIDs, id)
			continue
		}

		replaced, err := p.call(ctx, cfg, body)
		if err != nil {
			p.observer.ProcessorRun(inv.Stage, cfg.mode(), "error")
			p.logger.Warn("Processor failed, keeping original data", "processor", cfg.ID, "stage", inv.Stage, "error", err)
			continue
		}
		if len(replaced) > 0 && !bytes.Equal(replaced, []byte("null")) {
			if err := replaceData(inv.Data, replaced); err != nil {
				p.observer.ProcessorRun(inv.Stage, cfg.mode(), "error")
				p.logger.Warn("Processor returned unusable data", "processor", cfg.ID, "error", err)
				continue
			}
		}
		p.observer.ProcessorRun(inv.Stage, cfg.mode(), "success")
	}
	return taskIDs
}

// Task returns the async task with id, or nil once it expired.
func (p *Pipeline) Task(ctx context.Context, id string) (*models.ProcessorTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.tasks == nil {
		return nil, nil
	}
	return p.tasks.Get(id)
}

func (p *Pipeline) enqueue(ctx context.Context, cfg Config, body Payload, cacheKey string) (string, error) {
	if p.queue == nil || p.tasks == nil {
		return "", errors.New("async processors are not configured")
	}
	task := &models.ProcessorTask{
		AsyncTaskID: ulid.Make().String(),
		Status:      models.TaskStatusInitialized,
		UserID:      body.UserID,
		ProcessorID: cfg.ID,
		Stage:       body.Stage,
		CacheKey:    cacheKey,
	}
	if err := p.tasks.Save(task); err != nil {
		return "", fmt.Errorf("failed to save task: %w", err)
	}
	if err := p.queue.Enqueue(ctx, Job{TaskID: task.AsyncTaskID, Processor: cfg, Payload: body}); err != nil {
		if uerr := p.tasks.UpdateStatus(task.AsyncTaskID, models.TaskStatusFailed, err.Error()); uerr != nil {
			p.logger.Warn("Failed to record task failure", "task_id", task.AsyncTaskID, "processor", cfg.ID, "error", uerr)
		}
		return "", err
	}
	return task.AsyncTaskID, nil
}

func (p *Pipeline) handleJob(ctx context.Context, job Job) {
	logger := p.logger.With("task_id", job.TaskID, "processor", job.Processor.ID)
	if err := p.tasks.UpdateStatus(job.TaskID, models.TaskStatusProcessing, ""); err != nil {
		logger.Warn("Task vanished before processing", "error", err)
		return
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retry.InitialInterval
	b.MaxInterval = p.retry.MaxInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, p.retry.MaxRetries), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		_, err := p.call(ctx, job.Processor, job.Payload)
		var status *statusError
		if errors.As(err, &status) && status.code >= 400 && status.code < 500 && status.code != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		if err != nil {
			logger.Debug("Processor attempt failed", "attempt", attempt, "error", err)
		}
		return err
	}, policy)

	if err != nil {
		p.observer.ProcessorRun(job.Payload.Stage, job.Processor.mode(), "error")
		logger.Warn("Async processor failed", "attempts", attempt, "error", err)
		if uerr := p.tasks.UpdateStatus(job.TaskID, models.TaskStatusFailed, err.Error()); uerr != nil {
			logger.Warn("Failed to record task failure", "error", uerr)
		}
		return
	}
	p.observer.ProcessorRun(job.Payload.Stage, job.Processor.mode(), "success")
	if err := p.tasks.UpdateStatus(job.TaskID, models.TaskStatusCompleted, ""); err != nil {
		logger.Warn("Failed to record task completion", "error", err)
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("processor responded with status %d: %s", e.code, e.body)
}

// call posts body to the processor and returns the data field of its answer.
func (p *Pipeline) call(ctx context.Context, cfg Config, body Payload) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call processor: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read processor response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(raw))}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var out struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode processor response: %w", err)
	}
	return out.Data, nil
}

// replaceData decodes raw into a fresh value of dst's element type and stores it in dst.
func replaceData(dst any, raw json.RawMessage) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("processor data must be a non-nil pointer, got %T", dst)
	}
	fresh := reflect.New(v.Elem().Type())
	if err := json.Unmarshal(raw, fresh.Interface()); err != nil {
		return fmt.Errorf("failed to decode processor data: %w", err)
	}
	v.Elem().Set(fresh.Elem())
	return nil
}
