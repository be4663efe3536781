// ABOUTME: Shared fixtures for handler tests
// ABOUTME: Wires a scripted CRM plugin to in-memory SQLite, Badger and the real auth resolver
package handlers

import (
	"context"
	"sync"
	"testing"

	"github.com/harperreed/callbridge/auth"
	"github.com/harperreed/callbridge/cache"
	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/db"
	"github.com/harperreed/callbridge/metrics"
	"github.com/harperreed/callbridge/models"
	"github.com/harperreed/callbridge/processor"
	"github.com/stretchr/testify/require"
)

const (
	testPlatform = "testcrm"
	testUserID   = "u-1"
)

// fakeCRM implements the mandatory capabilities plus api key auth. Optional
// capabilities are added per test with RegisterConnectorInterface.
type fakeCRM struct {
	mu       sync.Mutex
	creates  []connector.CreateCallLogRequest
	updates  []connector.UpdateCallLogRequest
	createFn func(req connector.CreateCallLogRequest) (*connector.CreateCallLogResult, error)
	updateFn func(req connector.UpdateCallLogRequest) (*connector.UpdateCallLogResult, error)
}

func (f *fakeCRM) GetAuthType(context.Context, connector.AuthTypeRequest) (string, error) {
	return models.AuthTypeAPIKey, nil
}

func (f *fakeCRM) GetBasicAuth(req connector.BasicAuthRequest) string {
	return "key:" + req.APIKey
}

func (f *fakeCRM) CreateCallLog(_ context.Context, req connector.CreateCallLogRequest) (*connector.CreateCallLogResult, error) {
	f.mu.Lock()
	f.creates = append(f.creates, req)
	f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(req)
	}
	return &connector.CreateCallLogResult{LogID: "crm-1"}, nil
}

func (f *fakeCRM) UpdateCallLog(_ context.Context, req connector.UpdateCallLogRequest) (*connector.UpdateCallLogResult, error) {
	f.mu.Lock()
	f.updates = append(f.updates, req)
	f.mu.Unlock()
	if f.updateFn != nil {
		return f.updateFn(req)
	}
	return &connector.UpdateCallLogResult{UpdatedNote: req.Note}, nil
}

// recordingProcessors captures invocations instead of calling endpoints.
type recordingProcessors struct {
	stages []string
}

func (r *recordingProcessors) Run(_ context.Context, inv processor.Invocation) []string {
	r.stages = append(r.stages, inv.Stage)
	return []string{"task-" + inv.Stage}
}

type fixture struct {
	crm        *fakeCRM
	registry   *connector.Registry
	users      *db.UserRepository
	calls      *db.CallLogRepository
	messages   *db.MessageLogRepository
	proxies    *db.ProxyConfigRepository
	notes      *cache.NoteCache
	processors *recordingProcessors
	metrics    *metrics.Recorder
	deps       Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sqlDB, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	kv, err := cache.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	f := &fixture{
		crm:        &fakeCRM{},
		registry:   connector.NewRegistry(),
		users:      db.NewUserRepository(sqlDB),
		calls:      db.NewCallLogRepository(sqlDB),
		messages:   db.NewMessageLogRepository(sqlDB),
		proxies:    db.NewProxyConfigRepository(sqlDB),
		notes:      cache.NewNoteCache(kv, 0),
		processors: &recordingProcessors{},
		metrics:    metrics.NewRecorder(),
	}
	require.NoError(t, f.registry.RegisterConnector(testPlatform, f.crm, nil))
	require.NoError(t, f.users.Save(context.Background(), &models.User{
		ID:             testUserID,
		Platform:       testPlatform,
		AccessToken:    "secret",
		TimezoneOffset: "+00:00",
	}))

	f.deps = Deps{
		Registry:    f.registry,
		Users:       f.users,
		CallLogs:    f.calls,
		MessageLogs: f.messages,
		Proxies:     f.proxies,
		Notes:       f.notes,
		Processors:  f.processors,
		Auth:        auth.NewResolver(f.users),
		Metrics:     f.metrics,
	}
	return f
}

func (f *fixture) override(t *testing.T, name string, fn any) {
	t.Helper()
	require.NoError(t, f.registry.RegisterConnectorInterface(testPlatform, name, fn))
}

func intPtr(v int) *int {
	return &v
}
