// Package testutil provides centralized test mocks, fixtures, and helpers.
// All test files should import mocks from here instead of defining their own.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/runixer/mediarelay/internal/media"
	"github.com/runixer/mediarelay/internal/storage"
	"github.com/runixer/mediarelay/internal/telegram"
	"github.com/stretchr/testify/mock"
)

// MockBotAPI implements telegram.BotAPI for tests.
type MockBotAPI struct {
	mock.Mock
}

func (m *MockBotAPI) SendMessage(ctx context.Context, req telegram.SendMessageRequest) (*telegram.Message, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegram.Message), args.Error(1)
}

func (m *MockBotAPI) SendAudio(ctx context.Context, req telegram.SendAudioRequest) (*telegram.Message, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegram.Message), args.Error(1)
}

func (m *MockBotAPI) SendVideo(ctx context.Context, req telegram.SendVideoRequest) (*telegram.Message, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegram.Message), args.Error(1)
}

func (m *MockBotAPI) SendPhoto(ctx context.Context, req telegram.SendPhotoRequest) (*telegram.Message, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegram.Message), args.Error(1)
}

func (m *MockBotAPI) SendMediaGroup(ctx context.Context, req telegram.SendMediaGroupRequest) ([]telegram.Message, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]telegram.Message), args.Error(1)
}

func (m *MockBotAPI) SetMyCommands(ctx context.Context, req telegram.SetMyCommandsRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockBotAPI) SetWebhook(ctx context.Context, req telegram.SetWebhookRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockBotAPI) SendChatAction(ctx context.Context, req telegram.SendChatActionRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockBotAPI) GetToken() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockBotAPI) GetUpdates(ctx context.Context, req telegram.GetUpdatesRequest) ([]telegram.Update, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]telegram.Update), args.Error(1)
}

// MockStorage implements the storage repository interfaces for tests.
type MockStorage struct {
	mock.Mock
}

// DeliveryRepository methods

func (m *MockStorage) AddDelivery(ctx context.Context, d storage.Delivery) (int64, error) {
	args := m.Called(ctx, d)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) GetDeliveries(ctx context.Context, filter storage.DeliveryFilter, limit int) ([]storage.Delivery, error) {
	args := m.Called(ctx, filter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Delivery), args.Error(1)
}

func (m *MockStorage) GetOutcomeCounts(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockStorage) CleanupDeliveries(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

// UserRepository methods

func (m *MockStorage) UpsertUser(user storage.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) CountUsers() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

// MaintenanceRepository methods

func (m *MockStorage) GetDBSize() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) GetTableSizes() ([]storage.TableSize, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.TableSize), args.Error(1)
}

// FakeOutput is one file FakeFetcher produces per job.
type FakeOutput struct {
	Ext  string
	Size int64
}

// FakeFetcher stands in for the yt-dlp dispatcher. For every job it creates
// the scripted outputs under the job's naming pattern, or fails with Err.
// Files are sparse, so ceiling-sized outputs cost no disk.
type FakeFetcher struct {
	Outputs []FakeOutput
	Err     error
	Panic   interface{}
	// Before runs at the start of each job, e.g. to block or to inspect state.
	Before func(job media.Job)

	mu   sync.Mutex
	jobs []media.Job
}

func (f *FakeFetcher) Fetch(ctx context.Context, job media.Job) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()

	if f.Before != nil {
		f.Before(job)
	}
	if f.Panic != nil {
		panic(f.Panic)
	}
	if f.Err != nil {
		return f.Err
	}

	if err := os.MkdirAll(job.Pattern.Dir, 0o755); err != nil {
		return err
	}
	for _, out := range f.Outputs {
		path := filepath.Join(job.Pattern.Dir, fmt.Sprintf("%s.%s", job.Pattern.Prefix, out.Ext))
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := file.Truncate(out.Size); err != nil {
			file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Jobs returns the jobs received so far.
func (f *FakeFetcher) Jobs() []media.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]media.Job(nil), f.jobs...)
}
