package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/providers"
	"github.com/swasthya/hms-backend/internal/domain/repositories"
)

// Mocks

type MockPatientRepo struct {
	mock.Mock
}

func (m *MockPatientRepo) GetByID(ctx context.Context, id int64) (*entities.Patient, error) {
	args := m.Called(ctx, id)
	if fn, ok := args.Get(0).(func(context.Context, int64) *entities.Patient); ok {
		return fn(ctx, id), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

func (m *MockPatientRepo) List(ctx context.Context, hospitalID *int64) ([]*entities.Patient, error) {
	args := m.Called(ctx, hospitalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Patient), args.Error(1)
}

func (m *MockPatientRepo) SearchByName(ctx context.Context, nameQuery string, hospitalID *int64, limit int) ([]*entities.Patient, error) {
	args := m.Called(ctx, nameQuery, hospitalID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Patient), args.Error(1)
}

func (m *MockPatientRepo) UpdateMedicalHistory(ctx context.Context, id int64, history string) error {
	args := m.Called(ctx, id, history)
	return args.Error(0)
}

func (m *MockPatientRepo) GetEmbeddingJSON(ctx context.Context, id int64) (*string, error) {
	args := m.Called(ctx, id)
	if fn, ok := args.Get(0).(func(context.Context, int64) (*string, error)); ok {
		return fn(ctx, id)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

func (m *MockPatientRepo) UpdateEmbedding(ctx context.Context, id int64, embeddingJSON string) error {
	args := m.Called(ctx, id, embeddingJSON)
	return args.Error(0)
}

func (m *MockPatientRepo) ListIDsMissingEmbedding(ctx context.Context, hospitalID *int64, afterID int64, limit int) ([]int64, error) {
	args := m.Called(ctx, hospitalID, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type MockClinicalRecordRepo struct {
	mock.Mock
}

func (m *MockClinicalRecordRepo) ListNotes(ctx context.Context, patientID int64, limit int) ([]*entities.SOAPNote, error) {
	args := m.Called(ctx, patientID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SOAPNote), args.Error(1)
}

func (m *MockClinicalRecordRepo) ListLabReports(ctx context.Context, patientID int64) ([]*entities.LabReport, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LabReport), args.Error(1)
}

type MockAppointmentRepo struct {
	mock.Mock
}

func (m *MockAppointmentRepo) ListUpcoming(ctx context.Context, filter repositories.UpcomingAppointmentFilter) ([]*entities.Appointment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

type MockChatSessionRepo struct {
	mock.Mock
}

func (m *MockChatSessionRepo) Create(ctx context.Context, session *entities.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockChatSessionRepo) GetForUser(ctx context.Context, id, userID int64) (*entities.ChatSession, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ChatSession), args.Error(1)
}

func (m *MockChatSessionRepo) LatestForUser(ctx context.Context, userID int64) (*entities.ChatSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ChatSession), args.Error(1)
}

func (m *MockChatSessionRepo) ListByUser(ctx context.Context, userID int64) ([]*entities.ChatSessionSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ChatSessionSummary), args.Error(1)
}

func (m *MockChatSessionRepo) ListMessages(ctx context.Context, sessionID int64) ([]*entities.ChatMessage, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ChatMessage), args.Error(1)
}

func (m *MockChatSessionRepo) AppendTurn(ctx context.Context, sessionID int64, messages ...*entities.ChatMessage) error {
	args := m.Called(ctx, sessionID, messages)
	return args.Error(0)
}

func (m *MockChatSessionRepo) Delete(ctx context.Context, id, userID int64) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

type MockEmbeddingProvider struct {
	mock.Mock
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string, mode entities.EmbeddingMode) ([]float64, error) {
	args := m.Called(ctx, text, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

func (m *MockEmbeddingProvider) Model() string {
	return "test-embedding"
}

type MockChatProvider struct {
	mock.Mock
}

func (m *MockChatProvider) GenerateContent(ctx context.Context, req *providers.ChatRequest) (*entities.Content, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Content), args.Error(1)
}

// memoryCache is a map-backed CacheProvider
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// recordingBus captures published events and can feed subscribers
type recordingBus struct {
	mu        sync.Mutex
	published []*entities.PatientEvent
	ch        chan *entities.PatientEvent
	err       error
}

func newRecordingBus() *recordingBus {
	return &recordingBus{ch: make(chan *entities.PatientEvent, 10)}
}

func (b *recordingBus) Publish(_ context.Context, _ string, event *entities.PatientEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) Subscribe(_ context.Context, _ string) (<-chan *entities.PatientEvent, error) {
	return b.ch, nil
}

func (b *recordingBus) Unsubscribe(context.Context, string) error { return nil }

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) events() []*entities.PatientEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*entities.PatientEvent(nil), b.published...)
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }
