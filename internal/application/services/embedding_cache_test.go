package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/swasthya/hms-backend/internal/adapters/cache"
	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/providers"
)

type failingLock struct{}

func (failingLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, providers.ErrLockNotAcquired
}

func TestEmbeddingCache_HitSkipsProvider(t *testing.T) {
	patients := new(MockPatientRepo)
	records := new(MockClinicalRecordRepo)
	provider := new(MockEmbeddingProvider)
	c := NewEmbeddingCache(patients, records, NewEmbeddingService(provider, nil, time.Minute), nil, nil)

	vec, ok := c.GetOrCreate(context.Background(), &entities.Patient{ID: 1, EmbeddingJSON: strPtr("[0.5,0.5]")})
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 0.5}, vec)
	provider.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything, mock.Anything)
}

func TestEmbeddingCache_MissComputesAndPersists(t *testing.T) {
	patients := new(MockPatientRepo)
	records := new(MockClinicalRecordRepo)
	provider := new(MockEmbeddingProvider)
	c := NewEmbeddingCache(patients, records, NewEmbeddingService(provider, nil, time.Minute), nil, nil)

	patient := &entities.Patient{ID: 4, FirstName: "Asha", LastName: "Verma", Gender: "F", Address: "Lake Rd", EmbeddingJSON: strPtr("{corrupt")}
	records.On("ListNotes", mock.Anything, int64(4), MaxComposedNotes).Return([]*entities.SOAPNote{}, nil)
	provider.On("Embed", mock.Anything, "Patient: Asha Verma, Female.\nAddress: Lake Rd.", entities.EmbeddingModeDocument).
		Return([]float64{0.1, 0.9}, nil)
	patients.On("UpdateEmbedding", mock.Anything, int64(4), "[0.1,0.9]").Return(nil)

	vec, ok := c.GetOrCreate(context.Background(), patient)
	require.True(t, ok)
	assert.Equal(t, []float64{0.1, 0.9}, vec)
	require.NotNil(t, patient.EmbeddingJSON)
	assert.Equal(t, "[0.1,0.9]", *patient.EmbeddingJSON)
	patients.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestEmbeddingCache_ProviderFailureIsAbsent(t *testing.T) {
	patients := new(MockPatientRepo)
	records := new(MockClinicalRecordRepo)
	provider := new(MockEmbeddingProvider)
	c := NewEmbeddingCache(patients, records, NewEmbeddingService(provider, nil, time.Minute), nil, nil)

	records.On("ListNotes", mock.Anything, int64(4), MaxComposedNotes).Return([]*entities.SOAPNote{}, nil)
	provider.On("Embed", mock.Anything, mock.Anything, entities.EmbeddingModeDocument).Return(nil, errors.New("down"))

	_, ok := c.GetOrCreate(context.Background(), &entities.Patient{ID: 4})
	assert.False(t, ok)
	patients.AssertNotCalled(t, "UpdateEmbedding", mock.Anything, mock.Anything, mock.Anything)
}

func TestEmbeddingCache_NoCredentials(t *testing.T) {
	c := NewEmbeddingCache(new(MockPatientRepo), new(MockClinicalRecordRepo), NewEmbeddingService(nil, nil, time.Minute), nil, nil)

	_, ok := c.GetOrCreate(context.Background(), &entities.Patient{ID: 4})
	assert.False(t, ok)
}

func TestEmbeddingCache_PersistFailureStillReturnsVector(t *testing.T) {
	patients := new(MockPatientRepo)
	records := new(MockClinicalRecordRepo)
	provider := new(MockEmbeddingProvider)
	c := NewEmbeddingCache(patients, records, NewEmbeddingService(provider, nil, time.Minute), nil, nil)

	records.On("ListNotes", mock.Anything, int64(4), MaxComposedNotes).Return([]*entities.SOAPNote{}, nil)
	provider.On("Embed", mock.Anything, mock.Anything, mock.Anything).Return([]float64{1}, nil)
	patients.On("UpdateEmbedding", mock.Anything, int64(4), "[1]").Return(errors.New("read only"))

	vec, ok := c.GetOrCreate(context.Background(), &entities.Patient{ID: 4})
	assert.True(t, ok)
	assert.Equal(t, []float64{1}, vec)
}

func TestEmbeddingCache_LockedReloadReusesConcurrentValue(t *testing.T) {
	patients := new(MockPatientRepo)
	records := new(MockClinicalRecordRepo)
	provider := new(MockEmbeddingProvider)
	c := NewEmbeddingCache(patients, records, NewEmbeddingService(provider, nil, time.Minute), cache.NewLocalLock(), nil)

	patients.On("GetEmbeddingJSON", mock.Anything, int64(9)).Return(strPtr("[0.3]"), nil)

	patient := &entities.Patient{ID: 9}
	vec, ok := c.GetOrCreate(context.Background(), patient)
	require.True(t, ok)
	assert.Equal(t, []float64{0.3}, vec)
	assert.Equal(t, "[0.3]", *patient.EmbeddingJSON)
	provider.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything, mock.Anything)
}

func TestEmbeddingCache_ConcurrentMissesEmbedOnce(t *testing.T) {
	patients := new(MockPatientRepo)
	records := new(MockClinicalRecordRepo)
	provider := new(MockEmbeddingProvider)
	c := NewEmbeddingCache(patients, records, NewEmbeddingService(provider, nil, time.Minute), cache.NewLocalLock(), nil)

	var mu sync.Mutex
	var stored *string
	patients.On("GetEmbeddingJSON", mock.Anything, int64(3)).Return(func(context.Context, int64) (*string, error) {
		mu.Lock()
		defer mu.Unlock()
		return stored, nil
	})
	patients.On("UpdateEmbedding", mock.Anything, int64(3), "[0.7]").Run(func(args mock.Arguments) {
		mu.Lock()
		defer mu.Unlock()
		v := args.String(2)
		stored = &v
	}).Return(nil)
	records.On("ListNotes", mock.Anything, int64(3), MaxComposedNotes).Return([]*entities.SOAPNote{}, nil)
	provider.On("Embed", mock.Anything, mock.Anything, entities.EmbeddingModeDocument).Return([]float64{0.7}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vec, ok := c.GetOrCreate(context.Background(), &entities.Patient{ID: 3})
			assert.True(t, ok)
			assert.Equal(t, []float64{0.7}, vec)
		}()
	}
	wg.Wait()

	provider.AssertNumberOfCalls(t, "Embed", 1)
}

func TestEmbeddingCache_LockFailureFallsBackToUnlocked(t *testing.T) {
	patients := new(MockPatientRepo)
	records := new(MockClinicalRecordRepo)
	provider := new(MockEmbeddingProvider)
	c := NewEmbeddingCache(patients, records, NewEmbeddingService(provider, nil, time.Minute), failingLock{}, nil)

	records.On("ListNotes", mock.Anything, int64(2), MaxComposedNotes).Return([]*entities.SOAPNote{}, nil)
	provider.On("Embed", mock.Anything, mock.Anything, mock.Anything).Return([]float64{0.2}, nil)
	patients.On("UpdateEmbedding", mock.Anything, int64(2), "[0.2]").Return(nil)

	vec, ok := c.GetOrCreate(context.Background(), &entities.Patient{ID: 2})
	assert.True(t, ok)
	assert.Equal(t, []float64{0.2}, vec)
	patients.AssertNotCalled(t, "GetEmbeddingJSON", mock.Anything, mock.Anything)
}
