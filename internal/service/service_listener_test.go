package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/models"
)

// memoryListenerRepo implements the elaboration-relevant subset of
// store.ListenerRepository in memory.
type memoryListenerRepo struct {
	store.ListenerRepository

	mu           sync.Mutex
	nextID       int64
	listener     models.MessageListener
	elaborations []models.MessageElaboration
}

func (r *memoryListenerRepo) GetByID(_ context.Context, userID, listenerID int64) (models.MessageListener, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener.ID != listenerID || r.listener.UserID != userID {
		return models.MessageListener{}, store.ErrListenerNotFound
	}
	l := r.listener
	l.Elaborations = append([]models.MessageElaboration(nil), r.elaborations...)
	return l, nil
}

func (r *memoryListenerRepo) CreateElaboration(_ context.Context, e models.MessageElaboration) (models.MessageElaboration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.elaborations {
		if existing.Name == e.Name {
			return models.MessageElaboration{}, store.ErrElaborationExists
		}
		if e.Type == models.ElaborationTypeRedirect && existing.Type == models.ElaborationTypeRedirect {
			return models.MessageElaboration{}, store.ErrRedirectExists
		}
	}
	r.nextID++
	e.ID = r.nextID
	e.CreatedAt = time.Now()
	r.elaborations = append(r.elaborations, e)
	return e, nil
}

func newListenerFixture() (*listenerService, *memoryListenerRepo) {
	repo := &memoryListenerRepo{
		listener: models.MessageListener{ID: 5, UserID: 1, SourceChatID: -100, IsActive: true},
	}
	svc := &listenerService{
		listeners: repo,
		logger:    logger.Nop(),
	}
	return svc, repo
}

func TestAddElaboration_Extractor(t *testing.T) {
	svc, _ := newListenerFixture()

	created, err := svc.AddElaboration(context.Background(), 1, models.MessageElaboration{
		ListenerID: 5,
		Type:       models.ElaborationTypeExtractor,
		Name:       "token-address",
		Config:     models.ElaborationConfig{SearchText: "CA:", ValueLength: 44},
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
}

func TestAddElaboration_Validation(t *testing.T) {
	svc, _ := newListenerFixture()
	ctx := context.Background()

	_, err := svc.AddElaboration(ctx, 1, models.MessageElaboration{
		ListenerID: 5, Type: models.ElaborationTypeExtractor, Name: "x",
		Config: models.ElaborationConfig{SearchText: "", ValueLength: 10},
	})
	assert.ErrorIs(t, err, ErrInvalidDataProvided)

	_, err = svc.AddElaboration(ctx, 1, models.MessageElaboration{
		ListenerID: 5, Type: models.ElaborationTypeRedirect, Name: "r",
		Config: models.ElaborationConfig{},
	})
	assert.ErrorIs(t, err, ErrInvalidDataProvided)

	_, err = svc.AddElaboration(ctx, 1, models.MessageElaboration{
		ListenerID: 5, Type: "mystery", Name: "m",
	})
	assert.ErrorIs(t, err, ErrInvalidDataProvided)
}

func TestAddElaboration_SecondRedirectRefused(t *testing.T) {
	svc, _ := newListenerFixture()
	ctx := context.Background()

	_, err := svc.AddElaboration(ctx, 1, models.MessageElaboration{
		ListenerID: 5, Type: models.ElaborationTypeRedirect, Name: "forward",
		Config: models.ElaborationConfig{TargetChatID: -200},
	})
	require.NoError(t, err)

	_, err = svc.AddElaboration(ctx, 1, models.MessageElaboration{
		ListenerID: 5, Type: models.ElaborationTypeRedirect, Name: "forward-2",
		Config: models.ElaborationConfig{TargetChatID: -300},
	})
	assert.ErrorIs(t, err, ErrRedirectAlreadyConfigured)
}

func TestAddElaboration_WrongOwner(t *testing.T) {
	svc, _ := newListenerFixture()

	_, err := svc.AddElaboration(context.Background(), 42, models.MessageElaboration{
		ListenerID: 5, Type: models.ElaborationTypeExtractor, Name: "x",
		Config: models.ElaborationConfig{SearchText: "CA:", ValueLength: 10},
	})
	assert.ErrorIs(t, err, store.ErrListenerNotFound)
}
