package supervisor

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solanagram/solanagram/internal/config"
	"github.com/solanagram/solanagram/internal/crypto"
	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/models"
)

// fakeRuntime records container operations in memory.
type fakeRuntime struct {
	mu         sync.Mutex
	containers map[string]*ContainerInfo
	createErr  error
	created    int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{containers: map[string]*ContainerInfo{}}
}

func (f *fakeRuntime) CreateAndStart(_ context.Context, spec ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created++
	id := "cid-" + spec.Name
	f.containers[spec.Name] = &ContainerInfo{ID: id, Name: spec.Name, Running: true, Labels: spec.Labels}
	return id, nil
}

func (f *fakeRuntime) Inspect(_ context.Context, name string) (ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[name]
	if !ok {
		return ContainerInfo{}, ErrContainerNotFound
	}
	return *c, nil
}

func (f *fakeRuntime) Stop(_ context.Context, name string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[name]
	if !ok {
		return ErrContainerNotFound
	}
	c.Running = false
	return nil
}

func (f *fakeRuntime) Remove(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[name]; !ok {
		return ErrContainerNotFound
	}
	delete(f.containers, name)
	return nil
}

func (f *fakeRuntime) List(_ context.Context, labels map[string]string) ([]ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ContainerInfo
	for _, c := range f.containers {
		match := true
		for k, v := range labels {
			if c.Labels[k] != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, *c)
		}
	}
	return out, nil
}

// fakeUserRepo serves one pre-wrapped user.
type fakeUserRepo struct {
	store.UserRepository
	user models.User
}

func (f *fakeUserRepo) FindUserByID(context.Context, int64) (models.User, error) {
	return f.user, nil
}

// fakeSessionRepo is an in-memory LoggingSessionRepository.
type fakeSessionRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.LoggingSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{rows: map[int64]*models.LoggingSession{}}
}

func (f *fakeSessionRepo) StartSession(_ context.Context, s models.LoggingSession) (models.LoggingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.UserID == s.UserID && row.ChatID == s.ChatID && row.IsActive {
			return models.LoggingSession{}, store.ErrSessionAlreadyActive
		}
	}
	f.nextID++
	s.ID = f.nextID
	s.IsActive = true
	s.ContainerStatus = models.ContainerStatusCreating
	copied := s
	f.rows[s.ID] = &copied
	return s, nil
}

func (f *fakeSessionRepo) GetByID(_ context.Context, userID, id int64) (models.LoggingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return models.LoggingSession{}, store.ErrSessionNotFound
	}
	return *row, nil
}

func (f *fakeSessionRepo) ListByUser(_ context.Context, userID int64) ([]models.LoggingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LoggingSession
	for _, row := range f.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) ActiveByChat(_ context.Context, userID, chatID int64) (models.LoggingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.UserID == userID && row.ChatID == chatID && row.IsActive {
			return *row, nil
		}
	}
	return models.LoggingSession{}, store.ErrSessionNotFound
}

func (f *fakeSessionRepo) ListByStatus(_ context.Context, status models.ContainerStatus) ([]models.LoggingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LoggingSession
	for _, row := range f.rows {
		if row.ContainerStatus == status {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) MarkRunning(_ context.Context, id int64, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[id]
	row.ContainerID = containerID
	row.ContainerStatus = models.ContainerStatusRunning
	return nil
}

func (f *fakeSessionRepo) MarkError(_ context.Context, id int64, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[id]
	row.IsActive = false
	row.ContainerStatus = models.ContainerStatusError
	row.LastError = lastError
	return nil
}

func (f *fakeSessionRepo) MarkStopped(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[id]
	row.IsActive = false
	row.ContainerStatus = models.ContainerStatusStopped
	return nil
}

func (f *fakeSessionRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeSessionRepo) CleanupOrphaned(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

// fakeListenerRepo implements just enough of ListenerRepository.
type fakeListenerRepo struct {
	store.ListenerRepository
}

func (f *fakeListenerRepo) ListByStatus(context.Context, models.ContainerStatus) ([]models.MessageListener, error) {
	return nil, nil
}

func (f *fakeListenerRepo) CleanupOrphaned(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func testCipher(t *testing.T) *crypto.Cipher {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := crypto.NewCipher(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return c
}

func newTestSupervisor(t *testing.T) (*Supervisor, *fakeRuntime, *fakeSessionRepo, string) {
	cipher := testCipher(t)

	apiHash, err := cipher.WrapString("deadbeefdeadbeef")
	require.NoError(t, err)
	session, err := cipher.Wrap([]byte("opaque-session"))
	require.NoError(t, err)

	runtime := newFakeRuntime()
	sessions := newFakeSessionRepo()
	configsPath := t.TempDir()

	s := &Supervisor{
		runtime: runtime,
		users: &fakeUserRepo{user: models.User{
			UserID:           1,
			Phone:            "+391234567890",
			APIID:            25128314,
			APIHashEncrypted: apiHash,
			TelegramSession:  session,
			IsActive:         true,
		}},
		sessions:  sessions,
		listeners: &fakeListenerRepo{},
		cipher:    cipher,
		cfg: config.Supervisor{
			ProjectName:   "solanagram",
			ConfigsPath:   configsPath,
			LoggerImage:   "solanagram-logger:latest",
			ListenerImage: "solanagram-listener:latest",
		},
		dsn:       "postgres://worker@db/solanagram",
		log:       logger.Nop(),
		nameLocks: map[string]*sync.Mutex{},
	}
	return s, runtime, sessions, configsPath
}

var testChat = models.Chat{
	ID:    -1001234567890,
	Title: "Crypto Signals",
	Type:  models.ChatTypeChannel,
}

func TestStartLogging_Success(t *testing.T) {
	s, runtime, _, _ := newTestSupervisor(t)

	row, err := s.StartLogging(context.Background(), 1, testChat)
	require.NoError(t, err)

	assert.Equal(t, "solanagram-log-1-1001234567890", row.ContainerName)
	assert.Equal(t, models.ContainerStatusRunning, row.ContainerStatus)
	assert.NotEmpty(t, row.ContainerID)

	info, err := runtime.Inspect(context.Background(), row.ContainerName)
	require.NoError(t, err)
	assert.True(t, info.Running)
	assert.Equal(t, "log", info.Labels[LabelType])
	assert.Equal(t, "1", info.Labels[LabelUserID])
}

func TestStartLogging_SecondCallAlreadyActive(t *testing.T) {
	s, _, _, _ := newTestSupervisor(t)

	_, err := s.StartLogging(context.Background(), 1, testChat)
	require.NoError(t, err)

	_, err = s.StartLogging(context.Background(), 1, testChat)
	assert.ErrorIs(t, err, store.ErrSessionAlreadyActive)
}

func TestStartLogging_LaunchFailureDeletesRowAndBundle(t *testing.T) {
	s, runtime, sessions, _ := newTestSupervisor(t)
	runtime.createErr = assert.AnError

	_, err := s.StartLogging(context.Background(), 1, testChat)
	require.ErrorIs(t, err, ErrContainerLaunchFailed)

	assert.Empty(t, sessions.rows, "reserved row must be deleted on launch failure")

	// And the chat can be retried after the failure is cleared.
	runtime.createErr = nil
	_, err = s.StartLogging(context.Background(), 1, testChat)
	require.NoError(t, err)
}

func TestStopLogging_IdempotentAndRemovesContainer(t *testing.T) {
	s, runtime, _, _ := newTestSupervisor(t)

	row, err := s.StartLogging(context.Background(), 1, testChat)
	require.NoError(t, err)

	require.NoError(t, s.StopLogging(context.Background(), 1, row.ID))

	_, err = runtime.Inspect(context.Background(), row.ContainerName)
	assert.ErrorIs(t, err, ErrContainerNotFound)

	// Stopping an already stopped session is a no-op success.
	require.NoError(t, s.StopLogging(context.Background(), 1, row.ID))

	stopped, err := s.sessions.GetByID(context.Background(), 1, row.ID)
	require.NoError(t, err)
	assert.False(t, stopped.IsActive)
	assert.Equal(t, models.ContainerStatusStopped, stopped.ContainerStatus)
}

func TestReap_VanishedContainer(t *testing.T) {
	s, runtime, sessions, _ := newTestSupervisor(t)

	row, err := s.StartLogging(context.Background(), 1, testChat)
	require.NoError(t, err)

	// Simulate the container disappearing out from under the supervisor.
	require.NoError(t, runtime.Remove(context.Background(), row.ContainerName))

	report, err := s.Reap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Vanished)

	reaped := sessions.rows[row.ID]
	assert.Equal(t, models.ContainerStatusError, reaped.ContainerStatus)
	assert.False(t, reaped.IsActive)
	assert.Equal(t, "container vanished", reaped.LastError)
}

func TestReap_ExitedContainer(t *testing.T) {
	s, runtime, sessions, _ := newTestSupervisor(t)

	row, err := s.StartLogging(context.Background(), 1, testChat)
	require.NoError(t, err)

	runtime.mu.Lock()
	runtime.containers[row.ContainerName].Running = false
	runtime.containers[row.ContainerName].ExitCode = 137
	runtime.mu.Unlock()

	report, err := s.Reap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Exited)
	assert.Contains(t, sessions.rows[row.ID].LastError, "137")
}

func TestStartLogging_MissingSession(t *testing.T) {
	s, _, _, _ := newTestSupervisor(t)
	s.users = &fakeUserRepo{user: models.User{UserID: 1, APIID: 1, APIHashEncrypted: []byte{0x01}}}

	_, err := s.StartLogging(context.Background(), 1, testChat)
	assert.ErrorIs(t, err, ErrNoTelegramSession)
}
