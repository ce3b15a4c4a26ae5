// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/solanagram/solanagram/internal/config"
	"github.com/solanagram/solanagram/internal/crypto"
	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/models"
)

const (
	// graceStop is how long a worker gets between SIGTERM and SIGKILL.
	graceStop = 10 * time.Second

	// errorRetention is how long a row may sit in status=error before the
	// cleanup loop retires it to removed.
	errorRetention = 7 * 24 * time.Hour
)

// ErrMissingCredentials is returned when a worker launch is requested for a
// user without api credentials.
var ErrMissingCredentials = errors.New("telegram credentials not set")

// ErrNoTelegramSession is returned when the user has credentials but never
// completed sign-in (or the authorization was revoked).
var ErrNoTelegramSession = errors.New("no telegram session available")

// Supervisor creates, tracks, and reaps the per-chat worker containers.
// One start/stop is in flight per container name at a time.
type Supervisor struct {
	runtime   ContainerRuntime
	users     store.UserRepository
	sessions  store.LoggingSessionRepository
	listeners store.ListenerRepository
	cipher    *crypto.Cipher
	cfg       config.Supervisor
	dsn       string
	log       *logger.Logger

	mu        sync.Mutex
	nameLocks map[string]*sync.Mutex
}

// New wires a Supervisor.
func New(runtime ContainerRuntime, storages *store.Storages, cipher *crypto.Cipher, cfg config.Supervisor, dsn string, log *logger.Logger) *Supervisor {
	return &Supervisor{
		runtime:   runtime,
		users:     storages.Users,
		sessions:  storages.LoggingSessions,
		listeners: storages.Listeners,
		cipher:    cipher,
		cfg:       cfg,
		dsn:       dsn,
		log:       log,
		nameLocks: make(map[string]*sync.Mutex),
	}
}

// lockName serializes runtime operations per container name.
func (s *Supervisor) lockName(name string) func() {
	s.mu.Lock()
	lock, ok := s.nameLocks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.nameLocks[name] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// workerCredentials resolves and decrypts everything a worker needs.
func (s *Supervisor) workerCredentials(ctx context.Context, userID int64) (user models.User, apiHash string, sessionBlob []byte, err error) {
	user, err = s.users.FindUserByID(ctx, userID)
	if err != nil {
		return models.User{}, "", nil, err
	}
	if !user.HasAPICredentials() {
		return models.User{}, "", nil, ErrMissingCredentials
	}
	if !user.HasTelegramSession() {
		return models.User{}, "", nil, ErrNoTelegramSession
	}

	apiHash, err = s.cipher.UnwrapString(user.APIHashEncrypted)
	if err != nil {
		return models.User{}, "", nil, err
	}
	sessionBlob, err = s.cipher.Unwrap(user.TelegramSession)
	if err != nil {
		return models.User{}, "", nil, err
	}
	return user, apiHash, sessionBlob, nil
}

// StartLogging reserves the session row, materializes the bundle, and
// launches the logging worker. Every failure before a running container
// deletes the reserved row and wipes the bundle.
func (s *Supervisor) StartLogging(ctx context.Context, userID int64, chat models.Chat) (models.LoggingSession, error) {
	user, apiHash, sessionBlob, err := s.workerCredentials(ctx, userID)
	if err != nil {
		return models.LoggingSession{}, err
	}

	name := LogContainerName(userID, chat.ID)
	unlock := s.lockName(name)
	defer unlock()

	row, err := s.sessions.StartSession(ctx, models.LoggingSession{
		UserID:        userID,
		ChatID:        chat.ID,
		ChatTitle:     chat.Title,
		ChatUsername:  chat.Username,
		ChatType:      chat.Type,
		ContainerName: name,
	})
	if err != nil {
		return models.LoggingSession{}, err
	}

	bundle := models.WorkerBundle{
		APIID:       user.APIID,
		Phone:       user.Phone,
		UserID:      userID,
		ChatID:      chat.ID,
		ChatTitle:   chat.Title,
		DatabaseDSN: s.dsn,
		SessionID:   row.ID,
	}

	containerID, err := s.launch(ctx, name, s.cfg.LoggerImage, TypeLogger, userID, row.ID, bundle, apiHash, sessionBlob)
	if err != nil {
		_ = s.sessions.Delete(ctx, row.ID)
		return models.LoggingSession{}, err
	}

	if err := s.sessions.MarkRunning(ctx, row.ID, containerID); err != nil {
		return models.LoggingSession{}, err
	}

	row.ContainerID = containerID
	row.ContainerStatus = models.ContainerStatusRunning
	return row, nil
}

// launch writes the bundle and starts the container, wiping the bundle on
// any launch failure.
func (s *Supervisor) launch(ctx context.Context, name, image, workerType string, userID, rowID int64, bundle models.WorkerBundle, apiHash string, sessionBlob []byte) (string, error) {
	bundleDir, err := WriteBundle(s.cfg.ConfigsPath, name, bundle, apiHash, sessionBlob)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrContainerLaunchFailed, err)
	}

	containerID, err := s.runtime.CreateAndStart(ctx, ContainerSpec{
		Name:  name,
		Image: image,
		Env:   []string{"CONFIG_DIR=" + bundleMountPoint},
		Labels: map[string]string{
			LabelProject:   s.cfg.ProjectName,
			LabelType:      workerType,
			LabelUserID:    fmt.Sprintf("%d", userID),
			LabelSessionID: fmt.Sprintf("%d", rowID),
		},
		BundleHostPath: bundleDir,
		Network:        s.cfg.ProjectName + "-net",
	})
	if err != nil {
		_ = WipeBundle(s.cfg.ConfigsPath, name)
		return "", fmt.Errorf("%w: %w", ErrContainerLaunchFailed, err)
	}

	return containerID, nil
}

// StopLogging stops the worker and deactivates the row. Stopping an already
// stopped session is a no-op success.
func (s *Supervisor) StopLogging(ctx context.Context, userID, sessionID int64) error {
	row, err := s.sessions.GetByID(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if !row.IsActive {
		return nil
	}

	unlock := s.lockName(row.ContainerName)
	defer unlock()

	s.teardownContainer(ctx, row.ContainerName)

	if err := s.sessions.MarkStopped(ctx, sessionID); err != nil {
		return err
	}
	return WipeBundle(s.cfg.ConfigsPath, row.ContainerName)
}

// DeleteLogging stops the worker and removes the row with its history.
func (s *Supervisor) DeleteLogging(ctx context.Context, userID, sessionID int64) error {
	row, err := s.sessions.GetByID(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	unlock := s.lockName(row.ContainerName)
	defer unlock()

	s.teardownContainer(ctx, row.ContainerName)
	_ = WipeBundle(s.cfg.ConfigsPath, row.ContainerName)

	return s.sessions.Delete(ctx, sessionID)
}

// teardownContainer stops and removes by name, tolerating absence.
func (s *Supervisor) teardownContainer(ctx context.Context, name string) {
	if err := s.runtime.Stop(ctx, name, graceStop); err != nil && !errors.Is(err, ErrContainerNotFound) {
		s.log.Warn().Err(err).Str("name", name).Msg("container stop failed, forcing removal")
	}
	if err := s.runtime.Remove(ctx, name); err != nil && !errors.Is(err, ErrContainerNotFound) {
		s.log.Warn().Err(err).Str("name", name).Msg("container remove failed")
	}
}

// StartListener reserves the listener row and launches the listener worker.
// Elaborations added afterwards reach the worker through RestartListener.
func (s *Supervisor) StartListener(ctx context.Context, userID int64, chat models.Chat) (models.MessageListener, error) {
	user, apiHash, sessionBlob, err := s.workerCredentials(ctx, userID)
	if err != nil {
		return models.MessageListener{}, err
	}

	name := ListenerContainerName(userID, chat.ID)
	unlock := s.lockName(name)
	defer unlock()

	row, err := s.listeners.Create(ctx, models.MessageListener{
		UserID:             userID,
		SourceChatID:       chat.ID,
		SourceChatTitle:    chat.Title,
		SourceChatUsername: chat.Username,
		SourceChatType:     chat.Type,
		ContainerName:      name,
	})
	if err != nil {
		return models.MessageListener{}, err
	}

	containerID, err := s.launchListener(ctx, user, row, apiHash, sessionBlob, nil)
	if err != nil {
		_ = s.listeners.Delete(ctx, row.ID)
		return models.MessageListener{}, err
	}

	if err := s.listeners.MarkRunning(ctx, row.ID, containerID); err != nil {
		return models.MessageListener{}, err
	}

	row.ContainerID = containerID
	row.ContainerStatus = models.ContainerStatusRunning
	return row, nil
}

func (s *Supervisor) launchListener(ctx context.Context, user models.User, row models.MessageListener, apiHash string, sessionBlob []byte, elaborations []models.MessageElaboration) (string, error) {
	bundle := models.WorkerBundle{
		APIID:        user.APIID,
		Phone:        user.Phone,
		UserID:       user.UserID,
		ChatID:       row.SourceChatID,
		ChatTitle:    row.SourceChatTitle,
		DatabaseDSN:  s.dsn,
		ListenerID:   row.ID,
		Elaborations: elaborations,
		WebhookURL:   s.cfg.WebhookURL,
	}
	return s.launch(ctx, row.ContainerName, s.cfg.ListenerImage, TypeListener, user.UserID, row.ID, bundle, apiHash, sessionBlob)
}

// StopListener stops the worker and deactivates the row. Idempotent.
func (s *Supervisor) StopListener(ctx context.Context, userID, listenerID int64) error {
	row, err := s.listeners.GetByID(ctx, userID, listenerID)
	if err != nil {
		return err
	}
	if !row.IsActive {
		return nil
	}

	unlock := s.lockName(row.ContainerName)
	defer unlock()

	s.teardownContainer(ctx, row.ContainerName)

	if err := s.listeners.MarkStopped(ctx, listenerID); err != nil {
		return err
	}
	return WipeBundle(s.cfg.ConfigsPath, row.ContainerName)
}

// DeleteListener stops the worker and removes the row, cascading to
// elaborations and saved messages.
func (s *Supervisor) DeleteListener(ctx context.Context, userID, listenerID int64) error {
	row, err := s.listeners.GetByID(ctx, userID, listenerID)
	if err != nil {
		return err
	}

	unlock := s.lockName(row.ContainerName)
	defer unlock()

	s.teardownContainer(ctx, row.ContainerName)
	_ = WipeBundle(s.cfg.ConfigsPath, row.ContainerName)

	return s.listeners.Delete(ctx, listenerID)
}

// RestartListener rebuilds the bundle with the listener's current
// elaborations and relaunches the worker. Used after elaboration changes.
func (s *Supervisor) RestartListener(ctx context.Context, userID, listenerID int64) error {
	row, err := s.listeners.GetByID(ctx, userID, listenerID)
	if err != nil {
		return err
	}

	user, apiHash, sessionBlob, err := s.workerCredentials(ctx, userID)
	if err != nil {
		return err
	}

	unlock := s.lockName(row.ContainerName)
	defer unlock()

	s.teardownContainer(ctx, row.ContainerName)

	containerID, err := s.launchListener(ctx, user, row, apiHash, sessionBlob, row.Elaborations)
	if err != nil {
		_ = s.listeners.MarkError(ctx, listenerID, err.Error())
		return err
	}

	return s.listeners.MarkRunning(ctx, listenerID, containerID)
}

// ReapReport summarizes one reap pass.
type ReapReport struct {
	Checked  int
	Vanished int
	Exited   int
}

// Reap cross-checks status=running rows against actual container presence:
// a missing container moves the row to error/"container vanished", a present
// but exited container to error with its exit status. Runs every minute from
// the cleanup loop.
func (s *Supervisor) Reap(ctx context.Context) (ReapReport, error) {
	var report ReapReport

	sessions, err := s.sessions.ListByStatus(ctx, models.ContainerStatusRunning)
	if err != nil {
		return report, err
	}
	for _, row := range sessions {
		report.Checked++
		s.reapRow(ctx, row.ContainerName, &report, func(reason string) error {
			return s.sessions.MarkError(ctx, row.ID, reason)
		})
	}

	listeners, err := s.listeners.ListByStatus(ctx, models.ContainerStatusRunning)
	if err != nil {
		return report, err
	}
	for _, row := range listeners {
		report.Checked++
		s.reapRow(ctx, row.ContainerName, &report, func(reason string) error {
			return s.listeners.MarkError(ctx, row.ID, reason)
		})
	}

	return report, nil
}

func (s *Supervisor) reapRow(ctx context.Context, name string, report *ReapReport, markError func(string) error) {
	info, err := s.runtime.Inspect(ctx, name)
	switch {
	case errors.Is(err, ErrContainerNotFound):
		report.Vanished++
		if err := markError("container vanished"); err != nil {
			s.log.Error().Err(err).Str("name", name).Msg("reap: mark error failed")
		}
		_ = WipeBundle(s.cfg.ConfigsPath, name)
	case err != nil:
		s.log.Warn().Err(err).Str("name", name).Msg("reap: inspect failed")
	case !info.Running:
		report.Exited++
		if err := markError(fmt.Sprintf("container exited with code %d", info.ExitCode)); err != nil {
			s.log.Error().Err(err).Str("name", name).Msg("reap: mark error failed")
		}
		_ = s.runtime.Remove(ctx, name)
		_ = WipeBundle(s.cfg.ConfigsPath, name)
	}
}

// CleanupOrphaned retires stale error rows (older than the retention
// window) and removes project-labeled containers that no active row claims.
func (s *Supervisor) CleanupOrphaned(ctx context.Context) (int64, error) {
	retiredSessions, err := s.sessions.CleanupOrphaned(ctx, errorRetention)
	if err != nil {
		return 0, err
	}
	retiredListeners, err := s.listeners.CleanupOrphaned(ctx, errorRetention)
	if err != nil {
		return retiredSessions, err
	}

	containers, err := s.runtime.List(ctx, map[string]string{LabelProject: s.cfg.ProjectName})
	if err != nil {
		return retiredSessions + retiredListeners, err
	}

	active := make(map[string]bool)
	running, err := s.sessions.ListByStatus(ctx, models.ContainerStatusRunning)
	if err == nil {
		for _, row := range running {
			active[row.ContainerName] = true
		}
	}
	runningListeners, err := s.listeners.ListByStatus(ctx, models.ContainerStatusRunning)
	if err == nil {
		for _, row := range runningListeners {
			active[row.ContainerName] = true
		}
	}

	for _, c := range containers {
		if active[c.Name] {
			continue
		}
		s.log.Info().Str("name", c.Name).Msg("removing orphaned worker container")
		s.teardownContainer(ctx, c.Name)
		_ = WipeBundle(s.cfg.ConfigsPath, c.Name)
	}

	return retiredSessions + retiredListeners, nil
}
