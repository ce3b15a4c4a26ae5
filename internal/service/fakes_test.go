package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solanagram/solanagram/internal/bridge"
	"github.com/solanagram/solanagram/internal/crypto"
	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/metrics"
	"github.com/solanagram/solanagram/internal/session"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/internal/telegram"
	"github.com/solanagram/solanagram/models"

	"github.com/prometheus/client_golang/prometheus"
)

const testPhone = "+391234567890"

// memoryUserRepo is an in-memory store.UserRepository for service tests.
type memoryUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[int64]*models.User{}}
}

func (r *memoryUserRepo) CreateUser(_ context.Context, user models.User) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == user.Phone {
			return models.User{}, store.ErrPhoneAlreadyExists
		}
	}
	r.nextID++
	user.UserID = r.nextID
	user.IsActive = true
	user.CreatedAt = time.Now()
	copied := user
	r.users[user.UserID] = &copied
	return user, nil
}

func (r *memoryUserRepo) FindUserByPhone(_ context.Context, phone string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == phone {
			return *u, nil
		}
	}
	return models.User{}, store.ErrNoUserWasFound
}

func (r *memoryUserRepo) FindUserByID(_ context.Context, id int64) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return models.User{}, store.ErrNoUserWasFound
	}
	return *u, nil
}

func (r *memoryUserRepo) UpdateLastLogin(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return store.ErrNoUserWasFound
	}
	u.LastLogin = time.Now()
	return nil
}

func (r *memoryUserRepo) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return store.ErrNoUserWasFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *memoryUserRepo) UpdateCredentials(_ context.Context, id int64, apiID int, apiHash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return store.ErrNoUserWasFound
	}
	u.APIID = apiID
	u.APIHashEncrypted = apiHash
	u.TelegramSession = nil
	return nil
}

func (r *memoryUserRepo) UpdateTelegramSession(_ context.Context, id int64, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return store.ErrNoUserWasFound
	}
	u.TelegramSession = append([]byte(nil), blob...)
	return nil
}

func (r *memoryUserRepo) ClearTelegramSession(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return store.ErrNoUserWasFound
	}
	u.TelegramSession = nil
	return nil
}

// scriptClient is a scriptable telegram.Client. Error queues pop one entry
// per call; an empty queue means success.
type scriptClient struct {
	mu           sync.Mutex
	connected    bool
	authorized   bool
	sendCodeErrs []error
	signInErrs   []error
	dialogsErrs  []error
	sendCodes    int
	signIns      int
	passwords    int
	dialogs      []models.Chat
	sessionBlob  []byte
}

func popErr(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}

func (c *scriptClient) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

func (c *scriptClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *scriptClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *scriptClient) Authorized(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authorized, nil
}

func (c *scriptClient) SendCode(context.Context, string) (telegram.SentCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendCodes++
	if err := popErr(&c.sendCodeErrs); err != nil {
		return telegram.SentCode{}, err
	}
	return telegram.SentCode{PhoneCodeHash: "hash-1"}, nil
}

func (c *scriptClient) SignIn(context.Context, string, string, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signIns++
	if err := popErr(&c.signInErrs); err != nil {
		return err
	}
	c.authorized = true
	return nil
}

func (c *scriptClient) SignInPassword(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passwords++
	c.authorized = true
	return nil
}

func (c *scriptClient) Dialogs(context.Context, int) ([]models.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := popErr(&c.dialogsErrs); err != nil {
		return nil, err
	}
	return c.dialogs, nil
}

func (c *scriptClient) ResolveChat(ctx context.Context, chatID int64) (models.Chat, error) {
	chats, err := c.Dialogs(ctx, 0)
	if err != nil {
		return models.Chat{}, err
	}
	for _, chat := range chats {
		if chat.ID == chatID {
			return chat, nil
		}
	}
	return models.Chat{}, &telegram.Error{Message: "chat not found"}
}

func (c *scriptClient) ExportSession() ([]byte, error) {
	if c.sessionBlob == nil {
		return []byte("opaque-session"), nil
	}
	return c.sessionBlob, nil
}

// scriptFactory hands out a fixed sequence of clients (the last one
// repeats).
type scriptFactory struct {
	mu      sync.Mutex
	clients []*scriptClient
	made    int
}

func (f *scriptFactory) New(int, string, []byte) (telegram.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.made
	if idx >= len(f.clients) {
		idx = len(f.clients) - 1
	}
	f.made++
	return f.clients[idx], nil
}

type serviceFixture struct {
	users    *memoryUserRepo
	cipher   *crypto.Cipher
	factory  *scriptFactory
	manager  *session.Manager
	bridge   *bridge.Bridge
	codes    session.CodeCache
	sms      session.SMSCounter
	metrics  *metrics.LoginMetrics
	telegram TelegramService
}

func newServiceFixture(t *testing.T, clients ...*scriptClient) *serviceFixture {
	t.Helper()

	if len(clients) == 0 {
		clients = []*scriptClient{{authorized: false}}
	}

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	cipher, err := crypto.NewCipher(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)

	users := newMemoryUserRepo()
	factory := &scriptFactory{clients: clients}
	registry := session.NewRegistry(300 * time.Second)
	manager := session.NewManager(registry, factory, &credsAdapter{users: users, cipher: cipher},
		time.Second, time.Second, logger.Nop())

	b := bridge.New(100, 5*time.Second, logger.Nop())
	t.Cleanup(b.Close)

	codes := session.NewMemoryCodeCache()
	sms := session.NewMemorySMSCounter(5, 24*time.Hour)
	m := metrics.NewLoginMetrics(prometheus.NewRegistry())

	fx := &serviceFixture{
		users:   users,
		cipher:  cipher,
		factory: factory,
		manager: manager,
		bridge:  b,
		codes:   codes,
		sms:     sms,
		metrics: m,
	}
	fx.telegram = NewTelegramService(users, cipher, manager, b, codes, sms, m, time.Second, logger.Nop())
	return fx
}

// credsAdapter resolves manager credentials from the user repo, unwrapping
// as the production wiring does.
type credsAdapter struct {
	users  *memoryUserRepo
	cipher *crypto.Cipher
}

func (c *credsAdapter) TelegramCredentials(ctx context.Context, phone string) (int, string, []byte, error) {
	user, err := c.users.FindUserByPhone(ctx, phone)
	if err != nil {
		return 0, "", nil, err
	}
	if !user.HasAPICredentials() {
		return 0, "", nil, ErrMissingCredentials
	}
	apiHash, err := c.cipher.UnwrapString(user.APIHashEncrypted)
	if err != nil {
		return 0, "", nil, err
	}
	var blob []byte
	if user.HasTelegramSession() {
		blob, err = c.cipher.Unwrap(user.TelegramSession)
		if err != nil {
			return 0, "", nil, err
		}
	}
	return user.APIID, apiHash, blob, nil
}

func (fx *serviceFixture) registerUser(t *testing.T) models.User {
	t.Helper()

	wrapped, err := fx.cipher.WrapString("deadbeefdeadbeef")
	require.NoError(t, err)

	user, err := fx.users.CreateUser(context.Background(), models.User{
		Phone:            testPhone,
		PasswordHash:     "$2a$10$hash",
		APIID:            25128314,
		APIHashEncrypted: wrapped,
	})
	require.NoError(t, err)
	return user
}
