package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solanagram/solanagram/internal/telegram"
	"github.com/solanagram/solanagram/models"
)

// fakeClient is a scriptable telegram.Client for registry/manager tests.
type fakeClient struct {
	mu          sync.Mutex
	connected   bool
	authorized  bool
	connectErr  error
	probeErr    error
	connects    int32
	disconnects int32
}

func (f *fakeClient) Connect(context.Context) error {
	atomic.AddInt32(&f.connects, 1)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Disconnect() error {
	atomic.AddInt32(&f.disconnects, 1)
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Authorized(context.Context) (bool, error) {
	if f.probeErr != nil {
		return false, f.probeErr
	}
	return f.authorized, nil
}

func (f *fakeClient) SendCode(context.Context, string) (telegram.SentCode, error) {
	return telegram.SentCode{PhoneCodeHash: "hash"}, nil
}

func (f *fakeClient) SignIn(context.Context, string, string, string) error { return nil }
func (f *fakeClient) SignInPassword(context.Context, string) error         { return nil }

func (f *fakeClient) Dialogs(context.Context, int) ([]models.Chat, error) { return nil, nil }
func (f *fakeClient) ResolveChat(context.Context, int64) (models.Chat, error) {
	return models.Chat{}, nil
}
func (f *fakeClient) ExportSession() ([]byte, error) { return []byte("session"), nil }

const testPhone = "+391234567890"

func TestRegistry_PutGet(t *testing.T) {
	r := NewRegistry(300 * time.Second)
	client := &fakeClient{connected: true}

	r.Put(testPhone, client, true)

	handle, ok := r.Get(testPhone)
	require.True(t, ok)
	assert.Equal(t, testPhone, handle.Phone)
	assert.True(t, handle.Authorized)
}

func TestRegistry_TTLExpiry(t *testing.T) {
	r := NewRegistry(300 * time.Second)
	client := &fakeClient{connected: true}
	r.Put(testPhone, client, true)

	// Jump the clock past the TTL.
	r.now = func() time.Time { return time.Now().Add(301 * time.Second) }

	_, ok := r.Get(testPhone)
	assert.False(t, ok)
	assert.Zero(t, r.Len(), "expired handle must be evicted on lookup")
	assert.EqualValues(t, 1, atomic.LoadInt32(&client.disconnects))
}

func TestRegistry_DisconnectedHandleEvicted(t *testing.T) {
	r := NewRegistry(300 * time.Second)
	client := &fakeClient{connected: true}
	r.Put(testPhone, client, true)

	client.mu.Lock()
	client.connected = false
	client.mu.Unlock()

	_, ok := r.Get(testPhone)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestRegistry_PutReplacesAndDisconnectsPrevious(t *testing.T) {
	r := NewRegistry(300 * time.Second)
	old := &fakeClient{connected: true}
	r.Put(testPhone, old, true)

	replacement := &fakeClient{connected: true}
	r.Put(testPhone, replacement, false)

	assert.EqualValues(t, 1, atomic.LoadInt32(&old.disconnects))
	handle, ok := r.Get(testPhone)
	require.True(t, ok)
	assert.Same(t, telegram.Client(replacement), handle.Client)
}

func TestRegistry_EvictIdempotent(t *testing.T) {
	r := NewRegistry(300 * time.Second)
	r.Put(testPhone, &fakeClient{connected: true}, true)

	assert.True(t, r.Evict(testPhone))
	assert.False(t, r.Evict(testPhone))
}

func TestRegistry_Sweep(t *testing.T) {
	r := NewRegistry(300 * time.Second)
	fresh := &fakeClient{connected: true}
	stale := &fakeClient{connected: false}

	r.Put(testPhone, fresh, true)
	r.Put("+390000000001", stale, true)

	evicted := r.Sweep()
	assert.Equal(t, []string{"+390000000001"}, evicted)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_LockSerializesPerPhone(t *testing.T) {
	r := NewRegistry(300 * time.Second)

	var inCritical int32
	var maxConcurrent int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := r.Lock(testPhone)
			defer unlock()

			cur := atomic.AddInt32(&inCritical, 1)
			if cur > atomic.LoadInt32(&maxConcurrent) {
				atomic.StoreInt32(&maxConcurrent, cur)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inCritical, -1)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&maxConcurrent))
}
