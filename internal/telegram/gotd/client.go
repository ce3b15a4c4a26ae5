// SPDX-License-Identifier: Apache-2.0

// Package gotd is the production adapter behind the telegram.Client port,
// implemented over the gotd/td MTProto library. One adapter instance wraps
// one gotd client and its background run loop; the run loop is started on
// Connect and torn down on Disconnect.
package gotd

import (
	"context"
	"sync"
	"time"

	tgclient "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/solanagram/solanagram/internal/telegram"
	"github.com/solanagram/solanagram/models"
)

// disconnectGrace bounds how long Disconnect waits for the run loop to exit.
const disconnectGrace = 5 * time.Second

// Client implements telegram.Client over gotd/td.
type Client struct {
	apiID   int
	apiHash string
	storage *blobStorage

	mu        sync.Mutex
	inner     *tgclient.Client
	cancel    context.CancelFunc
	runErr    chan error
	connected bool
}

// Factory implements telegram.Factory for gotd-backed clients.
type Factory struct{}

// NewFactory returns the production client factory.
func NewFactory() *Factory {
	return &Factory{}
}

// New implements telegram.Factory.
func (f *Factory) New(apiID int, apiHash string, sessionBlob []byte) (telegram.Client, error) {
	return &Client{
		apiID:   apiID,
		apiHash: apiHash,
		storage: newBlobStorage(sessionBlob),
	}, nil
}

// Connect starts the gotd run loop and blocks until the client is ready,
// the loop fails, or ctx expires. A deadline leaves no half-open state: the
// loop is cancelled before returning.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	inner := tgclient.NewClient(c.apiID, c.apiHash, tgclient.Options{
		SessionStorage: c.storage,
		NoUpdates:      true,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	ready := make(chan struct{})

	go func() {
		runErr <- inner.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		c.inner = inner
		c.cancel = cancel
		c.runErr = runErr
		c.connected = true
		return nil
	case err := <-runErr:
		cancel()
		return classify(err)
	case <-ctx.Done():
		cancel()
		<-runErr
		return telegram.ErrTransportDisconnected
	}
}

// Disconnect implements telegram.Client. Idempotent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	c.cancel()
	select {
	case <-c.runErr:
	case <-time.After(disconnectGrace):
	}

	c.inner = nil
	c.cancel = nil
	c.runErr = nil
	c.connected = false
	return nil
}

// Connected implements telegram.Client.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return false
	}

	// The run loop may have died since Connect; a buffered error means the
	// transport is gone even though Disconnect was never called.
	select {
	case <-c.runErr:
		c.connected = false
		return false
	default:
		return true
	}
}

func (c *Client) client() (*tgclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.inner == nil {
		return nil, telegram.ErrTransportDisconnected
	}
	return c.inner, nil
}

// Authorized implements telegram.Client with gotd's auth status probe.
func (c *Client) Authorized(ctx context.Context) (bool, error) {
	inner, err := c.client()
	if err != nil {
		return false, err
	}

	status, err := inner.Auth().Status(ctx)
	if err != nil {
		return false, classify(err)
	}
	return status.Authorized, nil
}

// SendCode implements telegram.Client.
func (c *Client) SendCode(ctx context.Context, phone string) (telegram.SentCode, error) {
	inner, err := c.client()
	if err != nil {
		return telegram.SentCode{}, err
	}

	sent, err := inner.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return telegram.SentCode{}, classify(err)
	}

	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return telegram.SentCode{}, &telegram.Error{Message: "unexpected sent-code response"}
	}

	return telegram.SentCode{
		PhoneCodeHash: code.PhoneCodeHash,
		Timeout:       code.Timeout,
	}, nil
}

// SignIn implements telegram.Client.
func (c *Client) SignIn(ctx context.Context, phone, code, codeHash string) error {
	inner, err := c.client()
	if err != nil {
		return err
	}

	if _, err := inner.Auth().SignIn(ctx, phone, code, codeHash); err != nil {
		return classify(err)
	}
	return nil
}

// SignInPassword implements telegram.Client.
func (c *Client) SignInPassword(ctx context.Context, password string) error {
	inner, err := c.client()
	if err != nil {
		return err
	}

	if _, err := inner.Auth().Password(ctx, password); err != nil {
		return classify(err)
	}
	return nil
}

// Dialogs implements telegram.Client.
func (c *Client) Dialogs(ctx context.Context, limit int) ([]models.Chat, error) {
	inner, err := c.client()
	if err != nil {
		return nil, err
	}

	return fetchDialogs(ctx, inner.API(), limit)
}

// ResolveChat implements telegram.Client by scanning the dialog list for the
// requested id. Workers only attach to chats the account participates in, so
// the dialog list is authoritative here.
func (c *Client) ResolveChat(ctx context.Context, chatID int64) (models.Chat, error) {
	chats, err := c.Dialogs(ctx, resolveScanLimit)
	if err != nil {
		return models.Chat{}, err
	}

	for _, chat := range chats {
		if chat.ID == chatID {
			return chat, nil
		}
	}
	return models.Chat{}, &telegram.Error{Message: "chat not found in dialogs"}
}

// ExportSession implements telegram.Client.
func (c *Client) ExportSession() ([]byte, error) {
	blob := c.storage.Bytes()
	if blob == nil {
		return nil, &telegram.Error{Message: "no session to export"}
	}
	return blob, nil
}
