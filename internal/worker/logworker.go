// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgclient "github.com/gotd/td/telegram"
	"github.com/gotd/td/session"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/models"
)

// memSession seeds a gotd session storage from the bundle's blob.
type memSession struct {
	mu   sync.Mutex
	data []byte
}

func newMemSession(blob []byte) *memSession {
	return &memSession{data: append([]byte(nil), blob...)}
}

func (s *memSession) LoadSession(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

func (s *memSession) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	return nil
}

// LogWorker captures every message from one chat into message_logs.
type LogWorker struct {
	rt  *Runtime
	log *logger.Logger
}

// NewLogWorker builds the logging worker over a loaded runtime.
func NewLogWorker(rt *Runtime, log *logger.Logger) *LogWorker {
	return &LogWorker{rt: rt, log: log}
}

// Run connects to the database and Telegram and blocks until ctx is
// cancelled (SIGTERM from the supervisor) or the connection dies.
func (w *LogWorker) Run(ctx context.Context) error {
	db, err := store.NewConnectPostgres(ctx, w.rt.Bundle.DatabaseDSN, w.log)
	if err != nil {
		return err
	}
	defer db.Close()

	logs := store.NewMessageLogRepository(db, w.log)

	handler := Handler{
		ChatID: w.rt.Bundle.ChatID,
		Sink: func(ctx context.Context, in Incoming) error {
			inserted, err := logs.Insert(ctx, models.MessageLog{
				UserID:           w.rt.Bundle.UserID,
				ChatID:           in.ChatID,
				ChatTitle:        w.rt.Bundle.ChatTitle,
				MessageID:        in.MessageID,
				SenderID:         in.SenderID,
				MessageText:      in.Text,
				MessageType:      in.MessageType,
				MessageDate:      in.Date,
				LoggingSessionID: w.rt.Bundle.SessionID,
			})
			if err != nil {
				// Insert failures must not kill the update stream.
				w.log.Error().Err(err).Int64("message_id", in.MessageID).Msg("message insert failed")
				return nil
			}
			if inserted {
				w.log.Debug().Int64("message_id", in.MessageID).Msg("message logged")
			}
			return nil
		},
	}

	client := tgclient.NewClient(w.rt.Bundle.APIID, w.rt.APIHash, tgclient.Options{
		SessionStorage: newMemSession(w.rt.SessionBlob),
		UpdateHandler:  handler,
	})

	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return err
		}
		if !status.Authorized {
			return fmt.Errorf("session not authorized, giving up")
		}

		w.log.Info().
			Int64("chat_id", w.rt.Bundle.ChatID).
			Int64("session_id", w.rt.Bundle.SessionID).
			Msg("logging worker online")

		<-ctx.Done()
		return ctx.Err()
	})
}

// RunForever keeps the worker alive across transient failures, matching the
// container restart policy without churning the container itself.
func (w *LogWorker) RunForever(ctx context.Context) error {
	for {
		err := w.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.log.Warn().Err(err).Msg("worker run ended, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}
