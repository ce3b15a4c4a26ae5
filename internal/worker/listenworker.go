// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	tgclient "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/models"
)

// ListenWorker saves raw messages from one source chat and runs the
// configured elaborations over each: extractors capture substrings into
// extracted_values, the single optional redirect forwards the text to the
// destination chat.
type ListenWorker struct {
	rt  *Runtime
	log *logger.Logger
}

// NewListenWorker builds the listener worker over a loaded runtime.
func NewListenWorker(rt *Runtime, log *logger.Logger) *ListenWorker {
	return &ListenWorker{rt: rt, log: log}
}

// elaborations returns the active rules ordered by priority, extractors and
// at most one redirect.
func (w *ListenWorker) elaborations() []models.MessageElaboration {
	active := make([]models.MessageElaboration, 0, len(w.rt.Bundle.Elaborations))
	for _, e := range w.rt.Bundle.Elaborations {
		if e.IsActive {
			active = append(active, e)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority < active[j].Priority })
	return active
}

// Run connects and processes updates until ctx is cancelled.
func (w *ListenWorker) Run(ctx context.Context) error {
	db, err := store.NewConnectPostgres(ctx, w.rt.Bundle.DatabaseDSN, w.log)
	if err != nil {
		return err
	}
	defer db.Close()

	saved := store.NewSavedMessageRepository(db, w.log)
	notifier := NewWebhookNotifier(w.rt.Bundle.WebhookURL, w.log)
	rules := w.elaborations()

	var client *tgclient.Client
	var redirectPeer tg.InputPeerClass

	handler := Handler{
		ChatID: w.rt.Bundle.ChatID,
		Sink: func(ctx context.Context, in Incoming) error {
			w.process(ctx, saved, notifier, rules, client, redirectPeer, in)
			return nil
		},
	}

	client = tgclient.NewClient(w.rt.Bundle.APIID, w.rt.APIHash, tgclient.Options{
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

		// Resolve the redirect destination once, up front. A failed
		// resolve disables forwarding but keeps capture running.
		for _, e := range rules {
			if e.Type == models.ElaborationTypeRedirect {
				peer, err := resolvePeer(ctx, client.API(), e.Config.TargetChatID)
				if err != nil {
					w.log.Error().Err(err).Int64("target", e.Config.TargetChatID).Msg("redirect target unavailable")
				} else {
					redirectPeer = peer
				}
			}
		}

		w.log.Info().
			Int64("chat_id", w.rt.Bundle.ChatID).
			Int64("listener_id", w.rt.Bundle.ListenerID).
			Int("elaborations", len(rules)).
			Msg("listener worker online")

		<-ctx.Done()
		return ctx.Err()
	})
}

// process saves one message and applies the rule list. Replays (duplicate
// message ids) skip elaboration entirely.
func (w *ListenWorker) process(ctx context.Context, saved store.SavedMessageRepository, notifier *WebhookNotifier,
	rules []models.MessageElaboration, client *tgclient.Client, redirectPeer tg.InputPeerClass, in Incoming) {
	inserted, savedID, err := saved.Insert(ctx, models.SavedMessage{
		ListenerID:  w.rt.Bundle.ListenerID,
		MessageID:   in.MessageID,
		Text:        in.Text,
		SenderID:    in.SenderID,
		MessageDate: in.Date,
	})
	if err != nil {
		w.log.Error().Err(err).Int64("message_id", in.MessageID).Msg("saved message insert failed")
		return
	}
	if !inserted {
		return
	}

	var all []Extraction
	for _, e := range rules {
		switch e.Type {
		case models.ElaborationTypeExtractor:
			extractions := ApplyExtractor(e, in.Text)
			for _, ex := range extractions {
				if _, err := saved.InsertExtractedValue(ctx, models.ExtractedValue{
					ElaborationID:   e.ID,
					MessageID:       savedID,
					RuleName:        ex.RuleName,
					ExtractedValue:  ex.Value,
					OccurrenceIndex: ex.OccurrenceIndex,
				}); err != nil {
					w.log.Error().Err(err).Str("rule", ex.RuleName).Msg("extracted value insert failed")
				}
			}
			all = append(all, extractions...)

		case models.ElaborationTypeRedirect:
			if redirectPeer == nil {
				continue
			}
			sender := message.NewSender(client.API())
			if _, err := sender.To(redirectPeer).Text(ctx, in.Text); err != nil {
				w.log.Error().Err(err).Int64("message_id", in.MessageID).Msg("redirect send failed")
			}
		}
	}

	if len(all) > 0 {
		notifier.Notify(ctx, SignalPayload{
			ListenerID:  w.rt.Bundle.ListenerID,
			ChatID:      in.ChatID,
			MessageID:   in.MessageID,
			MessageText: in.Text,
			Extractions: all,
		})
	}
}

// resolvePeer finds the input peer of a marked chat id in the account's
// dialog list.
func resolvePeer(ctx context.Context, api *tg.Client, chatID int64) (tg.InputPeerClass, error) {
	res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      200,
		OffsetPeer: &tg.InputPeerEmpty{},
	})
	if err != nil {
		return nil, err
	}

	var chats []tg.ChatClass
	var users []tg.UserClass
	switch d := res.(type) {
	case *tg.MessagesDialogs:
		chats, users = d.Chats, d.Users
	case *tg.MessagesDialogsSlice:
		chats, users = d.Chats, d.Users
	}

	for _, raw := range chats {
		switch chat := raw.(type) {
		case *tg.Chat:
			if -chat.ID == chatID {
				return &tg.InputPeerChat{ChatID: chat.ID}, nil
			}
		case *tg.Channel:
			if -(channelIDBase+chat.ID) == chatID {
				return &tg.InputPeerChannel{ChannelID: chat.ID, AccessHash: chat.AccessHash}, nil
			}
		}
	}
	for _, raw := range users {
		if user, ok := raw.(*tg.User); ok && user.ID == chatID {
			return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, nil
		}
	}

	return nil, fmt.Errorf("chat %d not found in dialogs", chatID)
}

// RunForever keeps the worker alive across transient failures.
func (w *ListenWorker) RunForever(ctx context.Context) error {
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
