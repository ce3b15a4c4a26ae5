// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"time"

	"github.com/gotd/td/tg"

	"github.com/solanagram/solanagram/models"
)

// Incoming is one new message seen on the update stream, flattened to the
// platform's chat-id convention (groups negative, channels -100…).
type Incoming struct {
	ChatID      int64
	MessageID   int64
	SenderID    int64
	Text        string
	MessageType models.MessageType
	Date        time.Time
}

const channelIDBase = int64(1000000000000)

// peerChatID maps a tg peer to the marked chat id.
func peerChatID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerChannel:
		return -(channelIDBase + p.ChannelID)
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerUser:
		return p.UserID
	}
	return 0
}

func messageType(msg *tg.Message) models.MessageType {
	if msg.Media == nil {
		return models.MessageTypeText
	}
	switch msg.Media.(type) {
	case *tg.MessageMediaPhoto:
		return models.MessageTypePhoto
	case *tg.MessageMediaDocument:
		return models.MessageTypeDocument
	default:
		return models.MessageTypeOther
	}
}

// flatten extracts new messages from one raw update container.
func flatten(u tg.UpdatesClass) []Incoming {
	var updates []tg.UpdateClass
	switch box := u.(type) {
	case *tg.Updates:
		updates = box.Updates
	case *tg.UpdatesCombined:
		updates = box.Updates
	case *tg.UpdateShort:
		updates = []tg.UpdateClass{box.Update}
	}

	var incoming []Incoming
	for _, upd := range updates {
		var msg tg.MessageClass
		switch m := upd.(type) {
		case *tg.UpdateNewMessage:
			msg = m.Message
		case *tg.UpdateNewChannelMessage:
			msg = m.Message
		default:
			continue
		}

		full, ok := msg.(*tg.Message)
		if !ok || full.Out {
			continue
		}

		entry := Incoming{
			ChatID:      peerChatID(full.PeerID),
			MessageID:   int64(full.ID),
			Text:        full.Message,
			MessageType: messageType(full),
			Date:        time.Unix(int64(full.Date), 0),
		}
		if from, ok := full.GetFromID(); ok {
			if user, ok := from.(*tg.PeerUser); ok {
				entry.SenderID = user.UserID
			}
		}
		incoming = append(incoming, entry)
	}

	return incoming
}

// Handler adapts flatten to gotd's update-handler contract, forwarding
// messages from the configured chat to sink.
type Handler struct {
	ChatID int64
	Sink   func(ctx context.Context, in Incoming) error
}

// Handle implements telegram.UpdateHandler.
func (h Handler) Handle(ctx context.Context, u tg.UpdatesClass) error {
	for _, in := range flatten(u) {
		if in.ChatID != h.ChatID {
			continue
		}
		if err := h.Sink(ctx, in); err != nil {
			return err
		}
	}
	return nil
}
