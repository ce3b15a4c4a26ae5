package worker

import (
	"context"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solanagram/solanagram/models"
)

func channelUpdate(channelID int64, msgID int, text string) tg.UpdatesClass {
	return &tg.Updates{
		Updates: []tg.UpdateClass{
			&tg.UpdateNewChannelMessage{
				Message: &tg.Message{
					ID:      msgID,
					PeerID:  &tg.PeerChannel{ChannelID: channelID},
					Message: text,
					Date:    1700000000,
				},
			},
		},
	}
}

func TestFlatten_ChannelMessage(t *testing.T) {
	incoming := flatten(channelUpdate(1234567890, 42, "BUY now"))

	require.Len(t, incoming, 1)
	assert.Equal(t, int64(-1001234567890), incoming[0].ChatID)
	assert.Equal(t, int64(42), incoming[0].MessageID)
	assert.Equal(t, "BUY now", incoming[0].Text)
	assert.Equal(t, models.MessageTypeText, incoming[0].MessageType)
}

func TestFlatten_GroupAndUserPeers(t *testing.T) {
	fromUser := &tg.Message{
		ID:     1,
		PeerID: &tg.PeerChat{ChatID: 555},
		Date:   1700000000,
	}
	// SetFromID also sets the flag bit that GetFromID checks.
	fromUser.SetFromID(&tg.PeerUser{UserID: 777})

	incoming := flatten(&tg.Updates{
		Updates: []tg.UpdateClass{
			&tg.UpdateNewMessage{Message: fromUser},
			&tg.UpdateNewMessage{
				Message: &tg.Message{
					ID:     2,
					PeerID: &tg.PeerUser{UserID: 777},
					Date:   1700000000,
				},
			},
		},
	})

	require.Len(t, incoming, 2)
	assert.Equal(t, int64(-555), incoming[0].ChatID)
	assert.Equal(t, int64(777), incoming[0].SenderID)
	assert.Equal(t, int64(777), incoming[1].ChatID)
}

func TestFlatten_SkipsOutgoingAndServiceMessages(t *testing.T) {
	incoming := flatten(&tg.Updates{
		Updates: []tg.UpdateClass{
			&tg.UpdateNewMessage{
				Message: &tg.Message{ID: 1, Out: true, PeerID: &tg.PeerChat{ChatID: 1}},
			},
			&tg.UpdateNewMessage{
				Message: &tg.MessageService{ID: 2, PeerID: &tg.PeerChat{ChatID: 1}},
			},
			&tg.UpdateUserTyping{},
		},
	})

	assert.Empty(t, incoming)
}

func TestHandler_FiltersByChat(t *testing.T) {
	var seen []Incoming
	h := Handler{
		ChatID: -1001234567890,
		Sink: func(_ context.Context, in Incoming) error {
			seen = append(seen, in)
			return nil
		},
	}

	require.NoError(t, h.Handle(context.Background(), channelUpdate(1234567890, 1, "match")))
	require.NoError(t, h.Handle(context.Background(), channelUpdate(999, 2, "other chat")))

	require.Len(t, seen, 1)
	assert.Equal(t, "match", seen[0].Text)
}
