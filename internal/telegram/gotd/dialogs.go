// SPDX-License-Identifier: Apache-2.0

package gotd

import (
	"context"

	"github.com/gotd/td/tg"

	"github.com/solanagram/solanagram/models"
)

// resolveScanLimit bounds the dialog scan used by ResolveChat.
const resolveScanLimit = 200

// channelIDBase converts a bare channel id into the marked form the rest of
// the platform uses (-100xxxxxxxxxx), matching the bot-API convention the
// frontend and the workers already speak.
const channelIDBase = int64(1000000000000)

func markChannelID(id int64) int64 { return -(channelIDBase + id) }
func markGroupID(id int64) int64   { return -id }

// fetchDialogs pulls the dialog list through the raw API and flattens the
// chat/user vectors into the platform's Chat model.
func fetchDialogs(ctx context.Context, api *tg.Client, limit int) ([]models.Chat, error) {
	if limit <= 0 {
		limit = 100
	}

	res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      limit,
		OffsetPeer: &tg.InputPeerEmpty{},
	})
	if err != nil {
		return nil, classify(err)
	}

	var (
		rawChats []tg.ChatClass
		rawUsers []tg.UserClass
	)
	switch d := res.(type) {
	case *tg.MessagesDialogs:
		rawChats, rawUsers = d.Chats, d.Users
	case *tg.MessagesDialogsSlice:
		rawChats, rawUsers = d.Chats, d.Users
	case *tg.MessagesDialogsNotModified:
		return nil, nil
	}

	chats := make([]models.Chat, 0, len(rawChats)+len(rawUsers))

	for _, raw := range rawChats {
		switch chat := raw.(type) {
		case *tg.Chat:
			chats = append(chats, models.Chat{
				ID:           markGroupID(chat.ID),
				Title:        chat.Title,
				Type:         models.ChatTypeGroup,
				MembersCount: chat.ParticipantsCount,
			})
		case *tg.Channel:
			chatType := models.ChatTypeChannel
			if chat.Megagroup {
				chatType = models.ChatTypeGroup
			}
			entry := models.Chat{
				ID:    markChannelID(chat.ID),
				Title: chat.Title,
				Type:  chatType,
			}
			if username, ok := chat.GetUsername(); ok {
				entry.Username = username
			}
			if count, ok := chat.GetParticipantsCount(); ok {
				entry.MembersCount = count
			}
			chats = append(chats, entry)
		}
	}

	for _, raw := range rawUsers {
		user, ok := raw.(*tg.User)
		if !ok || user.Self {
			continue
		}

		chatType := models.ChatTypeUser
		if user.Bot {
			chatType = models.ChatTypeBot
		}

		title := user.FirstName
		if user.LastName != "" {
			if title != "" {
				title += " "
			}
			title += user.LastName
		}

		entry := models.Chat{
			ID:    user.ID,
			Title: title,
			Type:  chatType,
		}
		if username, ok := user.GetUsername(); ok {
			entry.Username = username
		}
		chats = append(chats, entry)
	}

	return chats, nil
}
