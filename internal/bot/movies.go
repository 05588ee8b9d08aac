package bot

import (
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
)

// contentFromMessage turns the message an admin replied to into movie
// content. A channel forward wins over any media it carries.
func contentFromMessage(m *tgbotapi.Message) *domain.MovieCode {
	if m == nil {
		return nil
	}
	switch {
	case m.ForwardFromChat != nil && m.ForwardFromChat.Type == "channel" && m.ForwardFromMessageID != 0:
		chatID := m.ForwardFromChat.ID
		msgID := int64(m.ForwardFromMessageID)
		return &domain.MovieCode{
			ContentType:      domain.ContentChannel,
			ContentValue:     "channel",
			ChannelID:        &chatID,
			ChannelMessageID: &msgID,
		}
	case m.Video != nil:
		return &domain.MovieCode{ContentType: domain.ContentVideo, ContentValue: m.Video.FileID}
	case len(m.Photo) > 0:
		// The last size is the largest.
		return &domain.MovieCode{ContentType: domain.ContentPhoto, ContentValue: m.Photo[len(m.Photo)-1].FileID}
	case m.Document != nil:
		return &domain.MovieCode{ContentType: domain.ContentDocument, ContentValue: m.Document.FileID}
	case m.Audio != nil:
		return &domain.MovieCode{ContentType: domain.ContentAudio, ContentValue: m.Audio.FileID}
	case m.Text != "":
		return &domain.MovieCode{ContentType: domain.ContentText, ContentValue: m.Text}
	}
	return nil
}

func (b *Bot) deliverMovie(chatID int64, movie *domain.MovieCode) {
	file := tgbotapi.FileID(movie.ContentValue)
	var media tgbotapi.Chattable

	switch movie.ContentType {
	case domain.ContentChannel:
		if movie.ChannelID == nil || movie.ChannelMessageID == nil {
			b.reply(chatID, "Kino manbasi topilmadi. Admin bilan bog'laning.", b.mainMenu)
			return
		}
		copyMsg := tgbotapi.NewCopyMessage(chatID, *movie.ChannelID, int(*movie.ChannelMessageID))
		if _, err := b.Sender.Request(copyMsg); err != nil {
			slog.Warn("copy channel message failed", "chat_id", chatID, "code", movie.Code, "err", err)
			b.reply(chatID, "Kino yuborib bo'lmadi. Kanalga ruxsat borligini tekshiring.", b.mainMenu)
		}
		return
	case domain.ContentVideo:
		media = tgbotapi.NewVideo(chatID, file)
	case domain.ContentPhoto:
		media = tgbotapi.NewPhoto(chatID, file)
	case domain.ContentDocument:
		media = tgbotapi.NewDocument(chatID, file)
	case domain.ContentAudio:
		media = tgbotapi.NewAudio(chatID, file)
	default:
		b.reply(chatID, movie.ContentValue, b.mainMenu)
		return
	}

	if _, err := b.Sender.Send(media); err != nil {
		slog.Warn("send movie failed", "chat_id", chatID, "code", movie.Code, "type", movie.ContentType, "err", err)
		b.reply(chatID, textFailed, b.mainMenu)
	}
}
