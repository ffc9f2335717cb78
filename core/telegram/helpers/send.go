package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meditationbot/core/logger"
	"github.com/m3rciful/meditationbot/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes helper sends through d. nil restores direct sends.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// SendMDV2 sends MarkdownV2 text with an optional reply markup.
func SendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, ReplyMarkup: first(markup)}
	return deliver(c, "send.text", "sendMessage", text, opts)
}

// SendAudio re-sends an uploaded audio file by its Telegram file id.
func SendAudio(c tele.Context, fileID, caption string, markup ...*tele.ReplyMarkup) error {
	audio := &tele.Audio{File: tele.File{FileID: fileID}, Caption: caption}
	return deliver(c, "send.audio", "sendAudio", audio, &tele.SendOptions{ReplyMarkup: first(markup)})
}

// SendVideo re-sends an uploaded video file by its Telegram file id.
func SendVideo(c tele.Context, fileID, caption string, markup ...*tele.ReplyMarkup) error {
	video := &tele.Video{File: tele.File{FileID: fileID}, Caption: caption}
	return deliver(c, "send.video", "sendVideo", video, &tele.SendOptions{ReplyMarkup: first(markup)})
}

func first(markup []*tele.ReplyMarkup) *tele.ReplyMarkup {
	if len(markup) == 0 {
		return nil
	}
	return markup[0]
}

// deliver sends what to the current chat, through the dispatcher when one is
// set. A full or closed queue degrades to a direct send.
func deliver(c tele.Context, action, endpoint string, what interface{}, opts *tele.SendOptions) error {
	run := func() error { return c.Send(what, opts) }
	d := globalDispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, run)
	if !errors.Is(err, sender.ErrQueueFull) && !errors.Is(err, sender.ErrQueueClosed) {
		return err
	}
	logger.Warn(ctx, "tg.sender", "queue.fallback",
		slog.String("action", action),
		slog.String("endpoint", endpoint),
		slog.String("err", err.Error()),
	)
	return run()
}
