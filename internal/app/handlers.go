package app

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meditationbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/meditationbot/core/telegram/helpers"
	"github.com/m3rciful/meditationbot/core/telegram/router"
	"github.com/m3rciful/meditationbot/internal/meditation"
)

func reply(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return tghelpers.SendMDV2(c, text, markup...)
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

func (a *App) handleStart(c tele.Context) error {
	if err := reply(c, textWelcome); err != nil {
		return err
	}
	if err := reply(c, textInstructions, mainKeyboard()); err != nil {
		return err
	}
	return a.sendLibrary(c, "")
}

func (a *App) handleMenu(c tele.Context) error {
	if err := reply(c, textMainMenu, mainKeyboard()); err != nil {
		return err
	}
	if err := a.sendLibrary(c, ""); err != nil {
		return err
	}
	if p, ok := a.svc.Practicing(senderID(c)); ok {
		return reply(c, renderRunning(p.Title), endKeyboard())
	}
	return nil
}

// sendLibrary lists the user's meditations, optionally narrowed to a category.
func (a *App) sendLibrary(c tele.Context, category string) error {
	uid := senderID(c)
	var entries []meditation.Entry
	if category == "" {
		entries = a.svc.Meditations(uid)
	} else {
		entries = a.svc.MeditationsByCategory(uid, category)
	}
	if len(entries) == 0 {
		if category != "" && len(a.svc.Meditations(uid)) > 0 {
			return reply(c, textEmptyCategory, libraryKeyboard(nil, a.svc.Categories()))
		}
		return reply(c, textEmptyLibrary)
	}
	return reply(c, textChoose, libraryKeyboard(entries, a.svc.Categories()))
}

func (a *App) handleUpload(c tele.Context) error {
	uid := senderID(c)
	prompt := textUploadPrompt
	if a.svc.UploadStep(uid) != meditation.StepIdle {
		prompt = textUploadRestart + "\n" + textUploadPrompt
	}
	a.svc.BeginUpload(tghelpers.BuildContext(c), uid)
	return reply(c, prompt, cancelKeyboard())
}

func (a *App) handleCancel(c tele.Context) error {
	if !a.svc.CancelUpload(tghelpers.BuildContext(c), senderID(c)) {
		return reply(c, textNothingCancel, mainKeyboard())
	}
	return reply(c, textUploadCanceled, mainKeyboard())
}

func (a *App) handleStats(c tele.Context) error {
	return reply(c, renderStats(a.svc.Stats(senderID(c))), mainKeyboard())
}

// handleRemind understands "/remind", "/remind HH:MM" and "/remind off".
func (a *App) handleRemind(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid := senderID(c)

	var arg string
	if msg := c.Message(); msg != nil {
		arg = strings.TrimSpace(msg.Payload)
	}
	switch strings.ToLower(arg) {
	case "":
		if rem, ok := a.svc.Reminder(uid); ok {
			return reply(c, renderReminderCurrent(rem))
		}
		return reply(c, textReminderNone+"\n"+textReminderUsage)
	case "off", "stop", "none":
		a.svc.ClearReminder(ctx, uid)
		return reply(c, textReminderOff, mainKeyboard())
	}

	hour, minute, ok := tghelpers.ParseClock(arg)
	if !ok {
		return reply(c, textReminderBad)
	}
	err := a.svc.SetReminder(ctx, uid, hour, minute)
	switch {
	case errors.Is(err, meditation.ErrInvalidTime):
		return reply(c, textReminderBad)
	case err != nil:
		return err
	}
	rem, _ := a.svc.Reminder(uid)
	return reply(c, renderReminderSet(rem), mainKeyboard())
}

func (a *App) handleBotStats(c tele.Context) error {
	if a.cfg.Telegram.AdminID == 0 {
		return a.handleUnknownText(c)
	}
	var failed uint64
	if _, d := a.outbound(); d != nil {
		failed = d.ErrorCount()
	}
	return reply(c, renderSummary(a.svc.Summary(), failed))
}

func (a *App) handleUnknownText(c tele.Context) error {
	return reply(c, textUnknown, mainKeyboard())
}

func (a *App) handleUnexpectedMedia(c tele.Context) error {
	return reply(c, textUnexpectedFile, mainKeyboard())
}

func (a *App) handleStartMeditation(c tele.Context) error {
	idx, err := callbacks.PayloadInt(c)
	if err != nil {
		return reply(c, textGone)
	}
	item, err := a.svc.Start(tghelpers.BuildContext(c), senderID(c), idx)
	if errors.Is(err, meditation.ErrIndexOutOfRange) {
		return reply(c, textGone)
	}
	if err != nil {
		return err
	}
	if item.Kind == meditation.MediaVideo {
		return tghelpers.SendVideo(c, item.FileID, playCaption(item.Title), endKeyboard())
	}
	return tghelpers.SendAudio(c, item.FileID, playCaption(item.Title), endKeyboard())
}

func (a *App) handleEndMeditation(c tele.Context) error {
	done, err := a.svc.End(tghelpers.BuildContext(c), senderID(c))
	if errors.Is(err, meditation.ErrNoActiveSession) {
		return reply(c, textNoSession)
	}
	if err != nil {
		return err
	}
	if err := reply(c, renderCompleted(done), mainKeyboard()); err != nil {
		return err
	}
	return a.sendLibrary(c, "")
}

func (a *App) handleDeleteMeditation(c tele.Context) error {
	idx, err := callbacks.PayloadInt(c)
	if err != nil {
		return reply(c, textGone)
	}
	item, err := a.svc.Delete(tghelpers.BuildContext(c), senderID(c), idx)
	if errors.Is(err, meditation.ErrIndexOutOfRange) {
		return reply(c, textGone)
	}
	if err != nil {
		return err
	}
	if err := reply(c, renderDeleted(item.Title)); err != nil {
		return err
	}
	// Indices shifted; send a fresh list so older buttons are not reused.
	return a.sendLibrary(c, "")
}

func (a *App) handleListCategory(c tele.Context) error {
	return a.sendLibrary(c, strings.TrimSpace(callbacks.CallbackPayload(c)))
}

func (a *App) handleCategory(c tele.Context) error {
	ev := meditation.CategoryEvent(callbacks.CallbackPayload(c))
	err := a.applyUpload(c, ev)
	if errors.Is(err, router.ErrNotHandled) {
		return reply(c, textUploadStale)
	}
	return err
}

// uploadFlow adapts the upload state machine to the text router.
type uploadFlow struct{ app *App }

func (f uploadFlow) InProgress(userID int64) bool {
	return f.app.svc.UploadInProgress(userID)
}

func (f uploadFlow) ManagerHandler(c tele.Context) error {
	ev, ok := uploadEvent(c.Message())
	if !ok {
		return router.ErrNotHandled
	}
	return f.app.applyUpload(c, ev)
}

// uploadEvent classifies an inbound message for the upload flow.
func uploadEvent(msg *tele.Message) (meditation.Event, bool) {
	if msg == nil {
		return meditation.Event{}, false
	}
	switch {
	case msg.Audio != nil:
		return meditation.MediaEvent(meditation.Media{
			Ref:      msg.Audio.FileID,
			Kind:     meditation.MediaAudio,
			FileName: msg.Audio.FileName,
			MIME:     msg.Audio.MIME,
		}), true
	case msg.Video != nil:
		return meditation.MediaEvent(meditation.Media{
			Ref:      msg.Video.FileID,
			Kind:     meditation.MediaVideo,
			FileName: msg.Video.FileName,
			MIME:     msg.Video.MIME,
		}), true
	case msg.Document != nil:
		return meditation.MediaEvent(meditation.Media{
			Ref:      msg.Document.FileID,
			FileName: msg.Document.FileName,
			MIME:     msg.Document.MIME,
		}), true
	case msg.Text != "":
		return meditation.TextEvent(msg.Text), true
	}
	return meditation.Event{}, false
}

// applyUpload feeds ev to the upload flow and renders the outcome.
// It returns router.ErrNotHandled when the flow did not consume the event.
func (a *App) applyUpload(c tele.Context, ev meditation.Event) error {
	res, err := a.svc.HandleUpload(tghelpers.BuildContext(c), senderID(c), ev)
	switch {
	case meditation.IsValidation(err):
		return a.rejectUpload(c, ev, err)
	case errors.Is(err, meditation.ErrNoUpload):
		return router.ErrNotHandled
	case errors.Is(err, meditation.ErrUnexpectedEvent):
		if res.Step == meditation.StepWaitingForFile && ev.Kind == meditation.EventText {
			return reply(c, textSendFileHint, cancelKeyboard())
		}
		return router.ErrNotHandled
	case err != nil:
		return err
	}

	switch res.Step {
	case meditation.StepWaitingForTitle:
		return reply(c, renderTitlePrompt(res.DefaultTitle), titleKeyboard())
	case meditation.StepWaitingForCategory:
		return reply(c, textPickCategory, categoryKeyboard(a.svc.Categories()))
	case meditation.StepCommitted:
		return reply(c, renderUploaded(res.Title), mainKeyboard())
	}
	return nil
}

// rejectUpload re-prompts after input the upload flow refused. The session
// stays on the same step.
func (a *App) rejectUpload(c tele.Context, ev meditation.Event, err error) error {
	switch {
	case errors.Is(err, meditation.ErrUnsupportedMedia):
		return reply(c, textBadFile, cancelKeyboard())
	case errors.Is(err, meditation.ErrInvalidTitle):
		if strings.TrimSpace(ev.Text) == "" {
			return reply(c, textEmptyTitle, titleKeyboard())
		}
		return reply(c, textReservedTitle, titleKeyboard())
	case errors.Is(err, meditation.ErrUnknownCategory):
		return reply(c, textBadCategory, categoryKeyboard(a.svc.Categories()))
	}
	return reply(c, textTryAgain, cancelKeyboard())
}
