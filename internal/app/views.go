package app

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meditationbot/core/telegram/callbacks"
	"github.com/m3rciful/meditationbot/core/telegram/format"
	"github.com/m3rciful/meditationbot/core/telegram/keyboard"
	"github.com/m3rciful/meditationbot/internal/meditation"
)

// Reply keyboard labels. They double as command aliases.
const (
	labelUpload   = "📥 Upload meditation"
	labelStats    = "📊 Stats"
	labelMenu     = "Menu"
	labelReminder = "⏰ Reminder"
	labelCancel   = "❌ Cancel"
)

// Callback keys. Data on the wire is key_payload.
const (
	cbStart    = "start"
	cbDelete   = "delete"
	cbEnd      = "end"
	cbCategory = "cat"
	cbList     = "list"
)

const endPayload = "meditation"

func mainKeyboard() *tele.ReplyMarkup {
	return keyboard.Reply(
		[]string{labelUpload, labelStats},
		[]string{labelMenu, labelReminder},
	)
}

func titleKeyboard() *tele.ReplyMarkup {
	return keyboard.Reply(
		[]string{meditation.KeepDefaultToken},
		[]string{labelCancel},
	)
}

func cancelKeyboard() *tele.ReplyMarkup {
	return keyboard.Reply([]string{labelCancel})
}

func categoryKeyboard(categories []string) *tele.ReplyMarkup {
	buttons := make([]keyboard.Button, 0, len(categories))
	for _, c := range categories {
		buttons = append(buttons, keyboard.Button{Label: c, Data: callbacks.Data(cbCategory, c)})
	}
	return keyboard.Grid(2, buttons...)
}

// libraryKeyboard lists entries as start/delete pairs. Filters by category are
// appended as a last row when categories are configured.
func libraryKeyboard(entries []meditation.Entry, categories []string) *tele.ReplyMarkup {
	rows := make([][]keyboard.Button, 0, len(entries)+1)
	for _, e := range entries {
		idx := strconv.Itoa(e.Index)
		rows = append(rows, []keyboard.Button{
			{Label: "▶️ " + e.Item.Title, Data: callbacks.Data(cbStart, idx)},
			{Label: "🗑", Data: callbacks.Data(cbDelete, idx)},
		})
	}
	if len(categories) > 0 {
		filters := []keyboard.Button{{Label: "All", Data: callbacks.Data(cbList, "")}}
		for _, c := range categories {
			filters = append(filters, keyboard.Button{Label: c, Data: callbacks.Data(cbList, c)})
		}
		rows = append(rows, filters)
	}
	return keyboard.Inline(rows...)
}

func endKeyboard() *tele.ReplyMarkup {
	return keyboard.Inline([]keyboard.Button{
		{Label: "✅ Finish", Data: callbacks.Data(cbEnd, endPayload)},
	})
}

func bold(s string) string {
	return "*" + format.EscapeV2(s) + "*"
}

var (
	textWelcome = format.EscapeV2("Welcome to the meditation bot!")

	textInstructions = bold("How it works") + "\n" + format.EscapeV2(
		"1) Get comfortable\n"+
			"2) Pick a meditation, the timer starts\n"+
			"3) Press 'Finish' when you are done\n"+
			"4) Stats show the total time and the time per meditation\n")

	textMainMenu       = format.EscapeV2("Main menu")
	textChoose         = format.EscapeV2("🧘 Choose a meditation:")
	textEmptyLibrary   = format.EscapeV2("You have no meditations yet. Use '" + labelUpload + "' to add one.")
	textEmptyCategory  = format.EscapeV2("No meditations in this category.")
	textUploadPrompt   = format.EscapeV2("Send a meditation as an audio or video file (mp3, mp4, ...).")
	textSendFileHint   = format.EscapeV2("Please send an MP3/MP4 file, or press '" + labelCancel + "'.")
	textBadFile        = format.EscapeV2("This file does not fit, an audio or video file is needed.")
	textEmptyTitle     = format.EscapeV2("The title cannot be empty. Send a title or press '" + meditation.KeepDefaultToken + "'.")
	textReservedTitle  = format.EscapeV2("This title is reserved. Please pick another one.")
	textPickCategory   = format.EscapeV2("Pick a category:")
	textBadCategory    = format.EscapeV2("Unknown category. Use one of the buttons.")
	textUploadStale    = format.EscapeV2("This upload is no longer active.")
	textUploadRestart  = format.EscapeV2("The previous upload was discarded.")
	textTryAgain       = format.EscapeV2("That did not work, please try again.")
	textUploadCanceled = format.EscapeV2("Upload cancelled.")
	textNothingCancel  = format.EscapeV2("Nothing to cancel.")
	textNoSession      = format.EscapeV2("No active session.")
	textGone           = format.EscapeV2("That meditation is no longer there. Open the menu again.")
	textNoStats        = format.EscapeV2("No stats yet.")
	textUnexpectedFile = format.EscapeV2("I was not expecting a file. Press '" + labelUpload + "' first.")
	textUnknown        = format.EscapeV2("I did not understand that. Use the buttons below.")
	textReminderUsage  = format.EscapeV2("Send /remind HH:MM to get a daily reminder, for example /remind 08:00. Send /remind off to disable it.")
	textReminderBad    = format.EscapeV2("Use HH:MM between 00:00 and 23:59, for example /remind 07:30.")
	textReminderOff    = format.EscapeV2("Daily reminder disabled.")
	textReminderNone   = format.EscapeV2("You have no reminder set.")
	textReminderFire   = "🧘 Time to meditate! Press 'Menu' to pick a meditation."
)

func renderTitlePrompt(defaultTitle string) string {
	return format.EscapeV2("Send a title or press '"+meditation.KeepDefaultToken+"' to use ") + bold(defaultTitle) + format.EscapeV2(".")
}

func renderUploaded(title string) string {
	return format.EscapeV2("✅ Meditation ") + bold(title) + format.EscapeV2(" uploaded!")
}

func renderRunning(title string) string {
	return format.EscapeV2("⏳ Running: ") + bold(title) + format.EscapeV2(". Press 'Finish' when you are done.")
}

func renderCompleted(done meditation.Completion) string {
	return format.EscapeV2("✅ Meditation ") + bold(done.Title) +
		format.EscapeV2(fmt.Sprintf(" finished, %d min added.\nPick the next one or upload new meditations!", done.Minutes))
}

func renderDeleted(title string) string {
	return format.EscapeV2("🗑 Deleted: ") + bold(title)
}

func renderStats(stats meditation.Stats) string {
	if len(stats) == 0 {
		return textNoStats
	}
	var b strings.Builder
	b.WriteString(format.EscapeV2("📊 ") + bold("Your stats") + format.EscapeV2(":") + "\n")
	for _, title := range stats.Titles() {
		b.WriteString(format.EscapeV2(fmt.Sprintf("— %s: %d min", title, stats[title])))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(format.EscapeV2(fmt.Sprintf("Total (all meditations): %d min", stats.Total())))
	return b.String()
}

func renderReminderSet(rem meditation.Reminder) string {
	return format.EscapeV2("⏰ Daily reminder set for ") + bold(rem.String()) + format.EscapeV2(".")
}

func renderReminderCurrent(rem meditation.Reminder) string {
	return format.EscapeV2("Your daily reminder is at ") + bold(rem.String()) + format.EscapeV2(".") + "\n" + textReminderUsage
}

func renderSummary(s meditation.Summary, failedSends uint64) string {
	return format.EscapeV2(fmt.Sprintf(
		"Users with meditations: %d\nMeditations: %d\nReminders: %d\nUploads in progress: %d\nActive sessions: %d\nFailed reminder sends: %d",
		s.Users, s.Meditations, s.Reminders, s.Uploads, s.Practicing, failedSends,
	))
}

func playCaption(title string) string {
	return "▶️ " + title
}
