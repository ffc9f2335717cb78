// Package keyboard builds reply and inline markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// MaxDataLen is the Bot API limit on callback data, in bytes.
const MaxDataLen = 64

// Button is an inline button whose Data goes to Telegram unchanged.
type Button struct {
	Label string
	Data  string
}

// Reply builds a resized reply keyboard, one row per slice.
func Reply(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	out := make([]tele.Row, 0, len(rows))
	for _, labels := range rows {
		row := make(tele.Row, 0, len(labels))
		for _, label := range labels {
			row = append(row, markup.Text(label))
		}
		out = append(out, row)
	}
	markup.Reply(out...)
	return markup
}

// Inline builds an inline keyboard, one row per slice. Buttons with data
// longer than MaxDataLen are dropped since Telegram rejects the whole markup.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	grid := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			if len(b.Data) > MaxDataLen {
				continue
			}
			line = append(line, tele.InlineButton{Text: b.Label, Data: b.Data})
		}
		if len(line) > 0 {
			grid = append(grid, line)
		}
	}
	return &tele.ReplyMarkup{InlineKeyboard: grid}
}

// Grid lays buttons out perRow per line. perRow < 1 means one per line.
func Grid(perRow int, buttons ...Button) *tele.ReplyMarkup {
	perRow = max(perRow, 1)
	rows := make([][]Button, 0, (len(buttons)+perRow-1)/perRow)
	for len(buttons) > 0 {
		n := min(perRow, len(buttons))
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	return Inline(rows...)
}
