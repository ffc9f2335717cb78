// Package callbacks encodes and decodes inline button callback data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits callback data into a routing key and payload.
// A non-empty Unique wins; otherwise Data is parsed with ParseData.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return ParseData(cb.Data)
}

// ParseData understands telebot's "\f<unique>|<payload>" and the plain
// "<key>_<payload>" form. Only the first separator splits, so payloads may
// contain underscores.
func ParseData(raw string) (string, string) {
	// \f is whitespace to TrimSpace, so trim only the usual blanks.
	raw = strings.Trim(raw, " \t\r\n")
	if rest, ok := strings.CutPrefix(raw, "\f"); ok {
		key, payload, _ := strings.Cut(rest, "|")
		return strings.TrimSpace(key), payload
	}
	key, payload, _ := strings.Cut(raw, "_")
	return strings.TrimSpace(key), payload
}

// CallbackPayload returns the payload of the current callback, or "".
func CallbackPayload(c tele.Context) string {
	_, payload := ParseCallbackData(c.Callback())
	return payload
}

// Data builds the raw "<key>_<payload>" form understood by ParseData.
func Data(key, payload string) string {
	return key + "_" + payload
}
