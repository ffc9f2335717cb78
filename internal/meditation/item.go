package meditation

import (
	"path"
	"strings"
)

// MediaKind is the playable type of a stored meditation.
type MediaKind string

const (
	// MediaAudio marks meditations sent back as audio messages.
	MediaAudio MediaKind = "audio"
	// MediaVideo marks meditations sent back as video messages.
	MediaVideo MediaKind = "video"
)

// DefaultPlaceholderTitle is used when an attachment carries no file name.
const DefaultPlaceholderTitle = "Unnamed"

// Valid reports whether k is a supported media kind.
func (k MediaKind) Valid() bool {
	return k == MediaAudio || k == MediaVideo
}

// Item is one uploaded meditation. Items are immutable once stored.
type Item struct {
	Title    string    `json:"title"`
	FileID   string    `json:"file_id"`
	Kind     MediaKind `json:"type"`
	Category string    `json:"category,omitempty"`
}

// Entry pairs an item with its position in the user's unfiltered list.
type Entry struct {
	Index int
	Item  Item
}

// Media describes an inbound attachment.
// Kind is empty for generic documents; it is then derived from FileName or MIME.
type Media struct {
	Ref      string
	Kind     MediaKind
	FileName string
	MIME     string
}

var extensionKinds = map[string]MediaKind{
	".mp3":  MediaAudio,
	".m4a":  MediaAudio,
	".ogg":  MediaAudio,
	".oga":  MediaAudio,
	".wav":  MediaAudio,
	".flac": MediaAudio,
	".mp4":  MediaVideo,
	".mov":  MediaVideo,
	".mkv":  MediaVideo,
	".webm": MediaVideo,
}

// DetectKind resolves the media kind of an attachment.
func DetectKind(m Media) (MediaKind, bool) {
	if m.Kind != "" {
		return m.Kind, m.Kind.Valid()
	}
	ext := strings.ToLower(path.Ext(strings.TrimSpace(m.FileName)))
	if kind, ok := extensionKinds[ext]; ok {
		return kind, true
	}
	mime := strings.ToLower(strings.TrimSpace(m.MIME))
	switch {
	case strings.HasPrefix(mime, "audio/"):
		return MediaAudio, true
	case strings.HasPrefix(mime, "video/"):
		return MediaVideo, true
	}
	return "", false
}

// DefaultTitle derives the suggested title from the attachment file name.
func DefaultTitle(fileName, placeholder string) string {
	if title := strings.TrimSpace(fileName); title != "" {
		return title
	}
	if placeholder == "" {
		return DefaultPlaceholderTitle
	}
	return placeholder
}
