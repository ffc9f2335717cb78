package meditation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/meditationbot/core/logger"
)

// KeepDefaultToken is the literal reply that accepts the suggested title.
const KeepDefaultToken = "Keep default"

// UploadStep is the externally visible position in the upload flow.
type UploadStep int

const (
	StepIdle UploadStep = iota
	StepWaitingForFile
	StepWaitingForTitle
	StepWaitingForCategory
	StepCommitted
)

func (s UploadStep) String() string {
	switch s {
	case StepWaitingForFile:
		return "waiting_for_file"
	case StepWaitingForTitle:
		return "waiting_for_title"
	case StepWaitingForCategory:
		return "waiting_for_category"
	case StepCommitted:
		return "committed"
	default:
		return "idle"
	}
}

// uploadState is one variant of the upload session; each carries only the
// fields that are known in that step.
type uploadState interface {
	step() UploadStep
}

type awaitingFile struct{}

type awaitingTitle struct {
	media        Media
	defaultTitle string
}

type awaitingCategory struct {
	media Media
	title string
}

func (awaitingFile) step() UploadStep { return StepWaitingForFile }

func (awaitingTitle) step() UploadStep { return StepWaitingForTitle }

func (awaitingCategory) step() UploadStep { return StepWaitingForCategory }

// EventKind classifies inbound upload events.
type EventKind int

const (
	EventMedia EventKind = iota + 1
	EventText
	EventCategory
)

func (k EventKind) String() string {
	switch k {
	case EventMedia:
		return "media"
	case EventText:
		return "text"
	case EventCategory:
		return "category"
	default:
		return "unknown"
	}
}

// Event is an inbound message relevant to the upload flow.
type Event struct {
	Kind     EventKind
	Media    Media
	Text     string
	Category string
}

// MediaEvent wraps an attachment.
func MediaEvent(m Media) Event { return Event{Kind: EventMedia, Media: m} }

// TextEvent wraps free text.
func TextEvent(text string) Event { return Event{Kind: EventText, Text: text} }

// CategoryEvent wraps a category button press.
func CategoryEvent(name string) Event { return Event{Kind: EventCategory, Category: name} }

// UploadResult describes the state reached after an upload event.
type UploadResult struct {
	Step UploadStep
	// DefaultTitle is set when the flow asks for a title.
	DefaultTitle string
	// Title is the resolved title once chosen.
	Title string
	// Item and Index are set on commit.
	Item  Item
	Index int
}

type transitionKey struct {
	step  UploadStep
	event EventKind
}

type transitionFunc func(m *Manager, ctx context.Context, userID int64, st uploadState, ev Event) (UploadResult, error)

// uploadTransitions is the complete transition table of the upload flow.
// Pairs missing from the table are not consumed by the flow.
var uploadTransitions = map[transitionKey]transitionFunc{
	{StepWaitingForFile, EventMedia}:        (*Manager).acceptMedia,
	{StepWaitingForTitle, EventText}:        (*Manager).acceptTitle,
	{StepWaitingForCategory, EventCategory}: (*Manager).acceptCategory,
	{StepWaitingForCategory, EventText}:     (*Manager).acceptCategory,
}

// BeginUpload opens a new upload session, replacing any unfinished one.
func (m *Manager) BeginUpload(ctx context.Context, userID int64) {
	unlock := m.locks.lock(userID)
	defer unlock()

	_, replaced := m.uploads.Get(userID)
	m.uploads.Set(userID, awaitingFile{})
	logger.Debug(ctx, component, "upload.begin",
		slog.Int64("user_id", userID),
		slog.Bool("replaced", replaced),
	)
}

// CancelUpload discards the upload session. It reports whether one existed.
func (m *Manager) CancelUpload(ctx context.Context, userID int64) bool {
	unlock := m.locks.lock(userID)
	defer unlock()

	st, ok := m.uploads.Take(userID)
	if ok {
		logger.Info(ctx, component, "upload.cancel",
			slog.Int64("user_id", userID),
			slog.String("step", st.step().String()),
		)
	}
	return ok
}

// UploadStep returns the user's current upload step.
func (m *Manager) UploadStep(userID int64) UploadStep {
	st, ok := m.uploads.Get(userID)
	if !ok {
		return StepIdle
	}
	return st.step()
}

// UploadInProgress reports whether the user has an open upload session.
func (m *Manager) UploadInProgress(userID int64) bool {
	return m.uploads.InProgress(userID)
}

// HandleUpload feeds an event into the user's upload flow.
// ErrNoUpload and ErrUnexpectedEvent mean the event was not consumed.
// Validation failures leave the session in its current step.
func (m *Manager) HandleUpload(ctx context.Context, userID int64, ev Event) (UploadResult, error) {
	unlock := m.locks.lock(userID)
	defer unlock()

	st, ok := m.uploads.Get(userID)
	if !ok {
		return UploadResult{Step: StepIdle}, ErrNoUpload
	}
	transition, ok := uploadTransitions[transitionKey{step: st.step(), event: ev.Kind}]
	if !ok {
		return UploadResult{Step: st.step()}, ErrUnexpectedEvent
	}
	res, err := transition(m, ctx, userID, st, ev)
	if err != nil {
		logger.Debug(ctx, component, "upload.rejected",
			slog.Int64("user_id", userID),
			slog.String("step", st.step().String()),
			slog.String("kind", ev.Kind.String()),
			slog.String("err", err.Error()),
		)
		res.Step = st.step()
	}
	return res, err
}

func (m *Manager) acceptMedia(ctx context.Context, userID int64, _ uploadState, ev Event) (UploadResult, error) {
	media := ev.Media
	kind, ok := DetectKind(media)
	if !ok || strings.TrimSpace(media.Ref) == "" {
		return UploadResult{}, invalid("file", ErrUnsupportedMedia, "audio or video file required")
	}
	media.Kind = kind
	next := awaitingTitle{
		media:        media,
		defaultTitle: DefaultTitle(media.FileName, m.placeholder),
	}
	m.uploads.Set(userID, next)
	logger.Debug(ctx, component, "upload.file",
		slog.Int64("user_id", userID),
		slog.String("kind", string(kind)),
		slog.String("title", logger.SanitizeLimit(next.defaultTitle, 128)),
	)
	return UploadResult{Step: StepWaitingForTitle, DefaultTitle: next.defaultTitle}, nil
}

func (m *Manager) acceptTitle(ctx context.Context, userID int64, st uploadState, ev Event) (UploadResult, error) {
	cur := st.(awaitingTitle)
	text := strings.TrimSpace(ev.Text)
	title := text
	if text == KeepDefaultToken {
		title = cur.defaultTitle
	}
	switch {
	case title == "":
		return UploadResult{DefaultTitle: cur.defaultTitle}, invalid("title", ErrInvalidTitle, "title is empty")
	case title == OverallLabel:
		return UploadResult{DefaultTitle: cur.defaultTitle}, invalid("title", ErrInvalidTitle, "title is reserved")
	}

	if len(m.categories) == 0 {
		return m.commit(ctx, userID, cur.media, title, "")
	}
	m.uploads.Set(userID, awaitingCategory{media: cur.media, title: title})
	return UploadResult{Step: StepWaitingForCategory, Title: title}, nil
}

func (m *Manager) acceptCategory(ctx context.Context, userID int64, st uploadState, ev Event) (UploadResult, error) {
	cur := st.(awaitingCategory)
	name := ev.Category
	if ev.Kind == EventText {
		name = ev.Text
	}
	category, ok := m.lookupCategory(name)
	if !ok {
		return UploadResult{Title: cur.title}, invalid("category", ErrUnknownCategory, "category "+name+" is not offered")
	}
	return m.commit(ctx, userID, cur.media, cur.title, category)
}

func (m *Manager) commit(ctx context.Context, userID int64, media Media, title, category string) (UploadResult, error) {
	item := Item{
		Title:    title,
		FileID:   media.Ref,
		Kind:     media.Kind,
		Category: category,
	}
	index := m.library.Append(userID, item)
	m.uploads.Clear(userID)
	m.persist(ctx, DocMeditations)

	logger.Info(ctx, component, "upload.commit",
		slog.Int64("user_id", userID),
		slog.Int("index", index),
		slog.String("title", logger.SanitizeLimit(title, 128)),
		slog.String("kind", string(item.Kind)),
		slog.String("category", category),
	)
	return UploadResult{Step: StepCommitted, Title: title, Item: item, Index: index}, nil
}

func (m *Manager) lookupCategory(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range m.categories {
		if c == name {
			return c, true
		}
	}
	return "", false
}
