package meditation

import (
	"context"
	"errors"
	"testing"
)

func TestUploadKeepDefaultTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const uid = 1

	f.mgr.BeginUpload(ctx, uid)
	if got := f.mgr.UploadStep(uid); got != StepWaitingForFile {
		t.Fatalf("step = %s, want waiting_for_file", got)
	}

	res, err := f.mgr.HandleUpload(ctx, uid, MediaEvent(Media{Ref: "f1", FileName: "Body Scan.m4a"}))
	if err != nil {
		t.Fatalf("media: %v", err)
	}
	if res.Step != StepWaitingForTitle || res.DefaultTitle != "Body Scan.m4a" {
		t.Fatalf("result = %+v", res)
	}

	res, err = f.mgr.HandleUpload(ctx, uid, TextEvent(KeepDefaultToken))
	if err != nil {
		t.Fatalf("title: %v", err)
	}
	if res.Step != StepCommitted || res.Item.Title != "Body Scan.m4a" || res.Item.FileID != "f1" {
		t.Fatalf("result = %+v", res)
	}
	if f.mgr.UploadInProgress(uid) {
		t.Fatal("session should be cleared after commit")
	}
}

func TestUploadPlaceholderTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mgr.BeginUpload(ctx, 1)
	res, err := f.mgr.HandleUpload(ctx, 1, MediaEvent(Media{Ref: "v1", Kind: MediaVideo}))
	if err != nil {
		t.Fatalf("media: %v", err)
	}
	if res.DefaultTitle != DefaultPlaceholderTitle {
		t.Fatalf("default title = %q", res.DefaultTitle)
	}
}

func TestUploadRejectsUnsupportedMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mgr.BeginUpload(ctx, 1)

	res, err := f.mgr.HandleUpload(ctx, 1, MediaEvent(Media{Ref: "d1", FileName: "notes.pdf", MIME: "application/pdf"}))
	if !errors.Is(err, ErrUnsupportedMedia) || !IsValidation(err) {
		t.Fatalf("err = %v, want unsupported media validation", err)
	}
	if res.Step != StepWaitingForFile {
		t.Fatalf("step = %s, session should stay waiting for file", res.Step)
	}

	res, err = f.mgr.HandleUpload(ctx, 1, MediaEvent(Media{Ref: "d2", FileName: "track", MIME: "audio/mpeg"}))
	if err != nil || res.Step != StepWaitingForTitle {
		t.Fatalf("MIME fallback failed: %+v, %v", res, err)
	}
}

func TestUploadRejectsBadTitles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mgr.BeginUpload(ctx, 1)
	_, _ = f.mgr.HandleUpload(ctx, 1, MediaEvent(Media{Ref: "f", FileName: "a.mp3"}))

	for _, title := range []string{"   ", OverallLabel} {
		res, err := f.mgr.HandleUpload(ctx, 1, TextEvent(title))
		if !errors.Is(err, ErrInvalidTitle) {
			t.Fatalf("title %q: err = %v", title, err)
		}
		if res.Step != StepWaitingForTitle || res.DefaultTitle != "a.mp3" {
			t.Fatalf("title %q: result = %+v", title, res)
		}
	}
	if got := len(f.mgr.Meditations(1)); got != 0 {
		t.Fatalf("rejected titles committed %d items", got)
	}
}

func TestUploadWithCategories(t *testing.T) {
	f := newFixture(t, "sleep", "focus")
	ctx := context.Background()
	const uid = 9

	f.mgr.BeginUpload(ctx, uid)
	_, _ = f.mgr.HandleUpload(ctx, uid, MediaEvent(Media{Ref: "f", FileName: "night.mp3"}))
	res, err := f.mgr.HandleUpload(ctx, uid, TextEvent("Night"))
	if err != nil {
		t.Fatalf("title: %v", err)
	}
	if res.Step != StepWaitingForCategory || res.Title != "Night" {
		t.Fatalf("result = %+v", res)
	}

	res, err = f.mgr.HandleUpload(ctx, uid, CategoryEvent("work"))
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("err = %v, want ErrUnknownCategory", err)
	}
	if res.Step != StepWaitingForCategory {
		t.Fatalf("step = %s after rejected category", res.Step)
	}

	res, err = f.mgr.HandleUpload(ctx, uid, TextEvent("sleep"))
	if err != nil {
		t.Fatalf("typed category: %v", err)
	}
	if res.Item.Category != "sleep" {
		t.Fatalf("category = %q", res.Item.Category)
	}

	f.upload(t, uid, "desk.mp3", "Desk", "focus")
	sleep := f.mgr.MeditationsByCategory(uid, "sleep")
	focus := f.mgr.MeditationsByCategory(uid, "focus")
	if len(sleep) != 1 || sleep[0].Index != 0 {
		t.Fatalf("sleep = %+v", sleep)
	}
	if len(focus) != 1 || focus[0].Index != 1 || focus[0].Item.Title != "Desk" {
		t.Fatalf("focus = %+v", focus)
	}
}

func TestUploadEventsOutsideFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.mgr.HandleUpload(ctx, 1, TextEvent("hello")); !errors.Is(err, ErrNoUpload) {
		t.Fatalf("err = %v, want ErrNoUpload", err)
	}

	f.mgr.BeginUpload(ctx, 1)
	res, err := f.mgr.HandleUpload(ctx, 1, TextEvent("hello"))
	if !errors.Is(err, ErrUnexpectedEvent) {
		t.Fatalf("err = %v, want ErrUnexpectedEvent", err)
	}
	if res.Step != StepWaitingForFile {
		t.Fatalf("step = %s", res.Step)
	}

	_, _ = f.mgr.HandleUpload(ctx, 1, MediaEvent(Media{Ref: "f", FileName: "a.mp3"}))
	if _, err := f.mgr.HandleUpload(ctx, 1, MediaEvent(Media{Ref: "g", FileName: "b.mp3"})); !errors.Is(err, ErrUnexpectedEvent) {
		t.Fatalf("second file: err = %v", err)
	}
}

func TestCancelUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if f.mgr.CancelUpload(ctx, 1) {
		t.Fatal("cancel without session should report false")
	}
	f.mgr.BeginUpload(ctx, 1)
	_, _ = f.mgr.HandleUpload(ctx, 1, MediaEvent(Media{Ref: "f", FileName: "a.mp3"}))
	if !f.mgr.CancelUpload(ctx, 1) {
		t.Fatal("cancel should report true")
	}
	if f.mgr.UploadStep(1) != StepIdle {
		t.Fatal("session should be gone")
	}
	if got := len(f.mgr.Meditations(1)); got != 0 {
		t.Fatalf("cancelled upload committed %d items", got)
	}
}

func TestBeginUploadRestartsFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mgr.BeginUpload(ctx, 1)
	_, _ = f.mgr.HandleUpload(ctx, 1, MediaEvent(Media{Ref: "f", FileName: "a.mp3"}))
	f.mgr.BeginUpload(ctx, 1)
	if got := f.mgr.UploadStep(1); got != StepWaitingForFile {
		t.Fatalf("step = %s, want waiting_for_file", got)
	}
}

func TestDetectKind(t *testing.T) {
	cases := []struct {
		media Media
		want  MediaKind
		ok    bool
	}{
		{Media{FileName: "rain.MP3"}, MediaAudio, true},
		{Media{FileName: "clip.webm"}, MediaVideo, true},
		{Media{FileName: "x", MIME: "video/quicktime"}, MediaVideo, true},
		{Media{Kind: MediaAudio}, MediaAudio, true},
		{Media{Kind: "sticker"}, "sticker", false},
		{Media{FileName: "a.txt", MIME: "text/plain"}, "", false},
	}
	for _, tc := range cases {
		got, ok := DetectKind(tc.media)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("DetectKind(%+v) = %q, %v; want %q, %v", tc.media, got, ok, tc.want, tc.ok)
		}
	}
}
