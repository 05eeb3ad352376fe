package posting

import (
	"context"
	"testing"

	"github.com/m3rciful/postbot/internal/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func TestPublishPayloadByMedia(t *testing.T) {
	cases := []struct {
		name  string
		draft Draft
		check func(t *testing.T, what interface{})
	}{
		{
			name:  "text",
			draft: Draft{GroupID: 1, ThreadID: 10, Text: "Hello"},
			check: func(t *testing.T, what interface{}) { assert.Equal(t, "Hello", what) },
		},
		{
			name:  "photo",
			draft: Draft{GroupID: 1, ThreadID: 10, Text: "cap", Media: &Media{Kind: MediaPhoto, FileID: "ph"}},
			check: func(t *testing.T, what interface{}) {
				photo, ok := what.(*tele.Photo)
				require.True(t, ok)
				assert.Equal(t, "ph", photo.FileID)
				assert.Equal(t, "cap", photo.Caption)
			},
		},
		{
			name:  "video",
			draft: Draft{GroupID: 1, ThreadID: 10, Media: &Media{Kind: MediaVideo, FileID: "vd"}},
			check: func(t *testing.T, what interface{}) {
				video, ok := what.(*tele.Video)
				require.True(t, ok)
				assert.Equal(t, "vd", video.FileID)
				assert.Empty(t, video.Caption)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			poster := &fakePoster{}
			rec := &memJournal{}
			pub := NewPublisher(rec)
			pub.Bind(poster)

			require.NoError(t, pub.Publish(context.Background(), 77, tc.draft))
			calls := poster.sent()
			require.Len(t, calls, 1)
			assert.Equal(t, tele.ChatID(tc.draft.GroupID), calls[0].to)
			assert.Equal(t, tc.draft.ThreadID, calls[0].opts.ThreadID)
			tc.check(t, calls[0].what)

			require.Len(t, rec.entries, 1)
			assert.Equal(t, journal.StatusSent, rec.entries[0].Status)
			assert.Equal(t, int64(77), rec.entries[0].OperatorID)
			assert.Equal(t, tc.draft.MediaKind(), rec.entries[0].MediaKind)
		})
	}
}

func TestPublishUnbound(t *testing.T) {
	pub := NewPublisher(nil)
	err := pub.Publish(context.Background(), 1, Draft{GroupID: 1, Text: "x"})
	require.ErrorIs(t, err, ErrNotBound)
}

func TestPublishFailureIsNotRetried(t *testing.T) {
	poster := &fakePoster{err: errBoom}
	rec := &memJournal{}
	pub := NewPublisher(rec)
	pub.Bind(poster)

	err := pub.Publish(context.Background(), 1, Draft{GroupID: 5, ThreadID: 2, Text: "x"})
	require.ErrorIs(t, err, errBoom)
	assert.Len(t, poster.sent(), 1)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, journal.StatusFailed, rec.entries[0].Status)
	assert.Contains(t, rec.entries[0].Error, "boom")
}

func TestJournalFailureDoesNotFailPublish(t *testing.T) {
	poster := &fakePoster{}
	pub := NewPublisher(&memJournal{err: errBoom})
	pub.Bind(poster)

	require.NoError(t, pub.Publish(context.Background(), 1, Draft{GroupID: 5, Text: "x"}))
	assert.Len(t, poster.sent(), 1)
}

func TestFailedPublishKeepsTokenOutOfJournal(t *testing.T) {
	const token = "123456:SECRETsecret"
	bot, err := tele.NewBot(tele.Settings{Token: token, URL: "http://127.0.0.1:1", Offline: true})
	require.NoError(t, err)

	rec := &memJournal{}
	pub := NewPublisher(rec)
	pub.Bind(bot)

	err = pub.Publish(context.Background(), 1, Draft{GroupID: 1, ThreadID: 10, Text: "Hello"})
	require.Error(t, err)
	require.Contains(t, err.Error(), token, "the returned error is untouched")

	require.Len(t, rec.entries, 1)
	assert.Equal(t, journal.StatusFailed, rec.entries[0].Status)
	assert.NotContains(t, rec.entries[0].Error, "SECRET")
	assert.Contains(t, rec.entries[0].Error, "bot<redacted>")
}
