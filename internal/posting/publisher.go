package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/m3rciful/postbot/core/logger"
	"github.com/m3rciful/postbot/internal/journal"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned when publishing before a bot API client is attached.
var ErrNotBound = errors.New("posting: publisher has no bot client")

// Poster is the subset of *tele.Bot used for delivery.
type Poster interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type posterBox struct{ api Poster }

// BotPublisher sends drafts to their group topic and records each attempt.
type BotPublisher struct {
	api     atomic.Pointer[posterBox]
	journal journal.Recorder
}

// NewPublisher returns a publisher that records attempts in rec.
// A nil rec disables recording.
func NewPublisher(rec journal.Recorder) *BotPublisher {
	if rec == nil {
		rec = journal.Noop{}
	}
	return &BotPublisher{journal: rec}
}

// Bind attaches the bot API client. The bot is created after the publisher,
// so binding happens once the runtime is up.
func (p *BotPublisher) Bind(api Poster) {
	p.api.Store(&posterBox{api: api})
}

// Publish sends d as a single message: photo or video with the text as
// caption, or plain text. Failures are returned as is; there is no retry.
func (p *BotPublisher) Publish(ctx context.Context, operatorID int64, d Draft) error {
	box := p.api.Load()
	if box == nil || box.api == nil {
		return ErrNotBound
	}

	what, endpoint := outgoing(d)
	start := time.Now()
	_, err := box.api.Send(tele.ChatID(d.GroupID), what, &tele.SendOptions{ThreadID: d.ThreadID})
	if err != nil {
		err = fmt.Errorf("%s to %d/%d: %w", endpoint, d.GroupID, d.ThreadID, err)
	}

	logger.LogEvent(ctx, logger.Posting, levelFor(err), "post.publish",
		slog.String("status", logger.Status(err)),
		slog.String("endpoint", endpoint),
		slog.Int64("user_id", operatorID),
		slog.Int64("group_id", d.GroupID),
		slog.Int("thread_id", d.ThreadID),
		slog.String("media", d.MediaKind()),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)
	p.record(ctx, operatorID, d, err)
	return err
}

func (p *BotPublisher) record(ctx context.Context, operatorID int64, d Draft, sendErr error) {
	entry := journal.Entry{
		OperatorID: operatorID,
		GroupID:    d.GroupID,
		ThreadID:   d.ThreadID,
		MediaKind:  d.MediaKind(),
		Status:     journal.StatusSent,
	}
	if sendErr != nil {
		entry.Status = journal.StatusFailed
		entry.Error = logger.Redact(sendErr)
	}
	// The post is already out; a journal failure is only logged.
	if err := p.journal.Record(ctx, entry); err != nil {
		logger.LogEvent(ctx, logger.Posting, slog.LevelWarn, "post.journal",
			slog.String("status", logger.Status(err)),
			slog.String("err", logger.Redact(err)),
		)
	}
}

func outgoing(d Draft) (interface{}, string) {
	if d.Media != nil {
		file := tele.File{FileID: d.Media.FileID}
		switch d.Media.Kind {
		case MediaPhoto:
			return &tele.Photo{File: file, Caption: d.Text}, "sendPhoto"
		case MediaVideo:
			return &tele.Video{File: file, Caption: d.Text}, "sendVideo"
		}
	}
	return d.Text, "sendMessage"
}

func levelFor(err error) slog.Level {
	if err != nil {
		return slog.LevelError
	}
	return slog.LevelInfo
}
