package posting

import tele "gopkg.in/telebot.v4"

// MediaKind names the single attachment a post may carry.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// Media references an already uploaded Telegram file.
type Media struct {
	Kind   MediaKind
	FileID string
}

// Draft is the post assembled during one dialogue. GroupID is meaningful
// once a group is chosen, ThreadID once a topic is chosen, Text and Media
// once the content has been received.
type Draft struct {
	GroupID  int64
	ThreadID int
	Text     string
	Media    *Media
}

// MediaKind returns the attachment kind or "" for text-only drafts.
func (d Draft) MediaKind() string {
	if d.Media == nil {
		return ""
	}
	return string(d.Media.Kind)
}

// Content is the operator-relevant part of an inbound message.
type Content struct {
	// Text is the message text or, for media messages, the caption.
	Text    string
	PhotoID string
	VideoID string
	// Other marks messages that are neither plain text nor photo/video.
	Other bool
}

// IsText reports whether the message was a plain text message.
func (c Content) IsText() bool {
	return c.PhotoID == "" && c.VideoID == "" && !c.Other
}

// Media picks at most one attachment; a photo wins over a video.
func (c Content) Media() *Media {
	switch {
	case c.PhotoID != "":
		return &Media{Kind: MediaPhoto, FileID: c.PhotoID}
	case c.VideoID != "":
		return &Media{Kind: MediaVideo, FileID: c.VideoID}
	default:
		return nil
	}
}

// ContentFrom extracts Content from a Telegram message. Telebot already
// resolves Photo to the highest-resolution size.
func ContentFrom(m *tele.Message) Content {
	if m == nil {
		return Content{}
	}
	c := Content{Text: m.Text}
	if m.Caption != "" {
		c.Text = m.Caption
	}
	if m.Photo != nil {
		c.PhotoID = m.Photo.FileID
	}
	if m.Video != nil {
		c.VideoID = m.Video.FileID
	}
	if m.Text == "" && c.PhotoID == "" && c.VideoID == "" {
		c.Other = true
	}
	return c
}
