package posting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

func TestContentFrom(t *testing.T) {
	cases := []struct {
		name string
		msg  *tele.Message
		want Content
		text bool
	}{
		{"nil", nil, Content{}, true},
		{"text", &tele.Message{Text: "hi"}, Content{Text: "hi"}, true},
		{
			"photo with caption",
			&tele.Message{Caption: "cap", Photo: &tele.Photo{File: tele.File{FileID: "big"}}},
			Content{Text: "cap", PhotoID: "big"},
			false,
		},
		{
			"video",
			&tele.Message{Video: &tele.Video{File: tele.File{FileID: "v"}}},
			Content{VideoID: "v"},
			false,
		},
		{
			"sticker",
			&tele.Message{Sticker: &tele.Sticker{File: tele.File{FileID: "s"}}},
			Content{Other: true},
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ContentFrom(tc.msg)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.text, got.IsText())
		})
	}
}

func TestDraftMediaKind(t *testing.T) {
	assert.Empty(t, Draft{}.MediaKind())
	assert.Equal(t, "video", Draft{Media: &Media{Kind: MediaVideo}}.MediaKind())
}
