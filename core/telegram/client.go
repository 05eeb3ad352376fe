package telegram

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// NewClient builds a standalone Bot API client for one-off calls outside the
// update loop. It skips the getMe handshake, so construction never touches the network.
func NewClient(token string, retries int) (*tele.Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram: empty token")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Client:  BuildHTTPClient(retries),
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: client initialization failed: %w", err)
	}
	return bot, nil
}
