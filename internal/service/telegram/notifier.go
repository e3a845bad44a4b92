package telegram

import (
	"context"
	"fmt"

	drepo "PairPull/internal/domain/repository"
	xhttp "PairPull/pkg/http"
	applogger "PairPull/pkg/logger"
)

// Notifier sends trade signals to a Telegram chat via the Bot API.
type Notifier struct {
	token  string
	chatID string
	http   *xhttp.Client
	l      *applogger.Logger
}

var _ drepo.Notifier = (*Notifier)(nil)

func New(token, chatID string, httpClient *xhttp.Client, l *applogger.Logger) *Notifier {
	return &Notifier{token: token, chatID: chatID, http: httpClient, l: l}
}

type sendMessageReq struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResp struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify delivers one message. Errors are returned for the caller to log;
// a failed notification never blocks a trade transition.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.token)

	var resp sendMessageResp
	err := n.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    url,
		Body:   sendMessageReq{ChatID: n.chatID, Text: message},
	}, &resp)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram send: %s", resp.Description)
	}
	if n.l != nil {
		n.l.Debug("notification sent", applogger.Int("chars", len(message)))
	}
	return nil
}
