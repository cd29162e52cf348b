package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TelegramClient envia mensagens via Bot API (push de leads quentes e alertas
// operacionais para o canal dos gestores).
type TelegramClient struct {
	BotToken string
	BaseURL  string // override para testes; default https://api.telegram.org
}

func (t TelegramClient) baseURL() string {
	if strings.TrimSpace(t.BaseURL) != "" {
		return strings.TrimRight(t.BaseURL, "/")
	}
	return "https://api.telegram.org"
}

// SendText envia uma mensagem de texto para um chat/canal.
func (t TelegramClient) SendText(ctx context.Context, chatID string, text string) error {
	if strings.TrimSpace(t.BotToken) == "" {
		return fmt.Errorf("telegram bot token not set")
	}
	if strings.TrimSpace(chatID) == "" {
		return fmt.Errorf("telegram chat id not set")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL(), t.BotToken)

	reqBody := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	b, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram api error: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}
