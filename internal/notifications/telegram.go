package notifications

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type TelegramNotifier struct {
	token  string
	chatID string
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:  token,
		chatID: chatID,
	}
}

func (t *TelegramNotifier) SendAlert(level, message string) error {
	emoji := "ℹ️"
	switch level {
	case "warning":
		emoji = "⚠️"
	case "error":
		emoji = "🚨"
	case "success":
		emoji = "✅"
	}

	text := fmt.Sprintf("%s *Trade Guardian*\n\n%s", emoji, message)

	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	resp, err := http.Post(apiURL, "application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// FormatOpenAlert renders a position-opened message
func FormatOpenAlert(symbol, side, confidence string, quantity, entryPrice, stopLoss, takeProfit float64) string {
	return fmt.Sprintf(
		"📦 *%s %s* opened (%s confidence)\nQty: `%.6f` @ `$%.4f`\nSL: `$%.4f`  TP: `$%.4f`",
		symbol, side, confidence, quantity, entryPrice, stopLoss, takeProfit)
}

// FormatTrailingAlert renders a trailing-stop update message
func FormatTrailingAlert(symbol string, activated bool, stopPrice float64) string {
	if activated {
		return fmt.Sprintf("🔓 *%s* trailing stop activated at `$%.4f`", symbol, stopPrice)
	}
	return fmt.Sprintf("🔒 *%s* trailing stop raised to `$%.4f`", symbol, stopPrice)
}

// FormatCloseAlert renders a close-with-grade message
func FormatCloseAlert(symbol, side, exitType, grade string, exitPrice, realizedPnLPct float64) string {
	return fmt.Sprintf(
		"🚪 *%s %s* closed via %s\nExit: `$%.4f`  PnL: `%.2f%%`\nGrade: *%s*",
		symbol, side, exitType, exitPrice, realizedPnLPct*100, grade)
}
