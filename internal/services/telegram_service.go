package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/farmacia/internal/models"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramService sends admin notifications through the Telegram Bot API.
type TelegramService struct {
	apiBase     string
	botToken    string
	adminChatID string
	brand       string
	httpClient  *http.Client
	log         *zap.Logger
}

// NewTelegramService creates a TelegramService. An empty bot token or chat id turns
// every send into a no-op.
func NewTelegramService(botToken, adminChatID, brand string, log *zap.Logger) *TelegramService {
	return &TelegramService{
		apiBase:     telegramAPIBase,
		botToken:    botToken,
		adminChatID: adminChatID,
		brand:       brand,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log.Named("telegram"),
	}
}

// WithAPIBase points the service at a different Bot API host.
func (s *TelegramService) WithAPIBase(base string) *TelegramService {
	s.apiBase = strings.TrimRight(base, "/")
	return s
}

// Enabled reports whether both bot token and admin chat are configured.
func (s *TelegramService) Enabled() bool {
	return s.botToken != "" && s.adminChatID != ""
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends an HTML message to chatID.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		s.log.Debug("bot token not configured, message dropped")
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	resp, err := s.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// SendToAdmin sends text to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		s.log.Debug("admin chat not configured, message dropped")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// PaymentNotification describes a captured payment.
type PaymentNotification struct {
	LocalID         string
	ProviderOrderID string
	PayerID         string
	Amount          decimal.Decimal
	Currency        string
	Items           []models.CartLine
}

// FormatPrice renders amount with two decimals followed by the currency code.
func FormatPrice(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	return FormatAmount(amount) + " " + currency
}

// NotifyPaymentCompleted posts a capture summary to the admin chat.
func (s *TelegramService) NotifyPaymentCompleted(n PaymentNotification) error {
	if !s.Enabled() {
		return nil
	}

	var items strings.Builder
	for i, line := range n.Items {
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		fmt.Fprintf(&items, "%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			line.Name,
			line.Quantity,
			FormatPrice(line.UnitPrice, n.Currency),
			FormatPrice(lineTotal, n.Currency),
		)
	}

	message := fmt.Sprintf(`<b>Payment received</b>
<b>Order:</b> %s
<b>PayPal order:</b> %s
<b>Payer:</b> %s
<b>Products:</b>
%s
<b>Amount:</b> %s
<i>%s</i>`,
		n.LocalID,
		n.ProviderOrderID,
		n.PayerID,
		items.String(),
		FormatPrice(n.Amount, n.Currency),
		s.brand,
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}
