package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ResetCodeSender delivers a password reset code for an account.
type ResetCodeSender interface {
	SendResetCode(ctx context.Context, email, code string) error
}

// LogResetCodeSender writes reset codes to the log. Used when no other channel
// is configured.
type LogResetCodeSender struct {
	log *zap.Logger
}

// NewLogResetCodeSender constructs LogResetCodeSender.
func NewLogResetCodeSender(log *zap.Logger) *LogResetCodeSender {
	return &LogResetCodeSender{log: log.Named("password_reset")}
}

// SendResetCode logs the code at info level.
func (s *LogResetCodeSender) SendResetCode(_ context.Context, email, code string) error {
	s.log.Info("password reset code issued", zap.String("email", email), zap.String("code", code))
	return nil
}

// SendResetCode forwards the code to the admin chat, who relays it to the customer.
func (s *TelegramService) SendResetCode(_ context.Context, email, code string) error {
	if !s.Enabled() {
		return fmt.Errorf("telegram notifications not configured")
	}
	message := fmt.Sprintf("<b>Password reset</b>\n<b>Account:</b> %s\n<b>Code:</b> <code>%s</code>\n<i>%s</i>", email, code, s.brand)
	return s.SendToAdmin(message)
}
