package handlers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/farmacia/internal/models"
	"github.com/example/farmacia/internal/services"
	"github.com/example/farmacia/internal/utils"
)

const (
	resetCodeTTL      = 10 * time.Minute
	maxResetAttempts  = 5
	resetTokenByteLen = 32
)

// PasswordResetHandler manages forgot-password endpoints.
type PasswordResetHandler struct {
	db     *gorm.DB
	sender services.ResetCodeSender
	log    *zap.Logger
	now    func() time.Time
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(db *gorm.DB, sender services.ResetCodeSender, log *zap.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{db: db, sender: sender, log: log.Named("password_reset"), now: time.Now}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword starts the reset flow: generates a 6-digit code, sends it
// through the configured sender and returns a reset token.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid email")
	}

	var user models.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	code, err := generateResetCode()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate code")
	}
	resetToken, err := generateResetToken()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	now := h.now()
	record := models.PasswordResetToken{
		Email:     email,
		Token:     resetToken,
		Code:      code,
		ExpiresAt: now.Add(resetCodeTTL),
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		// Earlier unused attempts for the account stop working.
		if err := tx.Model(&models.PasswordResetToken{}).
			Where("email = ? AND used_at IS NULL AND expires_at > ?", email, now).
			Update("expires_at", now).Error; err != nil {
			return err
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create reset token")
	}

	if err := h.sender.SendResetCode(c.UserContext(), email, code); err != nil {
		h.log.Error("send reset code", zap.String("email", email), zap.Error(err))
		return fiber.NewError(fiber.StatusBadGateway, "failed to send reset code")
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"token":      resetToken,
		"expires_at": record.ExpiresAt,
	})
}

type verifyResetCodeRequest struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

// VerifyResetCode checks a code without consuming the reset token.
func (h *PasswordResetHandler) VerifyResetCode(c *fiber.Ctx) error {
	var req verifyResetCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if _, err := h.checkCode(req.Token, req.Code); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"verified": true,
		"token":    req.Token,
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// ResetPassword sets a new password once the token and code check out.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.NewPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "new_password is required")
	}
	if len(req.NewPassword) < minPasswordLength {
		return fiber.NewError(fiber.StatusBadRequest, "password too short")
	}

	record, err := h.checkCode(req.Token, req.Code)
	if err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	now := h.now()
	err = h.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used_at IS NULL", record.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "token already used")
		}

		res = tx.Model(&models.User{}).
			Where("email = ?", record.Email).
			Update("password_hash", hash)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.log.Info("password reset", zap.String("email", record.Email))

	return c.JSON(fiber.Map{
		"success": true,
		"message": "password updated successfully",
	})
}

// checkCode loads the reset attempt for token and compares code against it.
// A wrong code counts against the attempt; too many wrong codes expire it.
func (h *PasswordResetHandler) checkCode(token, code string) (*models.PasswordResetToken, error) {
	if token == "" || code == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "token and code are required")
	}

	var record models.PasswordResetToken
	if err := h.db.Where("token = ?", token).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "invalid reset token")
		}
		return nil, err
	}

	if record.UsedAt != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "token already used")
	}
	if record.Expired(h.now()) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "reset code expired")
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		updates := map[string]interface{}{"attempts": gorm.Expr("attempts + 1")}
		if record.Attempts+1 >= maxResetAttempts {
			updates["expires_at"] = h.now()
		}
		if err := h.db.Model(&record).Updates(updates).Error; err != nil {
			return nil, err
		}
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid verification code")
	}

	return &record, nil
}

func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func generateResetToken() (string, error) {
	buf := make([]byte, resetTokenByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
