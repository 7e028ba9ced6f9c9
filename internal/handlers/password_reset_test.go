package handlers_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/farmacia/internal/models"
)

type recordingSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *recordingSender) SendResetCode(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = code
	return nil
}

func (s *recordingSender) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

func (h *harness) registerUser(email, password string) {
	h.t.Helper()
	status, env := h.do(http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email": email, "password": password, "first_name": "Lucia",
	})
	require.Equal(h.t, http.StatusCreated, status, env.Message)
}

func (h *harness) forgotPassword(email string) string {
	h.t.Helper()
	status, env := h.do(http.MethodPost, "/api/auth/forgot-password", "", fiber.Map{"email": email})
	require.Equal(h.t, http.StatusOK, status, env.Message)
	require.NotEmpty(h.t, env.Token)
	return env.Token
}

func TestPasswordReset_Success(t *testing.T) {
	h := newHarness(t)
	h.registerUser("lucia@farmacia.test", "oldpass1")

	resetToken := h.forgotPassword("Lucia@Farmacia.test")
	code := h.resets.code("lucia@farmacia.test")
	require.Len(t, code, 6)

	status, env := h.do(http.MethodPost, "/api/auth/verify-reset-code", "", fiber.Map{"token": resetToken, "code": code})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = h.do(http.MethodPost, "/api/auth/reset-password", "", fiber.Map{
		"token": resetToken, "code": code, "new_password": "newpass1",
	})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, _ = h.do(http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "lucia@farmacia.test", "password": "oldpass1"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = h.do(http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "lucia@farmacia.test", "password": "newpass1"})
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, env.Token)

	// A used token cannot reset again.
	status, env = h.do(http.MethodPost, "/api/auth/reset-password", "", fiber.Map{
		"token": resetToken, "code": code, "new_password": "another1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "token already used", env.Message)
}

func TestPasswordReset_WrongCode(t *testing.T) {
	h := newHarness(t)
	h.registerUser("mario@farmacia.test", "oldpass1")

	resetToken := h.forgotPassword("mario@farmacia.test")
	code := h.resets.code("mario@farmacia.test")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	status, env := h.do(http.MethodPost, "/api/auth/reset-password", "", fiber.Map{
		"token": resetToken, "code": wrong, "new_password": "newpass1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid verification code", env.Message)

	var record models.PasswordResetToken
	require.NoError(t, h.db.Where("token = ?", resetToken).First(&record).Error)
	assert.Equal(t, 1, record.Attempts)
	assert.Nil(t, record.UsedAt)

	status, _ = h.do(http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "mario@farmacia.test", "password": "oldpass1"})
	assert.Equal(t, http.StatusOK, status)
}

func TestPasswordReset_TooManyWrongCodesExpiresToken(t *testing.T) {
	h := newHarness(t)
	h.registerUser("sofia@farmacia.test", "oldpass1")

	resetToken := h.forgotPassword("sofia@farmacia.test")
	code := h.resets.code("sofia@farmacia.test")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < 5; i++ {
		status, _ := h.do(http.MethodPost, "/api/auth/verify-reset-code", "", fiber.Map{"token": resetToken, "code": wrong})
		require.Equal(t, http.StatusBadRequest, status)
	}

	status, env := h.do(http.MethodPost, "/api/auth/verify-reset-code", "", fiber.Map{"token": resetToken, "code": code})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "reset code expired", env.Message)
}

func TestPasswordReset_ExpiredCode(t *testing.T) {
	h := newHarness(t)
	h.registerUser("pedro@farmacia.test", "oldpass1")

	resetToken := h.forgotPassword("pedro@farmacia.test")
	code := h.resets.code("pedro@farmacia.test")

	require.NoError(t, h.db.Model(&models.PasswordResetToken{}).
		Where("token = ?", resetToken).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	status, env := h.do(http.MethodPost, "/api/auth/reset-password", "", fiber.Map{
		"token": resetToken, "code": code, "new_password": "newpass1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "reset code expired", env.Message)

	status, _ = h.do(http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "pedro@farmacia.test", "password": "oldpass1"})
	assert.Equal(t, http.StatusOK, status)
}

func TestPasswordReset_NewRequestReplacesOld(t *testing.T) {
	h := newHarness(t)
	h.registerUser("elena@farmacia.test", "oldpass1")

	first := h.forgotPassword("elena@farmacia.test")
	firstCode := h.resets.code("elena@farmacia.test")
	second := h.forgotPassword("elena@farmacia.test")
	require.NotEqual(t, first, second)

	status, env := h.do(http.MethodPost, "/api/auth/verify-reset-code", "", fiber.Map{"token": first, "code": firstCode})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "reset code expired", env.Message)
}

func TestPasswordReset_Validation(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(http.MethodPost, "/api/auth/forgot-password", "", fiber.Map{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(http.MethodPost, "/api/auth/forgot-password", "", fiber.Map{"email": "nobody@farmacia.test"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = h.do(http.MethodPost, "/api/auth/reset-password", "", fiber.Map{"token": "nope", "code": "123456", "new_password": "newpass1"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = h.do(http.MethodPost, "/api/auth/reset-password", "", fiber.Map{"token": "nope", "code": "123456", "new_password": "abc"})
	assert.Equal(t, http.StatusBadRequest, status)
}
