package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/medzoom/accounts-be/internal/auth"
	"github.com/medzoom/accounts-be/internal/services"
	"github.com/rs/zerolog/log"
)

// AccountHandler handles HTTP requests for the account lifecycle.
type AccountHandler struct {
	service services.AccountServiceProvider
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(service services.AccountServiceProvider) *AccountHandler {
	return &AccountHandler{service: service}
}

// SendOtpPayload defines the structure for OTP requests.
type SendOtpPayload struct {
	Email string `json:"email"`
}

// SignupPayload defines the structure for signup completion requests.
type SignupPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Otp      string `json:"otp"`
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SendOtp handles a signup request: issues a verification code and mails it.
func (h *AccountHandler) SendOtp(w http.ResponseWriter, r *http.Request) {
	var payload SendOtpPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.RequestSignup(r.Context(), payload.Email); err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("OTP request failed")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "OTP sent successfully"})
}

// Signup handles account creation with an OTP.
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload SignupPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.CompleteSignup(r.Context(), payload.Username, payload.Email, payload.Password, payload.Otp)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Signup failed")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// Login handles user authentication and session token issuance.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, user, err := h.service.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("username", payload.Username).Msg("Failed authentication attempt")
		respondServiceError(w, err)
		return
	}

	http.SetCookie(w, sessionCookie(token, time.Now().Add(auth.TokenTTL)))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// GetUser resolves the caller's session. An absent or invalid token is not an
// error; the response carries a null user.
func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user := h.service.ResolveSession(r.Context(), tokenFromRequest(r))
	respondJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

// Logout clears the session cookie. Tokens are stateless, so there is no
// server-side session to destroy.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, sessionCookie("", time.Unix(0, 0)))
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// tokenFromRequest extracts the session token from the Authorization header,
// falling back to the session cookie.
func tokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, "Bearer ")
		if len(parts) == 2 {
			return parts[1]
		}
	}

	cookie, err := r.Cookie("token")
	if err != nil {
		return ""
	}
	return cookie.Value
}

func sessionCookie(token string, expires time.Time) *http.Cookie {
	// Set Secure flag based on environment.
	isProd := os.Getenv("APP_ENV") == "production"

	return &http.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  expires,
		HttpOnly: true,
		Secure:   isProd,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondServiceError maps workflow errors onto HTTP statuses. Login failures
// collapse into one generic message so the response does not reveal whether
// the username or the password was wrong.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrOTPInvalid):
		respondError(w, http.StatusBadRequest, services.ErrOTPInvalid.Error())
	case errors.Is(err, services.ErrDuplicateAccount):
		respondError(w, http.StatusConflict, services.ErrDuplicateAccount.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		respondError(w, http.StatusConflict, services.ErrUsernameTaken.Error())
	case errors.Is(err, services.ErrNoSuchUser), errors.Is(err, services.ErrBadCredentials):
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrDeliveryFailed):
		respondError(w, http.StatusBadGateway, "Failed to send OTP email. Please check your email address and try again.")
	default:
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
