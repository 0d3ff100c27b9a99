package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/medzoom/accounts-be/internal/api/handlers"
	"github.com/medzoom/accounts-be/internal/services"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(accountService services.AccountServiceProvider) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	accountHandler := handlers.NewAccountHandler(accountService)

	r.Post("/send-otp", accountHandler.SendOtp)
	r.Post("/signup", accountHandler.Signup)
	r.Post("/login", accountHandler.Login)
	r.Get("/user", accountHandler.GetUser)
	r.Post("/logout", accountHandler.Logout)

	return r
}
