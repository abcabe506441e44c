package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"cabinet-backend/internal/availability"
	"cabinet-backend/internal/booking"
	"cabinet-backend/internal/cache"
	"cabinet-backend/internal/calendar"
	"cabinet-backend/internal/config"
	"cabinet-backend/internal/db"
	"cabinet-backend/internal/middleware"
	"cabinet-backend/internal/models"
	"cabinet-backend/internal/validation"
)

type AppointmentMailer interface {
	SendAppointmentConfirmation(ctx context.Context, appointment models.Appointment, service models.Service) (string, error)
}

type Server struct {
	Cfg      *config.Config
	Cols     *db.Collections
	Val      *validation.Validator
	Log      *slog.Logger
	Cache    cache.Cache
	Mailer   AppointmentMailer
	Bookings *booking.MongoStore
	Guard    *booking.Guard
	Resolver *availability.Resolver
	Calendar *calendar.Provider
}

func (s *Server) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return s.Log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return s.Log.With(slog.String("request_id", id))
	}
	return s.Log
}
