package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"cabinet-backend/internal/availability"
	"cabinet-backend/internal/booking"
	"cabinet-backend/internal/models"
	"cabinet-backend/internal/schedule"
	"cabinet-backend/internal/transport"
)

type CreateAppointmentRequest struct {
	ServiceID string `json:"serviceId" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,phone"`
	Type      string `json:"type" validate:"required,oneof=online cabinet"`
	Date      string `json:"date" validate:"required,date"`
	Time      string `json:"time" validate:"required,clock"`
}

type LookupAppointmentRequest struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func (s *Server) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req CreateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("appointments create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := s.Val.Struct(req); err != nil {
		log.Warn("appointments create: validation error")
		details := validationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return
	}

	past, err := schedule.IsDatePast(req.Date, s.Cfg.Timezone, time.Now())
	if err != nil {
		log.Warn("appointments create: invalid date", slog.String("date", req.Date))
		transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
		return
	}
	if past {
		log.Warn("appointments create: date in the past", slog.String("date", req.Date))
		transport.WriteError(w, http.StatusBadRequest, "date in the past", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	var service models.Service
	if err := s.Cols.Services.FindOne(ctx, bson.M{"_id": req.ServiceID}).Decode(&service); err != nil {
		if err == mongo.ErrNoDocuments {
			log.Warn("appointments create: service not found", slog.String("service_id", req.ServiceID))
			transport.WriteError(w, http.StatusBadRequest, "service not found", nil)
			return
		}
		log.Error("appointments create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	appointment := models.Appointment{
		ID:        primitive.NewObjectID().Hex(),
		ServiceID: req.ServiceID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Type:      req.Type,
		Date:      req.Date,
		Time:      req.Time,
		Status:    models.AppointmentStatusBooked,
		CreatedAt: time.Now().In(s.Cfg.Timezone),
	}

	if err := s.Guard.TryReserve(ctx, appointment); err != nil {
		switch {
		case errors.Is(err, booking.ErrSlotTaken):
			log.Warn("appointments create: slot taken", slog.String("date", req.Date), slog.String("time", req.Time))
			transport.WriteError(w, http.StatusConflict, "slot no longer available", nil)
		case errors.Is(err, booking.ErrIneligibleDate):
			log.Warn("appointments create: ineligible date", slog.String("date", req.Date))
			transport.WriteError(w, http.StatusBadRequest, "date outside the schedule", nil)
		case errors.Is(err, booking.ErrSlotNotOffered):
			log.Warn("appointments create: slot not offered", slog.String("date", req.Date), slog.String("time", req.Time))
			transport.WriteError(w, http.StatusBadRequest, "slot not available", nil)
		case errors.Is(err, booking.ErrLeadTime):
			log.Warn("appointments create: lead time too short", slog.String("date", req.Date), slog.String("time", req.Time))
			transport.WriteError(w, http.StatusBadRequest, "slot too close to now", nil)
		case errors.Is(err, schedule.ErrInvalidDate), errors.Is(err, schedule.ErrInvalidTime):
			log.Warn("appointments create: invalid input")
			transport.WriteError(w, http.StatusBadRequest, "invalid date or time", nil)
		default:
			log.Error("appointments create: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	if s.Cache != nil {
		_ = s.Cache.DeletePrefix(r.Context(), "availability:"+req.Date+":")
		_ = s.Cache.DeletePrefix(r.Context(), "availability-month:")
	}

	if s.Mailer != nil {
		go s.sendAppointmentConfirmationEmail(log, appointment, service)
	}
	if s.Calendar != nil {
		go s.mirrorAppointmentToCalendar(log, appointment)
	}

	log.Info("appointments create: booked",
		slog.String("appointment_id", appointment.ID),
		slog.String("service_id", appointment.ServiceID),
		slog.String("date", appointment.Date),
		slog.String("time", appointment.Time),
	)

	view, err := s.Resolver.ResolveDay(ctx, req.Date)
	if err != nil {
		log.Warn("appointments create: availability refresh error", slog.String("error", err.Error()))
	}
	transport.WriteJSON(w, http.StatusCreated, createAppointmentResponse(appointment, view, err))
}

// createAppointmentResponse attaches the refreshed day view only when the
// refresh worked; a zero-value view would misreport the day as ineligible.
func createAppointmentResponse(appt models.Appointment, view availability.DayAvailability, refreshErr error) map[string]interface{} {
	resp := map[string]interface{}{"appointment": appt}
	if refreshErr == nil {
		resp["availability"] = view
	}
	return resp
}

func (s *Server) sendAppointmentConfirmationEmail(log *slog.Logger, appointment models.Appointment, service models.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	messageID, err := s.Mailer.SendAppointmentConfirmation(ctx, appointment, service)
	if err != nil {
		log.Warn("appointments email: send failed",
			slog.String("appointment_id", appointment.ID),
			slog.String("email", appointment.Email),
			slog.String("error", err.Error()),
		)
		return
	}

	log.Info("appointments email: sent",
		slog.String("appointment_id", appointment.ID),
		slog.String("email", appointment.Email),
		slog.String("message_id", messageID),
	)
}

// mirrorAppointmentToCalendar pushes the booking into the practitioner's
// calendar. Best effort: a failure leaves the booking valid and is only
// logged.
func (s *Server) mirrorAppointmentToCalendar(log *slog.Logger, appointment models.Appointment) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eventID, err := s.Calendar.CreateEvent(ctx, appointment)
	if err != nil {
		log.Warn("appointments calendar: create failed",
			slog.String("appointment_id", appointment.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.Bookings.SetCalendarEventID(ctx, appointment.ID, eventID); err != nil {
		log.Warn("appointments calendar: event id not stored",
			slog.String("appointment_id", appointment.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	log.Info("appointments calendar: mirrored",
		slog.String("appointment_id", appointment.ID),
		slog.String("event_id", eventID),
	)
}

func (s *Server) GetAppointment(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")
	if id == "" {
		log.Warn("appointments get: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	appt, err := s.Bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			log.Warn("appointments get: not found", slog.String("appointment_id", id))
			transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
			return
		}
		log.Error("appointments get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("appointments get: ok", slog.String("appointment_id", id))
	transport.WriteJSON(w, http.StatusOK, appt)
}

func (s *Server) LookupAppointment(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req LookupAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("appointments lookup: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := s.Val.Struct(req); err != nil {
		log.Warn("appointments lookup: validation error")
		details := validationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	appt, err := s.Bookings.Lookup(ctx, req.ID, req.Email)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			log.Warn("appointments lookup: not found", slog.String("appointment_id", req.ID))
			transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
			return
		}
		log.Error("appointments lookup: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("appointments lookup: ok", slog.String("appointment_id", appt.ID))
	transport.WriteJSON(w, http.StatusOK, appt)
}
