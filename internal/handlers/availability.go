package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cabinet-backend/internal/schedule"
	"cabinet-backend/internal/transport"
)

type availabilityQuery struct {
	Date string `validate:"required,date"`
}

type monthQuery struct {
	Month int `validate:"required,gte=1,lte=12"`
	Year  int `validate:"required,gte=2024,lte=2100"`
}

func (s *Server) GetAvailability(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	q := availabilityQuery{Date: r.URL.Query().Get("date")}
	if err := s.Val.Struct(q); err != nil {
		log.Warn("availability: invalid query")
		details := validationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "invalid query", details)
		return
	}

	past, err := schedule.IsDatePast(q.Date, s.Cfg.Timezone, time.Now())
	if err != nil {
		log.Warn("availability: invalid date", slog.String("date", q.Date))
		transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
		return
	}
	if past {
		log.Warn("availability: date in the past", slog.String("date", q.Date))
		transport.WriteError(w, http.StatusBadRequest, "date in the past", nil)
		return
	}

	cacheKey := "availability:" + q.Date + ":day"
	if s.Cache != nil {
		if cached, ok, err := s.Cache.Get(r.Context(), cacheKey); err == nil && ok {
			log.Info("availability: cache hit", slog.String("date", q.Date))
			writeCachedJSON(w, http.StatusOK, cached)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	view, err := s.Resolver.ResolveDay(ctx, q.Date)
	if err != nil {
		log.Error("availability: resolve error", slog.String("date", q.Date), slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "availability error", nil)
		return
	}

	if payload, err := encodeJSON(view); err == nil && s.Cache != nil {
		_ = s.Cache.Set(r.Context(), cacheKey, payload, time.Duration(s.Cfg.CacheTTLSeconds)*time.Second)
	}

	log.Info("availability: ok",
		slog.String("date", q.Date),
		slog.Bool("eligible", view.Eligible),
		slog.Int("slots", len(view.All)),
	)
	transport.WriteJSON(w, http.StatusOK, view)
}

func (s *Server) GetMonthAvailability(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)

	month, errM := strconv.Atoi(r.URL.Query().Get("month"))
	year, errY := strconv.Atoi(r.URL.Query().Get("year"))
	if errM != nil || errY != nil {
		log.Warn("availability month: invalid query")
		transport.WriteError(w, http.StatusBadRequest, "invalid query", nil)
		return
	}
	q := monthQuery{Month: month, Year: year}
	if err := s.Val.Struct(q); err != nil {
		log.Warn("availability month: invalid query")
		details := validationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "invalid query", details)
		return
	}

	cacheKey := "availability-month:" + strconv.Itoa(year) + "-" + strconv.Itoa(month)
	if s.Cache != nil {
		if cached, ok, err := s.Cache.Get(r.Context(), cacheKey); err == nil && ok {
			log.Info("availability month: cache hit", slog.Int("month", month), slog.Int("year", year))
			writeCachedJSON(w, http.StatusOK, cached)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	result, err := s.Resolver.ResolveMonth(ctx, month, year)
	if err != nil {
		log.Error("availability month: resolve error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "availability error", nil)
		return
	}

	if payload, err := encodeJSON(result); err == nil && s.Cache != nil {
		_ = s.Cache.Set(r.Context(), cacheKey, payload, time.Duration(s.Cfg.CacheTTLSeconds)*time.Second)
	}

	log.Info("availability month: ok",
		slog.Int("month", month),
		slog.Int("year", year),
		slog.Int("days", len(result.AvailableDates)),
	)
	transport.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) GetNextAvailability(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	from := r.URL.Query().Get("from")
	if from == "" {
		from = time.Now().In(s.Cfg.Timezone).Format("2006-01-02")
	}
	if err := s.Val.Struct(availabilityQuery{Date: from}); err != nil {
		log.Warn("availability next: invalid date")
		transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
		return
	}

	past, err := schedule.IsDatePast(from, s.Cfg.Timezone, time.Now())
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
		return
	}
	if past {
		transport.WriteError(w, http.StatusBadRequest, "date in the past", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	date, slot, found, err := s.Resolver.NextAvailable(ctx, from)
	if err != nil {
		log.Error("availability next: resolve error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "availability error", nil)
		return
	}
	if !found {
		log.Warn("availability next: nothing in horizon", slog.String("from", from))
		transport.WriteError(w, http.StatusNotFound, "no availability found", nil)
		return
	}

	log.Info("availability next: ok", slog.String("date", date), slog.String("time", slot))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"date":     date,
		"time":     slot,
		"timezone": s.Cfg.Timezone.String(),
	})
}
