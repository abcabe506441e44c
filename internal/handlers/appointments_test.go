package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabinet-backend/internal/availability"
	"cabinet-backend/internal/models"
)

func TestCreateAppointmentResponse(t *testing.T) {
	appt := models.Appointment{ID: "a1", Date: "2024-12-10", Time: "14:00"}
	view := availability.DayAvailability{Date: "2024-12-10", Eligible: true}

	resp := createAppointmentResponse(appt, view, nil)
	assert.Equal(t, appt, resp["appointment"])
	require.Contains(t, resp, "availability")
	assert.Equal(t, view, resp["availability"])
}

func TestCreateAppointmentResponseOmitsFailedRefresh(t *testing.T) {
	appt := models.Appointment{ID: "a1", Date: "2024-12-10", Time: "14:00"}

	resp := createAppointmentResponse(appt, availability.DayAvailability{}, errors.New("resolve failed"))
	assert.Equal(t, appt, resp["appointment"])
	assert.NotContains(t, resp, "availability", "a zero view must not be serialized")
}
