package repositories

import (
	"context"
	"time"

	"github.com/swasthya/hms-backend/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data operations
type AppointmentRepository interface {
	// ListUpcoming returns appointments on or after the given day, ordered by date then time
	ListUpcoming(ctx context.Context, filter UpcomingAppointmentFilter) ([]*entities.Appointment, error)
}

// UpcomingAppointmentFilter defines filters for listing upcoming appointments
type UpcomingAppointmentFilter struct {
	HospitalID *int64
	From       time.Time
	Limit      int
}
