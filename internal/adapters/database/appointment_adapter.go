package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/repositories"
	"github.com/swasthya/hms-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/swasthya/hms-backend/pkg/errors"
)

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// ListUpcoming returns appointments on or after filter.From, ordered by date then time
func (a *AppointmentAdapter) ListUpcoming(ctx context.Context, filter repositories.UpcomingAppointmentFilter) ([]*entities.Appointment, error) {
	ds := a.db.From(goqu.T("appointments").As("a")).
		Join(goqu.T("patients").As("p"), goqu.On(goqu.Ex{"a.patient_id": goqu.I("p.id")})).
		Join(goqu.T("employees").As("e"), goqu.On(goqu.Ex{"a.doctor_id": goqu.I("e.id")})).
		Select(
			"a.id", "a.hospital_id", "a.patient_id", "a.doctor_id",
			goqu.I("p.first_name").As("patient_first_name"),
			goqu.I("e.last_name").As("doctor_last_name"),
			"a.appointment_date",
			goqu.L("to_char(a.appointment_time, 'HH24:MI:SS')").As("appointment_time"),
			goqu.COALESCE(goqu.I("a.reason"), "").As("reason"),
			"a.status",
		).
		Where(goqu.C("appointment_date").Table("a").Gte(filter.From.Format("2006-01-02"))).
		Order(goqu.I("a.appointment_date").Asc(), goqu.I("a.appointment_time").Asc())
	if filter.HospitalID != nil {
		ds = ds.Where(goqu.Ex{"a.hospital_id": *filter.HospitalID})
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list upcoming appointments", err)
	}
	defer rows.Close()

	var appointments []*entities.Appointment
	for rows.Next() {
		appt := &entities.Appointment{}
		if err := rows.Scan(
			&appt.ID,
			&appt.HospitalID,
			&appt.PatientID,
			&appt.DoctorID,
			&appt.PatientFirstName,
			&appt.DoctorLastName,
			&appt.AppointmentDate,
			&appt.AppointmentTime,
			&appt.Reason,
			&appt.Status,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating appointments", err)
	}
	return appointments, nil
}
