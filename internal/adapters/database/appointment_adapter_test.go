package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swasthya/hms-backend/internal/domain/repositories"
	apperrors "github.com/swasthya/hms-backend/pkg/errors"
)

func TestAppointmentAdapter_ListUpcoming(t *testing.T) {
	client, mock := setupPostgresMock(t)
	adapter := NewAppointmentAdapter(client)
	hospital := int64(1)
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE \(\("a"."appointment_date" >= '2024-06-03'\) AND \("a"."hospital_id" = 1\)\) ORDER BY "a"."appointment_date" ASC, "a"."appointment_time" ASC LIMIT 5`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "hospital_id", "patient_id", "doctor_id", "patient_first_name",
			"doctor_last_name", "appointment_date", "appointment_time", "reason", "status",
		}).AddRow(1, 1, 2, 3, "Ravi", "Mehta", day, "09:30:00", "", "SCHEDULED"))

	appts, err := adapter.ListUpcoming(context.Background(), repositories.UpcomingAppointmentFilter{
		HospitalID: &hospital,
		From:       day,
		Limit:      5,
	})
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "Ravi", appts[0].PatientFirstName)
	assert.Equal(t, "09:30:00", appts[0].AppointmentTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentAdapter_ListUpcoming_QueryError(t *testing.T) {
	client, mock := setupPostgresMock(t)
	adapter := NewAppointmentAdapter(client)

	mock.ExpectQuery(`FROM "appointments"`).WillReturnError(errors.New("connection reset"))

	_, err := adapter.ListUpcoming(context.Background(), repositories.UpcomingAppointmentFilter{From: time.Now()})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeInternal, apperrors.TypeOf(err))
}
