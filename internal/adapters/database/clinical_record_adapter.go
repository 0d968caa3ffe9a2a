package database

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/repositories"
	"github.com/swasthya/hms-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/swasthya/hms-backend/pkg/errors"
)

// ClinicalRecordAdapter implements the ClinicalRecordRepository interface
type ClinicalRecordAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewClinicalRecordAdapter creates a new clinical record adapter
func NewClinicalRecordAdapter(client *postgres.Client) repositories.ClinicalRecordRepository {
	return &ClinicalRecordAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// ListNotes returns the SOAP notes of a patient with the author's last name, most recent first
func (a *ClinicalRecordAdapter) ListNotes(ctx context.Context, patientID int64, limit int) ([]*entities.SOAPNote, error) {
	ds := a.db.From(goqu.T("soap_notes").As("n")).
		LeftJoin(goqu.T("employees").As("e"), goqu.On(goqu.Ex{"n.doctor_id": goqu.I("e.id")})).
		Select(
			"n.id", "n.patient_id", "n.doctor_id",
			goqu.COALESCE(goqu.I("e.last_name"), "").As("doctor_last_name"),
			"n.subjective", "n.objective", "n.assessment", "n.plan", "n.created_at",
		).
		Where(goqu.Ex{"n.patient_id": patientID}).
		Order(goqu.I("n.created_at").Desc(), goqu.I("n.id").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list soap notes", err)
	}
	defer rows.Close()

	var notes []*entities.SOAPNote
	for rows.Next() {
		note := &entities.SOAPNote{}
		var doctorID sql.NullInt64
		if err := rows.Scan(
			&note.ID,
			&note.PatientID,
			&doctorID,
			&note.DoctorLastName,
			&note.Subjective,
			&note.Objective,
			&note.Assessment,
			&note.Plan,
			&note.CreatedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan soap note", err)
		}
		if doctorID.Valid {
			note.DoctorID = &doctorID.Int64
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating soap notes", err)
	}
	return notes, nil
}

// ListLabReports returns the lab reports of a patient, most recent first
func (a *ClinicalRecordAdapter) ListLabReports(ctx context.Context, patientID int64) ([]*entities.LabReport, error) {
	query, args, err := a.db.Select("id", "patient_id", "title", "file_path", "uploaded_at").
		From("lab_reports").
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("uploaded_at").Desc(), goqu.I("id").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list lab reports", err)
	}
	defer rows.Close()

	var reports []*entities.LabReport
	for rows.Next() {
		report := &entities.LabReport{}
		var filePath sql.NullString
		if err := rows.Scan(&report.ID, &report.PatientID, &report.Title, &filePath, &report.UploadedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan lab report", err)
		}
		report.FilePath = filePath.String
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating lab reports", err)
	}
	return reports, nil
}
