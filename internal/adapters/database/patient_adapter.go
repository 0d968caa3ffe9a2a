package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/repositories"
	"github.com/swasthya/hms-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/swasthya/hms-backend/pkg/errors"
)

var patientColumns = []interface{}{
	"id", "hospital_id", "first_name", "last_name", "date_of_birth", "gender",
	"contact_number", "address", "symptoms", "medical_history", "embedding_json",
	"created_at", "updated_at",
}

// PatientAdapter implements the PatientRepository interface
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a patient by ID
func (a *PatientAdapter) GetByID(ctx context.Context, id int64) (*entities.Patient, error) {
	query, args, err := a.db.Select(patientColumns...).
		From("patients").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patient, err := scanPatient(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %d not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}
	return patient, nil
}

// List retrieves every patient in scope ordered by ID
func (a *PatientAdapter) List(ctx context.Context, hospitalID *int64) ([]*entities.Patient, error) {
	ds := a.db.Select(patientColumns...).From("patients").Order(goqu.I("id").Asc())
	if hospitalID != nil {
		ds = ds.Where(goqu.Ex{"hospital_id": *hospitalID})
	}
	return a.queryPatients(ctx, ds)
}

// SearchByName matches first or last name case-insensitively
func (a *PatientAdapter) SearchByName(ctx context.Context, nameQuery string, hospitalID *int64, limit int) ([]*entities.Patient, error) {
	pattern := "%" + escapeLike(nameQuery) + "%"
	ds := a.db.Select(patientColumns...).
		From("patients").
		Where(goqu.Or(
			goqu.I("first_name").ILike(pattern),
			goqu.I("last_name").ILike(pattern),
		)).
		Order(goqu.I("id").Asc())
	if hospitalID != nil {
		ds = ds.Where(goqu.Ex{"hospital_id": *hospitalID})
	}
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	return a.queryPatients(ctx, ds)
}

// UpdateMedicalHistory overwrites the medical history field only
func (a *PatientAdapter) UpdateMedicalHistory(ctx context.Context, id int64, history string) error {
	return a.updateFields(ctx, id, goqu.Record{
		"medical_history": history,
		"updated_at":      time.Now(),
	})
}

// GetEmbeddingJSON re-reads the stored embedding of a patient
func (a *PatientAdapter) GetEmbeddingJSON(ctx context.Context, id int64) (*string, error) {
	query, args, err := a.db.Select("embedding_json").
		From("patients").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var stored sql.NullString
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&stored)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %d not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read patient embedding", err)
	}
	if !stored.Valid {
		return nil, nil
	}
	return &stored.String, nil
}

// UpdateEmbedding writes the embedding field only. updated_at is left alone so
// caching a vector does not look like a clinical edit.
func (a *PatientAdapter) UpdateEmbedding(ctx context.Context, id int64, embeddingJSON string) error {
	return a.updateFields(ctx, id, goqu.Record{"embedding_json": embeddingJSON})
}

// ListIDsMissingEmbedding pages through patients without a stored embedding
func (a *PatientAdapter) ListIDsMissingEmbedding(ctx context.Context, hospitalID *int64, afterID int64, limit int) ([]int64, error) {
	ds := a.db.Select("id").
		From("patients").
		Where(
			goqu.Or(goqu.C("embedding_json").IsNull(), goqu.C("embedding_json").Eq("")),
			goqu.C("id").Gt(afterID),
		).
		Order(goqu.I("id").Asc())
	if hospitalID != nil {
		ds = ds.Where(goqu.Ex{"hospital_id": *hospitalID})
	}
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list patients missing embeddings", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan patient id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating patient ids", err)
	}
	return ids, nil
}

func (a *PatientAdapter) updateFields(ctx context.Context, id int64, record goqu.Record) error {
	query, args, err := a.db.Update("patients").
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update patient", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("patient with id %d not found", id))
	}
	return nil
}

func (a *PatientAdapter) queryPatients(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Patient, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list patients", err)
	}
	defer rows.Close()

	var patients []*entities.Patient
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan patient", err)
		}
		patients = append(patients, patient)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating patients", err)
	}
	return patients, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (*entities.Patient, error) {
	patient := &entities.Patient{}
	var hospitalID sql.NullInt64
	var dob sql.NullTime
	var symptoms, history, embedding sql.NullString

	if err := row.Scan(
		&patient.ID,
		&hospitalID,
		&patient.FirstName,
		&patient.LastName,
		&dob,
		&patient.Gender,
		&patient.ContactNumber,
		&patient.Address,
		&symptoms,
		&history,
		&embedding,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if hospitalID.Valid {
		patient.HospitalID = &hospitalID.Int64
	}
	if dob.Valid {
		patient.DateOfBirth = &dob.Time
	}
	patient.Symptoms = symptoms.String
	patient.MedicalHistory = history.String
	if embedding.Valid {
		patient.EmbeddingJSON = &embedding.String
	}
	return patient, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
