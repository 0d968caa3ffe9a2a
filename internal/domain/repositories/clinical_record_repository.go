package repositories

import (
	"context"

	"github.com/swasthya/hms-backend/internal/domain/entities"
)

// ClinicalRecordRepository reads the notes and lab reports attached to patients
type ClinicalRecordRepository interface {
	// ListNotes returns the SOAP notes of a patient, most recent first.
	// A limit of zero returns all notes.
	ListNotes(ctx context.Context, patientID int64, limit int) ([]*entities.SOAPNote, error)

	// ListLabReports returns the lab reports of a patient, most recent first
	ListLabReports(ctx context.Context, patientID int64) ([]*entities.LabReport, error)
}
