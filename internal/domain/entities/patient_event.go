package entities

import (
	"time"

	"github.com/google/uuid"
)

// PatientEventType represents the kind of change applied to a patient record
type PatientEventType string

const (
	PatientEventMedicalHistoryUpdated PatientEventType = "patient.medical_history.updated"
)

// PatientEvent is published whenever the assistant changes a patient record
type PatientEvent struct {
	ID          string                 `json:"id"`
	Type        PatientEventType       `json:"type"`
	PatientID   int64                  `json:"patient_id"`
	HospitalID  *int64                 `json:"hospital_id,omitempty"`
	ActorUserID *int64                 `json:"actor_user_id,omitempty"`
	Source      string                 `json:"source"`
	Timestamp   time.Time              `json:"timestamp"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// NewPatientEvent creates a new patient event
func NewPatientEvent(eventType PatientEventType, patient *Patient, source string, details map[string]interface{}) *PatientEvent {
	return &PatientEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		PatientID:  patient.ID,
		HospitalID: patient.HospitalID,
		Source:     source,
		Timestamp:  time.Now().UTC(),
		Details:    details,
	}
}
