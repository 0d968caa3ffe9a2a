package entities

import "time"

// LabReport is an uploaded lab document owned by a patient. Only the title
// takes part in assistant answers; the file itself is stored elsewhere.
type LabReport struct {
	ID         int64     `json:"id" db:"id"`
	PatientID  int64     `json:"patient_id" db:"patient_id"`
	Title      string    `json:"title" db:"title"`
	FilePath   string    `json:"file_path,omitempty" db:"file_path"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// SOAPNote is a structured clinical note (subjective, objective, assessment, plan)
type SOAPNote struct {
	ID             int64     `json:"id" db:"id"`
	PatientID      int64     `json:"patient_id" db:"patient_id"`
	DoctorID       *int64    `json:"doctor_id,omitempty" db:"doctor_id"`
	DoctorLastName string    `json:"doctor_last_name,omitempty" db:"doctor_last_name"`
	Subjective     string    `json:"subjective" db:"subjective"`
	Objective      string    `json:"objective" db:"objective"`
	Assessment     string    `json:"assessment" db:"assessment"`
	Plan           string    `json:"plan" db:"plan"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// AuthorLabel returns "Dr. <last name>" or fallback when the author is unknown
func (n *SOAPNote) AuthorLabel(fallback string) string {
	if n.DoctorLastName == "" {
		return fallback
	}
	return "Dr. " + n.DoctorLastName
}
