package services

import (
	"fmt"
	"strings"

	"github.com/swasthya/hms-backend/internal/domain/entities"
)

// MaxComposedNotes is the number of recent SOAP notes included in a patient text
const MaxComposedNotes = 3

const dateLayout = "2006-01-02"

// ComposePatientText renders the text block that represents a patient for
// embedding and for tool output. notes must be ordered most recent first.
func ComposePatientText(patient *entities.Patient, notes []*entities.SOAPNote) string {
	born := ""
	if patient.DateOfBirth != nil {
		born = fmt.Sprintf(" Born %s.", patient.DateOfBirth.Format(dateLayout))
	}

	lines := []string{
		fmt.Sprintf("Patient: %s %s, %s.%s", patient.FirstName, patient.LastName, patient.GenderLabel(), born),
		fmt.Sprintf("Address: %s.", patient.Address),
	}
	if patient.Symptoms != "" {
		lines = append(lines, fmt.Sprintf("Symptoms/Reason for visit: %s.", patient.Symptoms))
	}
	if patient.MedicalHistory != "" {
		lines = append(lines, fmt.Sprintf("Medical History: %s.", patient.MedicalHistory))
	}

	if len(notes) > MaxComposedNotes {
		notes = notes[:MaxComposedNotes]
	}
	if len(notes) > 0 {
		lines = append(lines, "Recent Clinical Notes:")
		for _, note := range notes {
			lines = append(lines, fmt.Sprintf("- On %s by %s: Assessment: %s. Plan: %s",
				note.CreatedAt.UTC().Format(dateLayout), note.AuthorLabel("Doctor"), note.Assessment, note.Plan))
		}
	}

	return strings.Join(lines, "\n")
}
