package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/providers"
	"github.com/swasthya/hms-backend/internal/domain/repositories"
	"github.com/swasthya/hms-backend/internal/infrastructure/observability"
	apperrors "github.com/swasthya/hms-backend/pkg/errors"
)

// Tool names exposed to the model
const (
	ToolSearchPatients          = "search_patients"
	ToolAnalyzePatientRecords   = "analyze_patient_records"
	ToolUpdateMedicalHistory    = "update_patient_medical_history"
	ToolGetUpcomingAppointments = "get_upcoming_appointments"
)

const (
	nameSearchLimit       = 5
	analyzeLimit          = 3
	upcomingLimit         = 5
	auditSourceAssistant  = "assistant"
	unknownDoctorLastName = "Unknown"
)

// PatientSearchRecord is one row of the search_patients result
type PatientSearchRecord struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	MedicalHistory string   `json:"medical_history"`
	Phone          string   `json:"phone"`
	Gender         string   `json:"gender"`
	LabReports     []string `json:"lab_reports"`
	SOAPNotes      []string `json:"soap_notes"`
}

// ClinicalTools implements the clinical tools the assistant can call
type ClinicalTools struct {
	patients     repositories.PatientRepository
	records      repositories.ClinicalRecordRepository
	appointments repositories.AppointmentRepository
	search       *SemanticSearchService
	events       providers.EventBus
	now          func() time.Time
}

// NewClinicalTools creates the clinical tool set. events may be nil.
func NewClinicalTools(
	patients repositories.PatientRepository,
	records repositories.ClinicalRecordRepository,
	appointments repositories.AppointmentRepository,
	search *SemanticSearchService,
	events providers.EventBus,
) *ClinicalTools {
	return &ClinicalTools{
		patients:     patients,
		records:      records,
		appointments: appointments,
		search:       search,
		events:       events,
		now:          time.Now,
	}
}

func hospitalParam() *entities.JSONSchema {
	return &entities.JSONSchema{Type: "INTEGER", Description: "The ID of the hospital to search in."}
}

// Register adds every clinical tool to registry
func (t *ClinicalTools) Register(registry *ToolRegistry) error {
	tools := []Tool{
		{
			Name: ToolSearchPatients,
			Description: "Search for patients by exact or partial name within a specific hospital. " +
				"Use analyze_patient_records if searching by symptoms or history.",
			Parameters: &entities.JSONSchema{
				Type: "OBJECT",
				Properties: map[string]*entities.JSONSchema{
					"name_query":  {Type: "STRING", Description: "The name (or partial name) to search for."},
					"hospital_id": hospitalParam(),
				},
				Required: []string{"name_query"},
			},
			Handler: t.searchPatients,
		},
		{
			Name: ToolAnalyzePatientRecords,
			Description: "Semantically search and analyze patient records based on a descriptive query. " +
				"Examples: \"Find patients with back pain\", \"Who are the diabetic patients?\".",
			Parameters: &entities.JSONSchema{
				Type: "OBJECT",
				Properties: map[string]*entities.JSONSchema{
					"query":       {Type: "STRING", Description: "The detailed medical or descriptive query to search for."},
					"hospital_id": hospitalParam(),
				},
				Required: []string{"query"},
			},
			Handler: t.analyzePatientRecords,
		},
		{
			Name:        ToolUpdateMedicalHistory,
			Description: "Update the medical history/diagnosis for a specific patient. Get the patient ID from search_patients first.",
			Parameters: &entities.JSONSchema{
				Type: "OBJECT",
				Properties: map[string]*entities.JSONSchema{
					"patient_id":  {Type: "INTEGER", Description: "The unique ID of the patient."},
					"new_history": {Type: "STRING", Description: "The new medical history text to set."},
				},
				Required: []string{"patient_id", "new_history"},
			},
			Mutating: true,
			Handler:  t.updateMedicalHistory,
		},
		{
			Name:        ToolGetUpcomingAppointments,
			Description: "Get the list of upcoming appointments for the hospital.",
			Parameters: &entities.JSONSchema{
				Type: "OBJECT",
				Properties: map[string]*entities.JSONSchema{
					"hospital_id": {Type: "INTEGER", Description: "The ID of the current hospital context."},
				},
			},
			Handler: t.upcomingAppointments,
		},
	}

	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// resolveHospital prefers the model's hospital_id and falls back to the turn hint.
// Zero is treated as absent.
func resolveHospital(call ToolCall) (*int64, error) {
	id, present, err := IntArg(call.Args, "hospital_id")
	if err != nil {
		return nil, err
	}
	if present && id != 0 {
		return &id, nil
	}
	return call.HospitalID, nil
}

func (t *ClinicalTools) searchPatients(ctx context.Context, call ToolCall) (interface{}, error) {
	nameQuery, _ := StringArg(call.Args, "name_query")
	hospitalID, err := resolveHospital(call)
	if err != nil {
		return nil, err
	}

	patients, err := t.patients.SearchByName(ctx, strings.TrimSpace(nameQuery), hospitalID, nameSearchLimit)
	if err != nil {
		return nil, err
	}
	if len(patients) == 0 {
		return "No patients found with that name in this hospital.", nil
	}

	results := make([]PatientSearchRecord, 0, len(patients))
	for _, p := range patients {
		reports, err := t.records.ListLabReports(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		notes, err := t.records.ListNotes(ctx, p.ID, 0)
		if err != nil {
			return nil, err
		}

		record := PatientSearchRecord{
			ID:             p.ID,
			Name:           p.FullName(),
			MedicalHistory: p.MedicalHistory,
			Phone:          p.ContactNumber,
			Gender:         p.Gender,
			LabReports:     make([]string, 0, len(reports)),
			SOAPNotes:      make([]string, 0, len(notes)),
		}
		for _, r := range reports {
			record.LabReports = append(record.LabReports, r.Title)
		}
		for _, n := range notes {
			record.SOAPNotes = append(record.SOAPNotes, fmt.Sprintf("%s (%s): %s",
				n.CreatedAt.UTC().Format(dateLayout), n.AuthorLabel("Dr. "+unknownDoctorLastName), n.Assessment))
		}
		results = append(results, record)
	}
	return results, nil
}

func (t *ClinicalTools) analyzePatientRecords(ctx context.Context, call ToolCall) (interface{}, error) {
	query, _ := StringArg(call.Args, "query")
	hospitalID, err := resolveHospital(call)
	if err != nil {
		return nil, err
	}

	matches, err := t.search.Search(ctx, query, hospitalID, analyzeLimit)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No relevant patients found for the query: '%s'.", query), nil
	}

	lines := []string{fmt.Sprintf("Found %d relevant patients:", len(matches))}
	for i, m := range matches {
		lines = append(lines, fmt.Sprintf("\n--- Patient %d (Relevance Score: %.2f) ---", i+1, m.Score))
		lines = append(lines, m.Text)
	}
	return strings.Join(lines, "\n"), nil
}

func (t *ClinicalTools) updateMedicalHistory(ctx context.Context, call ToolCall) (interface{}, error) {
	patientID, present, err := IntArg(call.Args, "patient_id")
	if err != nil {
		return nil, err
	}
	if !present {
		return "Error: patient_id is required.", nil
	}
	newHistory, _ := StringArg(call.Args, "new_history")

	patient, err := t.patients.GetByID(ctx, patientID)
	if apperrors.IsNotFound(err) {
		return fmt.Sprintf("Error: Patient with ID %d not found.", patientID), nil
	}
	if err != nil {
		return fmt.Sprintf("Error updating patient: %v", err), nil
	}

	oldHistory := patient.MedicalHistory
	if err := t.patients.UpdateMedicalHistory(ctx, patientID, newHistory); err != nil {
		if apperrors.IsNotFound(err) {
			return fmt.Sprintf("Error: Patient with ID %d not found.", patientID), nil
		}
		return fmt.Sprintf("Error updating patient: %v", err), nil
	}

	t.publishHistoryUpdate(ctx, patient, call.UserID, oldHistory, newHistory)

	return fmt.Sprintf("Successfully updated history for %s %s. Old: '%s' -> New: '%s'",
		patient.FirstName, patient.LastName, oldHistory, newHistory), nil
}

func (t *ClinicalTools) publishHistoryUpdate(ctx context.Context, patient *entities.Patient, userID int64, oldHistory, newHistory string) {
	if t.events == nil {
		return
	}
	event := entities.NewPatientEvent(entities.PatientEventMedicalHistoryUpdated, patient, auditSourceAssistant,
		map[string]interface{}{
			"old_medical_history": oldHistory,
			"new_medical_history": newHistory,
		})
	if userID != 0 {
		event.ActorUserID = &userID
	}
	if err := t.events.Publish(ctx, providers.EventChannelPatientUpdates, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Int64("patient_id", patient.ID).Msg("Failed to publish patient event")
	}
}

func (t *ClinicalTools) upcomingAppointments(ctx context.Context, call ToolCall) (interface{}, error) {
	hospitalID, err := resolveHospital(call)
	if err != nil {
		return nil, err
	}

	now := t.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	appts, err := t.appointments.ListUpcoming(ctx, repositories.UpcomingAppointmentFilter{
		HospitalID: hospitalID,
		From:       today,
		Limit:      upcomingLimit,
	})
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return "No upcoming appointments found.", nil
	}

	results := make([]string, 0, len(appts))
	for _, a := range appts {
		results = append(results, fmt.Sprintf("%s %s: %s with %s",
			a.AppointmentDate.Format(dateLayout), a.AppointmentTime, a.PatientFirstName, a.DoctorLastName))
	}
	return results, nil
}
