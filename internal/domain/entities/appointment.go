package entities

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "SCHEDULED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
)

// Appointment is a scheduled visit joined with the names the assistant reports.
// AppointmentDate carries the calendar day; AppointmentTime is "HH:MM:SS".
type Appointment struct {
	ID               int64             `json:"id" db:"id"`
	HospitalID       int64             `json:"hospital_id" db:"hospital_id"`
	PatientID        int64             `json:"patient_id" db:"patient_id"`
	DoctorID         int64             `json:"doctor_id" db:"doctor_id"`
	PatientFirstName string            `json:"patient_first_name" db:"patient_first_name"`
	DoctorLastName   string            `json:"doctor_last_name" db:"doctor_last_name"`
	AppointmentDate  time.Time         `json:"appointment_date" db:"appointment_date"`
	AppointmentTime  string            `json:"appointment_time" db:"appointment_time"`
	Reason           string            `json:"reason,omitempty" db:"reason"`
	Status           AppointmentStatus `json:"status" db:"status"`
}
