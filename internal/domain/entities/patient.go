package entities

import (
	"encoding/json"
	"errors"
	"time"
)

// Gender codes stored on the patient record
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "O"
)

// Patient represents a patient record together with its cached embedding
type Patient struct {
	ID             int64      `json:"id" db:"id"`
	HospitalID     *int64     `json:"hospital_id,omitempty" db:"hospital_id"`
	FirstName      string     `json:"first_name" db:"first_name"`
	LastName       string     `json:"last_name" db:"last_name"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Gender         string     `json:"gender" db:"gender"`
	ContactNumber  string     `json:"contact_number" db:"contact_number"`
	Address        string     `json:"address" db:"address"`
	Symptoms       string     `json:"symptoms,omitempty" db:"symptoms"`
	MedicalHistory string     `json:"medical_history,omitempty" db:"medical_history"`
	EmbeddingJSON  *string    `json:"-" db:"embedding_json"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// FullName returns "first last"
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// GenderLabel returns the human readable gender
func (p *Patient) GenderLabel() string {
	switch p.Gender {
	case GenderMale:
		return "Male"
	case GenderFemale:
		return "Female"
	default:
		return "Other"
	}
}

// ErrNoEmbedding is returned by ParseEmbedding when nothing usable is stored
var ErrNoEmbedding = errors.New("no stored embedding")

// ParseEmbedding decodes the stored embedding. Missing, unparseable or empty
// values all yield an error so callers treat them as a cache miss.
func (p *Patient) ParseEmbedding() ([]float64, error) {
	if p.EmbeddingJSON == nil || *p.EmbeddingJSON == "" {
		return nil, ErrNoEmbedding
	}
	var vec []float64
	if err := json.Unmarshal([]byte(*p.EmbeddingJSON), &vec); err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ErrNoEmbedding
	}
	return vec, nil
}

// EncodeEmbedding serializes a vector into the stored JSON array form
func EncodeEmbedding(vec []float64) (string, error) {
	data, err := json.Marshal(vec)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
