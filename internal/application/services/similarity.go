package services

import (
	"math"
	"sort"

	"github.com/swasthya/hms-backend/internal/domain/entities"
)

// RelevanceThreshold is the minimum cosine score, exclusive, for a patient to count as relevant
const RelevanceThreshold = 0.4

// CosineSimilarity returns the cosine of the angle between a and b. Vectors of
// different length, empty vectors and zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Candidate is a patient together with its document embedding
type Candidate struct {
	Patient *entities.Patient
	Vector  []float64
}

// RankedPatient is a candidate that passed the relevance threshold
type RankedPatient struct {
	Patient *entities.Patient
	Score   float64
}

// RankCandidates scores every candidate against query, keeps those above
// RelevanceThreshold and returns at most limit of them, best first. Equal
// scores keep their input order.
func RankCandidates(query []float64, candidates []Candidate, limit int) []RankedPatient {
	ranked := make([]RankedPatient, 0, len(candidates))
	for _, c := range candidates {
		score := CosineSimilarity(query, c.Vector)
		if score > RelevanceThreshold {
			ranked = append(ranked, RankedPatient{Patient: c.Patient, Score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
