package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swasthya/hms-backend/internal/domain/entities"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 1}, []float64{-1, -1}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSimilarity_ScaleInvariant(t *testing.T) {
	a := []float64{0.3, -1.2, 4}
	b := []float64{0.9, -3.6, 12}
	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-9)
}

func TestRankCandidates(t *testing.T) {
	p1 := &entities.Patient{ID: 1}
	p2 := &entities.Patient{ID: 2}
	p3 := &entities.Patient{ID: 3}
	p4 := &entities.Patient{ID: 4}

	query := []float64{1, 0}
	// Scores: p1 = 0.6, p2 = 0.8, p3 = 0 (dropped), p4 = 0.8
	angle := func(cos float64) []float64 { return []float64{cos, math.Sqrt(1 - cos*cos)} }
	candidates := []Candidate{
		{Patient: p1, Vector: angle(0.6)},
		{Patient: p2, Vector: angle(0.8)},
		{Patient: p3, Vector: []float64{0, 1}},
		{Patient: p4, Vector: angle(0.8)},
	}

	ranked := RankCandidates(query, candidates, 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, int64(2), ranked[0].Patient.ID)
	assert.Equal(t, int64(4), ranked[1].Patient.ID, "ties keep input order")
	assert.Equal(t, int64(1), ranked[2].Patient.ID)
	assert.InDelta(t, 0.8, ranked[0].Score, 1e-9)
}

func TestRankCandidates_ThresholdIsExclusive(t *testing.T) {
	query := []float64{1, 0, 0, 0}
	// |(2,4,2,1)| = 5, so the score is exactly 0.4
	candidates := []Candidate{
		{Patient: &entities.Patient{ID: 1}, Vector: []float64{2, 4, 2, 1}},
	}
	assert.Equal(t, 0.4, CosineSimilarity(query, candidates[0].Vector))
	assert.Empty(t, RankCandidates(query, candidates, 3))
}

func TestRankCandidates_Limit(t *testing.T) {
	query := []float64{1}
	candidates := []Candidate{
		{Patient: &entities.Patient{ID: 1}, Vector: []float64{1}},
		{Patient: &entities.Patient{ID: 2}, Vector: []float64{2}},
	}
	assert.Len(t, RankCandidates(query, candidates, 1), 1)
	assert.Empty(t, RankCandidates(query, candidates, 0))
}
