package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateByConfidence(t *testing.T) {
	tests := []struct {
		name   string
		chunks []RetrievedChunk
		want   []string
	}{
		{
			name: "confident chunks pass",
			chunks: []RetrievedChunk{
				{DocumentID: "a", Score: 0.8, VectorScore: 0.7},
				{DocumentID: "b", Score: 0.5, VectorScore: 0.4},
			},
			want: []string{"a", "b"},
		},
		{
			name: "combined floor filters",
			chunks: []RetrievedChunk{
				{DocumentID: "a", Score: 0.8, VectorScore: 0.7},
				{DocumentID: "b", Score: 0.2, VectorScore: 0.9},
			},
			want: []string{"a"},
		},
		{
			name: "vector floor filters",
			chunks: []RetrievedChunk{
				{DocumentID: "a", Score: 0.8, VectorScore: 0.7},
				{DocumentID: "b", Score: 0.4, VectorScore: 0.1},
			},
			want: []string{"a"},
		},
		{
			name: "top keyword-dominant match survives vector floor",
			chunks: []RetrievedChunk{
				{DocumentID: "stmt", Score: 0.5, VectorScore: 0.1, KeywordScore: 1.0},
				{DocumentID: "b", Score: 0.4, VectorScore: 0.1, KeywordScore: 0.95},
			},
			want: []string{"stmt"},
		},
		{
			name:   "empty input",
			chunks: nil,
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GateByConfidence(tt.chunks, 0, 0)
			ids := make([]string, len(got))
			for i, c := range got {
				ids[i] = c.DocumentID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGateByConfidenceCustomFloors(t *testing.T) {
	chunks := []RetrievedChunk{
		{DocumentID: "a", Score: 0.6, VectorScore: 0.6},
		{DocumentID: "b", Score: 0.5, VectorScore: 0.5},
	}

	got := GateByConfidence(chunks, 0.55, 0.55)
	assert.Len(t, got, 1)
	assert.Equal(t, "a", got[0].DocumentID)
}
