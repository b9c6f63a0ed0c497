package service

// Default confidence floors for answer-layer gating.
const (
	DefaultCombinedScoreFloor = 0.35
	DefaultVectorScoreFloor   = 0.25

	// keywordDominantFloor lets a single top keyword-dominant match pass
	// even below the vector floor.
	keywordDominantFloor = 0.9
)

// GateByConfidence filters retrieved chunks by a combined-score floor and
// a vector-score floor. The answering layer calls this before synthesis;
// it consumes the engine's sub-scores directly. A top-ranked chunk whose
// normalized keyword score is at least 0.9 passes the vector floor
// carve-out: exact lexical matches on identifiers are trustworthy even
// when semantically distant.
func GateByConfidence(chunks []RetrievedChunk, combinedFloor, vectorFloor float64) []RetrievedChunk {
	if combinedFloor <= 0 {
		combinedFloor = DefaultCombinedScoreFloor
	}
	if vectorFloor <= 0 {
		vectorFloor = DefaultVectorScoreFloor
	}

	out := make([]RetrievedChunk, 0, len(chunks))
	for i, c := range chunks {
		if c.Score < combinedFloor {
			continue
		}
		if c.VectorScore < vectorFloor {
			if i == 0 && c.KeywordScore >= keywordDominantFloor {
				out = append(out, c)
			}
			continue
		}
		out = append(out, c)
	}
	return out
}
