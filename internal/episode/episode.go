// Package episode implements episodic memory with sparse anchor retrieval.
// An episode is a situated record of something that happened: actors,
// consequences, corrections, and what the summary deliberately dropped.
// The anchor is a handful of named floats cheap enough to keep resident;
// the full episode is retrieved only when the anchor matches the current
// situation.
package episode

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Anchor is a sparse retrieval key. Dimensions are not predefined; each
// episode declares the dimensions that matter to it, and retrieval matches
// on dimensional overlap rather than exact equality.
type Anchor struct {
	Dimensions map[string]float64 `json:"dimensions"`
}

// Similarity computes cosine similarity over the dimensions present in
// both anchors. Returns 0 when the anchors share no dimensions.
func (a Anchor) Similarity(other Anchor) float64 {
	var dot, magA, magB float64
	shared := false
	for d, va := range a.Dimensions {
		vb, ok := other.Dimensions[d]
		if !ok {
			continue
		}
		shared = true
		dot += va * vb
		magA += va * va
		magB += vb * vb
	}
	if !shared || magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Loss records what a summary dropped and why, so the reader knows what
// they are not getting.
type Loss struct {
	What string `json:"what"`
	Why  string `json:"why"`
}

// Episode is a situated record. Not a fact, not a rule: actors, actions,
// consequences, corrections, with the anchor as its retrieval key.
type Episode struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Session      string    `json:"session"`
	Anchor       Anchor    `json:"anchor"`
	Title        string    `json:"title"`
	Narrative    string    `json:"narrative"`
	Actors       []string  `json:"actors,omitempty"`
	Consequences []string  `json:"consequences,omitempty"`
	Corrections  []string  `json:"corrections,omitempty"`
	Losses       []Loss    `json:"declared_losses,omitempty"`
	Artifacts    []string  `json:"related_artifacts,omitempty"`
}

// New builds an episode with a fresh ID and the current time.
func New(session, title, narrative string, anchor Anchor) Episode {
	return Episode{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Session:   session,
		Anchor:    anchor,
		Title:     title,
		Narrative: narrative,
	}
}

// Retrieve returns the episodes whose anchor similarity to the query meets
// the threshold, sorted by similarity descending.
func Retrieve(episodes []Episode, query Anchor, threshold float64) []Episode {
	type scored struct {
		ep    Episode
		score float64
	}
	var matched []scored
	for _, ep := range episodes {
		if s := ep.Anchor.Similarity(query); s >= threshold {
			matched = append(matched, scored{ep: ep, score: s})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})
	out := make([]Episode, len(matched))
	for i, m := range matched {
		out[i] = m.ep
	}
	return out
}

// RetrieveByDimension returns episodes with intensity at or above the
// threshold on one dimension, sorted by that intensity descending.
func RetrieveByDimension(episodes []Episode, dimension string, threshold float64) []Episode {
	var matched []Episode
	for _, ep := range episodes {
		if ep.Anchor.Dimensions[dimension] >= threshold {
			matched = append(matched, ep)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Anchor.Dimensions[dimension] > matched[j].Anchor.Dimensions[dimension]
	})
	return matched
}
