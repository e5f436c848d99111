package segment

// PausePlan pairs one narratable unit of text with the silence that should
// follow it. Text is fixed at creation time; pause corrections downstream
// produce new PausePlan values instead of editing this one.
type PausePlan struct {
	Text              string  `json:"text"`
	PauseAfterSeconds float64 `json:"pause_after_seconds"`
}

// ClauseSpec is the clause-level render unit used for fine-grained stitching.
// An empty Text means the clause is pure pause with no speech to synthesize.
type ClauseSpec struct {
	Text         string  `json:"text"`
	PauseSeconds float64 `json:"pause_seconds"`
}
