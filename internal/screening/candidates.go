package screening

import "github.com/spigell/hireloop/internal/store"

// Assessment is the AI verdict attached to a candidate during screening.
type Assessment struct {
	Fit     bool    `json:"fit"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason,omitempty"`
	Message string  `json:"message,omitempty"`
	Error   string  `json:"error,omitempty"`
}

type Candidate struct {
	Application *store.Application `json:"application"`
	Profile     *store.Profile     `json:"profile"`
	AI          *Assessment        `json:"ai,omitempty"`
}

type Candidates struct {
	Items []*Candidate `json:"items"`
}

func (c *Candidates) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

// Exclude removes candidates matching drop and returns their application ids.
func (c *Candidates) Exclude(drop func(*Candidate) bool) []string {
	var excluded []string
	kept := c.Items[:0]
	for _, item := range c.Items {
		if drop(item) {
			excluded = append(excluded, item.Application.ID)
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
	return excluded
}
