package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Seed is the YAML document accepted by the seed command.
type Seed struct {
	Jobs      []Job       `yaml:"jobs"`
	Knowledge []Knowledge `yaml:"knowledge"`
}

func DecodeSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &seed, nil
}

type SeedResult struct {
	Jobs      int
	Knowledge int
}

// ApplySeed inserts the seeded records as owned by ownerID. Jobs whose title
// already exists are skipped so the same file can be applied twice.
func (s *Store) ApplySeed(ctx context.Context, seed *Seed, ownerID string) (SeedResult, error) {
	var res SeedResult

	existing, err := s.ListJobs(ctx, "")
	if err != nil {
		return res, err
	}
	titles := make(map[string]struct{}, len(existing))
	for _, j := range existing {
		titles[j.Title] = struct{}{}
	}

	for i := range seed.Jobs {
		job := seed.Jobs[i]
		if _, ok := titles[job.Title]; ok {
			continue
		}
		job.CreatedBy = ownerID
		if _, err := s.CreateJob(ctx, &job); err != nil {
			return res, fmt.Errorf("seed job %q: %w", job.Title, err)
		}
		titles[job.Title] = struct{}{}
		res.Jobs++
	}

	for i := range seed.Knowledge {
		k := seed.Knowledge[i]
		k.OwnerID = ownerID
		if _, err := s.CreateKnowledge(ctx, &k); err != nil {
			return res, fmt.Errorf("seed knowledge %q: %w", k.Title, err)
		}
		res.Knowledge++
	}

	return res, nil
}
