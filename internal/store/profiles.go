package store

import (
	"context"
	"errors"
	"strings"
)

// Profile is the candidate-owned part of an account.
type Profile struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"user_id"`
	Headline        string     `db:"headline" json:"headline"`
	Phone           string     `db:"phone" json:"phone"`
	Location        string     `db:"location" json:"location"`
	Summary         string     `db:"summary" json:"summary"`
	ResumeText      string     `db:"resume_text" json:"resume_text"`
	Skills          StringList `db:"skills" json:"skills"`
	Links           StringList `db:"links" json:"links"`
	ExperienceYears int        `db:"experience_years" json:"experience_years"`
	CreatedAt       int64      `db:"created_at" json:"created_at"`
	UpdatedAt       int64      `db:"updated_at" json:"updated_at"`
}

type ProfilePatch struct {
	Headline        *string   `json:"headline"`
	Phone           *string   `json:"phone"`
	Location        *string   `json:"location"`
	Summary         *string   `json:"summary"`
	ResumeText      *string   `json:"resume_text"`
	Skills          *[]string `json:"skills"`
	Links           *[]string `json:"links"`
	ExperienceYears *int      `json:"experience_years"`
}

const profileColumns = "id, user_id, headline, phone, location, summary, resume_text, skills, links, experience_years, created_at, updated_at"

func (s *Store) GetProfileByUserID(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := s.db.GetContext(ctx, &p, s.db.Rebind(`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`), userID)
	if err != nil {
		return nil, wrapGet(err, "profile")
	}
	return &p, nil
}

// PatchProfile applies the patch to the user's profile, creating it on first write.
func (s *Store) PatchProfile(ctx context.Context, userID string, patch Patch) (*Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user id is required")
	}

	var p ProfilePatch
	if err := decodePatch(patch, &p); err != nil {
		return nil, err
	}
	if p.ExperienceYears != nil && *p.ExperienceYears < 0 {
		return nil, invalid("experience_years must not be negative")
	}

	existing, err := s.GetProfileByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return s.insertProfile(ctx, userID, &p)
	}
	if err != nil {
		return nil, err
	}

	sets := &setList{}
	if p.Headline != nil {
		sets.add("headline", strings.TrimSpace(*p.Headline))
	}
	if p.Phone != nil {
		sets.add("phone", strings.TrimSpace(*p.Phone))
	}
	if p.Location != nil {
		sets.add("location", strings.TrimSpace(*p.Location))
	}
	if p.Summary != nil {
		sets.add("summary", *p.Summary)
	}
	if p.ResumeText != nil {
		sets.add("resume_text", *p.ResumeText)
	}
	if p.Skills != nil {
		sets.add("skills", cleanList(*p.Skills))
	}
	if p.Links != nil {
		sets.add("links", cleanList(*p.Links))
	}
	if p.ExperienceYears != nil {
		sets.add("experience_years", *p.ExperienceYears)
	}

	if err := s.update(ctx, s.db, "profiles", existing.ID, sets); err != nil {
		return nil, err
	}

	return s.GetProfileByUserID(ctx, userID)
}

func (s *Store) insertProfile(ctx context.Context, userID string, p *ProfilePatch) (*Profile, error) {
	now := s.stamp()
	profile := &Profile{
		ID:        newID(),
		UserID:    userID,
		Skills:    StringList{},
		Links:     StringList{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if p.Headline != nil {
		profile.Headline = strings.TrimSpace(*p.Headline)
	}
	if p.Phone != nil {
		profile.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Location != nil {
		profile.Location = strings.TrimSpace(*p.Location)
	}
	if p.Summary != nil {
		profile.Summary = *p.Summary
	}
	if p.ResumeText != nil {
		profile.ResumeText = *p.ResumeText
	}
	if p.Skills != nil {
		profile.Skills = cleanList(*p.Skills)
	}
	if p.Links != nil {
		profile.Links = cleanList(*p.Links)
	}
	if p.ExperienceYears != nil {
		profile.ExperienceYears = *p.ExperienceYears
	}

	query := s.db.Rebind(`INSERT INTO profiles (` + profileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		profile.ID, profile.UserID, profile.Headline, profile.Phone, profile.Location, profile.Summary,
		profile.ResumeText, profile.Skills, profile.Links, profile.ExperienceYears, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return nil, wrapWrite(err, "profile")
	}

	return profile, nil
}

// cleanList trims entries and drops empty ones.
func cleanList(values []string) StringList {
	out := make(StringList, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
