// Package profile holds the structured representations of a job description
// and of a candidate resume produced by extraction.
package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// UnknownRole is the title used when a job description names no role.
const UnknownRole = "Unknown role"

// JobProfile is immutable once extracted and shared read-only across
// candidate evaluations.
type JobProfile struct {
	Title           string          `json:"title"`
	RequiredSkills  Skills          `json:"required_skills"`
	SoftSkills      []string        `json:"soft_skills"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
}

// Digest is a stable fingerprint of the profile content.
func (j *JobProfile) Digest() string {
	if j == nil {
		return ""
	}

	h := sha256.New()
	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}

	write("title", strings.TrimSpace(j.Title))
	write("level", j.ExperienceLevel.String())
	write("required")
	write(j.RequiredSkills.Items()...)
	write("soft")
	write(j.SoftSkills...)

	return hex.EncodeToString(h.Sum(nil))
}

type CandidateProfile struct {
	SourceID        string            `json:"source_id"`
	Name            Optional[string]  `json:"name"`
	Email           Optional[string]  `json:"email"`
	Skills          Skills            `json:"skills"`
	ExperienceYears Optional[float64] `json:"experience_years"`
	Summary         string            `json:"summary"`
	RawTextDigest   string            `json:"raw_text_digest"`
}

// DisplayName returns the extracted name or the source id when no name was found.
func (c *CandidateProfile) DisplayName() string {
	if c == nil {
		return ""
	}
	return c.Name.OrElse(c.SourceID)
}

// WithSourceID returns a copy of the profile attributed to another source.
func (c *CandidateProfile) WithSourceID(sourceID string) *CandidateProfile {
	if c == nil {
		return nil
	}
	cp := *c
	cp.SourceID = sourceID
	cp.Skills = NewSkills(c.Skills.Items()...)
	return &cp
}
