package extraction

import (
	"net/mail"
	"strings"

	"github.com/spigell/talentscout/internal/ai"
	"github.com/spigell/talentscout/internal/profile"
)

const maxPlausibleYears = 60

// first returns the first present key, tolerating the field names models
// commonly drift to.
func first(payload ai.Payload, keys ...string) any {
	for _, key := range keys {
		if v, ok := payload[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// text accepts only string values, so that a number where a name belongs is
// treated as absent rather than turned into a name.
func text(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return ai.CoerceString(s)
}

func decodeJob(payload ai.Payload) *profile.JobProfile {
	job := &profile.JobProfile{
		Title:           profile.UnknownRole,
		ExperienceLevel: profile.LevelUnspecified,
	}

	if title, ok := text(first(payload, "title", "job_title", "role")); ok {
		job.Title = title
	}

	if skills, ok := ai.CoerceStrings(first(payload, "required_skills", "tech_skills", "skills")); ok {
		job.RequiredSkills = profile.NewSkills(skills...)
	}

	if soft, ok := ai.CoerceStrings(first(payload, "soft_skills")); ok {
		job.SoftSkills = soft
	}

	raw := first(payload, "experience_level", "seniority", "experience")
	if level, ok := text(raw); ok {
		job.ExperienceLevel = profile.ParseExperienceLevel(level)
	}
	if !job.ExperienceLevel.Known() {
		if years, ok := ai.CoerceFloat(raw); ok {
			job.ExperienceLevel = profile.LevelForYears(years)
		}
	}

	return job
}

func decodeCandidate(payload ai.Payload) *profile.CandidateProfile {
	cand := &profile.CandidateProfile{
		Name:            profile.None[string](),
		Email:           profile.None[string](),
		ExperienceYears: profile.None[float64](),
	}

	if name, ok := text(first(payload, "name", "full_name")); ok && !strings.EqualFold(name, "unknown candidate") {
		cand.Name = profile.Some(name)
	}

	if email, ok := text(first(payload, "email")); ok {
		if addr, err := mail.ParseAddress(email); err == nil {
			cand.Email = profile.Some(addr.Address)
		}
	}

	if skills, ok := ai.CoerceStrings(first(payload, "skills", "technical_skills")); ok {
		cand.Skills = profile.NewSkills(skills...)
	}

	if years, ok := ai.CoerceFloat(first(payload, "experience_years", "years_of_experience")); ok && years >= 0 && years <= maxPlausibleYears {
		cand.ExperienceYears = profile.Some(years)
	}

	if summary, ok := text(first(payload, "summary", "analysis")); ok {
		cand.Summary = summary
	}

	return cand
}
