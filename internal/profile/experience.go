package profile

import "strings"

type ExperienceLevel string

const (
	LevelUnspecified ExperienceLevel = "unspecified"
	LevelJunior      ExperienceLevel = "junior"
	LevelMid         ExperienceLevel = "mid"
	LevelSenior      ExperienceLevel = "senior"
)

var levelSynonyms = map[string]ExperienceLevel{
	"junior":       LevelJunior,
	"jr":           LevelJunior,
	"entry":        LevelJunior,
	"entry-level":  LevelJunior,
	"entry level":  LevelJunior,
	"intern":       LevelJunior,
	"graduate":     LevelJunior,
	"mid":          LevelMid,
	"middle":       LevelMid,
	"mid-level":    LevelMid,
	"mid level":    LevelMid,
	"intermediate": LevelMid,
	"senior":       LevelSenior,
	"sr":           LevelSenior,
	"lead":         LevelSenior,
	"staff":        LevelSenior,
	"principal":    LevelSenior,
	"expert":       LevelSenior,
}

// ParseExperienceLevel maps free-form seniority labels onto the known levels.
// Anything unrecognised is LevelUnspecified.
func ParseExperienceLevel(raw string) ExperienceLevel {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.TrimSuffix(key, ".")
	if level, ok := levelSynonyms[key]; ok {
		return level
	}
	return LevelUnspecified
}

func (l ExperienceLevel) Known() bool {
	switch l {
	case LevelJunior, LevelMid, LevelSenior:
		return true
	default:
		return false
	}
}

func (l ExperienceLevel) String() string {
	if l == "" {
		return string(LevelUnspecified)
	}
	return string(l)
}

// LevelForYears infers a seniority level from years of experience when a job
// description states years instead of a level.
func LevelForYears(years float64) ExperienceLevel {
	switch {
	case years < 0:
		return LevelUnspecified
	case years < 2:
		return LevelJunior
	case years < 5:
		return LevelMid
	default:
		return LevelSenior
	}
}
