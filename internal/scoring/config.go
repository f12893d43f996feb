package scoring

import "github.com/spigell/talentscout/internal/profile"

// MaxQualitativeCap bounds the qualitative adjustment regardless of configuration.
const MaxQualitativeCap = 10

// Band is an inclusive range of years of experience. A zero MaxYears is open ended.
type Band struct {
	MinYears float64 `mapstructure:"min-years" json:"min_years" validate:"gte=0"`
	MaxYears float64 `mapstructure:"max-years" json:"max_years" validate:"gte=0"`
}

type Config struct {
	Bands                    map[profile.ExperienceLevel]Band `mapstructure:"bands"`
	BelowBandPenalty         int                              `mapstructure:"below-band-penalty" validate:"gte=0,lte=100"`
	AboveBandBonus           int                              `mapstructure:"above-band-bonus" validate:"gte=0,lte=100"`
	MaxQualitativeAdjustment int                              `mapstructure:"max-qualitative-adjustment" validate:"gte=0,lte=10"`
	Qualitative              bool                             `mapstructure:"qualitative"`
}

func DefaultConfig() Config {
	return Config{
		Bands: map[profile.ExperienceLevel]Band{
			profile.LevelJunior: {MinYears: 0, MaxYears: 2},
			profile.LevelMid:    {MinYears: 2, MaxYears: 5},
			profile.LevelSenior: {MinYears: 5},
		},
		BelowBandPenalty:         10,
		AboveBandBonus:           5,
		MaxQualitativeAdjustment: MaxQualitativeCap,
		Qualitative:              true,
	}
}

func (c Config) maxQualitative() int {
	switch {
	case c.MaxQualitativeAdjustment < 0:
		return 0
	case c.MaxQualitativeAdjustment > MaxQualitativeCap:
		return MaxQualitativeCap
	default:
		return c.MaxQualitativeAdjustment
	}
}

// ExperienceAdjustment compares the candidate's years with the band of the
// job's level. Unknown level or years give no adjustment.
func (c Config) ExperienceAdjustment(job *profile.JobProfile, cand *profile.CandidateProfile) int {
	adj, _ := c.experience(job, cand)
	return adj
}

func (c Config) experience(job *profile.JobProfile, cand *profile.CandidateProfile) (int, string) {
	if job == nil || cand == nil || !job.ExperienceLevel.Known() {
		return 0, ""
	}

	years, ok := cand.ExperienceYears.Get()
	if !ok {
		return 0, "experience unknown"
	}

	band, ok := c.Bands[job.ExperienceLevel]
	if !ok {
		return 0, ""
	}

	switch {
	case years < band.MinYears:
		return -c.BelowBandPenalty, formatBandNote(years, "below", job.ExperienceLevel, band)
	case band.MaxYears > 0 && years > band.MaxYears:
		return c.AboveBandBonus, formatBandNote(years, "above", job.ExperienceLevel, band)
	default:
		return 0, formatBandNote(years, "within", job.ExperienceLevel, band)
	}
}
