package profile

import (
	"encoding/json"
	"testing"
)

func TestNewSkillsCanonicalizes(t *testing.T) {
	skills := NewSkills(" Golang ", "K8s", "go", "", "PostgreSQL", "postgres.")

	want := []string{"go", "kubernetes", "postgresql"}
	got := skills.Items()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if !skills.Contains("GoLang") {
		t.Fatalf("expected alias lookup to match")
	}
}

func TestSkillsSetOperations(t *testing.T) {
	required := NewSkills("python", "sql", "docker")
	candidate := NewSkills("python", "docker", "rust")

	matched := required.Intersect(candidate)
	missing := required.Difference(candidate)

	if !matched.Equal(NewSkills("docker", "python")) {
		t.Fatalf("unexpected matched set: %s", matched)
	}
	if !missing.Equal(NewSkills("sql")) {
		t.Fatalf("unexpected missing set: %s", missing)
	}
	if matched.Len()+missing.Len() != required.Len() || !required.Difference(matched).Equal(missing) {
		t.Fatalf("matched and missing must cover required skills")
	}

	var empty Skills
	if empty.Len() != 0 || empty.Intersect(required).Len() != 0 {
		t.Fatalf("zero value must behave as an empty set")
	}
	if !required.Difference(empty).Equal(required) {
		t.Fatalf("difference with empty set must be identity")
	}
}

func TestParseExperienceLevel(t *testing.T) {
	tests := map[string]ExperienceLevel{
		"Junior":        LevelJunior,
		"entry-level":   LevelJunior,
		" intern ":      LevelJunior,
		"Middle":        LevelMid,
		"intermediate":  LevelMid,
		"Sr.":           LevelSenior,
		"Principal":     LevelSenior,
		"":              LevelUnspecified,
		"rockstar":      LevelUnspecified,
		"not specified": LevelUnspecified,
	}

	for raw, want := range tests {
		if got := ParseExperienceLevel(raw); got != want {
			t.Fatalf("ParseExperienceLevel(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestOptionalJSON(t *testing.T) {
	type wrapper struct {
		Years Optional[float64] `json:"years"`
		Name  Optional[string]  `json:"name"`
	}

	data, err := json.Marshal(wrapper{Years: Some(3.5)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"years":3.5,"name":null}` {
		t.Fatalf("unexpected encoding: %s", data)
	}

	var decoded wrapper
	if err := json.Unmarshal([]byte(`{"years":null,"name":"Ada"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Years.IsSet() {
		t.Fatalf("expected years to be absent")
	}
	if name, ok := decoded.Name.Get(); !ok || name != "Ada" {
		t.Fatalf("unexpected name: %q %v", name, ok)
	}
	if decoded.Years.OrElse(-1) != -1 {
		t.Fatalf("OrElse must return fallback for absent value")
	}
}

func TestJobDigestStable(t *testing.T) {
	a := &JobProfile{Title: "Backend", RequiredSkills: NewSkills("go", "sql"), ExperienceLevel: LevelMid}
	b := &JobProfile{Title: " Backend ", RequiredSkills: NewSkills("SQL", "golang"), ExperienceLevel: LevelMid}
	c := &JobProfile{Title: "Backend", RequiredSkills: NewSkills("go"), ExperienceLevel: LevelMid}

	if a.Digest() != b.Digest() {
		t.Fatalf("equivalent profiles must share a digest")
	}
	if a.Digest() == c.Digest() {
		t.Fatalf("different skills must change the digest")
	}
}

func TestWithSourceIDCopies(t *testing.T) {
	orig := &CandidateProfile{SourceID: "a.pdf", Name: Some("Ada"), Skills: NewSkills("go")}
	cp := orig.WithSourceID("b.pdf")

	if cp.SourceID != "b.pdf" || orig.SourceID != "a.pdf" {
		t.Fatalf("unexpected source ids: %q %q", orig.SourceID, cp.SourceID)
	}
	if cp.DisplayName() != "Ada" {
		t.Fatalf("expected name to be copied, got %q", cp.DisplayName())
	}

	anon := &CandidateProfile{SourceID: "c.pdf"}
	if anon.DisplayName() != "c.pdf" {
		t.Fatalf("expected source id fallback, got %q", anon.DisplayName())
	}
}
