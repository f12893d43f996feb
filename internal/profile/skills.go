package profile

import (
	"encoding/json"
	"sort"
	"strings"
)

var skillAliases = map[string]string{
	"golang":              "go",
	"k8s":                 "kubernetes",
	"js":                  "javascript",
	"ts":                  "typescript",
	"postgres":            "postgresql",
	"psql":                "postgresql",
	"py":                  "python",
	"python3":             "python",
	"node":                "node.js",
	"nodejs":              "node.js",
	"reactjs":             "react",
	"react.js":            "react",
	"aws cloud":           "aws",
	"amazon web services": "aws",
	"gcp":                 "google cloud",
	"ml":                  "machine learning",
	"ci/cd":               "ci-cd",
	"cicd":                "ci-cd",
}

// CanonicalSkill returns the lookup key used for a raw skill label.
func CanonicalSkill(raw string) string {
	key := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	key = strings.Trim(key, ".,;:")
	if alias, ok := skillAliases[key]; ok {
		return alias
	}
	return key
}

// Skills is a sorted set of canonical skill keys. The zero value is empty.
type Skills struct {
	items []string
}

func NewSkills(raw ...string) Skills {
	seen := make(map[string]struct{}, len(raw))
	items := make([]string, 0, len(raw))
	for _, r := range raw {
		key := CanonicalSkill(r)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, key)
	}
	sort.Strings(items)
	return Skills{items: items}
}

func (s Skills) Len() int {
	return len(s.items)
}

// Items returns a copy of the canonical keys in sorted order.
func (s Skills) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

func (s Skills) Contains(skill string) bool {
	key := CanonicalSkill(skill)
	i := sort.SearchStrings(s.items, key)
	return i < len(s.items) && s.items[i] == key
}

func (s Skills) Intersect(other Skills) Skills {
	out := make([]string, 0)
	for _, item := range s.items {
		if other.has(item) {
			out = append(out, item)
		}
	}
	return Skills{items: out}
}

func (s Skills) Difference(other Skills) Skills {
	out := make([]string, 0)
	for _, item := range s.items {
		if !other.has(item) {
			out = append(out, item)
		}
	}
	return Skills{items: out}
}


func (s Skills) Equal(other Skills) bool {
	if len(s.items) != len(other.items) {
		return false
	}
	for i := range s.items {
		if s.items[i] != other.items[i] {
			return false
		}
	}
	return true
}

func (s Skills) String() string {
	return strings.Join(s.items, ", ")
}

func (s Skills) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Items())
}

func (s *Skills) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewSkills(raw...)
	return nil
}

func (s Skills) has(key string) bool {
	i := sort.SearchStrings(s.items, key)
	return i < len(s.items) && s.items[i] == key
}
