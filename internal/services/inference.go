package services

import (
	_ "embed"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"alfredoptarigan/cv-copilot/internal/models"
)

//go:embed industries.yaml
var industriesYAML []byte

// Age range labels used in the headshot prompt.
const (
	AgeRangeJunior = "20s to early 30s"
	AgeRangeMid    = "30s to early 40s"
	AgeRangeSenior = "40s+"
)

var (
	durationRe = regexp.MustCompile(`(?i)\(\s*(?:(\d+)\s*(?:years?|yrs?))?[\s,]*(?:(\d+)\s*(?:months?|mos?))?\s*\)`)
	rangeSepRe = regexp.MustCompile(`\s*(?:-|–|—|\bto\b)\s*`)
)

var periodLayouts = []string{"Jan 2006", "January 2006", "Jan. 2006", "01/2006", "1/2006", "2006"}

// IndustryTable is the static skill lookup used to guess the industry and the
// photo setting of a candidate.
type IndustryTable struct {
	DefaultIndustry string `yaml:"default_industry"`
	Industries      []struct {
		Industry string   `yaml:"industry"`
		Skills   []string `yaml:"skills"`
	} `yaml:"industries"`
	DefaultSetting string `yaml:"default_setting"`
	Settings       []struct {
		Setting  string   `yaml:"setting"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"settings"`

	skillIndex map[string]string
}

func ParseIndustryTable(data []byte) (*IndustryTable, error) {
	var t IndustryTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, "parse industry table")
	}
	if t.DefaultIndustry == "" {
		t.DefaultIndustry = "Technology"
	}

	t.skillIndex = make(map[string]string)
	for _, entry := range t.Industries {
		for _, skill := range entry.Skills {
			key := normalizeSkill(skill)
			if _, dup := t.skillIndex[key]; !dup {
				t.skillIndex[key] = entry.Industry
			}
		}
	}
	return &t, nil
}

var defaultIndustryTable = sync.OnceValue(func() *IndustryTable {
	t, err := ParseIndustryTable(industriesYAML)
	if err != nil {
		panic(err)
	}
	return t
})

func DefaultIndustryTable() *IndustryTable {
	return defaultIndustryTable()
}

// Industry returns the industry of the first skill present in the table.
func (t *IndustryTable) Industry(skills []string) string {
	for _, s := range skills {
		if industry, ok := t.skillIndex[normalizeSkill(s)]; ok {
			return industry
		}
	}
	return t.DefaultIndustry
}

// Setting returns the background of the first rule whose keyword appears in any skill.
func (t *IndustryTable) Setting(skills []string) string {
	joined := strings.ToLower(strings.Join(skills, " | "))
	for _, rule := range t.Settings {
		for _, kw := range rule.Keywords {
			if strings.Contains(joined, strings.ToLower(kw)) {
				return rule.Setting
			}
		}
	}
	return t.DefaultSetting
}

func normalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// InferYearsExperience sums the "(N years M months)" suffixes of the periods and
// floors the total. Periods without one contribute nothing.
func InferYearsExperience(periods []string) int {
	var total float64
	for _, p := range periods {
		for _, m := range durationRe.FindAllStringSubmatch(p, -1) {
			if m[1] == "" && m[2] == "" {
				continue
			}
			years, _ := strconv.Atoi(m[1])
			months, _ := strconv.Atoi(m[2])
			total += float64(years) + float64(months)/12
			break
		}
	}
	return int(math.Floor(total))
}

func AgeRange(years int) string {
	switch {
	case years < 5:
		return AgeRangeJunior
	case years < 15:
		return AgeRangeMid
	default:
		return AgeRangeSenior
	}
}

// InferJobTitles returns up to two distinct titles, most recent first. Entries
// are ordered by end date descending; entries with equal end dates keep CV order
// and a repeated title keeps its first occurrence.
func InferJobTitles(experience []models.WorkExperience) []string {
	now := time.Now()
	ends := make([]time.Time, len(experience))
	idx := make([]int, len(experience))
	for i, e := range experience {
		ends[i] = periodEnd(e.Period, now)
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return ends[idx[a]].After(ends[idx[b]])
	})

	seen := make(map[string]bool)
	var titles []string
	for _, i := range idx {
		title := strings.TrimSpace(experience[i].Title)
		key := strings.ToLower(title)
		if title == "" || seen[key] {
			continue
		}
		seen[key] = true
		titles = append(titles, title)
		if len(titles) == 2 {
			break
		}
	}
	return titles
}

// periodEnd parses the end of an employment period such as "Jan 2020 - Present (2 years)".
// Ongoing roles end at now; an unparseable end is the zero time.
func periodEnd(period string, now time.Time) time.Time {
	if i := strings.Index(period, "("); i >= 0 {
		period = period[:i]
	}
	parts := rangeSepRe.Split(strings.TrimSpace(period), -1)
	end := strings.TrimSpace(parts[len(parts)-1])

	switch strings.ToLower(end) {
	case "present", "current", "now", "today":
		return now
	}
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, end); err == nil {
			return t
		}
	}
	return time.Time{}
}

// HeadshotProfile is what the headshot prompt needs from a CV.
type HeadshotProfile struct {
	JobTitle string
	Industry string
	AgeRange string
	Setting  string
	Years    int
}

func InferHeadshotProfile(cv *models.CVData, table *IndustryTable) HeadshotProfile {
	periods := make([]string, 0, len(cv.WorkExperience))
	for _, e := range cv.WorkExperience {
		periods = append(periods, e.Period)
	}
	years := InferYearsExperience(periods)

	title := strings.Join(InferJobTitles(cv.WorkExperience), " / ")
	if title == "" {
		title = "professional"
	}

	return HeadshotProfile{
		JobTitle: title,
		Industry: table.Industry(cv.Skills),
		AgeRange: AgeRange(years),
		Setting:  table.Setting(cv.Skills),
		Years:    years,
	}
}
