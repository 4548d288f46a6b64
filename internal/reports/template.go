package reports

import (
	"fmt"
	"sort"

	"github.com/jjckrbbt/pharmatrade/internal/analytics"
	"github.com/jjckrbbt/pharmatrade/internal/yamldir"
)

// Section types a report can contain.
const (
	SectionSummary       = "summary"
	SectionTop           = "top"
	SectionTrend         = "trend"
	SectionConcentration = "concentration"
	SectionPricing       = "pricing"
)

const (
	defaultSectionLimit = 10
	maxSectionLimit     = 50
)

// Section describes one block of a report.
// yaml tags map the template files, json tags the inline request form.
type Section struct {
	Type      string `yaml:"type" json:"type" validate:"required,oneof=summary top trend concentration pricing"`
	Title     string `yaml:"title,omitempty" json:"title,omitempty" validate:"max=100"`
	Dimension string `yaml:"dimension,omitempty" json:"dimension,omitempty"`
	Limit     int    `yaml:"limit,omitempty" json:"limit,omitempty" validate:"min=0,max=50"`
}

// Normalize validates the section and fills in defaults.
func (s Section) Normalize() (Section, error) {
	switch s.Type {
	case SectionSummary, SectionTrend:
		s.Dimension = ""
		s.Limit = 0
	case SectionTop, SectionConcentration, SectionPricing:
		if s.Dimension == "" {
			return s, fmt.Errorf("section '%s' requires a dimension", s.Type)
		}
		d, err := analytics.ParseDimension(s.Dimension)
		if err != nil {
			return s, fmt.Errorf("section '%s': %w", s.Type, err)
		}
		s.Dimension = string(d)
		if s.Type == SectionConcentration {
			s.Limit = 0
			break
		}
		if s.Limit <= 0 {
			s.Limit = defaultSectionLimit
		}
		if s.Limit > maxSectionLimit {
			s.Limit = maxSectionLimit
		}
	default:
		return s, fmt.Errorf("unknown section type '%s'", s.Type)
	}
	if s.Title == "" {
		s.Title = defaultTitle(s)
	}
	return s, nil
}

func defaultTitle(s Section) string {
	switch s.Type {
	case SectionSummary:
		return "Summary"
	case SectionTrend:
		return "Monthly trend"
	case SectionTop:
		return fmt.Sprintf("Top %d by %s", s.Limit, s.Dimension)
	case SectionConcentration:
		return fmt.Sprintf("Concentration by %s", s.Dimension)
	case SectionPricing:
		return fmt.Sprintf("Unit prices by %s", s.Dimension)
	}
	return s.Type
}

// Template is a named, reusable list of sections.
type Template struct {
	ID          string    `yaml:"id" json:"id"`
	Title       string    `yaml:"title" json:"title"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Sections    []Section `yaml:"sections" json:"sections"`
}

// Key indexes the template by its id.
func (t *Template) Key() string { return t.ID }

// Validate checks the template and normalizes its sections in place.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template validation failed: id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("template validation failed: title is required")
	}
	if len(t.Sections) == 0 {
		return fmt.Errorf("template validation failed: at least one section is required")
	}
	for i, s := range t.Sections {
		n, err := s.Normalize()
		if err != nil {
			return fmt.Errorf("template validation failed: section %d: %w", i+1, err)
		}
		t.Sections[i] = n
	}
	return nil
}

// TemplateSet holds the templates loaded at startup.
type TemplateSet struct {
	templates map[string]Template
}

// LoadTemplates recursively scans dir for YAML templates, validates them and
// rejects duplicate ids.
func LoadTemplates(dir string) (*TemplateSet, error) {
	templates, err := yamldir.Load[Template](dir, "report template", "template id")
	if err != nil {
		return nil, err
	}
	return &TemplateSet{templates: templates}, nil
}

// NewTemplateSet builds a set from already-parsed templates.
func NewTemplateSet(templates ...Template) (*TemplateSet, error) {
	set := &TemplateSet{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, exists := set.templates[t.ID]; exists {
			return nil, fmt.Errorf("duplicate template id '%s'", t.ID)
		}
		set.templates[t.ID] = t
	}
	return set, nil
}

// Get returns the template with id.
func (s *TemplateSet) Get(id string) (Template, bool) {
	t, ok := s.templates[id]
	return t, ok
}

// List returns all templates ordered by id.
func (s *TemplateSet) List() []Template {
	out := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
