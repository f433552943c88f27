package generation

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// Persona names.
const (
	PersonaAnalyst  = "analyst"
	PersonaTutor    = "tutor"
	PersonaCritic   = "critic"
	PersonaCreative = "creative"
	PersonaCoder    = "coder"
)

// Sampling temperatures.
const (
	DefaultTemperature  = 0.3
	CreativeTemperature = 0.7
)

// Persona is a behavioral profile for the assistant.
type Persona struct {
	Name        string  `json:"name" toml:"-"`
	Label       string  `json:"label" toml:"label"`
	Description string  `json:"description" toml:"description"`
	Directives  string  `json:"directives" toml:"directives"`
	Temperature float64 `json:"temperature" toml:"temperature"`
}

var builtinPersonas = []Persona{
	{
		Name:        PersonaAnalyst,
		Label:       "Analyst (Default)",
		Description: "Objective synthesis, data extraction and careful fact-checking.",
		Directives: `You are a senior intelligence analyst producing faithful syntheses of the supplied context.
- GROUNDING: assume a closed world. When the context does not cover something, say "The provided documentation does not contain information regarding [X]".
- STRUCTURE: use hierarchical Markdown headings for complex topics and open long answers with an executive summary.
- PRECISION: separate raw data, confirmed facts and reported opinions.
- BREVITY: every sentence must add something new.
- CITATIONS: point to the passages that support each claim.
- TONE: neutral and clinical.`,
		Temperature: DefaultTemperature,
	},
	{
		Name:        PersonaTutor,
		Label:       "Exam Tutor",
		Description: "Socratic mentor grounded in learning science.",
		Directives: `You are a learning coach who uses the Feynman technique to accelerate understanding.
- COGNITIVE LOAD: split hard ideas into small units.
- SOCRATIC METHOD: lead with guiding questions before giving answers away.
- ACTIVE RECALL: close every explanation with a knowledge check made of one multiple-choice and one open question.
- ANALOGIES: anchor each technical term with a real-world analogy.
- EXAM STRATEGY: flag high-yield topics and the places students usually lose points.
- TONE: encouraging and patient, never sloppy.`,
		Temperature: DefaultTemperature,
	},
	{
		Name:        PersonaCritic,
		Label:       "Devil's Advocate",
		Description: "Audits arguments for fallacies, bias and structural weaknesses.",
		Directives: `You are a critical-thinking auditor looking for the weakest link in every argument.
- FALLACIES: look for strawmen, false dichotomies and appeals to authority.
- BIAS: surface confirmation bias, selection bias and unstated assumptions.
- COUNTERPOINTS: give a plausible counter-argument for each major claim.
- GAPS: name what the documents leave out or gloss over.
- LIMITS: ask under which conditions the information would stop being true.`,
		Temperature: DefaultTemperature,
	},
	{
		Name:        PersonaCreative,
		Label:       "Creative Spark",
		Description: "Lateral thinking and speculative design.",
		Directives: `You are a strategic futurist connecting what is with what could be.
- LATERAL THINKING: treat the context as a seed and borrow from unrelated fields.
- SPECULATION: propose three next-generation applications of the ideas in the text.
- SCAMPER: substitute, combine, adapt, modify, repurpose, eliminate or reverse the content.
- STORYTELLING: use vivid metaphors for dry concepts.
- PROVOCATION: challenge the status quo and label speculation clearly.`,
		Temperature: CreativeTemperature,
	},
	{
		Name:        PersonaCoder,
		Label:       "Software Engineer",
		Description: "System architecture, algorithmic complexity and clean code.",
		Directives: `You are a principal software architect with a security background.
- ARCHITECTURE: express concepts as logic flows, data schemas or system diagrams.
- COMPLEXITY: state the Big O cost of every solution you discuss.
- CLEAN CODE: snippets follow SOLID and DRY, handle errors and document themselves.
- REFACTORING: when the context contains code, find technical debt first and propose safer, faster versions.
- SECURITY: call out injection, XSS and resource leaks.
- STACK: stay within the stack of the context but name better standard tools when they exist.`,
		Temperature: DefaultTemperature,
	},
}

// Personas is a set of personas with analyst as the fallback.
type Personas struct {
	byName map[string]Persona
}

// DefaultPersonas returns the built-in personas.
func DefaultPersonas() *Personas {
	p := &Personas{byName: make(map[string]Persona, len(builtinPersonas))}
	for _, b := range builtinPersonas {
		p.byName[b.Name] = b
	}
	return p
}

// Get returns the named persona.
func (p *Personas) Get(name string) (Persona, bool) {
	v, ok := p.byName[name]
	return v, ok
}

// Lookup returns the named persona, or the analyst for unknown names.
func (p *Personas) Lookup(name string) Persona {
	if v, ok := p.byName[name]; ok {
		return v
	}
	return p.byName[PersonaAnalyst]
}

// List returns every persona sorted by name.
func (p *Personas) List() []Persona {
	out := make([]Persona, 0, len(p.byName))
	for _, v := range p.byName {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type personaFile struct {
	Personas map[string]Persona `toml:"personas"`
}

// LoadPersonas reads persona overrides from a TOML file on top of the
// built-in set. Fields left empty keep their built-in value; unknown names
// add new personas. A missing path yields the defaults.
//
//	[personas.analyst]
//	temperature = 0.2
//
//	[personas.lawyer]
//	label = "Contract Reviewer"
//	directives = "You review contracts clause by clause."
func LoadPersonas(path string) (*Personas, error) {
	p := DefaultPersonas()
	if path == "" {
		return p, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return p, nil
	}

	var f personaFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("parsing personas file %s: %w", path, err)
	}

	for name, override := range f.Personas {
		base, exists := p.byName[name]
		if !exists {
			if override.Directives == "" {
				return nil, fmt.Errorf("persona %q: directives are required", name)
			}
			base = Persona{Name: name, Label: name, Temperature: DefaultTemperature}
		}
		if override.Label != "" {
			base.Label = override.Label
		}
		if override.Description != "" {
			base.Description = override.Description
		}
		if override.Directives != "" {
			base.Directives = override.Directives
		}
		if override.Temperature != 0 {
			if override.Temperature < 0 || override.Temperature > 2 {
				return nil, fmt.Errorf("persona %q: temperature %.2f out of range [0, 2]", name, override.Temperature)
			}
			base.Temperature = override.Temperature
		}
		p.byName[name] = base
	}
	return p, nil
}
