package prompt

import (
	"encoding/json"
	"fmt"
	"os"
)

// Part describes one persona page: its chrome, the greeting that seeds an
// empty conversation, the model it runs on and the system prompt loaded from
// the parts file.
type Part struct {
	Name         string
	Title        string
	Blurb        string
	Greeting     string
	Model        string
	SystemPrompt string
}

// Collection is the transcript collection backing this part.
func (p Part) Collection() string {
	return p.Name + "_transcripts"
}

// Static per-part metadata. The system prompt text is the only piece that
// comes from the parts file; everything else is fixed page chrome.
var partMeta = []Part{
	{
		Name:     "part1",
		Title:    "Part 1",
		Blurb:    "A research problem analysis with a virtual policy analyst.",
		Greeting: "Hello. Let's discuss the research context.",
		Model:    "gpt-3.5-turbo",
	},
	{
		Name:  "part2",
		Title: "Part 2",
		Blurb: "Designing a study with a virtual clinical epidemiologist.",
		Model: "gpt-3.5-turbo",
	},
	{
		Name:     "part3",
		Title:    "Part 3",
		Blurb:    "Learning to minimise bias with a supervisor.",
		Greeting: "Hello. Let's discuss the potential for bias in the study.",
		Model:    "gpt-4o-mini",
	},
}

// Registry is a read-only lookup of parts, loaded once at startup.
type Registry struct {
	parts map[string]Part
	order []string
}

// Load reads the parts file (a JSON object mapping part name to system prompt
// text) and returns the registry. Every known part must have a prompt.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parts file: %w", err)
	}

	var prompts map[string]string
	if err := json.Unmarshal(raw, &prompts); err != nil {
		return nil, fmt.Errorf("parse parts file: %w", err)
	}

	r := &Registry{parts: make(map[string]Part, len(partMeta))}
	for _, meta := range partMeta {
		text, ok := prompts[meta.Name]
		if !ok || text == "" {
			return nil, fmt.Errorf("parts file %s: missing prompt for %q", path, meta.Name)
		}
		meta.SystemPrompt = text
		r.parts[meta.Name] = meta
		r.order = append(r.order, meta.Name)
	}
	return r, nil
}

// Get returns the part by name.
func (r *Registry) Get(name string) (Part, bool) {
	p, ok := r.parts[name]
	return p, ok
}

// All returns the parts in page order.
func (r *Registry) All() []Part {
	out := make([]Part, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.parts[name])
	}
	return out
}
