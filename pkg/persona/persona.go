// Package persona holds the documents describing the represented person and
// renders the system prompt the generating model answers from.
package persona

import (
	"strings"

	"github.com/pkg/errors"
)

// Persona is immutable once built and safe to share across turns.
type Persona struct {
	name    string
	summary string
	profile string
	resume  string
}

func New(name, summary, profile, resume string) (*Persona, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("persona name cannot be empty")
	}
	return &Persona{
		name:    name,
		summary: summary,
		profile: profile,
		resume:  resume,
	}, nil
}

func (p *Persona) Name() string    { return p.name }
func (p *Persona) Summary() string { return p.summary }

// Profile is the LinkedIn profile text, possibly empty.
func (p *Persona) Profile() string { return p.profile }

// Resume is the resume text, possibly empty.
func (p *Persona) Resume() string { return p.resume }
