// Package templates produces canonical document skeletons for each
// entity kind.
//
// Templates are declared as static per-kind configuration, not
// computed: Scaffold emits a document with every required metadata key
// pre-populated with placeholder values, and Render guarantees that a
// generated document always carries the kind's section headers so
// assistants can navigate it regardless of how much content the user
// supplied.
package templates

import (
	"fmt"
	"strings"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/frontmatter"
)

// section is one body section of a kind's document skeleton.
type section struct {
	header   string
	guidance string
}

// byKind declares the body skeleton for each entity kind.
var byKind = map[entity.Kind][]section{
	entity.KindOrganization: {
		{"Overview", "_Describe the organization and its mission._"},
		{"Projects", "_List the projects this organization owns._"},
	},
	entity.KindProject: {
		{"Overview", "_Describe what this project delivers and for whom._"},
		{"Scope", "_State what is in and out of scope._"},
		{"Milestones", "_List the major delivery milestones._"},
	},
	entity.KindEpic: {
		{"Overview", "_Describe the large body of work this epic covers._"},
		{"Outcomes", "_List the measurable outcomes this epic should produce._"},
	},
	entity.KindComponent: {
		{"Overview", "_Describe the component and its responsibility._"},
		{"Interfaces", "_Document the interfaces this component exposes and consumes._"},
	},
	entity.KindFeature: {
		{"Overview", "_Describe the user-visible capability._"},
		{"User Stories", "_List the user stories this feature satisfies._"},
	},
	entity.KindRequirement: {
		{"Acceptance Criteria", "_List verifiable criteria that prove this requirement is met._"},
		{"Dependencies", "_Note blocking relationships; record them as typed dependency edges._"},
	},
}

// SectionHeaders returns the declared section headers for a kind, in
// document order.
func SectionHeaders(kind entity.Kind) []string {
	sections := byKind[kind]
	headers := make([]string, len(sections))
	for i, s := range sections {
		headers[i] = s.header
	}
	return headers
}

// Scaffold returns a document skeleton for the given kind: every
// required metadata key with a placeholder value, and a body carrying
// the kind's section headers with placeholder guidance. The scaffold
// is itself a valid document — decoding and re-encoding it reproduces
// it byte-for-byte.
func Scaffold(kind entity.Kind) ([]byte, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	e := &entity.Entity{
		Kind:   kind,
		Title:  "Untitled " + string(kind),
		Status: entity.StatusDraft,
		Meta:   entity.NewMeta(),
	}

	var body strings.Builder
	for i, sec := range byKind[kind] {
		if i > 0 {
			body.WriteString("\n")
		}
		body.WriteString("## ")
		body.WriteString(sec.header)
		body.WriteString("\n\n")
		body.WriteString(sec.guidance)
		body.WriteString("\n")
	}
	e.Description = body.String()

	return frontmatter.Encode(e), nil
}

// Render produces the document form of an entity, injecting any
// kind-specific section headers the body lacks. The entity itself is
// not modified — only the rendered output gains the scaffolding.
func Render(e *entity.Entity) []byte {
	body := e.Description
	for _, sec := range byKind[e.Kind] {
		if strings.Contains(body, "## "+sec.header) {
			continue
		}
		if body != "" && !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		if body != "" {
			body += "\n"
		}
		body += "## " + sec.header + "\n"
	}

	rendered := *e
	rendered.Description = body
	return frontmatter.Encode(&rendered)
}
