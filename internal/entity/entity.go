// Package entity defines the requirement hierarchy data model.
//
// Entities form a strict containment tree with six ranks:
// Organization → Project → Epic → Component → Feature → Requirement.
// Dependencies are typed directed edges stored as distinct records,
// never embedded inside the entities they connect.
//
// This package is pure data plus invariant checks — no I/O. Mutations
// go through the service package, which is the single gateway that
// validates and persists.
package entity

import (
	"fmt"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// --- Kind enum ---

// Kind is the rank of an entity in the containment tree.
type Kind string

const (
	KindOrganization Kind = "Organization"
	KindProject      Kind = "Project"
	KindEpic         Kind = "Epic"
	KindComponent    Kind = "Component"
	KindFeature      Kind = "Feature"
	KindRequirement  Kind = "Requirement"
)

// kindRank maps each kind to its depth in the tree. Organizations are
// the root rank; every child must be exactly one rank below its parent.
var kindRank = map[Kind]int{
	KindOrganization: 0,
	KindProject:      1,
	KindEpic:         2,
	KindComponent:    3,
	KindFeature:      4,
	KindRequirement:  5,
}

// Kinds lists all entity kinds in rank order.
var Kinds = []Kind{
	KindOrganization,
	KindProject,
	KindEpic,
	KindComponent,
	KindFeature,
	KindRequirement,
}

// Valid reports whether k is a recognized kind.
func (k Kind) Valid() bool {
	_, ok := kindRank[k]
	return ok
}

// Rank returns the depth of k in the tree (Organization = 0), or -1
// for an unknown kind.
func (k Kind) Rank() int {
	r, ok := kindRank[k]
	if !ok {
		return -1
	}
	return r
}

// ParentKind returns the kind a parent of k must have. The second
// return is false for Organization (top-level, no parent) and for
// unknown kinds.
func ParentKind(k Kind) (Kind, bool) {
	r := k.Rank()
	if r <= 0 {
		return "", false
	}
	return Kinds[r-1], true
}

// ParseKind converts a string to a Kind, matching case-insensitively
// so documents hand-edited as "requirement" still decode.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// --- Dependency type enum ---

// DepType categorizes a dependency edge.
type DepType string

const (
	DepBlocks    DepType = "blocks"
	DepBlockedBy DepType = "blocked-by"
	DepRelatesTo DepType = "relates-to"
)

// validDepTypes is the set of allowed dependency types.
var validDepTypes = map[DepType]bool{
	DepBlocks:    true,
	DepBlockedBy: true,
	DepRelatesTo: true,
}

// ValidateDepType returns an error if the type is not recognized.
func ValidateDepType(t DepType) error {
	if !validDepTypes[t] {
		return fmt.Errorf("invalid dependency type %q: must be one of: blocks, blocked-by, relates-to", t)
	}
	return nil
}

// Blocking reports whether t participates in the acyclicity invariant.
// relates-to edges are annotations and may form cycles freely.
func (t DepType) Blocking() bool {
	return t == DepBlocks || t == DepBlockedBy
}

// --- Metadata ---

// Meta is an insertion-ordered key→value map holding frontmatter
// fields not otherwise modeled. Insertion order is preserved so that
// encoding the same entity twice is byte-identical.
type Meta = orderedmap.OrderedMap[string, string]

// NewMeta returns an empty metadata map.
func NewMeta() *Meta {
	return orderedmap.New[string, string]()
}

// --- Entity ---

// Entity is a node in the containment tree. Children hold a
// back-reference to their parent by id only — the tree is
// reconstructed via indexed lookup, never via embedded child
// collections.
type Entity struct {
	ID          string    `json:"id" db:"id"`
	Kind        Kind      `json:"kind" db:"kind"`
	ParentID    string    `json:"parent_id,omitempty" db:"parent_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	Status      Status    `json:"status" db:"status"`
	Meta        *Meta     `json:"metadata,omitempty" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"-"`
	UpdatedAt   time.Time `json:"updated_at" db:"-"`
}

// Same reports identity equality: two records describe the same
// entity iff their identifiers match.
func (e *Entity) Same(o *Entity) bool {
	return o != nil && e.ID == o.ID
}

// MetaLen returns the number of metadata pairs, treating nil as empty.
func (e *Entity) MetaLen() int {
	if e.Meta == nil {
		return 0
	}
	return e.Meta.Len()
}

// documentFieldKeys are the frontmatter keys owned by modeled entity
// fields. Metadata must not shadow them, and every key and value must
// stay single-line, or the document form would not parse back into the
// same record.
var documentFieldKeys = map[string]bool{
	"id":         true,
	"kind":       true,
	"title":      true,
	"status":     true,
	"parent":     true,
	"created_at": true,
	"updated_at": true,
}

// Validate checks the entity's field-level invariants and returns a
// *ValidationError listing every violated rule, or nil.
func (e *Entity) Validate() error {
	verr := &ValidationError{}

	if !e.Kind.Valid() {
		verr.Addf("kind", "unknown entity kind %q", e.Kind)
	}
	if strings.TrimSpace(e.Title) == "" {
		verr.Addf("title", "title must not be empty")
	} else if strings.ContainsAny(e.Title, "\r\n") {
		verr.Addf("title", "title must be a single line")
	}
	if !e.Status.Valid() {
		verr.Addf("status", "unknown status %q", e.Status)
	}

	if e.Meta != nil {
		for pair := e.Meta.Oldest(); pair != nil; pair = pair.Next() {
			switch {
			case strings.TrimSpace(pair.Key) == "":
				verr.Addf("metadata", "metadata keys must not be empty")
			case documentFieldKeys[pair.Key]:
				verr.Addf("metadata", "metadata key %q shadows a document field", pair.Key)
			case strings.ContainsAny(pair.Key, ":\r\n"):
				verr.Addf("metadata", "metadata key %q must not contain colons or newlines", pair.Key)
			}
			if strings.ContainsAny(pair.Value, "\r\n") {
				verr.Addf("metadata", "metadata value for %q must be a single line", pair.Key)
			}
		}
	}

	// Rank 0 entities are top-level; everything else needs a parent
	// reference. Parent existence and rank fit are checked by the
	// service against storage — here we only check shape.
	if e.Kind.Valid() {
		if e.Kind.Rank() == 0 && e.ParentID != "" {
			verr.Addf("parent_id", "%s is top-level and must not have a parent", e.Kind)
		}
		if e.Kind.Rank() > 0 && e.ParentID == "" {
			want, _ := ParentKind(e.Kind)
			verr.Addf("parent_id", "%s requires a %s parent", e.Kind, want)
		}
	}

	return verr.OrNil()
}

// --- Dependency ---

// Dependency is a directed, typed edge between two entities, stored
// as a first-class relation record so multiplicity and edge metadata
// (note, created-at) are preserved.
type Dependency struct {
	ID        string    `json:"id" db:"id"`
	SourceID  string    `json:"source_id" db:"source_id"`
	TargetID  string    `json:"target_id" db:"target_id"`
	Type      DepType   `json:"type" db:"type"`
	Note      string    `json:"note,omitempty" db:"note"`
	CreatedAt time.Time `json:"created_at" db:"-"`
}

// Validate checks the edge's field-level invariants. Self-loops are
// rejected here; cycle detection over the whole graph happens in the
// service at insert time.
func (d *Dependency) Validate() error {
	verr := &ValidationError{}

	if d.SourceID == "" {
		verr.Addf("source_id", "source id must not be empty")
	}
	if d.TargetID == "" {
		verr.Addf("target_id", "target id must not be empty")
	}
	if err := ValidateDepType(d.Type); err != nil {
		verr.Addf("type", "%s", err.Error())
	}
	if d.SourceID != "" && d.SourceID == d.TargetID {
		verr.Addf("target_id", "dependency must not be a self-loop")
	}

	return verr.OrNil()
}
