package entity

import (
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"Organization", KindOrganization, false},
		{"organization", KindOrganization, false},
		{"PROJECT", KindProject, false},
		{"requirement", KindRequirement, false},
		{"Epic", KindEpic, false},
		{"", "", true},
		{"Task", "", true},
	}

	for _, tt := range tests {
		got, err := ParseKind(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseKind(%q) expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseKind(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestKindRank(t *testing.T) {
	for i, k := range Kinds {
		if k.Rank() != i {
			t.Errorf("%s.Rank() = %d, want %d", k, k.Rank(), i)
		}
	}
	if Kind("Task").Rank() != -1 {
		t.Errorf("unknown kind rank = %d, want -1", Kind("Task").Rank())
	}
}

func TestParentKind(t *testing.T) {
	if _, ok := ParentKind(KindOrganization); ok {
		t.Error("Organization should have no parent kind")
	}
	if _, ok := ParentKind(Kind("Task")); ok {
		t.Error("unknown kind should have no parent kind")
	}

	pairs := map[Kind]Kind{
		KindProject:     KindOrganization,
		KindEpic:        KindProject,
		KindComponent:   KindEpic,
		KindFeature:     KindComponent,
		KindRequirement: KindFeature,
	}
	for child, wantParent := range pairs {
		got, ok := ParentKind(child)
		if !ok || got != wantParent {
			t.Errorf("ParentKind(%s) = %q, %v, want %q, true", child, got, ok, wantParent)
		}
	}
}

func TestEntityValidate(t *testing.T) {
	tests := []struct {
		name       string
		e          Entity
		wantFields []string
	}{
		{
			name: "valid requirement",
			e:    Entity{Kind: KindRequirement, ParentID: "feat-1", Title: "Login rate limit", Status: StatusDraft},
		},
		{
			name: "valid organization",
			e:    Entity{Kind: KindOrganization, Title: "Acme", Status: StatusDraft},
		},
		{
			name:       "organization with parent",
			e:          Entity{Kind: KindOrganization, ParentID: "x", Title: "Acme", Status: StatusDraft},
			wantFields: []string{"parent_id"},
		},
		{
			name:       "requirement without parent",
			e:          Entity{Kind: KindRequirement, Title: "Orphan", Status: StatusDraft},
			wantFields: []string{"parent_id"},
		},
		{
			name:       "empty title",
			e:          Entity{Kind: KindOrganization, Title: "   ", Status: StatusDraft},
			wantFields: []string{"title"},
		},
		{
			name:       "everything wrong accumulates",
			e:          Entity{Kind: "Task", Title: "", Status: "Pending"},
			wantFields: []string{"kind", "title", "status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.e.Validate()
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			got := verr.Fields()
			if len(got) != len(tt.wantFields) {
				t.Fatalf("violated fields = %v, want %v", got, tt.wantFields)
			}
			for i := range got {
				if got[i] != tt.wantFields[i] {
					t.Errorf("violated fields = %v, want %v", got, tt.wantFields)
					break
				}
			}
		})
	}
}

func TestEntityValidateSingleLineRules(t *testing.T) {
	withMeta := func(key, value string) *Meta {
		m := NewMeta()
		m.Set(key, value)
		return m
	}

	tests := []struct {
		name       string
		e          Entity
		wantFields []string
	}{
		{
			name: "meta value with inner and edge spaces is fine",
			e:    Entity{Kind: KindOrganization, Title: "Acme", Status: StatusDraft, Meta: withMeta("owner", "  the platform team  ")},
		},
		{
			name:       "newline in title",
			e:          Entity{Kind: KindOrganization, Title: "Acme\nowner: mallory", Status: StatusDraft},
			wantFields: []string{"title"},
		},
		{
			name:       "newline in meta value",
			e:          Entity{Kind: KindOrganization, Title: "Acme", Status: StatusDraft, Meta: withMeta("owner", "alice\nstatus: Done")},
			wantFields: []string{"metadata"},
		},
		{
			name:       "meta key shadows a document field",
			e:          Entity{Kind: KindOrganization, Title: "Acme", Status: StatusDraft, Meta: withMeta("status", "Done")},
			wantFields: []string{"metadata"},
		},
		{
			name:       "colon in meta key",
			e:          Entity{Kind: KindOrganization, Title: "Acme", Status: StatusDraft, Meta: withMeta("a:b", "v")},
			wantFields: []string{"metadata"},
		},
		{
			name:       "empty meta key",
			e:          Entity{Kind: KindOrganization, Title: "Acme", Status: StatusDraft, Meta: withMeta("", "v")},
			wantFields: []string{"metadata"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.e.Validate()
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			got := verr.Fields()
			if len(got) != len(tt.wantFields) || got[0] != tt.wantFields[0] {
				t.Errorf("violated fields = %v, want %v", got, tt.wantFields)
			}
		})
	}
}

func TestDependencyValidate(t *testing.T) {
	tests := []struct {
		name    string
		d       Dependency
		wantErr bool
	}{
		{"valid blocks", Dependency{SourceID: "a", TargetID: "b", Type: DepBlocks}, false},
		{"valid relates-to", Dependency{SourceID: "a", TargetID: "b", Type: DepRelatesTo}, false},
		{"self loop", Dependency{SourceID: "a", TargetID: "a", Type: DepBlocks}, true},
		{"missing source", Dependency{TargetID: "b", Type: DepBlocks}, true},
		{"missing target", Dependency{SourceID: "a", Type: DepBlocks}, true},
		{"bad type", Dependency{SourceID: "a", TargetID: "b", Type: "depends"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDepTypeBlocking(t *testing.T) {
	if !DepBlocks.Blocking() || !DepBlockedBy.Blocking() {
		t.Error("blocks and blocked-by must participate in the acyclicity invariant")
	}
	if DepRelatesTo.Blocking() {
		t.Error("relates-to must not participate in the acyclicity invariant")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	verr := &ValidationError{}
	verr.Addf("title", "title must not be empty")
	verr.Addf("kind", "unknown entity kind %q", "Task")

	msg := verr.Error()
	if !strings.Contains(msg, "title must not be empty") {
		t.Errorf("error message missing first violation: %s", msg)
	}
	if !strings.Contains(msg, `"Task"`) {
		t.Errorf("error message missing second violation: %s", msg)
	}
}

func TestValidationErrorOrNil(t *testing.T) {
	verr := &ValidationError{}
	if err := verr.OrNil(); err != nil {
		t.Errorf("empty ValidationError.OrNil() = %v, want nil", err)
	}
	verr.Addf("x", "broken")
	if err := verr.OrNil(); err == nil {
		t.Error("non-empty ValidationError.OrNil() = nil, want error")
	}
}
