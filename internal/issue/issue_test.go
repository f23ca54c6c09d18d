// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{ProjectNotFoundId, false, "No project found"},
		{SourceDirMissingId, false, "Source directory missing"},
		{BuildConfigInvalidId, false, "Invalid build options"},
		{ModuleConfigInvalidId, false, "Invalid module configuration"},
		{EnvironmentConfigInvalidId, false, "Invalid environment config"},
		{TsconfigInvalidId, false, "Unreadable tsconfig.json"},
		{OutdatedBlueprintId, false, "Outdated application entry point"},
		{ClassificationFailedId, false, "could not be classified"},
		{ResolutionCollisionId, false, "same specifier"},
		{MergeConflictId, false, "Output path emitted twice"},
		{TransformFailedId, false, "failed to compile"},
		{StyleCommandTimedOutId, false, "Style command timed out"},
		{OutputDirUnsafeId, false, "would overwrite the project"},
		{Id(9999), true, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)

			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}

			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain '%s'", tt.id, tt.contains)
			}
		})
	}
}

func TestValues_OrderedAndComplete(t *testing.T) {
	issues := Values()

	if len(issues) != int(OutputDirUnsafeId) {
		t.Errorf("Values() returned %d issues, want %d", len(issues), OutputDirUnsafeId)
	}
	for i, issue := range issues {
		if issue.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, issue.Id(), i+1)
		}
		if issue.MarkdownMsg() == "" {
			t.Errorf("issue %d has empty MarkdownMsg", issue.Id())
		}
	}
}

func TestLookup(t *testing.T) {
	seen := make(map[string]bool)
	for _, issue := range Values() {
		if issue.Slug() == "" {
			t.Fatalf("issue %d has no slug", issue.Id())
		}
		if seen[issue.Slug()] {
			t.Errorf("duplicate slug %q", issue.Slug())
		}
		seen[issue.Slug()] = true

		if got := Lookup(issue.Slug()); got != issue {
			t.Errorf("Lookup(%q) = %v, want issue %d", issue.Slug(), got, issue.Id())
		}
	}
	if Lookup("no-such-issue") != nil {
		t.Error("Lookup of an unknown slug should return nil")
	}
}

func TestIssue_Title(t *testing.T) {
	if got := Get(MergeConflictId).Title(); got != "Output path emitted twice!" {
		t.Errorf("Title() = %q", got)
	}
	untitled := &Issue{slug: "plain", mdMsg: "no heading"}
	if untitled.Title() != "plain" {
		t.Errorf("Title() without heading = %q, want slug", untitled.Title())
	}
}

func TestIssue_Render(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	for _, issue := range Values() {
		rendered, err := issue.Render("")
		if err != nil {
			t.Errorf("issue %d failed to render: %v", issue.Id(), err)
		}
		if rendered == "" {
			t.Errorf("issue %d rendered to empty string", issue.Id())
		}
	}
}

func TestIssue_Render_WithLinks(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	testIssue := &Issue{
		id:       Id(9999),
		mdMsg:    "# Test Issue\n\nThis is a test.",
		docLinks: []HttpLink{"https://docs.example.com"},
		extLinks: []HttpLink{"https://external.example.com"},
	}

	rendered, err := testIssue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "See also") || !strings.Contains(rendered, "https://external.example.com") {
		t.Errorf("Render() with links should list them, got:\n%s", rendered)
	}

	links := testIssue.DocLinks()
	links[0] = "modified"
	if testIssue.DocLinks()[0] != "https://docs.example.com" {
		t.Error("DocLinks() should return a clone")
	}
}
