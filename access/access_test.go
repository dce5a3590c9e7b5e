package access

import "testing"

func TestParseModule(t *testing.T) {
	m, err := ParseModule(" HR ")
	if err != nil {
		t.Fatal(err)
	}
	if m != ModuleHR {
		t.Fatalf("expected hr, got %s", m)
	}
	if _, err := ParseModule("payroll"); err == nil {
		t.Fatal("expected error for unknown module")
	}
}

func TestParseActionsDedup(t *testing.T) {
	got, err := ParseActions([]string{"read", "Read", "approve"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != ActionRead || got[1] != ActionApprove {
		t.Fatalf("unexpected actions %v", got)
	}
	if _, err := ParseActions([]string{"read", "write"}); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestManageDoesNotExpand(t *testing.T) {
	if ContainsAction([]Action{ActionManage}, ActionRead) {
		t.Fatal("manage must not imply read")
	}
}

func TestSubsetOf(t *testing.T) {
	if !SubsetOf([]Action{ActionRead}, []Action{ActionRead, ActionUpdate}) {
		t.Fatal("expected subset")
	}
	if SubsetOf([]Action{ActionDelete}, []Action{ActionRead}) {
		t.Fatal("expected not subset")
	}
}

func TestQualifierRoundTrip(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"document":    "document",
		"document:42": "document:42",
		"document:*":  "document",
		" goal:g1 ":   "goal:g1",
	}
	for in, want := range cases {
		q, err := ParseQualifier(in)
		if err != nil {
			t.Fatalf("ParseQualifier(%q): %v", in, err)
		}
		if got := FormatQualifier(q); got != want {
			t.Errorf("ParseQualifier(%q) formatted as %q, want %q", in, got, want)
		}
	}
	if _, err := ParseQualifier(":42"); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestQualifierCovers(t *testing.T) {
	doc42 := Qualifier{Type: "document", ID: "42"}
	doc7 := Qualifier{Type: "document", ID: "7"}
	anyDoc := Qualifier{Type: "document"}

	if !doc42.Covers(doc42) {
		t.Error("instance grant should cover the same instance")
	}
	if doc42.Covers(doc7) {
		t.Error("instance grant must not cover a different instance")
	}
	if !anyDoc.Covers(doc7) {
		t.Error("wildcard grant should cover any instance")
	}
	if anyDoc.Covers(Qualifier{Type: "goal", ID: "7"}) {
		t.Error("grant must not cover a different type")
	}
}
