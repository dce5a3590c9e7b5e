package audit

import (
	"context"
	"testing"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/actor"
	"github.com/xraph/portcullis/decisionlog"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/store/memory"
)

func TestRecorderWritesDecisionLogs(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	p := &permission.Permission{ID: id.NewPermissionID(), Name: "docs.read", Module: access.ModuleDocuments, Actions: []access.Action{access.ActionRead}}
	if err := s.CreatePermission(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateActor(ctx, &actor.Actor{ID: "u1", RoleName: "employee"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveUserPermission(ctx, &override.UserPermission{
		UserID:              "u1",
		ResourcePermissions: []override.ResourcePermission{{ResourceType: "document", ResourceID: "42", PermissionID: p.ID}},
	}); err != nil {
		t.Fatal(err)
	}

	eng, err := portcullis.NewEngine(portcullis.WithStore(s), portcullis.WithPlugin(New(s)))
	if err != nil {
		t.Fatal(err)
	}
	doc := func(rid string) *portcullis.Request {
		return &portcullis.Request{Module: access.ModuleDocuments, Action: access.ActionRead, Resource: &access.Qualifier{Type: "document", ID: rid}}
	}
	if _, err := eng.Authorize(ctx, "u1", doc("42")); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Authorize(ctx, "u1", doc("7")); err != nil {
		t.Fatal(err)
	}

	logs, err := s.ListDecisionLogs(ctx, &decisionlog.QueryFilter{ActorID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 decision logs, got %d", len(logs))
	}

	granted := true
	hits, err := s.ListDecisionLogs(ctx, &decisionlog.QueryFilter{Granted: &granted})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 granted log, got %d", len(hits))
	}
	e := hits[0]
	if e.Reason != string(portcullis.ReasonResourceGrant) || e.ResourceType != "document" || e.ResourceID != "42" || e.Module != "documents" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestRecorderDeniedOnly(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	r := New(s, DeniedOnly())

	req := &portcullis.Request{Module: access.ModuleHR, Action: access.ActionRead}
	if err := r.OnAfterAuthorize(ctx, "u1", req, &portcullis.Result{Granted: true, Reason: portcullis.ReasonRoleGrant}); err != nil {
		t.Fatal(err)
	}
	if err := r.OnAfterAuthorize(ctx, "u1", req, &portcullis.Result{Reason: portcullis.ReasonRoleDenied}); err != nil {
		t.Fatal(err)
	}

	n, err := s.CountDecisionLogs(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 logged denial, got %d", n)
	}
}

func TestRecorderRejectsForeignTypes(t *testing.T) {
	r := New(memory.New())
	if err := r.OnAfterAuthorize(context.Background(), "u1", "req", nil); err == nil {
		t.Fatal("expected error for unexpected request type")
	}
}
