package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/id"
)

func TestToRequest(t *testing.T) {
	tests := []struct {
		name    string
		in      RequestInput
		want    string
		wantErr bool
	}{
		{"module-wide", RequestInput{Module: "hr", Action: "read"}, "hr:read", false},
		{"instance", RequestInput{Module: "performance", Action: "approve", ResourceType: "goal", ResourceID: "g-42"}, "performance:approve@goal:g-42", false},
		{"unknown values pass through", RequestInput{Module: "payroll", Action: "read"}, "payroll:read", false},
		{"missing module", RequestInput{Action: "read"}, "", true},
		{"missing action", RequestInput{Module: "hr"}, "", true},
		{"id without type", RequestInput{Module: "hr", Action: "read", ResourceID: "x"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toRequest(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("toRequest = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestToAuthorizeResponse(t *testing.T) {
	pid := id.NewPermissionID()
	resp := toAuthorizeResponse(&portcullis.Result{
		Granted:      true,
		Reason:       portcullis.ReasonCustomGrant,
		PermissionID: pid,
	})
	if !resp.Granted || resp.Reason != "custom-grant" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.PermissionID != pid.String() {
		t.Fatalf("expected permission id %s, got %s", pid, resp.PermissionID)
	}
}

func TestMapError(t *testing.T) {
	if mapError(nil) != nil {
		t.Fatal("expected nil for nil")
	}

	raw := errors.New("boom")
	if !errors.Is(mapError(raw), raw) {
		t.Fatal("unmapped errors must pass through")
	}

	for _, err := range []error{
		fmt.Errorf("get: %w", portcullis.ErrRoleNotFound),
		portcullis.ErrInvalidPermission,
		fmt.Errorf("%w: entry 2", portcullis.ErrInvalidRequest),
		portcullis.ErrSystemRoleImmutable,
		portcullis.ErrDuplicatePermissionName,
		portcullis.ErrConflictingOverride,
		portcullis.ErrAccessDenied,
	} {
		if mapped := mapError(err); mapped == nil || mapped == err {
			t.Fatalf("expected %v to be mapped to an HTTP error", err)
		}
	}
}

func TestDefaultLimit(t *testing.T) {
	if got := defaultLimit(0); got != 50 {
		t.Fatalf("defaultLimit(0) = %d", got)
	}
	if got := defaultLimit(20); got != 20 {
		t.Fatalf("defaultLimit(20) = %d", got)
	}
	if got := defaultLimit(5000); got != 1000 {
		t.Fatalf("defaultLimit(5000) = %d", got)
	}
}

func TestParsePermissionIDs(t *testing.T) {
	pid := id.NewPermissionID()

	got, err := parsePermissionIDs([]string{pid.String()})
	if err != nil || len(got) != 1 || got[0].String() != pid.String() {
		t.Fatalf("unexpected result %v, %v", got, err)
	}
	if got, err := parsePermissionIDs(nil); err != nil || got != nil {
		t.Fatalf("nil input must stay nil, got %v, %v", got, err)
	}
	if _, err := parsePermissionIDs([]string{pid.String(), id.NewRoleID().String()}); err == nil {
		t.Fatal("expected error for a role id")
	}
	if _, err := parsePermissionIDs([]string{"garbage"}); err == nil {
		t.Fatal("expected error for garbage")
	}
}
