package domain

import "testing"

func TestWorkspaceRoleOrdering(t *testing.T) {
	if !(WorkspaceRoleGuest < WorkspaceRoleMember) {
		t.Fatal("Guest must be weaker than Member")
	}
	if !(WorkspaceRoleMember < WorkspaceRoleAdmin) {
		t.Fatal("Member must be weaker than Admin")
	}
	if !(WorkspaceRoleAdmin < WorkspaceRoleOwner) {
		t.Fatal("Admin must be weaker than Owner")
	}
}

func TestProjectRoleOrdering(t *testing.T) {
	if !(ProjectRoleViewer < ProjectRoleEditor) {
		t.Fatal("Viewer must be weaker than Editor")
	}
	if !(ProjectRoleEditor < ProjectRoleProjectAdmin) {
		t.Fatal("Editor must be weaker than ProjectAdmin")
	}
}

func TestParseWorkspaceRole(t *testing.T) {
	r, ok := ParseWorkspaceRole("Owner")
	if !ok || r != WorkspaceRoleOwner {
		t.Fatalf("expected Owner, got %v ok=%v", r, ok)
	}
	if _, ok := ParseWorkspaceRole("bogus"); ok {
		t.Fatal("expected bogus role to fail parsing")
	}
}

func TestUploadSessionStatusIsTerminal(t *testing.T) {
	cases := map[UploadSessionStatus]bool{
		UploadSessionReserved:  false,
		UploadSessionUploading: false,
		UploadSessionCommitted: true,
		UploadSessionExpired:   true,
		UploadSessionFailed:    true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("status %s: IsTerminal()=%v want %v", status, got, want)
		}
	}
}
