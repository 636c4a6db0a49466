package core

import "testing"

func TestRoleManagementDesignateRequiresPubkeys(t *testing.T) {
	r := NewRoleManagement(NewDataCache(NewMemStore()))
	if err := r.Designate(nil, RoleOracle, 0, nil); err == nil {
		t.Fatal("Designate with no pubkeys should error")
	}
}

func TestRoleManagementGetDesignatedByRoleResolvesMostRecent(t *testing.T) {
	r := NewRoleManagement(NewDataCache(NewMemStore()))
	early := [][]byte{{1, 1, 1}}
	later := [][]byte{{2, 2, 2}, {3, 3, 3}}

	if err := r.Designate(nil, RoleOracle, 0, early); err != nil {
		t.Fatalf("Designate: %v", err)
	}
	if err := r.Designate(nil, RoleOracle, 100, later); err != nil {
		t.Fatalf("Designate: %v", err)
	}

	got, err := r.GetDesignatedByRole(RoleOracle, 50)
	if err != nil {
		t.Fatalf("GetDesignatedByRole: %v", err)
	}
	if len(got) != 1 || string(got[0]) != string(early[0]) {
		t.Fatalf("GetDesignatedByRole(50) = %v, want %v", got, early)
	}

	got, err = r.GetDesignatedByRole(RoleOracle, 200)
	if err != nil {
		t.Fatalf("GetDesignatedByRole: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetDesignatedByRole(200) = %v, want %v", got, later)
	}
}

func TestRoleManagementGetDesignatedByRoleUnknownRole(t *testing.T) {
	r := NewRoleManagement(NewDataCache(NewMemStore()))
	got, err := r.GetDesignatedByRole(RoleP2PNotary, 10)
	if err != nil {
		t.Fatalf("GetDesignatedByRole: %v", err)
	}
	if got != nil {
		t.Fatalf("GetDesignatedByRole on undesignated role = %v, want nil", got)
	}
}

func TestRoleManagementRolesAreIndependent(t *testing.T) {
	r := NewRoleManagement(NewDataCache(NewMemStore()))
	oraclePubkeys := [][]byte{{9, 9}}
	if err := r.Designate(nil, RoleOracle, 0, oraclePubkeys); err != nil {
		t.Fatalf("Designate: %v", err)
	}

	got, err := r.GetDesignatedByRole(RoleStateValidator, 0)
	if err != nil {
		t.Fatalf("GetDesignatedByRole: %v", err)
	}
	if got != nil {
		t.Fatalf("RoleStateValidator should be unaffected by an Oracle designation, got %v", got)
	}
}
