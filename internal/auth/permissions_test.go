package auth

import "testing"

func TestHasPermission_Admin(t *testing.T) {
	// Admin should have all permissions
	allPerms := []Permission{
		PermDeviceRead, PermDeviceCreate, PermDeviceManage,
		PermTransactionAppend, PermTransactionManage,
		PermPurchaseRead, PermPurchaseAppend, PermPurchaseManage,
		PermUserManage, PermDataTransfer, PermSystemPurge,
	}

	for _, perm := range allPerms {
		if !HasPermission(RoleAdmin, perm) {
			t.Errorf("admin should have %s", perm)
		}
	}
}

func TestHasPermission_User(t *testing.T) {
	// User can read inventory, register devices, and append transactions only
	should := []Permission{
		PermDeviceRead, PermDeviceCreate,
		PermTransactionAppend,
		PermPurchaseRead, PermPurchaseAppend,
	}
	shouldNot := []Permission{
		PermDeviceManage, PermTransactionManage, PermPurchaseManage,
		PermUserManage, PermDataTransfer, PermSystemPurge,
	}

	for _, perm := range should {
		if !HasPermission(RoleUser, perm) {
			t.Errorf("user should have %s", perm)
		}
	}
	for _, perm := range shouldNot {
		if HasPermission(RoleUser, perm) {
			t.Errorf("user should NOT have %s", perm)
		}
	}
}

func TestHasPermission_InvalidRole(t *testing.T) {
	if HasPermission(Role("nonexistent"), PermDeviceRead) {
		t.Error("unknown role should have no permissions")
	}
}

func TestPermissionsForRole(t *testing.T) {
	perms := PermissionsForRole(RoleAdmin)
	if perms == nil {
		t.Fatal("PermissionsForRole(admin) should not return nil")
	}
	if len(perms) == 0 {
		t.Error("PermissionsForRole(admin) should return permissions")
	}

	// Should return a copy, not the original slice
	perms[0] = "modified"
	original := PermissionsForRole(RoleAdmin)
	if original[0] == "modified" {
		t.Error("PermissionsForRole should return a copy, not the original")
	}
}

func TestPermissionsForRole_Unknown(t *testing.T) {
	perms := PermissionsForRole(Role("unknown"))
	if perms != nil {
		t.Error("PermissionsForRole(unknown) should return nil")
	}
}

func TestIsValidUserRole(t *testing.T) {
	if !IsValidUserRole(RoleUser) {
		t.Error("user should be a valid user role")
	}
	if !IsValidUserRole(RoleAdmin) {
		t.Error("admin should be a valid user role")
	}
	if IsValidUserRole(Role("owner")) {
		t.Error("owner should NOT be a valid user role")
	}
	if IsValidUserRole(Role("guest")) {
		t.Error("guest should NOT be a valid user role")
	}
}
