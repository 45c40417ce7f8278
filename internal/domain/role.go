package domain

// Role is the single role a user holds
type Role string

const (
	RoleProductOwner Role = "product_owner"
	RoleStaffAdmin   Role = "staff_admin"
	RoleStaffManager Role = "staff_manager"
	RoleStaffMember  Role = "staff_member"

	RoleCompanyOwner  Role = "company_owner"
	RoleCompanyAdmin  Role = "company_admin"
	RoleCompanyMember Role = "company_member"
)

var StaffRoles = []Role{RoleProductOwner, RoleStaffAdmin, RoleStaffManager, RoleStaffMember}

var CompanyRoles = []Role{RoleCompanyOwner, RoleCompanyAdmin, RoleCompanyMember}

// IsInternal reports whether the role belongs to the operating company
func (r Role) IsInternal() bool {
	for _, s := range StaffRoles {
		if r == s {
			return true
		}
	}
	return false
}

func (r Role) Valid() bool {
	if r.IsInternal() {
		return true
	}
	for _, c := range CompanyRoles {
		if r == c {
			return true
		}
	}
	return false
}
