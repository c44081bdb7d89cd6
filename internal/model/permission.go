package model

// Action names a workflow operation subject to role authorization.
type Action string

const (
	ActionCreate        Action = "create"
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionCancel        Action = "cancel"
	ActionEdit          Action = "edit"
	ActionBill          Action = "bill"
	ActionSendBilling   Action = "send_billing"
	ActionVoidBilling   Action = "void_billing"
	ActionMarkPaid      Action = "mark_paid"
	ActionManageCatalog Action = "manage_catalog"
	ActionViewAll       Action = "view_all"
)

// permissions is the role lookup table.  Requesters may only cancel or
// edit their own bookings; that ownership check is made by the engine.
var permissions = map[Action][]Role{
	ActionCreate:        {RoleRequester},
	ActionApprove:       {RoleApprover},
	ActionReject:        {RoleApprover},
	ActionCancel:        {RoleRequester, RoleApprover},
	ActionEdit:          {RoleRequester, RoleApprover},
	ActionBill:          {RoleBiller},
	ActionSendBilling:   {RoleBiller},
	ActionVoidBilling:   {RoleBiller},
	ActionMarkPaid:      {RoleFinance},
	ActionManageCatalog: {RoleAdmin},
	ActionViewAll:       {RoleApprover, RoleBiller, RoleFinance, RoleAdmin},
}

// Can reports whether role r may perform action a.
func (r Role) Can(a Action) bool {
	for _, allowed := range permissions[a] {
		if allowed == r {
			return true
		}
	}
	return false
}

// RolesFor returns the roles permitted to perform a.
func RolesFor(a Action) []Role {
	out := make([]Role, len(permissions[a]))
	copy(out, permissions[a])
	return out
}
