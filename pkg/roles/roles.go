package roles

// Role is a user's permission tier. Each tier inherits everything below it.
type Role string

const (
	Worker     Role = "worker"
	Leader     Role = "leader"
	Manager    Role = "manager"
	Admin      Role = "admin"
	Superadmin Role = "superadmin"
)

type HierarchyLevel int

const (
	WorkerLevel     HierarchyLevel = 1
	LeaderLevel     HierarchyLevel = 2
	ManagerLevel    HierarchyLevel = 3
	AdminLevel      HierarchyLevel = 4
	SuperadminLevel HierarchyLevel = 5
)

func (r Role) GetHierarchyLevel() HierarchyLevel {
	switch r {
	case Worker:
		return WorkerLevel
	case Leader:
		return LeaderLevel
	case Manager:
		return ManagerLevel
	case Admin:
		return AdminLevel
	case Superadmin:
		return SuperadminLevel
	default:
		return WorkerLevel
	}
}

func (r Role) IsValid() bool {
	switch r {
	case Worker, Leader, Manager, Admin, Superadmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

type Permission string

const (
	EquipmentView Permission = "equipment.view"
	EquipmentEdit Permission = "equipment.edit"

	CheckoutSelf Permission = "checkouts.self"
	CheckoutTeam Permission = "checkouts.team"
	Checkin      Permission = "checkin"

	TransfersRequest   Permission = "transfers.request"
	TransfersRespond   Permission = "transfers.respond"
	TransfersApprove   Permission = "transfers.approve"
	TransfersViewTeam  Permission = "transfers.view_team"
	TransfersViewAll   Permission = "transfers.view_all"
	TransfersCancelAny Permission = "transfers.cancel_any"

	UsersView Permission = "users.view"
	AuditLog  Permission = "audit.log"
)

// rolePermissions lists what each tier adds on top of the tier below.
var rolePermissions = map[Role][]Permission{
	Worker: {
		EquipmentView,
		CheckoutSelf,
		Checkin,
		TransfersRequest,
		TransfersRespond,
		UsersView,
	},
	Leader: {
		CheckoutTeam,
		TransfersApprove,
		TransfersViewTeam,
	},
	Manager: {
		EquipmentEdit,
		TransfersViewAll,
	},
	Admin: {
		TransfersCancelAny,
		AuditLog,
	},
	Superadmin: {},
}

// permissionSets is the precomputed, immutable role -> permission-set table.
// Built once at startup; never recomputed per request.
var permissionSets = buildPermissionSets()

func buildPermissionSets() map[Role]map[Permission]struct{} {
	order := []Role{Worker, Leader, Manager, Admin, Superadmin}
	sets := make(map[Role]map[Permission]struct{}, len(order))

	inherited := make(map[Permission]struct{})
	for _, role := range order {
		for _, permission := range rolePermissions[role] {
			inherited[permission] = struct{}{}
		}
		set := make(map[Permission]struct{}, len(inherited))
		for permission := range inherited {
			set[permission] = struct{}{}
		}
		sets[role] = set
	}
	return sets
}

// HasPermission checks the precomputed table. Unknown roles have no
// permissions at all.
func HasPermission(role Role, permission Permission) bool {
	set, ok := permissionSets[role]
	if !ok {
		return false
	}
	_, ok = set[permission]
	return ok
}
