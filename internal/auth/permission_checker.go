package auth

type PermissionChecker interface {
	DefaultPermissions(role Role) []string
	HasAnyPermission(userPermissions []string, requiredPermissions []string) bool
	CanAccessClient(p *Principal, clientID int64) bool
	CanAccessWorker(p *Principal, workerID int64) bool
}

type DefaultPermissionChecker struct {
	roles map[Role][]string
}

func NewPermissionChecker() PermissionChecker {
	return &DefaultPermissionChecker{
		roles: map[Role][]string{
			RoleAdmin: {
				PermissionChargeBookings,
				PermissionRunPayouts,
				PermissionRefundPayments,
				PermissionViewHistory,
				PermissionViewStats,
				PermissionManageConnect,
			},
			RoleClient: {},
			RoleWorker: {},
		},
	}
}

func (c *DefaultPermissionChecker) DefaultPermissions(role Role) []string {
	perms := c.roles[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

func (c *DefaultPermissionChecker) HasAnyPermission(userPermissions []string, requiredPermissions []string) bool {
	for _, userPerm := range userPermissions {
		for _, requiredPerm := range requiredPermissions {
			if userPerm == requiredPerm {
				return true
			}
		}
	}
	return false
}

// CanAccessClient allows history readers and the client itself.
func (c *DefaultPermissionChecker) CanAccessClient(p *Principal, clientID int64) bool {
	if p == nil {
		return false
	}
	if c.HasAnyPermission(p.Permissions, []string{PermissionViewHistory}) {
		return true
	}
	return p.Role == RoleClient && p.ClientID == clientID
}

// CanAccessWorker allows history readers, Connect managers and the worker itself.
func (c *DefaultPermissionChecker) CanAccessWorker(p *Principal, workerID int64) bool {
	if p == nil {
		return false
	}
	if c.HasAnyPermission(p.Permissions, []string{PermissionViewHistory, PermissionManageConnect}) {
		return true
	}
	return p.Role == RoleWorker && p.WorkerID == workerID
}
