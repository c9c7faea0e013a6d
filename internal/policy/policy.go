// Package policy holds the role rules for events: which role may perform which action and
// which events each role can see. Every handler and service consults this package; nothing
// else compares roles.
package policy

import (
	"github.com/noah-isme/school-calendar-api/internal/models"
	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
)

// Action names an operation guarded by the policy.
type Action string

const (
	ActionCreateEvent  Action = "event:create"
	ActionUpdateEvent  Action = "event:update"
	ActionDeleteEvent  Action = "event:delete"
	ActionUpdateStatus Action = "event:update_status"
	ActionViewHistory  Action = "event:view_history"
	ActionViewEvents   Action = "event:view"
)

// Actions lists every guarded action.
var Actions = []Action{
	ActionCreateEvent,
	ActionUpdateEvent,
	ActionDeleteEvent,
	ActionUpdateStatus,
	ActionViewHistory,
	ActionViewEvents,
}

var rules = map[Action]map[models.UserRole]bool{
	ActionCreateEvent:  {models.RoleAdmin: true, models.RoleTeacher: true},
	ActionUpdateEvent:  {models.RoleAdmin: true, models.RoleTeacher: true},
	ActionDeleteEvent:  {models.RoleAdmin: true},
	ActionUpdateStatus: {models.RoleAdmin: true, models.RoleTeacher: true},
	ActionViewHistory:  {models.RoleAdmin: true},
	ActionViewEvents:   {models.RoleAdmin: true, models.RoleTeacher: true, models.RoleStudent: true},
}

var denials = map[Action]string{
	ActionCreateEvent:  "role cannot create events",
	ActionUpdateEvent:  "role cannot update events",
	ActionDeleteEvent:  "only admin can delete events",
	ActionUpdateStatus: "role cannot update event status",
	ActionViewHistory:  "only admin can view event history",
	ActionViewEvents:   "role cannot view events",
}

// Allowed reports whether role may perform action.
func Allowed(role models.UserRole, action Action) bool {
	return rules[action][role]
}

// Authorize returns nil when role may perform action and ROLE_FORBIDDEN otherwise.
func Authorize(role models.UserRole, action Action) error {
	if Allowed(role, action) {
		return nil
	}
	msg, ok := denials[action]
	if !ok {
		msg = "unknown action"
	}
	return appErrors.Clone(appErrors.ErrRoleForbidden, msg)
}
