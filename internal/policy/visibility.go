package policy

import "github.com/noah-isme/school-calendar-api/internal/models"

// VisibleTargetGroups returns the target groups role may see. Nil means every event is visible.
// Unknown roles only see events addressed to everyone.
func VisibleTargetGroups(role models.UserRole) []models.TargetGroup {
	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		return []models.TargetGroup{models.TargetGroupTeacher, models.TargetGroupAll}
	case models.RoleStudent:
		return []models.TargetGroup{models.TargetGroupStudent, models.TargetGroupAll}
	default:
		return []models.TargetGroup{models.TargetGroupAll}
	}
}

// CanSee reports whether event is within role's visibility scope.
func CanSee(role models.UserRole, event models.Event) bool {
	groups := VisibleTargetGroups(role)
	if groups == nil {
		return true
	}
	for _, g := range groups {
		if event.TargetGroup == g {
			return true
		}
	}
	return false
}

// FilterVisible narrows events to the subset role may see, preserving order.
func FilterVisible(events []models.Event, role models.UserRole) []models.Event {
	if VisibleTargetGroups(role) == nil {
		return events
	}
	visible := make([]models.Event, 0, len(events))
	for _, event := range events {
		if CanSee(role, event) {
			visible = append(visible, event)
		}
	}
	return visible
}
