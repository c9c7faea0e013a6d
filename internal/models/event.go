package models

import (
	"encoding/json"
	"time"
)

// EventType classifies what kind of school activity an event is.
type EventType string

const (
	EventTypeAcademic        EventType = "academic"
	EventTypeStudentActivity EventType = "student_activity"
	EventTypeExternal        EventType = "external"
	EventTypeMeeting         EventType = "meeting"
	EventTypeExam            EventType = "exam"
	EventTypeHR              EventType = "hr"
	EventTypeAdmin           EventType = "admin"
	EventTypePolicyPlan      EventType = "policy_plan"
)

// EventTypes lists every event type in display order.
var EventTypes = []EventType{
	EventTypeAcademic,
	EventTypeStudentActivity,
	EventTypeExternal,
	EventTypeMeeting,
	EventTypeExam,
	EventTypeHR,
	EventTypeAdmin,
	EventTypePolicyPlan,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TargetGroup is the audience an event is published to.
type TargetGroup string

const (
	TargetGroupAdmin   TargetGroup = "admin"
	TargetGroupTeacher TargetGroup = "teacher"
	TargetGroupStudent TargetGroup = "student"
	TargetGroupAll     TargetGroup = "all"
)

// Valid reports whether g is a known target group.
func (g TargetGroup) Valid() bool {
	switch g {
	case TargetGroupAdmin, TargetGroupTeacher, TargetGroupStudent, TargetGroupAll:
		return true
	default:
		return false
	}
}

// EventStatus tracks the workflow state of an event.
type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusCancelled  EventStatus = "cancelled"
)

// EventStatuses lists every status in workflow order.
var EventStatuses = []EventStatus{
	EventStatusPending,
	EventStatusInProgress,
	EventStatusCompleted,
	EventStatusCancelled,
}

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	for _, known := range EventStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no forward transition leaves s.
func (s EventStatus) Terminal() bool {
	return s == EventStatusCompleted || s == EventStatusCancelled
}

// Event represents a calendar entry stored in the events table.
type Event struct {
	ID                  int64       `db:"id" json:"id"`
	Title               string      `db:"title" json:"title"`
	Description         *string     `db:"description" json:"description,omitempty"`
	StartDate           time.Time   `db:"start_date" json:"start_date"`
	EndDate             time.Time   `db:"end_date" json:"end_date"`
	Location            *string     `db:"location" json:"location,omitempty"`
	ResponsiblePerson   *string     `db:"responsible_person" json:"responsible_person,omitempty"`
	EventType           EventType   `db:"event_type" json:"event_type"`
	TargetGroup         TargetGroup `db:"target_group" json:"target_group"`
	Status              EventStatus `db:"status" json:"status"`
	StatusNote          *string     `db:"status_note" json:"status_note,omitempty"`
	StatusUpdatedBy     *int64      `db:"status_updated_by" json:"status_updated_by,omitempty"`
	StatusUpdatedByName *string     `db:"status_updated_by_name" json:"status_updated_by_name,omitempty"`
	StatusUpdatedAt     *time.Time  `db:"status_updated_at" json:"status_updated_at,omitempty"`
	CreatedBy           int64       `db:"created_by" json:"created_by"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
}

// EventFilter narrows down events. All supplied predicates must match.
type EventFilter struct {
	Month       int
	Year        int
	EventType   *EventType
	TargetGroup *TargetGroup
	Status      *EventStatus
	// Visible restricts results to these target groups; nil means unrestricted.
	Visible []TargetGroup
}

// OptionalString tells an omitted JSON field apart from an explicit null.
// Set is true whenever the key was present; a nil Value then clears the column.
type OptionalString struct {
	Set   bool
	Value *string
}

// SetString returns an OptionalString assigning v.
func SetString(v string) OptionalString {
	return OptionalString{Set: true, Value: &v}
}

// UnmarshalJSON implements json.Unmarshaler. It runs only for keys present in the payload.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

// EventPatch carries the fields a caller wants to change. Nil or unset fields are left untouched.
type EventPatch struct {
	Title             *string
	Description       OptionalString
	StartDate         *time.Time
	EndDate           *time.Time
	Location          OptionalString
	ResponsiblePerson OptionalString
	EventType         *EventType
	TargetGroup       *TargetGroup
}

// Apply copies the set fields of p onto e.
func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description.Set {
		e.Description = p.Description.Value
	}
	if p.StartDate != nil {
		e.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		e.EndDate = *p.EndDate
	}
	if p.Location.Set {
		e.Location = p.Location.Value
	}
	if p.ResponsiblePerson.Set {
		e.ResponsiblePerson = p.ResponsiblePerson.Value
	}
	if p.EventType != nil {
		e.EventType = *p.EventType
	}
	if p.TargetGroup != nil {
		e.TargetGroup = *p.TargetGroup
	}
}

// StatusCount is one row of the status summary.
type StatusCount struct {
	Status EventStatus `db:"status" json:"status"`
	Count  int         `db:"count" json:"count"`
}
