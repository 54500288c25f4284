package models

import (
	"strconv"
	"time"

	"github.com/lib/pq"
)

// ShiftStatus is the lifecycle state of a teaching shift.
type ShiftStatus string

const (
	ShiftScheduled ShiftStatus = "scheduled"
	ShiftPending   ShiftStatus = "pending"
	ShiftActive    ShiftStatus = "active"
	ShiftCompleted ShiftStatus = "completed"
	ShiftCancelled ShiftStatus = "cancelled"
	ShiftMissed    ShiftStatus = "missed"
)

// IsProtected reports statuses the materializer must never overwrite.
func (s ShiftStatus) IsProtected() bool {
	switch s {
	case ShiftCompleted, ShiftCancelled, ShiftActive, ShiftMissed:
		return true
	}
	return false
}

// VideoProviderLiveKit routes sessions to a LiveKit room named after the shift.
const VideoProviderLiveKit = "livekit"

// TeachingShift is one concrete scheduled session.
type TeachingShift struct {
	ID              string         `db:"id" json:"id"`
	TeacherID       string         `db:"teacher_id" json:"teacher_id"`
	TeacherName     string         `db:"teacher_name" json:"teacher_name"`
	StudentIDs      pq.StringArray `db:"student_ids" json:"student_ids"`
	StudentNames    pq.StringArray `db:"student_names" json:"student_names"`
	ShiftStart      time.Time      `db:"shift_start" json:"shift_start"`
	ShiftEnd        time.Time      `db:"shift_end" json:"shift_end"`
	AdminTimezone   string         `db:"admin_timezone" json:"admin_timezone"`
	TeacherTimezone string         `db:"teacher_timezone" json:"teacher_timezone"`
	ShiftCategory   string         `db:"shift_category" json:"shift_category"`
	ShiftMetadata
	LiveKitRoomName       *string     `db:"livekit_room_name" json:"livekit_room_name,omitempty"`
	GeneratedFromTemplate bool        `db:"generated_from_template" json:"generated_from_template"`
	TemplateID            *string     `db:"template_id" json:"template_id,omitempty"`
	TeacherModified       bool        `db:"teacher_modified" json:"teacher_modified"`
	TeacherModifiedAt     *time.Time  `db:"teacher_modified_at" json:"teacher_modified_at,omitempty"`
	Status                ShiftStatus `db:"status" json:"status"`
	CreatedAt             time.Time   `db:"created_at" json:"created_at"`
	LastModified          time.Time   `db:"last_modified" json:"last_modified"`
}

// Editable reports whether the materializer may merge into this shift.
func (s *TeachingShift) Editable() bool {
	return !s.TeacherModified && !s.Status.IsProtected()
}

// Overlaps applies the half-open interval test; shifts with zero bounds never overlap.
func (s *TeachingShift) Overlaps(start, end time.Time) bool {
	if s.ShiftStart.IsZero() || s.ShiftEnd.IsZero() {
		return false
	}
	return start.Before(s.ShiftEnd) && end.After(s.ShiftStart)
}

// GeneratedShiftID is the deterministic id of the occurrence of templateID starting at start.
func GeneratedShiftID(templateID string, start time.Time) string {
	return "tpl_" + templateID + "_" + strconv.FormatInt(start.Unix(), 10)
}

// LiveKitRoomFor returns the room name for a shift id when provider is LiveKit.
func LiveKitRoomFor(provider, shiftID string) *string {
	if provider != VideoProviderLiveKit {
		return nil
	}
	room := "shift_" + shiftID
	return &room
}
