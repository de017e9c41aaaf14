package events

import (
	"fmt"
	"time"

	"github.com/agentstation/clinicsync/pkg/errors"
)

// Priority of a queue entry.
type Priority string

// Queue priorities.
const (
	PriorityNormal    Priority = "normal"
	PriorityUrgent    Priority = "urgent"
	PriorityEmergency Priority = "emergency"
)

// QueueStatus is the lifecycle state of a queue entry.
type QueueStatus string

// Queue statuses.
const (
	StatusWaiting        QueueStatus = "waiting"
	StatusCalled         QueueStatus = "called"
	StatusInConsultation QueueStatus = "in-consultation"
	StatusCompleted      QueueStatus = "completed"
	StatusNoShow         QueueStatus = "no-show"
)

// QueueEntry is one patient in a department queue.
type QueueEntry struct {
	PatientID   string      `json:"patientId"`
	Name        string      `json:"name"`
	Token       string      `json:"token"`
	Priority    Priority    `json:"priority"`
	Status      QueueStatus `json:"status"`
	CheckInTime time.Time   `json:"checkInTime"`
	WaitMinutes int         `json:"waitTime"`
	Room        string      `json:"room,omitempty"`
	ProviderID  string      `json:"providerId,omitempty"`
}

func (e *QueueEntry) normalize() error {
	if e.PatientID == "" {
		return errors.NewValidationError("patientId", e.PatientID, "is required")
	}
	switch e.Priority {
	case "":
		e.Priority = PriorityNormal
	case PriorityNormal, PriorityUrgent, PriorityEmergency:
	default:
		return errors.NewValidationError("priority", e.Priority, "unknown priority")
	}
	switch e.Status {
	case "":
		e.Status = StatusWaiting
	case StatusWaiting, StatusCalled, StatusInConsultation, StatusCompleted, StatusNoShow:
	default:
		return errors.NewValidationError("status", e.Status, "unknown status")
	}
	if e.WaitMinutes < 0 {
		return errors.NewValidationError("waitTime", e.WaitMinutes, "cannot be negative")
	}
	return nil
}

// QueueSnapshot is the authoritative queue content sent by the server.
type QueueSnapshot struct {
	DepartmentID string       `json:"departmentId,omitempty"`
	Entries      []QueueEntry `json:"entries"`
}

func (s *QueueSnapshot) normalize() error {
	for i := range s.Entries {
		if err := s.Entries[i].normalize(); err != nil {
			return fmt.Errorf("entries[%d]: %w", i, err)
		}
	}
	return nil
}

// PatientCalled reports that a patient was called to a room.
type PatientCalled struct {
	PatientID    string `json:"patientId"`
	DepartmentID string `json:"departmentId,omitempty"`
	Room         string `json:"room,omitempty"`
	ProviderID   string `json:"providerId,omitempty"`
}

func (p *PatientCalled) normalize() error {
	if p.PatientID == "" {
		return errors.NewValidationError("patientId", p.PatientID, "is required")
	}
	return nil
}

// PatientRef identifies a queue entry.
type PatientRef struct {
	PatientID string `json:"patientId"`
}

func (p *PatientRef) normalize() error {
	if p.PatientID == "" {
		return errors.NewValidationError("patientId", p.PatientID, "is required")
	}
	return nil
}

// BedStatus is the occupancy state of a bed.
type BedStatus string

// Bed statuses.
const (
	BedAvailable   BedStatus = "available"
	BedOccupied    BedStatus = "occupied"
	BedReserved    BedStatus = "reserved"
	BedMaintenance BedStatus = "maintenance"
)

// BedStatusChange is the full state of one bed after a change.
type BedStatusChange struct {
	BedID         string     `json:"bedId"`
	WardID        string     `json:"wardId"`
	Status        BedStatus  `json:"status"`
	PatientID     string     `json:"patientId,omitempty"`
	PatientName   string     `json:"patientName,omitempty"`
	AdmissionDate *time.Time `json:"admissionDate,omitempty"`
}

func (b *BedStatusChange) normalize() error {
	if b.BedID == "" {
		return errors.NewValidationError("bedId", b.BedID, "is required")
	}
	switch b.Status {
	case BedAvailable, BedOccupied, BedReserved, BedMaintenance:
	default:
		return errors.NewValidationError("status", b.Status, "unknown bed status")
	}
	return nil
}

// Severity of an alert.
type Severity string

// Alert severities.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Alert is an operational notice raised by the server.
type Alert struct {
	ID             string     `json:"id"`
	Severity       Severity   `json:"severity"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Source         string     `json:"source"`
	ActionRequired bool       `json:"actionRequired,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt,omitzero"`
}

func (a *Alert) normalize() error {
	if a.ID == "" {
		return errors.NewValidationError("id", a.ID, "is required")
	}
	switch a.Severity {
	case "":
		a.Severity = SeverityInfo
	case SeverityCritical, SeverityWarning, SeverityInfo:
	default:
		return errors.NewValidationError("severity", a.Severity, "unknown severity")
	}
	return nil
}

// AlertRef identifies an alert.
type AlertRef struct {
	ID string `json:"id"`
}

func (a *AlertRef) normalize() error {
	if a.ID == "" {
		return errors.NewValidationError("id", a.ID, "is required")
	}
	return nil
}

// AppointmentStatus is the state of a booked appointment.
type AppointmentStatus string

// Appointment statuses.
const (
	AppointmentScheduled  AppointmentStatus = "scheduled"
	AppointmentCheckedIn  AppointmentStatus = "checked-in"
	AppointmentInProgress AppointmentStatus = "in-progress"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentNoShow     AppointmentStatus = "no-show"
)

// Appointment is one booked visit.
type Appointment struct {
	ID           string            `json:"id"`
	PatientID    string            `json:"patientId"`
	PatientName  string            `json:"patientName"`
	ProviderID   string            `json:"providerId,omitempty"`
	DepartmentID string            `json:"departmentId,omitempty"`
	ScheduledAt  time.Time         `json:"scheduledAt"`
	Status       AppointmentStatus `json:"status"`
}

func (a *Appointment) normalize() error {
	if a.ID == "" {
		return errors.NewValidationError("id", a.ID, "is required")
	}
	if a.Status == "" {
		a.Status = AppointmentScheduled
	}
	return nil
}

// AppointmentRef identifies an appointment.
type AppointmentRef struct {
	ID string `json:"id"`
}

func (a *AppointmentRef) normalize() error {
	if a.ID == "" {
		return errors.NewValidationError("id", a.ID, "is required")
	}
	return nil
}

// DashboardStats are headline figures computed by the server.
type DashboardStats struct {
	PatientsToday     int       `json:"patientsToday"`
	AppointmentsToday int       `json:"appointmentsToday"`
	BedOccupancy      float64   `json:"bedOccupancy"`
	ActiveAlerts      int       `json:"activeAlerts"`
	AvgWaitMinutes    float64   `json:"avgWaitMinutes"`
	GeneratedAt       time.Time `json:"generatedAt,omitzero"`
}

// Channels is the payload of subscribe and unsubscribe control envelopes.
type Channels struct {
	Channels []string `json:"channels"`
}

// CallNextRequest asks the server to call the next patient of a department.
type CallNextRequest struct {
	DepartmentID string `json:"departmentId"`
	Room         string `json:"room"`
}
