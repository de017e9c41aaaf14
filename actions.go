package clinicsync

import (
	"strings"

	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/events"
)

// CallPatient asks the server to call the next patient of a department into
// room. The queue changes when queue.patientCalled arrives.
func (c *client) CallPatient(departmentID, room string) error {
	if strings.TrimSpace(departmentID) == "" {
		return errors.NewValidationError("departmentId", departmentID, "cannot be empty")
	}
	if strings.TrimSpace(room) == "" {
		return errors.NewValidationError("room", room, "cannot be empty")
	}
	return c.SendAction(events.QueuePatientCalled, events.CallNextRequest{DepartmentID: departmentID, Room: room})
}

// CompletePatient asks the server to mark a consultation complete.
func (c *client) CompletePatient(patientID string) error {
	if strings.TrimSpace(patientID) == "" {
		return errors.NewValidationError("patientId", patientID, "cannot be empty")
	}
	return c.SendAction(events.QueuePatientCompleted, events.PatientRef{PatientID: patientID})
}

// DismissAlert asks the server to dismiss an alert.
func (c *client) DismissAlert(alertID string) error {
	if strings.TrimSpace(alertID) == "" {
		return errors.NewValidationError("id", alertID, "cannot be empty")
	}
	return c.SendAction(events.AlertDismissed, events.AlertRef{ID: alertID})
}

// SendAction sends an arbitrary request envelope with a fresh correlation id.
// It returns errors.ErrNotConnected, with the frame dropped, when the
// connection is not open.
func (c *client) SendAction(kind events.Kind, payload any) error {
	if kind == "" {
		return errors.NewValidationError("kind", kind, "cannot be empty")
	}
	env := events.Action(kind, payload)
	return c.do(func() error { return c.s.send(env) })
}
