package projections_test

import (
	"time"

	"github.com/agentstation/clinicsync/pkg/events"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// envelope builds an envelope the way the decoder would deliver it.
func envelope(kind events.Kind, payload any, minutes int) events.Envelope {
	return events.Envelope{Kind: kind, Payload: payload, OccurredAt: t0.Add(time.Duration(minutes) * time.Minute)}
}

func threePatients() events.QueueSnapshot {
	return events.QueueSnapshot{
		DepartmentID: "general",
		Entries: []events.QueueEntry{
			{PatientID: "p1", Name: "Ana", Token: "G-1", Priority: events.PriorityUrgent, Status: events.StatusWaiting, WaitMinutes: 30},
			{PatientID: "p2", Name: "Ben", Token: "G-2", Priority: events.PriorityNormal, Status: events.StatusWaiting, WaitMinutes: 20},
			{PatientID: "p3", Name: "Cai", Token: "G-3", Priority: events.PriorityNormal, Status: events.StatusWaiting, WaitMinutes: 10},
		},
	}
}
