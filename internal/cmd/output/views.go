package output

import (
	"fmt"
	"strconv"
	"time"

	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/projections"
	"github.com/agentstation/clinicsync/pkg/status"
)

// View pairs a value with its table form.
type View struct {
	data  Data
	value any
}

// Table implements Tabular.
func (v View) Table() Data { return v.data }

// Value implements Tabular.
func (v View) Value() any { return v.value }

const timeLayout = "15:04:05"

func clock(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// QueueView renders the patient queue, one row per entry.
func QueueView(s projections.QueueState) View {
	data := Data{
		Headers:         []string{"Token", "Patient", "Name", "Priority", "Status", "Wait", "Room"},
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft},
	}
	for _, e := range s.Entries {
		data.Rows = append(data.Rows, []string{
			e.Token,
			e.PatientID,
			e.Name,
			string(e.Priority),
			string(e.Status),
			fmt.Sprintf("%dm", e.WaitMinutes),
			orDash(e.Room),
		})
	}
	return View{data: data, value: s}
}

// QueueSummaryView renders the derived queue summary as key-value rows.
func QueueSummaryView(s projections.QueueSummary) View {
	return View{
		data: Data{
			Headers: []string{"Metric", "Value"},
			Rows: [][]string{
				{"Waiting", strconv.Itoa(s.TotalWaiting)},
				{"Average wait", fmt.Sprintf("%.1fm", s.AvgWaitTime)},
				{"Longest wait", fmt.Sprintf("%dm", s.LongestWait)},
				{"In consultation", strconv.Itoa(s.InConsultation)},
				{"Completed", strconv.Itoa(s.Completed)},
				{"No show", strconv.Itoa(s.NoShow)},
			},
			ColumnAlignment: []Align{AlignLeft, AlignRight},
		},
		value: s,
	}
}

// BedsView renders the bed map ordered by ward.
func BedsView(s projections.BedsState) View {
	data := Data{Headers: []string{"Ward", "Bed", "Status", "Patient", "Updated"}}
	for _, b := range s.Beds {
		data.Rows = append(data.Rows, []string{
			orDash(b.WardID),
			b.BedID,
			string(b.Status),
			orDash(b.PatientName),
			clock(b.UpdatedAt),
		})
	}
	return View{data: data, value: s}
}

// AlertsView renders the alert feed, newest first.
func AlertsView(s projections.AlertsState) View {
	data := Data{Headers: []string{"ID", "Severity", "Title", "Source", "Action", "Created"}}
	for _, a := range s.Alerts {
		action := "no"
		if a.ActionRequired {
			action = "yes"
		}
		data.Rows = append(data.Rows, []string{
			a.ID,
			string(a.Severity),
			a.Title,
			orDash(a.Source),
			action,
			clock(a.CreatedAt),
		})
	}
	return View{data: data, value: s}
}

// AppointmentsView renders the appointment board in schedule order.
func AppointmentsView(s projections.AppointmentsState) View {
	data := Data{Headers: []string{"Time", "ID", "Patient", "Provider", "Department", "Status"}}
	for _, a := range s.Appointments {
		data.Rows = append(data.Rows, []string{
			clock(a.ScheduledAt),
			a.ID,
			a.PatientName,
			orDash(a.ProviderID),
			orDash(a.DepartmentID),
			string(a.Status),
		})
	}
	return View{data: data, value: s}
}

// StatsView renders the dashboard statistics. An empty table is returned
// before the first snapshot arrives.
func StatsView(s projections.StatsState) View {
	data := Data{
		Headers:         []string{"Metric", "Value"},
		ColumnAlignment: []Align{AlignLeft, AlignRight},
	}
	if st := s.Stats; st != nil {
		data.Rows = [][]string{
			{"Patients today", strconv.Itoa(st.PatientsToday)},
			{"Appointments today", strconv.Itoa(st.AppointmentsToday)},
			{"Bed occupancy", fmt.Sprintf("%.0f%%", st.BedOccupancy*100)},
			{"Active alerts", strconv.Itoa(st.ActiveAlerts)},
			{"Average wait", fmt.Sprintf("%.1fm", st.AvgWaitMinutes)},
		}
	}
	return View{data: data, value: s}
}

// StatusView renders a connection status as key-value rows.
func StatusView(s status.Status) View {
	rows := [][]string{
		{"Phase", string(s.Phase)},
		{"Attempt", strconv.Itoa(s.Attempt)},
		{"Last connected", clock(s.LastConnectedAt)},
		{"Last error", orDash(s.ErrorMessage())},
	}
	if s.Fatal {
		rows = append(rows, []string{"Fatal", "yes"})
	}
	return View{data: Data{Headers: []string{"Property", "Value"}, Rows: rows}, value: s}
}

// FrameResult is the outcome of decoding one frame offline.
type FrameResult struct {
	Index  int         `json:"index" yaml:"index"`
	Kind   events.Kind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Valid  bool        `json:"valid" yaml:"valid"`
	Reason string      `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error  string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// FramesView renders decode results.
func FramesView(results []FrameResult) View {
	data := Data{Headers: []string{"#", "Kind", "Valid", "Reason", "Error"}}
	for _, r := range results {
		valid := "yes"
		if !r.Valid {
			valid = "no"
		}
		data.Rows = append(data.Rows, []string{
			strconv.Itoa(r.Index),
			orDash(string(r.Kind)),
			valid,
			orDash(r.Reason),
			orDash(r.Error),
		})
	}
	return View{data: data, value: results}
}
