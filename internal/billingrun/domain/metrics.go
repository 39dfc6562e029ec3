package domain

// Metrics counts the actions a billing run took. The JSON form is what
// billing_last_metrics stores and what the run summary reports.
type Metrics struct {
	InvoicesGenerated      int64 `json:"invoices_generated"`
	FixedTermTerminations  int64 `json:"fixed_term_terminations"`
	InvoicesOverdue        int64 `json:"invoices_overdue"`
	LateFeesAdded          int64 `json:"late_fees_added"`
	AutoCancellations      int64 `json:"auto_cancellations"`
	Suspensions            int64 `json:"suspensions"`
	Terminations           int64 `json:"terminations"`
	Unsuspensions          int64 `json:"unsuspensions"`
	InvoiceRemindersSent   int64 `json:"invoice_reminders_sent"`
	TicketAutoClosed       int64 `json:"ticket_auto_closed"`
	TicketAdminReminders   int64 `json:"ticket_admin_reminders"`
	TicketFeedbackRequests int64 `json:"ticket_feedback_requests"`
	LicenseExpiryNotices   int64 `json:"license_expiry_notices"`
	TicketsDeleted         int64 `json:"tickets_deleted"`
}

// Merge adds other's counters into m.
func (m *Metrics) Merge(other Metrics) {
	m.InvoicesGenerated += other.InvoicesGenerated
	m.FixedTermTerminations += other.FixedTermTerminations
	m.InvoicesOverdue += other.InvoicesOverdue
	m.LateFeesAdded += other.LateFeesAdded
	m.AutoCancellations += other.AutoCancellations
	m.Suspensions += other.Suspensions
	m.Terminations += other.Terminations
	m.Unsuspensions += other.Unsuspensions
	m.InvoiceRemindersSent += other.InvoiceRemindersSent
	m.TicketAutoClosed += other.TicketAutoClosed
	m.TicketAdminReminders += other.TicketAdminReminders
	m.TicketFeedbackRequests += other.TicketFeedbackRequests
	m.LicenseExpiryNotices += other.LicenseExpiryNotices
	m.TicketsDeleted += other.TicketsDeleted
}

// Map returns the counters keyed by their JSON names.
func (m Metrics) Map() map[string]int64 {
	return map[string]int64{
		"invoices_generated":       m.InvoicesGenerated,
		"fixed_term_terminations":  m.FixedTermTerminations,
		"invoices_overdue":         m.InvoicesOverdue,
		"late_fees_added":          m.LateFeesAdded,
		"auto_cancellations":       m.AutoCancellations,
		"suspensions":              m.Suspensions,
		"terminations":             m.Terminations,
		"unsuspensions":            m.Unsuspensions,
		"invoice_reminders_sent":   m.InvoiceRemindersSent,
		"ticket_auto_closed":       m.TicketAutoClosed,
		"ticket_admin_reminders":   m.TicketAdminReminders,
		"ticket_feedback_requests": m.TicketFeedbackRequests,
		"license_expiry_notices":   m.LicenseExpiryNotices,
		"tickets_deleted":          m.TicketsDeleted,
	}
}

// Total is the sum of all counters.
func (m Metrics) Total() int64 {
	var total int64
	for _, v := range m.Map() {
		total += v
	}
	return total
}
