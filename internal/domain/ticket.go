package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusClosed     TicketStatus = "Closed"
	TicketStatusOnHold     TicketStatus = "On Hold"
)

// TicketStatuses lists every status in display order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
	TicketStatusOnHold,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "Low"
	TicketPriorityMedium   TicketPriority = "Medium"
	TicketPriorityHigh     TicketPriority = "High"
	TicketPriorityCritical TicketPriority = "Critical"
)

// TicketPriorities lists every priority from lowest to highest.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityCritical,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	for _, candidate := range TicketPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// TicketCategory classifies the area a request belongs to.
type TicketCategory string

const (
	CategoryITSupport       TicketCategory = "IT Support"
	CategoryFacilities      TicketCategory = "Facilities"
	CategoryAcademic        TicketCategory = "Academic"
	CategoryLibrary         TicketCategory = "Library"
	CategoryFinance         TicketCategory = "Finance"
	CategoryAdmissions      TicketCategory = "Admissions"
	CategoryStudentServices TicketCategory = "Student Services"
	CategoryOther           TicketCategory = "Other"
)

// TicketCategories lists the fixed category set.
var TicketCategories = []TicketCategory{
	CategoryITSupport,
	CategoryFacilities,
	CategoryAcademic,
	CategoryLibrary,
	CategoryFinance,
	CategoryAdmissions,
	CategoryStudentServices,
	CategoryOther,
}

// Valid reports whether c is one of the fixed categories.
func (c TicketCategory) Valid() bool {
	for _, candidate := range TicketCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// Attachment is file metadata carried by tickets and messages.
type Attachment struct {
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Ticket is the aggregate for helpdesk requests.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Category    TicketCategory
	Priority    TicketPriority
	Status      TicketStatus
	Department  string
	Location    string
	Tags        []string
	Attachments []Attachment
	DueDate     *time.Time
	Resolution  string
	ResolvedAt  *time.Time
	ClosedAt    *time.Time
	CreatedBy   string
	AssignedTo  *string
	IsDeleted   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StampLifecycle records the first time the ticket reaches Resolved or
// Closed. Stores call it whenever a ticket is persisted; the timestamps are
// never cleared afterwards.
func (t *Ticket) StampLifecycle(now time.Time) {
	switch t.Status {
	case TicketStatusResolved:
		if t.ResolvedAt == nil {
			stamp := now
			t.ResolvedAt = &stamp
		}
	case TicketStatusClosed:
		if t.ClosedAt == nil {
			stamp := now
			t.ClosedAt = &stamp
		}
	}
}

// AgeInDays returns whole days elapsed since creation.
func (t *Ticket) AgeInDays(now time.Time) int {
	if now.Before(t.CreatedAt) {
		return 0
	}
	return int(now.Sub(t.CreatedAt) / (24 * time.Hour))
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// TicketScope narrows ticket queries to what an actor may see. Zero value
// means unrestricted.
type TicketScope struct {
	// CreatedBy restricts to tickets created by this user.
	CreatedBy string
	// AssignedTo restricts to tickets assigned to this user.
	AssignedTo string
	// IncludeUnassigned widens AssignedTo to also match tickets without an
	// assignee.
	IncludeUnassigned bool
}

// Matches reports whether ticket falls inside the scope.
func (s TicketScope) Matches(ticket *Ticket) bool {
	if s.CreatedBy != "" && ticket.CreatedBy != s.CreatedBy {
		return false
	}
	if s.AssignedTo != "" {
		if ticket.IsAssignedTo(s.AssignedTo) {
			return true
		}
		return s.IncludeUnassigned && ticket.AssignedTo == nil
	}
	return true
}

// GroupCount is one bucket of an aggregate.
type GroupCount struct {
	Key   string
	Count int
}

// TicketStats summarises a scoped ticket set.
type TicketStats struct {
	Total      int
	ByStatus   []GroupCount
	ByPriority []GroupCount
	ByCategory []GroupCount
}
