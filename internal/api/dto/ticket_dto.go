package dto

import (
	"time"

	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/service"
)

// AttachmentRequest is client supplied file metadata.
type AttachmentRequest struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Priority    string              `json:"priority"`
	Department  string              `json:"department"`
	Location    string              `json:"location"`
	DueDate     string              `json:"dueDate"`
	Tags        []string            `json:"tags"`
	Attachments []AttachmentRequest `json:"attachments"`
}

// ToInput converts the payload for the ticket service.
func (r CreateTicketRequest) ToInput() service.CreateTicketInput {
	return service.CreateTicketInput{
		Title:       r.Title,
		Description: r.Description,
		Category:    domain.TicketCategory(r.Category),
		Priority:    domain.TicketPriority(r.Priority),
		Department:  r.Department,
		Location:    r.Location,
		DueDate:     r.DueDate,
		Tags:        r.Tags,
		Attachments: attachmentInputs(r.Attachments),
	}
}

// UpdateTicketRequest payload. assignedTo and dueDate accept null to clear.
type UpdateTicketRequest struct {
	Status      *string             `json:"status"`
	Priority    *string             `json:"priority"`
	Category    *string             `json:"category"`
	AssignedTo  Optional[string]    `json:"assignedTo"`
	Resolution  *string             `json:"resolution"`
	Department  *string             `json:"department"`
	Location    *string             `json:"location"`
	DueDate     Optional[string]    `json:"dueDate"`
	Tags        []string            `json:"tags"`
	Attachments []AttachmentRequest `json:"attachments"`
}

// ToInput converts the payload for the ticket service.
func (r UpdateTicketRequest) ToInput() service.UpdateTicketInput {
	input := service.UpdateTicketInput{
		Resolution: r.Resolution,
		Department: r.Department,
		Location:   r.Location,
		Tags:       r.Tags,
	}
	if r.Status != nil {
		status := domain.TicketStatus(*r.Status)
		input.Status = &status
	}
	if r.Priority != nil {
		priority := domain.TicketPriority(*r.Priority)
		input.Priority = &priority
	}
	if r.Category != nil {
		category := domain.TicketCategory(*r.Category)
		input.Category = &category
	}
	if r.AssignedTo.Set {
		input.AssignedTo = service.OptionalID{Set: true}
		if !r.AssignedTo.Null {
			input.AssignedTo.ID = r.AssignedTo.Value
		}
	}
	if r.DueDate.Set {
		due := ""
		if !r.DueDate.Null {
			due = r.DueDate.Value
		}
		input.DueDate = &due
	}
	if r.Attachments != nil {
		input.Attachments = attachmentInputs(r.Attachments)
	}
	return input
}

func attachmentInputs(in []AttachmentRequest) []service.AttachmentInput {
	if in == nil {
		return nil
	}
	out := make([]service.AttachmentInput, 0, len(in))
	for _, a := range in {
		out = append(out, service.AttachmentInput{Filename: a.Filename, URL: a.URL})
	}
	return out
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    domain.TicketCategory `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	Department  string                `json:"department"`
	Location    string                `json:"location"`
	Tags        []string              `json:"tags"`
	Attachments []domain.Attachment   `json:"attachments"`
	DueDate     *time.Time            `json:"dueDate"`
	Resolution  string                `json:"resolution"`
	ResolvedAt  *time.Time            `json:"resolvedAt"`
	ClosedAt    *time.Time            `json:"closedAt"`
	CreatedBy   *UserResponse         `json:"createdBy"`
	AssignedTo  *UserResponse         `json:"assignedTo"`
	AgeInDays   int                   `json:"ageInDays"`
	IsDeleted   bool                  `json:"isDeleted"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// NewTicketResponse builds the wire form of view. Unresolvable users are
// rendered as an id-only reference.
func NewTicketResponse(view service.TicketView) TicketResponse {
	t := view.Ticket
	resp := TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Priority:    t.Priority,
		Status:      t.Status,
		Department:  t.Department,
		Location:    t.Location,
		Tags:        nonNil(t.Tags),
		Attachments: nonNil(t.Attachments),
		DueDate:     t.DueDate,
		Resolution:  t.Resolution,
		ResolvedAt:  t.ResolvedAt,
		ClosedAt:    t.ClosedAt,
		CreatedBy:   userRef(t.CreatedBy, view.Creator),
		AgeInDays:   view.AgeInDays,
		IsDeleted:   t.IsDeleted,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.AssignedTo != nil {
		resp.AssignedTo = userRef(*t.AssignedTo, view.Assignee)
	}
	return resp
}

// NewTicketResponses converts a page of views.
func NewTicketResponses(views []service.TicketView) []TicketResponse {
	out := make([]TicketResponse, 0, len(views))
	for _, v := range views {
		out = append(out, NewTicketResponse(v))
	}
	return out
}

// TicketDetailResponse pairs a ticket with its visible thread.
type TicketDetailResponse struct {
	Ticket   TicketResponse    `json:"ticket"`
	Messages []MessageResponse `json:"messages"`
}

// NewTicketDetailResponse converts a detail view.
func NewTicketDetailResponse(detail *service.TicketDetail) TicketDetailResponse {
	return TicketDetailResponse{
		Ticket:   NewTicketResponse(detail.TicketView),
		Messages: NewMessageResponses(detail.Messages),
	}
}

// GroupCountResponse is one aggregate bucket.
type GroupCountResponse struct {
	ID    string `json:"_id"`
	Count int    `json:"count"`
}

// TicketStatsResponse is the stats overview payload.
type TicketStatsResponse struct {
	Total      int                  `json:"total"`
	ByStatus   []GroupCountResponse `json:"byStatus"`
	ByPriority []GroupCountResponse `json:"byPriority"`
	ByCategory []GroupCountResponse `json:"byCategory"`
}

// NewTicketStatsResponse converts aggregates.
func NewTicketStatsResponse(stats *domain.TicketStats) TicketStatsResponse {
	return TicketStatsResponse{
		Total:      stats.Total,
		ByStatus:   groupCounts(stats.ByStatus),
		ByPriority: groupCounts(stats.ByPriority),
		ByCategory: groupCounts(stats.ByCategory),
	}
}

func groupCounts(in []domain.GroupCount) []GroupCountResponse {
	out := make([]GroupCountResponse, 0, len(in))
	for _, g := range in {
		out = append(out, GroupCountResponse{ID: g.Key, Count: g.Count})
	}
	return out
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
