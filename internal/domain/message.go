package domain

import "time"

// SystemMessageTicketCreated is the audit entry written for every new ticket.
const SystemMessageTicketCreated = "Ticket created"

// Message is one entry of a ticket's conversation thread.
type Message struct {
	ID              string
	TicketID        string
	SenderID        string
	Body            string
	Attachments     []Attachment
	IsInternal      bool
	IsSystemMessage bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
