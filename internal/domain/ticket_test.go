package domain

import (
	"testing"
	"time"
)

func TestStampLifecycleSetsResolvedOnce(t *testing.T) {
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)

	ticket := &Ticket{Status: TicketStatusOpen}
	ticket.StampLifecycle(first)
	if ticket.ResolvedAt != nil || ticket.ClosedAt != nil {
		t.Fatalf("open ticket got lifecycle stamps: resolved=%v closed=%v", ticket.ResolvedAt, ticket.ClosedAt)
	}

	ticket.Status = TicketStatusResolved
	ticket.StampLifecycle(first)
	if ticket.ResolvedAt == nil || !ticket.ResolvedAt.Equal(first) {
		t.Fatalf("ResolvedAt = %v, want %v", ticket.ResolvedAt, first)
	}

	ticket.Status = TicketStatusInProgress
	ticket.StampLifecycle(later)
	ticket.Status = TicketStatusResolved
	ticket.StampLifecycle(later)
	if !ticket.ResolvedAt.Equal(first) {
		t.Errorf("ResolvedAt moved to %v after re-resolve, want %v", ticket.ResolvedAt, first)
	}
}

func TestStampLifecycleSetsClosedOnce(t *testing.T) {
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ticket := &Ticket{Status: TicketStatusClosed}
	ticket.StampLifecycle(first)
	ticket.Status = TicketStatusOpen
	ticket.StampLifecycle(first.Add(time.Hour))
	ticket.Status = TicketStatusClosed
	ticket.StampLifecycle(first.Add(2 * time.Hour))

	if ticket.ClosedAt == nil || !ticket.ClosedAt.Equal(first) {
		t.Errorf("ClosedAt = %v, want %v", ticket.ClosedAt, first)
	}
	if ticket.ResolvedAt != nil {
		t.Errorf("ResolvedAt = %v, want nil", ticket.ResolvedAt)
	}
}

func TestAgeInDays(t *testing.T) {
	created := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ticket := &Ticket{CreatedAt: created}

	tests := []struct {
		now  time.Time
		want int
	}{
		{created, 0},
		{created.Add(23 * time.Hour), 0},
		{created.Add(24 * time.Hour), 1},
		{created.Add(73 * time.Hour), 3},
		{created.Add(-time.Hour), 0},
	}
	for _, tt := range tests {
		if got := ticket.AgeInDays(tt.now); got != tt.want {
			t.Errorf("AgeInDays(%v) = %d, want %d", tt.now, got, tt.want)
		}
	}
}

func TestEnumValidity(t *testing.T) {
	if !TicketStatus("On Hold").Valid() {
		t.Error(`"On Hold" should be a valid status`)
	}
	if TicketStatus("on Hold").Valid() {
		t.Error(`"on Hold" should not be a valid status`)
	}
	if !TicketPriority("Critical").Valid() {
		t.Error(`"Critical" should be a valid priority`)
	}
	if TicketPriority("critical").Valid() {
		t.Error(`"critical" should not be a valid priority`)
	}
	if len(TicketCategories) != 8 {
		t.Errorf("len(TicketCategories) = %d, want 8", len(TicketCategories))
	}
	if TicketCategory("Sports").Valid() {
		t.Error(`"Sports" should not be a valid category`)
	}
	if !RoleAdmin.IsStaffOrAdmin() || RoleStudent.IsStaffOrAdmin() {
		t.Error("IsStaffOrAdmin mismatch")
	}
}
