package teams

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("teams: not found")

// Store is the persistence contract for the roster.
type Store interface {
	ListTeamLeads(ctx context.Context) ([]TeamLead, error)
	GetTeamLead(ctx context.Context, id int64) (TeamLead, error)
	CreateTeamLead(ctx context.Context, lead *TeamLead) error
	UpdateTeamLead(ctx context.Context, lead TeamLead) error
	DeleteTeamLead(ctx context.Context, id int64) error

	// ListCategories returns categories ordered by position.
	ListCategories(ctx context.Context) ([]TeamLeadCategory, error)
}
