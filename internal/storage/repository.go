package storage

import (
	"context"
	"time"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
)

// Repositories take the org scope from the tenant context where the model
// carries an org_id column; cross-org rows are never visible through them.

// OrganisationRepo defines organisation and membership storage operations.
type OrganisationRepo interface {
	Upsert(ctx context.Context, org model.Organisation) error
	FindByID(ctx context.Context, id string) (*model.Organisation, error)
	UpsertMembership(ctx context.Context, membership model.OrganisationMembership) error
	FindMembership(ctx context.Context, userID, orgID string) (*model.OrganisationMembership, error)
}

// ContactRepo defines contact storage operations.
type ContactRepo interface {
	Save(ctx context.Context, contact model.Contact) error
	Update(ctx context.Context, contact model.Contact) error
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	FindByPhone(ctx context.Context, phone string) (*model.Contact, error)
	List(ctx context.Context, limit, offset int) ([]model.Contact, error)
}

// GroupRepo defines contact group storage operations. Membership rows are
// reached through the group so the org boundary holds on both sides.
type GroupRepo interface {
	Save(ctx context.Context, group model.ContactGroup) error
	FindByID(ctx context.Context, id string) (*model.ContactGroup, error)
	AddMember(ctx context.Context, groupID, contactID string) error
	RemoveMember(ctx context.Context, groupID, contactID string) error
	// EligibleMembers returns active, not opted out contacts of the group in
	// membership creation order.
	EligibleMembers(ctx context.Context, groupID string) ([]model.Contact, error)
}

// TemplateRepo defines message template storage operations.
type TemplateRepo interface {
	Save(ctx context.Context, template model.Template) error
	FindByID(ctx context.Context, id string) (*model.Template, error)
	List(ctx context.Context) ([]model.Template, error)
}

// ConfigRepo defines per-org configuration storage operations.
type ConfigRepo interface {
	Set(ctx context.Context, name, value string) error
	Get(ctx context.Context, name string) (*model.ConfigEntry, error)
	// GetInt parses the named entry as an integer; missing entries return
	// fallback without error.
	GetInt(ctx context.Context, name string, fallback int) (int, error)
}

// ScheduleRepo defines schedule storage operations, including the capacity
// gate: creation and quota reservation happen in one transaction.
type ScheduleRepo interface {
	// CreateWithCapacity inserts the given schedules if the org's remaining
	// daily quota covers requested units, holding the quota row locked for
	// the duration. A missing limit entry means unlimited. Rows arrive as
	// pending unless the caller presets processing for an immediate send.
	// Returns apperrors.CapacityError when the reservation does not fit.
	CreateWithCapacity(ctx context.Context, schedules []model.Schedule, format model.MessageFormat, requested int, windowStart time.Time) error
	// Update persists a full schedule row, guarded on the row still being
	// pending. Returns apperrors.ErrStateConflict when it has moved on.
	Update(ctx context.Context, schedule model.Schedule) error
	FindByID(ctx context.Context, id string) (*model.Schedule, error)
	FindChildren(ctx context.Context, parentID string) ([]model.Schedule, error)
	List(ctx context.Context, statuses []model.ScheduleStatus, limit, offset int) ([]model.Schedule, error)

	// VerifyCapacity re-checks committed usage against the current limit
	// without reserving units. Returns apperrors.CapacityError when usage
	// already exceeds the limit.
	VerifyCapacity(ctx context.Context, format model.MessageFormat, windowStart time.Time) error

	// CountUsage returns quota units consumed in the window: the sum of
	// message parts over non-batch-parent rows of the format whose status is
	// pending, processing or sent.
	CountUsage(ctx context.Context, format model.MessageFormat, windowStart time.Time) (int, error)

	// Transition moves a schedule between states, enforcing the state
	// machine. Returns apperrors.ErrStateConflict when the move is illegal.
	Transition(ctx context.Context, id string, from, to model.ScheduleStatus, mutate func(*model.Schedule)) error

	// CascadeCancel cancels a pending schedule; for a batch parent it also
	// cancels every pending child. Returns the number of cancelled rows.
	CascadeCancel(ctx context.Context, id string) (int, error)

	// PropagateUpdate applies changes to a pending batch parent and mirrors
	// text, template and scheduled time onto its pending children.
	PropagateUpdate(ctx context.Context, parentID string, apply func(*model.Schedule)) error

	// ClaimDuePending marks up to limit due pending rows as processing and
	// returns them. Batch parents are not claimable; workers reach children
	// directly. Spans all orgs, so callers must not be tenant scoped.
	ClaimDuePending(ctx context.Context, now time.Time, limit int) ([]model.Schedule, error)

	// ResolveDueParents finalises batch parents whose children have all
	// reached a terminal state: sent when at least one child was sent,
	// failed otherwise. Returns the number of finalised parents.
	ResolveDueParents(ctx context.Context, now time.Time) (int, error)
}
