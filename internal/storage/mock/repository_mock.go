package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
)

// --- OrganisationRepo Mock ---

// OrganisationRepoMock mocks the OrganisationRepo interface
type OrganisationRepoMock struct {
	mock.Mock
}

func (m *OrganisationRepoMock) Upsert(ctx context.Context, org model.Organisation) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *OrganisationRepoMock) FindByID(ctx context.Context, id string) (*model.Organisation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Organisation), args.Error(1)
}

func (m *OrganisationRepoMock) UpsertMembership(ctx context.Context, membership model.OrganisationMembership) error {
	args := m.Called(ctx, membership)
	return args.Error(0)
}

func (m *OrganisationRepoMock) FindMembership(ctx context.Context, userID, orgID string) (*model.OrganisationMembership, error) {
	args := m.Called(ctx, userID, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrganisationMembership), args.Error(1)
}

// --- ContactRepo Mock ---

// ContactRepoMock mocks the ContactRepo interface
type ContactRepoMock struct {
	mock.Mock
}

func (m *ContactRepoMock) Save(ctx context.Context, contact model.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

func (m *ContactRepoMock) Update(ctx context.Context, contact model.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

func (m *ContactRepoMock) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *ContactRepoMock) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *ContactRepoMock) List(ctx context.Context, limit, offset int) ([]model.Contact, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

// --- GroupRepo Mock ---

// GroupRepoMock mocks the GroupRepo interface
type GroupRepoMock struct {
	mock.Mock
}

func (m *GroupRepoMock) Save(ctx context.Context, group model.ContactGroup) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *GroupRepoMock) FindByID(ctx context.Context, id string) (*model.ContactGroup, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContactGroup), args.Error(1)
}

func (m *GroupRepoMock) AddMember(ctx context.Context, groupID, contactID string) error {
	args := m.Called(ctx, groupID, contactID)
	return args.Error(0)
}

func (m *GroupRepoMock) RemoveMember(ctx context.Context, groupID, contactID string) error {
	args := m.Called(ctx, groupID, contactID)
	return args.Error(0)
}

func (m *GroupRepoMock) EligibleMembers(ctx context.Context, groupID string) ([]model.Contact, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

// --- TemplateRepo Mock ---

// TemplateRepoMock mocks the TemplateRepo interface
type TemplateRepoMock struct {
	mock.Mock
}

func (m *TemplateRepoMock) Save(ctx context.Context, template model.Template) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

func (m *TemplateRepoMock) FindByID(ctx context.Context, id string) (*model.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *TemplateRepoMock) List(ctx context.Context) ([]model.Template, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Template), args.Error(1)
}

// --- ConfigRepo Mock ---

// ConfigRepoMock mocks the ConfigRepo interface
type ConfigRepoMock struct {
	mock.Mock
}

func (m *ConfigRepoMock) Set(ctx context.Context, name, value string) error {
	args := m.Called(ctx, name, value)
	return args.Error(0)
}

func (m *ConfigRepoMock) Get(ctx context.Context, name string) (*model.ConfigEntry, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConfigEntry), args.Error(1)
}

func (m *ConfigRepoMock) GetInt(ctx context.Context, name string, fallback int) (int, error) {
	args := m.Called(ctx, name, fallback)
	return args.Int(0), args.Error(1)
}

// --- ScheduleRepo Mock ---

// ScheduleRepoMock mocks the ScheduleRepo interface
type ScheduleRepoMock struct {
	mock.Mock
}

func (m *ScheduleRepoMock) CreateWithCapacity(ctx context.Context, schedules []model.Schedule, format model.MessageFormat, requested int, windowStart time.Time) error {
	args := m.Called(ctx, schedules, format, requested, windowStart)
	return args.Error(0)
}

func (m *ScheduleRepoMock) Update(ctx context.Context, schedule model.Schedule) error {
	args := m.Called(ctx, schedule)
	return args.Error(0)
}

func (m *ScheduleRepoMock) FindByID(ctx context.Context, id string) (*model.Schedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Schedule), args.Error(1)
}

func (m *ScheduleRepoMock) FindChildren(ctx context.Context, parentID string) ([]model.Schedule, error) {
	args := m.Called(ctx, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Schedule), args.Error(1)
}

func (m *ScheduleRepoMock) List(ctx context.Context, statuses []model.ScheduleStatus, limit, offset int) ([]model.Schedule, error) {
	args := m.Called(ctx, statuses, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Schedule), args.Error(1)
}

func (m *ScheduleRepoMock) VerifyCapacity(ctx context.Context, format model.MessageFormat, windowStart time.Time) error {
	args := m.Called(ctx, format, windowStart)
	return args.Error(0)
}

func (m *ScheduleRepoMock) CountUsage(ctx context.Context, format model.MessageFormat, windowStart time.Time) (int, error) {
	args := m.Called(ctx, format, windowStart)
	return args.Int(0), args.Error(1)
}

func (m *ScheduleRepoMock) Transition(ctx context.Context, id string, from, to model.ScheduleStatus, mutate func(*model.Schedule)) error {
	args := m.Called(ctx, id, from, to, mutate)
	return args.Error(0)
}

func (m *ScheduleRepoMock) CascadeCancel(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *ScheduleRepoMock) PropagateUpdate(ctx context.Context, parentID string, apply func(*model.Schedule)) error {
	args := m.Called(ctx, parentID, apply)
	return args.Error(0)
}

func (m *ScheduleRepoMock) ClaimDuePending(ctx context.Context, now time.Time, limit int) ([]model.Schedule, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Schedule), args.Error(1)
}

func (m *ScheduleRepoMock) ResolveDueParents(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}
