package storage

import (
	"context"
	"time"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
)

// OrganisationRepoAdapter adapts the PostgresRepo to the OrganisationRepo interface
type OrganisationRepoAdapter struct {
	postgres *PostgresRepo
}

// NewOrganisationRepoAdapter creates a new organisation repository adapter
func NewOrganisationRepoAdapter(postgres *PostgresRepo) OrganisationRepo {
	return &OrganisationRepoAdapter{postgres: postgres}
}

func (a *OrganisationRepoAdapter) Upsert(ctx context.Context, org model.Organisation) error {
	return a.postgres.UpsertOrganisation(ctx, org)
}

func (a *OrganisationRepoAdapter) FindByID(ctx context.Context, id string) (*model.Organisation, error) {
	return a.postgres.FindOrganisationByID(ctx, id)
}

func (a *OrganisationRepoAdapter) UpsertMembership(ctx context.Context, membership model.OrganisationMembership) error {
	return a.postgres.UpsertMembership(ctx, membership)
}

func (a *OrganisationRepoAdapter) FindMembership(ctx context.Context, userID, orgID string) (*model.OrganisationMembership, error) {
	return a.postgres.FindMembership(ctx, userID, orgID)
}

// ContactRepoAdapter adapts the PostgresRepo to the ContactRepo interface
type ContactRepoAdapter struct {
	postgres *PostgresRepo
}

// NewContactRepoAdapter creates a new contact repository adapter
func NewContactRepoAdapter(postgres *PostgresRepo) ContactRepo {
	return &ContactRepoAdapter{postgres: postgres}
}

func (a *ContactRepoAdapter) Save(ctx context.Context, contact model.Contact) error {
	return a.postgres.SaveContact(ctx, contact)
}

func (a *ContactRepoAdapter) Update(ctx context.Context, contact model.Contact) error {
	return a.postgres.UpdateContact(ctx, contact)
}

func (a *ContactRepoAdapter) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	return a.postgres.FindContactByID(ctx, id)
}

func (a *ContactRepoAdapter) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	return a.postgres.FindContactByPhone(ctx, phone)
}

func (a *ContactRepoAdapter) List(ctx context.Context, limit, offset int) ([]model.Contact, error) {
	return a.postgres.ListContacts(ctx, limit, offset)
}

// GroupRepoAdapter adapts the PostgresRepo to the GroupRepo interface
type GroupRepoAdapter struct {
	postgres *PostgresRepo
}

// NewGroupRepoAdapter creates a new contact group repository adapter
func NewGroupRepoAdapter(postgres *PostgresRepo) GroupRepo {
	return &GroupRepoAdapter{postgres: postgres}
}

func (a *GroupRepoAdapter) Save(ctx context.Context, group model.ContactGroup) error {
	return a.postgres.SaveGroup(ctx, group)
}

func (a *GroupRepoAdapter) FindByID(ctx context.Context, id string) (*model.ContactGroup, error) {
	return a.postgres.FindGroupByID(ctx, id)
}

func (a *GroupRepoAdapter) AddMember(ctx context.Context, groupID, contactID string) error {
	return a.postgres.AddGroupMember(ctx, groupID, contactID)
}

func (a *GroupRepoAdapter) RemoveMember(ctx context.Context, groupID, contactID string) error {
	return a.postgres.RemoveGroupMember(ctx, groupID, contactID)
}

func (a *GroupRepoAdapter) EligibleMembers(ctx context.Context, groupID string) ([]model.Contact, error) {
	return a.postgres.FindEligibleGroupMembers(ctx, groupID)
}

// TemplateRepoAdapter adapts the PostgresRepo to the TemplateRepo interface
type TemplateRepoAdapter struct {
	postgres *PostgresRepo
}

// NewTemplateRepoAdapter creates a new template repository adapter
func NewTemplateRepoAdapter(postgres *PostgresRepo) TemplateRepo {
	return &TemplateRepoAdapter{postgres: postgres}
}

func (a *TemplateRepoAdapter) Save(ctx context.Context, template model.Template) error {
	return a.postgres.SaveTemplate(ctx, template)
}

func (a *TemplateRepoAdapter) FindByID(ctx context.Context, id string) (*model.Template, error) {
	return a.postgres.FindTemplateByID(ctx, id)
}

func (a *TemplateRepoAdapter) List(ctx context.Context) ([]model.Template, error) {
	return a.postgres.ListTemplates(ctx)
}

// ConfigRepoAdapter adapts the PostgresRepo to the ConfigRepo interface
type ConfigRepoAdapter struct {
	postgres *PostgresRepo
}

// NewConfigRepoAdapter creates a new config repository adapter
func NewConfigRepoAdapter(postgres *PostgresRepo) ConfigRepo {
	return &ConfigRepoAdapter{postgres: postgres}
}

func (a *ConfigRepoAdapter) Set(ctx context.Context, name, value string) error {
	return a.postgres.SetConfig(ctx, name, value)
}

func (a *ConfigRepoAdapter) Get(ctx context.Context, name string) (*model.ConfigEntry, error) {
	return a.postgres.GetConfig(ctx, name)
}

func (a *ConfigRepoAdapter) GetInt(ctx context.Context, name string, fallback int) (int, error) {
	return a.postgres.GetConfigInt(ctx, name, fallback)
}

// ScheduleRepoAdapter adapts the PostgresRepo to the ScheduleRepo interface
type ScheduleRepoAdapter struct {
	postgres *PostgresRepo
}

// NewScheduleRepoAdapter creates a new schedule repository adapter
func NewScheduleRepoAdapter(postgres *PostgresRepo) ScheduleRepo {
	return &ScheduleRepoAdapter{postgres: postgres}
}

func (a *ScheduleRepoAdapter) CreateWithCapacity(ctx context.Context, schedules []model.Schedule, format model.MessageFormat, requested int, windowStart time.Time) error {
	return a.postgres.CreateWithCapacity(ctx, schedules, format, requested, windowStart)
}

func (a *ScheduleRepoAdapter) Update(ctx context.Context, schedule model.Schedule) error {
	return a.postgres.UpdateSchedule(ctx, schedule)
}

func (a *ScheduleRepoAdapter) FindByID(ctx context.Context, id string) (*model.Schedule, error) {
	return a.postgres.FindScheduleByID(ctx, id)
}

func (a *ScheduleRepoAdapter) FindChildren(ctx context.Context, parentID string) ([]model.Schedule, error) {
	return a.postgres.FindScheduleChildren(ctx, parentID)
}

func (a *ScheduleRepoAdapter) List(ctx context.Context, statuses []model.ScheduleStatus, limit, offset int) ([]model.Schedule, error) {
	return a.postgres.ListSchedules(ctx, statuses, limit, offset)
}

func (a *ScheduleRepoAdapter) VerifyCapacity(ctx context.Context, format model.MessageFormat, windowStart time.Time) error {
	return a.postgres.VerifyCapacity(ctx, format, windowStart)
}

func (a *ScheduleRepoAdapter) CountUsage(ctx context.Context, format model.MessageFormat, windowStart time.Time) (int, error) {
	return a.postgres.CountScheduleUsage(ctx, format, windowStart)
}

func (a *ScheduleRepoAdapter) Transition(ctx context.Context, id string, from, to model.ScheduleStatus, mutate func(*model.Schedule)) error {
	return a.postgres.TransitionSchedule(ctx, id, from, to, mutate)
}

func (a *ScheduleRepoAdapter) CascadeCancel(ctx context.Context, id string) (int, error) {
	return a.postgres.CascadeCancelSchedule(ctx, id)
}

func (a *ScheduleRepoAdapter) PropagateUpdate(ctx context.Context, parentID string, apply func(*model.Schedule)) error {
	return a.postgres.PropagateScheduleUpdate(ctx, parentID, apply)
}

func (a *ScheduleRepoAdapter) ClaimDuePending(ctx context.Context, now time.Time, limit int) ([]model.Schedule, error) {
	return a.postgres.ClaimDuePendingSchedules(ctx, now, limit)
}

func (a *ScheduleRepoAdapter) ResolveDueParents(ctx context.Context, now time.Time) (int, error) {
	return a.postgres.ResolveDueBatchParents(ctx, now)
}

// Ensure adapters implement the interfaces
var _ OrganisationRepo = (*OrganisationRepoAdapter)(nil)
var _ ContactRepo = (*ContactRepoAdapter)(nil)
var _ GroupRepo = (*GroupRepoAdapter)(nil)
var _ TemplateRepo = (*TemplateRepoAdapter)(nil)
var _ ConfigRepo = (*ConfigRepoAdapter)(nil)
var _ ScheduleRepo = (*ScheduleRepoAdapter)(nil)
