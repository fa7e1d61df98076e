package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from    ScheduleStatus
		to      ScheduleStatus
		allowed bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusSent, false},
		{StatusPending, StatusFailed, false},
		{StatusProcessing, StatusSent, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusCancelled, false},
		{StatusProcessing, StatusPending, false},
		{StatusSent, StatusFailed, false},
		{StatusSent, StatusPending, false},
		{StatusFailed, StatusProcessing, false},
		{StatusCancelled, StatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestScheduleStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusSent.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestSchedule_Kind(t *testing.T) {
	groupID := "group-1"
	contactID := "contact-1"

	batch := Schedule{GroupID: &groupID}
	assert.Equal(t, KindBatch, batch.Kind())

	individual := Schedule{ContactID: &contactID}
	assert.Equal(t, KindIndividual, individual.Kind())

	rawPhone := Schedule{Phone: "0412345678"}
	assert.Equal(t, KindIndividual, rawPhone.Kind())
}

func TestSchedule_ValidateShape(t *testing.T) {
	groupID := "group-1"
	contactID := "contact-1"

	assert.NoError(t, (&Schedule{GroupID: &groupID}).ValidateShape())
	assert.NoError(t, (&Schedule{ContactID: &contactID}).ValidateShape())
	assert.NoError(t, (&Schedule{Phone: "0412345678"}).ValidateShape())

	// Neither target.
	assert.ErrorIs(t, (&Schedule{}).ValidateShape(), ErrScheduleShape)

	// Group together with a contact on one row.
	both := Schedule{GroupID: &groupID, ContactID: &contactID}
	assert.ErrorIs(t, both.ValidateShape(), ErrScheduleShape)
}

func TestSchedule_MarkSentAndFailed(t *testing.T) {
	now := time.Now().UTC()

	var s Schedule
	s.Status = StatusProcessing
	s.MarkSent(now)
	assert.Equal(t, StatusSent, s.Status)
	assert.NotNil(t, s.SentTime)
	assert.Equal(t, now, *s.SentTime)
	assert.Empty(t, s.Error)

	var f Schedule
	f.Status = StatusProcessing
	f.MarkFailed("carrier rejected")
	assert.Equal(t, StatusFailed, f.Status)
	assert.Nil(t, f.SentTime)
	assert.Equal(t, "carrier rejected", f.Error)
}
