package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldstream/goldstream/internal/domain"
	"github.com/goldstream/goldstream/internal/usecase"
)

func newDreamService(dreams *memDreams, users *memUsers, donations *memDonations, currencies *memCurrencies) usecase.DreamService {
	return usecase.NewDreamService(dreams, users, donations, currencies, usecase.DreamConfig{
		NeedToDonateNum:  4,
		MaxDreamCount:    20,
		DonationLifetime: 72 * time.Hour,
	})
}

// dreamFixture seeds a member with an active subscription in EUR.
func dreamFixture() (*memDreams, *memUsers, *memDonations, *memCurrencies, domain.User) {
	users := newMemUsers()
	trial := time.Now().Add(30 * 24 * time.Hour)
	owner := users.add(domain.User{Email: "owner@example.com", IsActive: true, CurrencyID: 1, TrialTill: &trial})
	currencies := newMemCurrencies(eurCurrency())
	for level := 1; level <= 4; level++ {
		currencies.setSize(1, level, int64(level)*1000)
	}
	return newMemDreams(), users, newMemDonations(), currencies, owner
}

func TestDream_Create_StatusByReferer(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	svc := newDreamService(dreams, users, donations, currencies)

	dream, err := svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "Boat", Goal: 50_000, Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, domain.DreamQuart, dream.Status)
	assert.Equal(t, domain.DreamTypeUser, dream.Type)
	assert.Equal(t, int64(1), dream.CurrencyID)

	// The first dream finishes its climb before the next one starts.
	require.NoError(t, dreams.UpdateStatus(context.Background(), dream.ID, domain.DreamActive))

	refCode := "REFREFREF234"
	require.NoError(t, users.SetReferer(context.Background(), owner.ID, refCode))
	joined, err := svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "House", Goal: 50_000, Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, domain.DreamHalf, joined.Status)
}

func TestDream_Create_OneClimbingAtATime(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	svc := newDreamService(dreams, users, donations, currencies)

	first, err := svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "Boat", Goal: 50_000})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "House", Goal: 50_000})
	require.ErrorIs(t, err, domain.ErrConflict)

	draft, err := svc.CreateDraft(context.Background(), owner.ID, usecase.DreamInput{Title: "House", Goal: 50_000})
	require.NoError(t, err, "drafts do not climb")
	_, err = svc.Publish(context.Background(), owner.ID, draft.ID)
	require.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, dreams.UpdateStatus(context.Background(), first.ID, domain.DreamActive))
	published, err := svc.Publish(context.Background(), owner.ID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DreamQuart, published.Status)
}

func TestDream_Create_LimitReached(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	svc := usecase.NewDreamService(dreams, users, donations, currencies, usecase.DreamConfig{
		NeedToDonateNum: 4, MaxDreamCount: 1, DonationLifetime: 72 * time.Hour,
	})

	first, err := svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "Boat", Goal: 50_000})
	require.NoError(t, err)
	require.NoError(t, dreams.UpdateStatus(context.Background(), first.ID, domain.DreamActive))
	_, err = svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "House", Goal: 50_000})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestDream_Create_GoalBounds(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	svc := newDreamService(dreams, users, donations, currencies)

	_, err := svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "Boat", Goal: 0})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "Boat", Goal: 2_000_000})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestDream_DraftAndPublish(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	svc := newDreamService(dreams, users, donations, currencies)

	draft, err := svc.CreateDraft(context.Background(), owner.ID, usecase.DreamInput{Title: "Boat", Goal: 50_000, Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, domain.DreamDraft, draft.Status)
	assert.Empty(t, draft.RefDonations, "drafts stay off the ladder")

	stranger := users.add(domain.User{Email: "other@example.com", IsActive: true, CurrencyID: 1})
	_, err = svc.Publish(context.Background(), stranger.ID, draft.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	published, err := svc.Publish(context.Background(), owner.ID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DreamQuart, published.Status)

	_, err = svc.Publish(context.Background(), owner.ID, draft.ID)
	require.ErrorIs(t, err, domain.ErrConflict, "already published")
}

func TestDream_EnsureRefDonations_AncestorsTakeTheirLevels(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	trial := time.Now().Add(30 * 24 * time.Hour)
	for i := 0; i < 4; i++ {
		a := users.add(domain.User{IsActive: true, CurrencyID: 1, TrialTill: &trial})
		users.ancestors = append(users.ancestors, a)
		dreams.add(domain.Dream{UserID: a.ID, Status: domain.DreamActive, Goal: 100_000, CurrencyID: 1})
	}
	svc := newDreamService(dreams, users, donations, currencies)

	dream, err := svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "Boat", Goal: 50_000})
	require.NoError(t, err)
	require.Len(t, dream.RefDonations, 4)

	created, err := donations.ListByIDs(context.Background(), dream.RefDonations)
	require.NoError(t, err)
	require.Len(t, created, 4)
	seen := map[int]int64{}
	for _, d := range created {
		require.NotNil(t, d.LevelNumber)
		require.NotNil(t, d.SenderID)
		assert.Equal(t, owner.ID, *d.SenderID)
		assert.Equal(t, domain.DonationNew, d.Status)
		require.NotNil(t, d.ExpiresAt)
		// Same currency on both sides keeps the level size unchanged.
		assert.Equal(t, int64(*d.LevelNumber)*1000, d.Amount)
		assert.Equal(t, int64(*d.LevelNumber)*1000, d.FirstAmount)
		seen[*d.LevelNumber] = d.RecipientID
	}
	for level := 1; level <= 4; level++ {
		assert.Equal(t, users.ancestors[level-1].ID, seen[level], "ancestor takes level %d", level)
	}
}

func TestDream_EnsureRefDonations_ReplacementFillsIneligibleAncestor(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	trial := time.Now().Add(30 * 24 * time.Hour)

	eligible := users.add(domain.User{IsActive: true, CurrencyID: 1, TrialTill: &trial})
	dreams.add(domain.Dream{UserID: eligible.ID, Status: domain.DreamActive, Goal: 100_000, CurrencyID: 1})
	lapsed := users.add(domain.User{IsActive: true, CurrencyID: 1}) // no subscription
	users.ancestors = []domain.User{eligible, lapsed}

	charity := users.add(domain.User{IsActive: true, CurrencyID: 1, TrialTill: &trial})
	charityDream := dreams.add(domain.Dream{UserID: charity.ID, Status: domain.DreamActive, Goal: 500_000, CurrencyID: 1, Type: domain.DreamTypeCharity})
	dreams.candidates = []domain.DreamCandidate{{UserID: charity.ID, DreamID: charityDream.ID}}

	svc := newDreamService(dreams, users, donations, currencies)

	dream, err := svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "Boat", Goal: 50_000})
	require.NoError(t, err)

	created, err := donations.ListByIDs(context.Background(), dream.RefDonations)
	require.NoError(t, err)
	recipients := map[int]int64{}
	for _, d := range created {
		recipients[*d.LevelNumber] = d.RecipientID
	}
	assert.Equal(t, eligible.ID, recipients[1], "eligible ancestor keeps level 1")
	assert.Equal(t, charity.ID, recipients[2], "lapsed ancestor replaced from the pool")
	// Levels 3 and 4 had nobody left; they wait for the next top-up.
	assert.NotContains(t, recipients, 3)
	assert.NotContains(t, recipients, 4)
}

func TestDream_EnsureRefDonations_KeepsLiveSlots(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	trial := time.Now().Add(30 * 24 * time.Hour)
	for i := 0; i < 4; i++ {
		a := users.add(domain.User{IsActive: true, CurrencyID: 1, TrialTill: &trial})
		users.ancestors = append(users.ancestors, a)
		dreams.add(domain.Dream{UserID: a.ID, Status: domain.DreamActive, Goal: 100_000, CurrencyID: 1})
	}
	svc := newDreamService(dreams, users, donations, currencies)

	dream, err := svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "Boat", Goal: 50_000})
	require.NoError(t, err)
	require.Len(t, dream.RefDonations, 4)

	// Fail the level-2 slot; a repeat top-up regenerates only that one.
	created, err := donations.ListByIDs(context.Background(), dream.RefDonations)
	require.NoError(t, err)
	var failedID int64
	for _, d := range created {
		if *d.LevelNumber == 2 {
			failedID = d.ID
			d.Status = domain.DonationFailed
			donations.byID[d.ID] = d
		}
	}

	require.NoError(t, svc.EnsureRefDonations(context.Background(), dream))
	refreshed, err := dreams.Get(context.Background(), dream.ID)
	require.NoError(t, err)
	require.Len(t, refreshed.RefDonations, 4)
	assert.NotContains(t, refreshed.RefDonations, failedID, "failed slot replaced")

	// A second pass with all slots live is a no-op.
	require.NoError(t, svc.EnsureRefDonations(context.Background(), refreshed))
	again, err := dreams.Get(context.Background(), dream.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, refreshed.RefDonations, again.RefDonations)
}

func TestDream_EnsureRefDonations_ReplacesIneligibleRecipient(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	trial := time.Now().Add(30 * 24 * time.Hour)
	for i := 0; i < 4; i++ {
		a := users.add(domain.User{IsActive: true, CurrencyID: 1, TrialTill: &trial})
		users.ancestors = append(users.ancestors, a)
		dreams.add(domain.Dream{UserID: a.ID, Status: domain.DreamActive, Goal: 100_000, CurrencyID: 1})
	}
	svc := newDreamService(dreams, users, donations, currencies)

	dream, err := svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "Boat", Goal: 50_000})
	require.NoError(t, err)
	require.Len(t, dream.RefDonations, 4)

	created, err := donations.ListByIDs(context.Background(), dream.RefDonations)
	require.NoError(t, err)
	var staleID int64
	for _, d := range created {
		if *d.LevelNumber == 2 {
			staleID = d.ID
		}
	}

	// The level-2 ancestor gets blocked while their slot is still unpaid.
	blocked := users.ancestors[1]
	require.NoError(t, users.SetActive(context.Background(), blocked.ID, false))
	charity := users.add(domain.User{IsActive: true, CurrencyID: 1, TrialTill: &trial})
	charityDream := dreams.add(domain.Dream{UserID: charity.ID, Status: domain.DreamActive, Goal: 500_000, CurrencyID: 1, Type: domain.DreamTypeCharity})
	dreams.candidates = []domain.DreamCandidate{{UserID: charity.ID, DreamID: charityDream.ID}}

	require.NoError(t, svc.EnsureRefDonations(context.Background(), dream))

	refreshed, err := dreams.Get(context.Background(), dream.ID)
	require.NoError(t, err)
	require.Len(t, refreshed.RefDonations, 4)
	assert.NotContains(t, refreshed.RefDonations, staleID, "stale slot regenerated")

	stale, err := donations.Get(context.Background(), staleID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationFailed, stale.Status)

	current, err := donations.ListByIDs(context.Background(), refreshed.RefDonations)
	require.NoError(t, err)
	recipients := map[int]int64{}
	for _, d := range current {
		recipients[*d.LevelNumber] = d.RecipientID
	}
	assert.Equal(t, charity.ID, recipients[2], "blocked recipient replaced from the pool")
	assert.Equal(t, users.ancestors[0].ID, recipients[1], "untouched slots keep their recipients")
}

func TestDream_EnsureRefDonations_SkipsActiveDream(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	dream := dreams.add(domain.Dream{UserID: owner.ID, Status: domain.DreamActive, Goal: 50_000, CurrencyID: 1})
	svc := newDreamService(dreams, users, donations, currencies)

	require.NoError(t, svc.EnsureRefDonations(context.Background(), dream))
	assert.Empty(t, donations.byID)
}

func TestDream_Get_VisibilityByStatus(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	draft := dreams.add(domain.Dream{UserID: owner.ID, Status: domain.DreamHalf, Goal: 50_000, CurrencyID: 1})
	active := dreams.add(domain.Dream{UserID: owner.ID, Status: domain.DreamActive, Goal: 50_000, CurrencyID: 1})
	svc := newDreamService(dreams, users, donations, currencies)

	_, err := svc.Get(context.Background(), draft.ID, owner.ID)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), draft.ID, owner.ID+1)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(context.Background(), active.ID, owner.ID+1)
	require.NoError(t, err)
}

func TestDream_Climbing(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	svc := newDreamService(dreams, users, donations, currencies)

	_, _, err := svc.Climbing(context.Background(), owner.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	created, err := svc.Create(context.Background(), owner.ID, usecase.DreamInput{Title: "Boat", Goal: 50_000})
	require.NoError(t, err)

	dream, refDonations, err := svc.Climbing(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, dream.ID)
	assert.Len(t, refDonations, len(dream.RefDonations))
}

func TestDream_Update_Guards(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	dream := dreams.add(domain.Dream{UserID: owner.ID, Status: domain.DreamActive, Goal: 50_000, Collected: 30_000, CurrencyID: 1})
	closed := dreams.add(domain.Dream{UserID: owner.ID, Status: domain.DreamClosed, Goal: 50_000, CurrencyID: 1})
	svc := newDreamService(dreams, users, donations, currencies)

	_, err := svc.Update(context.Background(), owner.ID+1, dream.ID, usecase.DreamInput{Title: "X", Goal: 40_000})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Update(context.Background(), owner.ID, closed.ID, usecase.DreamInput{Title: "X", Goal: 40_000})
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.Update(context.Background(), owner.ID, dream.ID, usecase.DreamInput{Title: "X", Goal: 20_000})
	require.ErrorIs(t, err, domain.ErrInvalidArgument, "goal below collected")

	updated, err := svc.Update(context.Background(), owner.ID, dream.ID, usecase.DreamInput{Title: "Bigger boat", Goal: 60_000})
	require.NoError(t, err)
	assert.Equal(t, "Bigger boat", updated.Title)
	assert.Equal(t, int64(60_000), updated.Goal)
}

func TestDream_Close(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	active := dreams.add(domain.Dream{UserID: owner.ID, Status: domain.DreamActive, Goal: 50_000, CurrencyID: 1})
	whole := dreams.add(domain.Dream{UserID: owner.ID, Status: domain.DreamWhole, Goal: 80_000, CurrencyID: 1})
	climbing := dreams.add(domain.Dream{UserID: owner.ID, Status: domain.DreamHalf, Goal: 50_000, CurrencyID: 1})
	svc := newDreamService(dreams, users, donations, currencies)

	_, err := svc.Close(context.Background(), owner.ID+1, active.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Close(context.Background(), owner.ID, climbing.ID)
	require.ErrorIs(t, err, domain.ErrConflict, "only active dreams close")

	closed, err := svc.Close(context.Background(), owner.ID, active.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DreamClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	// The subscribed owner's fully climbed dream takes the active slot.
	next, err := dreams.Get(context.Background(), whole.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DreamActive, next.Status)
}

func TestDream_Close_NoActivationWithoutSubscription(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, _ := dreamFixture()
	lapsed := users.add(domain.User{Email: "lapsed@example.com", IsActive: true, CurrencyID: 1})
	active := dreams.add(domain.Dream{UserID: lapsed.ID, Status: domain.DreamActive, Goal: 50_000, CurrencyID: 1})
	whole := dreams.add(domain.Dream{UserID: lapsed.ID, Status: domain.DreamWhole, Goal: 80_000, CurrencyID: 1})
	svc := newDreamService(dreams, users, donations, currencies)

	closed, err := svc.Close(context.Background(), lapsed.ID, active.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DreamClosed, closed.Status)

	waiting, err := dreams.Get(context.Background(), whole.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DreamWhole, waiting.Status, "no subscription, no activation")
}

func TestDream_Delete_Guards(t *testing.T) {
	t.Parallel()
	dreams, users, donations, currencies, owner := dreamFixture()
	active := dreams.add(domain.Dream{UserID: owner.ID, Status: domain.DreamActive, Goal: 50_000, CurrencyID: 1})
	confirmed := donations.add(domain.Donation{DreamID: 9, RecipientID: 2, Status: domain.DonationConfirmed})
	climbing := dreams.add(domain.Dream{UserID: owner.ID, Status: domain.DreamHalf, Goal: 50_000, CurrencyID: 1, RefDonations: []int64{confirmed.ID}})
	fresh := dreams.add(domain.Dream{UserID: owner.ID, Status: domain.DreamQuart, Goal: 50_000, CurrencyID: 1})
	svc := newDreamService(dreams, users, donations, currencies)

	require.ErrorIs(t, svc.Delete(context.Background(), owner.ID, active.ID), domain.ErrConflict)
	require.ErrorIs(t, svc.Delete(context.Background(), owner.ID+1, fresh.ID), domain.ErrForbidden)
	require.ErrorIs(t, svc.Delete(context.Background(), owner.ID, climbing.ID), domain.ErrConflict)

	require.NoError(t, svc.Delete(context.Background(), owner.ID, fresh.ID))
	_, err := dreams.Get(context.Background(), fresh.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
