package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/marketplace/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ratingFixture struct {
	reviews  *fakeReviews
	bookings *fakeBookings
	profiles *fakeProfiles
	notifier *recordingNotifier
	service  *RatingService
}

const expertUserID = int64(50)

func newRatingFixture(t *testing.T) *ratingFixture {
	t.Helper()

	f := &ratingFixture{
		reviews:  newFakeReviews(),
		bookings: newFakeBookings(),
		profiles: newFakeProfiles(),
		notifier: &recordingNotifier{},
	}
	f.service = NewRatingService(f.reviews, f.bookings, f.profiles, f.notifier, zap.NewNop())

	_, err := f.profiles.UpsertApplication(context.Background(), expertUserID, model.ExpertApplication{Headline: "Coach"}, time.Now())
	require.NoError(t, err)
	return f
}

// completedBooking кладёт завершённое бронирование reviewer -> expert
func (f *ratingFixture) completedBooking(t *testing.T, reviewerID int64) int64 {
	t.Helper()
	b := &model.Booking{UserID: reviewerID, ExpertID: expertUserID, Status: model.BookingStatusCompleted, PriceAtBooking: 100}
	require.NoError(t, f.bookings.Create(context.Background(), b))
	return b.ID
}

func (f *ratingFixture) review(t *testing.T, reviewerID int64, rating int) *model.Review {
	t.Helper()
	r, err := f.service.CreateReview(context.Background(), CreateReviewInput{
		ReviewerUserID: reviewerID,
		ExpertUserID:   expertUserID,
		BookingID:      f.completedBooking(t, reviewerID),
		Rating:         rating,
	})
	require.NoError(t, err)
	return r
}

func (f *ratingFixture) profile(t *testing.T) *model.ExpertProfile {
	t.Helper()
	p, err := f.profiles.GetByUserID(context.Background(), expertUserID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestRating_CreateUpdateDeleteRecomputes(t *testing.T) {
	f := newRatingFixture(t)
	ctx := context.Background()

	r5 := f.review(t, 1, 5)
	f.review(t, 2, 4)
	p := f.profile(t)
	assert.Equal(t, 2, p.RatingsQuantity)
	assert.InDelta(t, 4.5, p.RatingsAverage, 1e-9)

	_, err := f.service.UpdateReview(ctx, 1, r5.ID, 3, nil)
	require.NoError(t, err)
	p = f.profile(t)
	assert.Equal(t, 2, p.RatingsQuantity)
	assert.InDelta(t, 3.5, p.RatingsAverage, 1e-9)

	require.NoError(t, f.service.DeleteReview(ctx, 1, r5.ID))
	p = f.profile(t)
	assert.Equal(t, 1, p.RatingsQuantity)
	assert.InDelta(t, 4.0, p.RatingsAverage, 1e-9)

	assert.Equal(t, 2, f.notifier.count(model.NotificationNewReview))
}

func TestRating_AverageRoundedToOneDecimal(t *testing.T) {
	f := newRatingFixture(t)

	f.review(t, 1, 5)
	f.review(t, 2, 4)
	f.review(t, 3, 4)

	p := f.profile(t)
	assert.Equal(t, 3, p.RatingsQuantity)
	assert.InDelta(t, 4.3, p.RatingsAverage, 1e-9)
}

func TestRating_DeletingLastReviewResetsCache(t *testing.T) {
	f := newRatingFixture(t)
	r := f.review(t, 1, 2)

	require.NoError(t, f.service.DeleteReview(context.Background(), 1, r.ID))

	p := f.profile(t)
	assert.Zero(t, p.RatingsQuantity)
	assert.Zero(t, p.RatingsAverage)
}

func TestRating_CreateReviewRules(t *testing.T) {
	f := newRatingFixture(t)
	ctx := context.Background()

	t.Run("rating out of range", func(t *testing.T) {
		for _, rating := range []int{0, 6} {
			_, err := f.service.CreateReview(ctx, CreateReviewInput{ReviewerUserID: 1, ExpertUserID: expertUserID, Rating: rating})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "rating", verr.Field)
		}
	})

	t.Run("self review", func(t *testing.T) {
		_, err := f.service.CreateReview(ctx, CreateReviewInput{ReviewerUserID: expertUserID, ExpertUserID: expertUserID, Rating: 5})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("no completed booking", func(t *testing.T) {
		b := &model.Booking{UserID: 7, ExpertID: expertUserID, Status: model.BookingStatusConfirmed}
		require.NoError(t, f.bookings.Create(ctx, b))

		_, err := f.service.CreateReview(ctx, CreateReviewInput{ReviewerUserID: 7, ExpertUserID: expertUserID, BookingID: b.ID, Rating: 5})
		var perr *PermissionError
		require.ErrorAs(t, err, &perr)
	})

	t.Run("second review of same expert", func(t *testing.T) {
		f.review(t, 8, 5)

		_, err := f.service.CreateReview(ctx, CreateReviewInput{
			ReviewerUserID: 8, ExpertUserID: expertUserID, BookingID: f.completedBooking(t, 8), Rating: 1,
		})
		var cerr *ConflictError
		require.ErrorAs(t, err, &cerr)

		p := f.profile(t)
		assert.Equal(t, 1, p.RatingsQuantity)
		assert.InDelta(t, 5.0, p.RatingsAverage, 1e-9)
	})
}

func TestRating_OnlyAuthorChangesReview(t *testing.T) {
	f := newRatingFixture(t)
	ctx := context.Background()
	r := f.review(t, 1, 4)

	var perr *PermissionError
	_, err := f.service.UpdateReview(ctx, 2, r.ID, 1, nil)
	require.ErrorAs(t, err, &perr)
	require.ErrorAs(t, f.service.DeleteReview(ctx, 2, r.ID), &perr)

	var nf *NotFoundError
	require.ErrorAs(t, f.service.DeleteReview(ctx, 1, 999), &nf)
}

func TestRating_FailedRefreshIsRepairedByRecompute(t *testing.T) {
	f := newRatingFixture(t)
	f.review(t, 1, 5)

	f.profiles.failNext = errStoreDown
	f.review(t, 2, 1)

	// кэш отстал: в профиле всё ещё один отзыв
	p := f.profile(t)
	assert.Equal(t, 1, p.RatingsQuantity)

	n, err := f.service.RecomputeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p = f.profile(t)
	assert.Equal(t, 2, p.RatingsQuantity)
	assert.InDelta(t, 3.0, p.RatingsAverage, 1e-9)
}

func TestRating_OnReviewChangedWithoutProfile(t *testing.T) {
	f := newRatingFixture(t)

	err := f.service.OnReviewChanged(context.Background(), 12345)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestRoundRating(t *testing.T) {
	assert.InDelta(t, 4.3, roundRating(13.0/3.0), 1e-9)
	assert.InDelta(t, 4.7, roundRating(14.0/3.0), 1e-9)
	assert.InDelta(t, 2.5, roundRating(2.5), 1e-9)
}
