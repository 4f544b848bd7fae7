package service

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/Freeeeeet/marketplace/internal/gateway"
	"github.com/Freeeeeet/marketplace/internal/model"
)

var errStoreDown = errors.New("store unavailable")

type fakePayments struct {
	mu       sync.Mutex
	nextID   int64
	byTx     map[string]*model.Payment
	bookings *fakeBookings
	wishes   *fakeStarWishes
}

func newFakePayments(bookings *fakeBookings, wishes *fakeStarWishes) *fakePayments {
	return &fakePayments{byTx: map[string]*model.Payment{}, bookings: bookings, wishes: wishes}
}

func (f *fakePayments) Create(_ context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byTx[p.GatewayTransactionID]; ok {
		return errors.New("duplicate transaction id")
	}
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Now()
	cp := *p
	f.byTx[p.GatewayTransactionID] = &cp
	return nil
}

func (f *fakePayments) GetByID(_ context.Context, id int64) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byTx {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePayments) GetByTransactionID(_ context.Context, tx string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byTx[tx]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) CompletePending(_ context.Context, tx string, status model.PaymentStatus, validationID *string, raw json.RawMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byTx[tx]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	p.GatewayValidationID = validationID
	if raw != nil {
		p.RawGatewayPayload = raw
	}
	return true, nil
}

func (f *fakePayments) RecordPayload(_ context.Context, tx string, raw json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byTx[tx]; ok && p.Status == model.PaymentStatusPending {
		p.RawGatewayPayload = raw
	}
	return nil
}

func (f *fakePayments) ListSucceededAwaitingCascade(ctx context.Context, limit int) ([]*model.Payment, error) {
	f.mu.Lock()
	var succeeded []*model.Payment
	for _, p := range f.byTx {
		if p.Status == model.PaymentStatusSucceeded {
			cp := *p
			succeeded = append(succeeded, &cp)
		}
	}
	f.mu.Unlock()

	var out []*model.Payment
	for _, p := range succeeded {
		switch {
		case p.RelatedBookingID != nil:
			b, _ := f.bookings.GetByID(ctx, *p.RelatedBookingID)
			if b != nil && b.Status == model.BookingStatusPendingPayment {
				out = append(out, p)
			}
		case p.RelatedStarWishID != nil:
			r, _ := f.wishes.GetByID(ctx, *p.RelatedStarWishID)
			if r != nil && r.Status == model.StarWishStatusPendingPayment {
				out = append(out, p)
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakePayments) set(tx string, mutate func(*model.Payment)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(f.byTx[tx])
}

type fakeBookings struct {
	mu          sync.Mutex
	nextID      int64
	items       map[int64]*model.Booking
	transitions []model.BookingStatus
	failNext    error
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{items: map[int64]*model.Booking{}}
}

func (f *fakeBookings) Create(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	cp := *b
	f.items[b.ID] = &cp
	return nil
}

func (f *fakeBookings) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) Transition(_ context.Context, id int64, from, to model.BookingStatus, upd model.TransitionUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext; err != nil {
		f.failNext = nil
		return false, err
	}
	b, ok := f.items[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	if upd.PaymentID != nil {
		b.PaymentID = upd.PaymentID
	}
	if upd.CancellationReason != nil {
		b.CancellationReason = upd.CancellationReason
	}
	if upd.ActualStartTime != nil {
		b.ActualStartTime = upd.ActualStartTime
	}
	if upd.ActualEndTime != nil {
		b.ActualEndTime = upd.ActualEndTime
	}
	f.transitions = append(f.transitions, to)
	return true, nil
}

func (f *fakeBookings) HasCompleted(_ context.Context, userID, expertID, bookingID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[bookingID]
	return ok && b.UserID == userID && b.ExpertID == expertID && b.Status == model.BookingStatusCompleted, nil
}

func (f *fakeBookings) countTransitions(to model.BookingStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.transitions {
		if s == to {
			n++
		}
	}
	return n
}

type fakeStarWishes struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*model.StarWishRequest
}

func newFakeStarWishes() *fakeStarWishes {
	return &fakeStarWishes{items: map[int64]*model.StarWishRequest{}}
}

func (f *fakeStarWishes) Create(_ context.Context, r *model.StarWishRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = f.nextID
	cp := *r
	f.items[r.ID] = &cp
	return nil
}

func (f *fakeStarWishes) GetByID(_ context.Context, id int64) (*model.StarWishRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStarWishes) Transition(_ context.Context, id int64, from, to model.StarWishStatus, upd model.TransitionUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	if upd.PaymentID != nil {
		r.PaymentID = upd.PaymentID
	}
	if upd.CancellationReason != nil {
		r.CancellationReason = upd.CancellationReason
	}
	if upd.ActualStartTime != nil {
		r.ActualStartTime = upd.ActualStartTime
	}
	if upd.ActualEndTime != nil {
		r.ActualEndTime = upd.ActualEndTime
	}
	return true, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	items map[int64]*model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{items: map[int64]*model.User{}}
	for _, u := range users {
		f.items[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	cp.Roles = slices.Clone(u.Roles)
	return &cp, nil
}

func (f *fakeUsers) SubmitExpertApplication(_ context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[userID]
	if !ok || u.ExpertApplicationStatus != model.ExpertApplicationNotApplied {
		return false, nil
	}
	u.ExpertApplicationStatus = model.ExpertApplicationPending
	return true, nil
}

func (f *fakeUsers) DecideExpertApplication(_ context.Context, userID int64, decision model.ExpertApplicationStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[userID]
	if !ok || u.ExpertApplicationStatus != model.ExpertApplicationPending {
		return false, nil
	}
	u.ExpertApplicationStatus = decision
	u.Roles = slices.DeleteFunc(u.Roles, func(r model.Role) bool { return r == model.RoleExpert })
	if decision == model.ExpertApplicationApproved {
		u.Roles = append(u.Roles, model.RoleExpert)
	}
	return true, nil
}

type fakeProfiles struct {
	mu       sync.Mutex
	nextID   int64
	byUser   map[int64]*model.ExpertProfile
	failNext error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byUser: map[int64]*model.ExpertProfile{}}
}

func (f *fakeProfiles) UpsertApplication(_ context.Context, userID int64, app model.ExpertApplication, appliedAt time.Time) (*model.ExpertProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byUser[userID]
	if !ok {
		f.nextID++
		p = &model.ExpertProfile{ID: f.nextID, UserID: userID}
		f.byUser[userID] = p
	}
	p.Headline = app.Headline
	p.Bio = app.Bio
	p.Category = app.Category
	p.PricePerSession = app.PricePerSession
	p.ApplicationTimestamp = &appliedAt
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) GetByUserID(_ context.Context, userID int64) (*model.ExpertProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byUser[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) MarkApproved(_ context.Context, userID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byUser[userID]
	if !ok {
		return errors.New("profile not found")
	}
	p.ApprovalTimestamp = &at
	p.RejectionReason = nil
	return nil
}

func (f *fakeProfiles) MarkRejected(_ context.Context, userID int64, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byUser[userID]
	if !ok {
		return errors.New("profile not found")
	}
	p.ApprovalTimestamp = nil
	p.RejectionReason = reason
	return nil
}

func (f *fakeProfiles) UpdateRatings(_ context.Context, userID int64, summary model.RatingSummary) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext; err != nil {
		f.failNext = nil
		return false, err
	}
	p, ok := f.byUser[userID]
	if !ok {
		return false, nil
	}
	p.RatingsAverage = summary.Average
	p.RatingsQuantity = summary.Quantity
	return true, nil
}

func (f *fakeProfiles) ListUserIDs(_ context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.byUser))
	for id := range f.byUser {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

type fakeReviews struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*model.Review
}

func newFakeReviews() *fakeReviews {
	return &fakeReviews{items: map[int64]*model.Review{}}
}

func (f *fakeReviews) Create(_ context.Context, r *model.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.items {
		if existing.ReviewerUserID == r.ReviewerUserID && existing.ExpertUserID == r.ExpertUserID {
			return model.ErrReviewExists
		}
	}
	f.nextID++
	r.ID = f.nextID
	cp := *r
	f.items[r.ID] = &cp
	return nil
}

func (f *fakeReviews) GetByID(_ context.Context, id int64) (*model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReviews) Update(_ context.Context, id int64, rating int, comment *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return errors.New("review not found")
	}
	r.Rating = rating
	r.Comment = comment
	return nil
}

func (f *fakeReviews) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

func (f *fakeReviews) Summarize(_ context.Context, expertUserID int64) (model.RatingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var summary model.RatingSummary
	total := 0
	for _, r := range f.items {
		if r.ExpertUserID == expertUserID {
			summary.Quantity++
			total += r.Rating
		}
	}
	if summary.Quantity > 0 {
		summary.Average = float64(total) / float64(summary.Quantity)
	}
	return summary, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	err      error
	requests []gateway.SessionRequest
}

func (g *fakeGateway) Name() string { return "fakepay" }

func (g *fakeGateway) InitiateSession(_ context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.Session{RedirectURL: "https://pay.example.com/" + req.TransactionID}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification model.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *recordingNotifier) count(t model.NotificationType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.Type == t {
			c++
		}
	}
	return c
}
