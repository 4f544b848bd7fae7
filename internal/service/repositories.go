package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Freeeeeet/marketplace/internal/gateway"
	"github.com/Freeeeeet/marketplace/internal/model"
)

// Репозитории возвращают (nil, nil), если запись не найдена.
// Все методы, меняющие статус, выполняют атомарный условный UPDATE одной строки.

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id int64) (*model.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error)
	// CompletePending переводит платёж из pending в status; false, если платёж уже не pending
	CompletePending(ctx context.Context, transactionID string, status model.PaymentStatus, validationID *string, raw json.RawMessage) (bool, error)
	RecordPayload(ctx context.Context, transactionID string, raw json.RawMessage) error
	ListSucceededAwaitingCascade(ctx context.Context, limit int) ([]*model.Payment, error)
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	Transition(ctx context.Context, id int64, from, to model.BookingStatus, upd model.TransitionUpdate) (bool, error)
	HasCompleted(ctx context.Context, userID, expertID, bookingID int64) (bool, error)
}

type StarWishRepository interface {
	Create(ctx context.Context, request *model.StarWishRequest) error
	GetByID(ctx context.Context, id int64) (*model.StarWishRequest, error)
	Transition(ctx context.Context, id int64, from, to model.StarWishStatus, upd model.TransitionUpdate) (bool, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// SubmitExpertApplication: not_applied -> pending
	SubmitExpertApplication(ctx context.Context, userID int64) (bool, error)
	// DecideExpertApplication: pending -> approved|rejected, роль expert меняется в той же строке
	DecideExpertApplication(ctx context.Context, userID int64, decision model.ExpertApplicationStatus) (bool, error)
}

type ExpertProfileRepository interface {
	UpsertApplication(ctx context.Context, userID int64, app model.ExpertApplication, appliedAt time.Time) (*model.ExpertProfile, error)
	GetByUserID(ctx context.Context, userID int64) (*model.ExpertProfile, error)
	MarkApproved(ctx context.Context, userID int64, approvedAt time.Time) error
	MarkRejected(ctx context.Context, userID int64, reason *string) error
	UpdateRatings(ctx context.Context, userID int64, summary model.RatingSummary) (bool, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
}

type ReviewRepository interface {
	// Create возвращает model.ErrReviewExists при нарушении уникальности (reviewer, expert)
	Create(ctx context.Context, review *model.Review) error
	GetByID(ctx context.Context, id int64) (*model.Review, error)
	Update(ctx context.Context, id int64, rating int, comment *string) error
	Delete(ctx context.Context, id int64) error
	Summarize(ctx context.Context, expertUserID int64) (model.RatingSummary, error)
}

// Notifier is fire-and-forget: implementations swallow and log their own failures.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

type PaymentGateway interface {
	Name() string
	InitiateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error)
}

// PaymentCascade applies payment outcomes to the paid entity. Both methods must be idempotent.
type PaymentCascade interface {
	OnPaymentSucceeded(ctx context.Context, targetID, paymentID int64) error
	OnPaymentFailed(ctx context.Context, targetID, paymentID int64) error
}
