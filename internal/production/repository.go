package production

import (
	"context"
	"time"
)

// Repository is the persistence contract shared by every entity type.
// Find returns an error wrapping ErrNotFound on a miss; Save upserts.
type Repository[T any] interface {
	Find(ctx context.Context, id string) (T, error)
	Save(ctx context.Context, v T) error
	Delete(ctx context.Context, id string) error
}

type PlanRepository interface {
	Repository[Plan]
	FindByDate(ctx context.Context, day time.Time) (Plan, error)
	// DeleteAll removes every plan together with its orders, bundles and products.
	DeleteAll(ctx context.Context) error
}

type OrderRepository interface {
	Repository[Order]
	ListByPlan(ctx context.Context, planID string) ([]Order, error)
}

type BundleRepository interface {
	Repository[Bundle]
	ListByOrder(ctx context.Context, orderID string) ([]Bundle, error)
}

type ProductRepository interface {
	Repository[Product]
	ListByBundle(ctx context.Context, bundleID string) ([]Product, error)
	// Decrement lowers the remaining quantity by count only when at least
	// count remains, returning ErrInsufficientQuantity otherwise.
	Decrement(ctx context.Context, id string, count float64) (Product, error)
}

type OperatorRepository interface {
	Repository[Operator]
	ListByLine(ctx context.Context, lineID string) ([]Operator, error)
}

type ShiftRepository interface {
	Repository[ShiftEntry]
	// Latest returns the most recently started shift of the operator.
	Latest(ctx context.Context, operatorID string) (ShiftEntry, error)
	ListByOperator(ctx context.Context, operatorID string) ([]ShiftEntry, error)
}

type ProgressRepository interface {
	Repository[ProgressEntry]
	ListByOperator(ctx context.Context, operatorID string) ([]ProgressEntry, error)
}

type LineRepository interface {
	Repository[ProductionLine]
	List(ctx context.Context) ([]ProductionLine, error)
	FindByName(ctx context.Context, name string) (ProductionLine, error)
}

type IdleRepository interface {
	Repository[IdleEntry]
	// Latest returns the most recently started idle interval of the line.
	Latest(ctx context.Context, lineID string) (IdleEntry, error)
	ListByLine(ctx context.Context, lineID string) ([]IdleEntry, error)
	DeleteAll(ctx context.Context) error
}

type AccountRepository interface {
	Repository[Account]
	FindByPhone(ctx context.Context, phone string) (Account, error)
	FindByTelegramID(ctx context.Context, tgID int64) (Account, error)
}

// Store groups the repositories of the four persisted collections.
type Store interface {
	Plans() PlanRepository
	Orders() OrderRepository
	Bundles() BundleRepository
	Products() ProductRepository
	Operators() OperatorRepository
	Shifts() ShiftRepository
	Progress() ProgressRepository
	Lines() LineRepository
	Idles() IdleRepository
	Accounts() AccountRepository

	// Tx runs fn against a store whose writes commit together or not at all.
	Tx(ctx context.Context, fn func(Store) error) error
}
