package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/shiftbot/core/logger"
)

// Registry manages the people side of the shop floor: lines, operators and
// the accounts allowed to log in.
type Registry struct {
	store Store
	newID func() string
}

// NewRegistry builds a registry. A nil id generator means uuid.NewString.
func NewRegistry(store Store, newID func() string) *Registry {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Registry{store: store, newID: newID}
}

func (r *Registry) Lines(ctx context.Context) ([]ProductionLine, error) {
	lines, err := r.store.Lines().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })
	return lines, nil
}

func (r *Registry) FindLine(ctx context.Context, id string) (ProductionLine, error) {
	return r.store.Lines().Find(ctx, id)
}

// EnsureLine returns the line with the given name, creating it when missing.
func (r *Registry) EnsureLine(ctx context.Context, name string) (ProductionLine, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ProductionLine{}, ErrInvalidName
	}
	line, err := r.store.Lines().FindByName(ctx, name)
	if err == nil {
		return line, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return ProductionLine{}, err
	}
	line = ProductionLine{ID: r.newID(), Name: name}
	if err := r.store.Lines().Save(ctx, line); err != nil {
		return ProductionLine{}, fmt.Errorf("save line: %w", err)
	}
	logger.Info(ctx, "service.registry", "line.created", slog.String("line_id", line.ID), slog.String("name", name))
	return line, nil
}

func (r *Registry) FindOperator(ctx context.Context, id string) (Operator, error) {
	return r.store.Operators().Find(ctx, id)
}

// OperatorsOnLine lists operators assigned to the line sorted by name.
func (r *Registry) OperatorsOnLine(ctx context.Context, lineID string) ([]Operator, error) {
	ops, err := r.store.Operators().ListByLine(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Name < ops[j].Name })
	return ops, nil
}

// CreateOperator registers an operator on an existing line.
func (r *Registry) CreateOperator(ctx context.Context, name string, rate float64, lineID string) (Operator, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Operator{}, ErrInvalidName
	}
	if rate <= 0 {
		return Operator{}, ErrInvalidRate
	}
	if _, err := r.store.Lines().Find(ctx, lineID); err != nil {
		return Operator{}, err
	}
	op := Operator{ID: r.newID(), Name: name, Rate: rate, LineID: lineID}
	if err := r.store.Operators().Save(ctx, op); err != nil {
		return Operator{}, fmt.Errorf("save operator: %w", err)
	}
	logger.Info(ctx, "service.registry", "operator.created",
		slog.String("operator_id", op.ID),
		slog.String("line_id", lineID),
	)
	return op, nil
}

// GetUserByTelegramID resolves the account bound to a Telegram user.
func (r *Registry) GetUserByTelegramID(ctx context.Context, tgID int64) (Account, error) {
	return r.store.Accounts().FindByTelegramID(ctx, tgID)
}

// CreateAccount registers a phone number with a role. The account gets bound
// to a Telegram user on first contact share.
func (r *Registry) CreateAccount(ctx context.Context, rawPhone string, role Role) (Account, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return Account{}, err
	}
	if !role.Valid() {
		return Account{}, fmt.Errorf("unknown role %q", role)
	}
	if _, err := r.store.Accounts().FindByPhone(ctx, phone); err == nil {
		return Account{}, ErrDuplicatePhone
	} else if !errors.Is(err, ErrNotFound) {
		return Account{}, err
	}
	acc := Account{ID: r.newID(), Phone: phone, Role: role}
	if err := r.store.Accounts().Save(ctx, acc); err != nil {
		return Account{}, fmt.Errorf("save account: %w", err)
	}
	logger.Info(ctx, "service.registry", "account.created", slog.String("role", string(role)))
	return acc, nil
}

// UpsertAccount creates the account or changes the role of an existing one.
// The Telegram binding of an existing account is kept.
func (r *Registry) UpsertAccount(ctx context.Context, rawPhone string, role Role) (Account, bool, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return Account{}, false, err
	}
	if !role.Valid() {
		return Account{}, false, fmt.Errorf("unknown role %q", role)
	}
	acc, err := r.store.Accounts().FindByPhone(ctx, phone)
	switch {
	case errors.Is(err, ErrNotFound):
		acc, err = r.CreateAccount(ctx, phone, role)
		return acc, err == nil, err
	case err != nil:
		return Account{}, false, err
	}
	if acc.Role == role {
		return acc, false, nil
	}
	acc.Role = role
	if err := r.store.Accounts().Save(ctx, acc); err != nil {
		return Account{}, false, fmt.Errorf("save account: %w", err)
	}
	logger.Info(ctx, "service.registry", "account.role_changed", slog.String("role", string(role)))
	return acc, false, nil
}

// BindContact logs a Telegram user in by the phone number they shared. The
// account must have been registered beforehand.
func (r *Registry) BindContact(ctx context.Context, rawPhone string, tgID int64) (Account, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return Account{}, err
	}
	acc, err := r.store.Accounts().FindByPhone(ctx, phone)
	if err != nil {
		return Account{}, err
	}
	if acc.TelegramID == tgID {
		return acc, nil
	}
	if prev, err := r.store.Accounts().FindByTelegramID(ctx, tgID); err == nil && prev.ID != acc.ID {
		prev.TelegramID = 0
		if err := r.store.Accounts().Save(ctx, prev); err != nil {
			return Account{}, fmt.Errorf("unbind account: %w", err)
		}
	}
	acc.TelegramID = tgID
	if err := r.store.Accounts().Save(ctx, acc); err != nil {
		return Account{}, fmt.Errorf("save account: %w", err)
	}
	logger.Info(ctx, "service.registry", "account.bound",
		slog.Int64("user_id", tgID),
		slog.String("role", string(acc.Role)),
	)
	return acc, nil
}
