package production

import "time"

// DefaultDensity is the density of rolled steel in g/mm³, used to derive
// product mass in grams from its dimensions in millimetres.
const DefaultDensity = 0.00785

// Role identifies what an account is allowed to do in the bot.
type Role string

const (
	// RoleOperator drives the shop-floor flow.
	RoleOperator Role = "operator"
	// RoleAdmin registers operators and accounts.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOperator || r == RoleAdmin
}

// Account binds a phone number (and, after login, a Telegram user) to a role.
type Account struct {
	ID         string
	Phone      string
	TelegramID int64
	Role       Role
}

// Plan is the manufacturing plan for one calendar day.
type Plan struct {
	ID        string
	Date      time.Time
	TotalMass float64
}

// Order belongs to exactly one plan.
type Order struct {
	ID            string
	PlanID        string
	Seq           int
	NativeID      string
	Name          string
	LineRef       string
	TotalMass     float64
	TotalLength   float64
	ExecutionTime int
	Instructions  string
	Finished      bool
}

// Bundle belongs to exactly one order.
type Bundle struct {
	ID            string
	OrderID       string
	Seq           int
	NativeID      string
	TotalMass     float64
	TotalLength   float64
	ExecutionTime int
	Instructions  string
	Finished      bool
}

// Product belongs to exactly one bundle. Quantity is the remaining counter and
// only ever decreases; QuantityStatic is the ingested amount.
type Product struct {
	ID             string
	BundleID       string
	Seq            int
	NativeID       string
	Profile        string
	Width          float64
	Thickness      float64
	Length         float64
	Color          string
	RollNumber     int
	Instructions   string
	QuantityStatic float64
	Quantity       float64
}

// TotalMass returns width*thickness*length*density.
func (p Product) TotalMass(density float64) float64 {
	return p.Width * p.Thickness * p.Length * density
}

// UnitMass returns the mass of a single unit of the product.
func (p Product) UnitMass(density float64) float64 {
	if p.QuantityStatic <= 0 {
		return 0
	}
	return p.TotalMass(density) / p.QuantityStatic
}

// Done reports whether nothing remains to be produced. Products carry no
// explicit finished flag.
func (p Product) Done() bool {
	return p.Quantity <= 0
}

// Operator is a line worker with a pay rate and a running shift accumulator.
type Operator struct {
	ID                string
	Name              string
	Rate              float64
	LineID            string
	ShiftMassProduced float64
}

// ShiftEntry is one open-to-close working interval.
type ShiftEntry struct {
	ID         string
	OperatorID string
	Start      time.Time
	End        *time.Time
}

// Open reports whether the shift has not been closed yet.
func (s ShiftEntry) Open() bool {
	return s.ID != "" && s.End == nil
}

// ProgressEntry records produced units of a product.
type ProgressEntry struct {
	ID         string
	OperatorID string
	ProductID  string
	Count      float64
	Mass       float64
	At         time.Time
}

// ProductionLine is a physical line operators are assigned to.
type ProductionLine struct {
	ID   string
	Name string
}

// IdleType tells scheduled stops from breakdowns.
type IdleType string

const (
	IdleScheduled   IdleType = "scheduled"
	IdleUnscheduled IdleType = "unscheduled"
)

// IdleReason is the reason code picked by the operator.
type IdleReason string

const (
	ReasonRepair      IdleReason = "repair"
	ReasonNoOrders    IdleReason = "no_orders"
	ReasonCoilReplace IdleReason = "coil_replace"
	ReasonBreakdown   IdleReason = "breakdown"
	ReasonOther       IdleReason = "other"
)

var idleReasons = map[IdleType][]IdleReason{
	IdleScheduled:   {ReasonRepair, ReasonNoOrders, ReasonCoilReplace},
	IdleUnscheduled: {ReasonBreakdown, ReasonOther},
}

// IdleTypes lists the known idle types in display order.
func IdleTypes() []IdleType {
	return []IdleType{IdleScheduled, IdleUnscheduled}
}

// ReasonsFor returns the reason codes allowed for an idle type.
func ReasonsFor(t IdleType) []IdleReason {
	return append([]IdleReason(nil), idleReasons[t]...)
}

// Valid reports whether t is a known idle type.
func (t IdleType) Valid() bool {
	_, ok := idleReasons[t]
	return ok
}

// Allows reports whether reason r belongs to idle type t.
func (t IdleType) Allows(r IdleReason) bool {
	for _, known := range idleReasons[t] {
		if known == r {
			return true
		}
	}
	return false
}

// IdleEntry is one interval during which a line did not produce.
type IdleEntry struct {
	ID          string
	LineID      string
	OperatorID  string
	Start       time.Time
	End         *time.Time
	Type        IdleType
	Reason      IdleReason
	DurationSec *int64
}

// Open reports whether the idle interval is still running.
func (e IdleEntry) Open() bool {
	return e.ID != "" && e.End == nil
}
