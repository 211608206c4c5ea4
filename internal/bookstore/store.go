package bookstore

import (
	"context"
	"time"
)

// Store owns every collection of the engine. All mutations run inside InTx;
// fn's error rolls the whole transaction back.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the per-transaction view of the store. Methods documented as CAS
// check and mutate in one step so concurrent transactions cannot both win.
type Tx interface {
	Role(ctx context.Context, id Identity) (Role, bool, error)
	SetRole(ctx context.Context, id Identity, role Role) error
	HasAdmin(ctx context.Context) (bool, error)
	Profile(ctx context.Context, id Identity) (Profile, error)
	PutProfile(ctx context.Context, p Profile) error
	Settings(ctx context.Context) (Settings, error)
	PutSettings(ctx context.Context, s Settings) error

	Balance(ctx context.Context, id Identity) (int64, error)
	Credit(ctx context.Context, id Identity, amount int64) error
	// Debit is CAS: ErrInsufficientFunds when the balance is below amount.
	Debit(ctx context.Context, id Identity, amount int64) error

	Book(ctx context.Context, id string) (Book, error)
	Books(ctx context.Context) ([]Book, error)
	InsertBook(ctx context.Context, b Book) error
	UpdateBook(ctx context.Context, b Book) error
	DeleteBook(ctx context.Context, id string) error
	Sale(ctx context.Context, bookID string) (Sale, error)
	// MarkSold is CAS: flips an available single-copy book to unavailable and
	// records the sale, ErrSoldOut otherwise.
	MarkSold(ctx context.Context, s Sale) error
	// Unsell reverts MarkSold for the same order.
	Unsell(ctx context.Context, bookID, orderID string) error

	Cart(ctx context.Context, id Identity) ([]CartItem, error)
	PutCartItem(ctx context.Context, id Identity, item CartItem) error
	RemoveCartItem(ctx context.Context, id Identity, bookID string) error
	ClearCart(ctx context.Context, id Identity) error

	Kyc(ctx context.Context, identifier string) (KycRecord, error)
	KycBoundTo(ctx context.Context, id Identity) (KycRecord, error)
	PutKyc(ctx context.Context, r KycRecord) error
	// BindKyc is CAS: binds a usable, unbound proof to orderID. Rebinding to
	// the same order is a no-op.
	BindKyc(ctx context.Context, identifier string, user Identity, orderID string, now time.Time) error

	Order(ctx context.Context, orderID string) (Order, error)
	Orders(ctx context.Context) ([]Order, error)
	OrdersBy(ctx context.Context, user Identity) ([]Order, error)
	// InsertOrder fails with ErrConflict on a duplicate order id.
	InsertOrder(ctx context.Context, o Order) error

	InsertMessage(ctx context.Context, m SupportMessage) error
	Messages(ctx context.Context) ([]SupportMessage, error)

	Snapshot(ctx context.Context) (Snapshot, error)
	// Restore replaces every collection with s.
	Restore(ctx context.Context, s Snapshot) error
}

// Snapshot is the serialization boundary for export and import. Collections
// keep store order.
type Snapshot struct {
	Books    []Book           `json:"books" yaml:"books"`
	Sales    []Sale           `json:"sales" yaml:"sales"`
	Balances []Balance        `json:"balances" yaml:"balances"`
	Carts    []Cart           `json:"carts" yaml:"carts"`
	Orders   []Order          `json:"orders" yaml:"orders"`
	Kyc      []KycRecord      `json:"kyc" yaml:"kyc"`
	Roles    []RoleAssignment `json:"roles" yaml:"roles"`
	Profiles []Profile        `json:"profiles" yaml:"profiles"`
	Messages []SupportMessage `json:"messages" yaml:"messages"`
	Settings Settings         `json:"settings" yaml:"settings"`
}
