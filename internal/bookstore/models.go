package bookstore

import "time"

// Identity is an opaque caller reference. Only equality is meaningful.
type Identity string

// Anonymous is the identity of an unauthenticated caller.
const Anonymous Identity = ""

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser || r == RoleGuest
}

// Media holds blob references; the blobs themselves live in an external store.
type Media struct {
	PDF    string   `json:"pdf,omitempty" yaml:"pdf,omitempty"`
	Audio  []string `json:"audio,omitempty" yaml:"audio,omitempty"`
	Video  []string `json:"video,omitempty" yaml:"video,omitempty"`
	Images []string `json:"images,omitempty" yaml:"images,omitempty"`
}

type MediaKind string

const (
	MediaPDF   MediaKind = "pdf"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
)

type Book struct {
	ID            string  `json:"id" yaml:"id"`
	Title         string  `json:"title" yaml:"title"`
	Author        string  `json:"author" yaml:"author"`
	Price         int64   `json:"price" yaml:"price"`
	Available     bool    `json:"available" yaml:"available"`
	SingleCopy    bool    `json:"single_copy" yaml:"single_copy"`
	KycRestricted bool    `json:"kyc_restricted" yaml:"kyc_restricted"`
	Content       *string `json:"content,omitempty" yaml:"content,omitempty"`
	Media         Media   `json:"media" yaml:"media"`
}

// Sale records the one irreversible sale of a single-copy book.
type Sale struct {
	BookID  string    `json:"book_id" yaml:"book_id"`
	OrderID string    `json:"order_id" yaml:"order_id"`
	Buyer   Identity  `json:"buyer" yaml:"buyer"`
	SoldAt  time.Time `json:"sold_at" yaml:"sold_at"`
}

type CartItem struct {
	BookID   string `json:"book_id" yaml:"book_id"`
	Quantity int64  `json:"quantity" yaml:"quantity"`
}

type Cart struct {
	Identity Identity   `json:"identity" yaml:"identity"`
	Items    []CartItem `json:"items" yaml:"items"`
}

type Balance struct {
	Identity Identity `json:"identity" yaml:"identity"`
	Amount   int64    `json:"amount" yaml:"amount"`
}

type Order struct {
	OrderID          string     `json:"order_id" yaml:"order_id"`
	User             Identity   `json:"user" yaml:"user"`
	Items            []CartItem `json:"items" yaml:"items"`
	TotalAmount      int64      `json:"total_amount" yaml:"total_amount"`
	Timestamp        time.Time  `json:"timestamp" yaml:"timestamp"`
	DeliveredBookIDs []string   `json:"delivered_book_ids" yaml:"delivered_book_ids"`
}

// Delivers reports whether the order delivered bookID.
func (o Order) Delivers(bookID string) bool {
	for _, id := range o.DeliveredBookIDs {
		if id == bookID {
			return true
		}
	}
	return false
}

type RoleAssignment struct {
	Identity Identity `json:"identity" yaml:"identity"`
	Role     Role     `json:"role" yaml:"role"`
}

type Profile struct {
	Identity Identity `json:"identity" yaml:"identity"`
	Name     string   `json:"name" yaml:"name"`
}

type SupportMessage struct {
	ID              int64     `json:"id" yaml:"id"`
	Content         string    `json:"content" yaml:"content"`
	Author          Identity  `json:"author" yaml:"author"`
	Timestamp       time.Time `json:"timestamp" yaml:"timestamp"`
	ResponseTo      *int64    `json:"response_to,omitempty" yaml:"response_to,omitempty"`
	IsAdminResponse bool      `json:"is_admin_response" yaml:"is_admin_response"`
}

// Settings are the scalar values of the store.
type Settings struct {
	NextMessageID   int64    `json:"next_message_id" yaml:"next_message_id"`
	DesignatedOwner Identity `json:"designated_owner,omitempty" yaml:"designated_owner,omitempty"`
}

type ReEnableResult struct {
	UpdatedBooks []string `json:"updated_books"`
	SkippedBooks []string `json:"skipped_books"`
	UpdatedCount int      `json:"updated_count"`
}
