package model

import "time"

type TransactionPurpose string

const (
	PurposeOrderPayment       TransactionPurpose = "ORDER_PAYMENT"
	PurposeLicenseRenewal     TransactionPurpose = "LICENSE_RENEWAL"
	PurposeSellerSubscription TransactionPurpose = "SELLER_SUBSCRIPTION"
)

type TransactionStatus string

const (
	TxnPending    TransactionStatus = "PENDING"
	TxnProcessing TransactionStatus = "PROCESSING"
	TxnSuccess    TransactionStatus = "SUCCESS"
	TxnFailed     TransactionStatus = "FAILED"
	TxnCancelled  TransactionStatus = "CANCELLED"
)

func (s TransactionStatus) Terminal() bool {
	return s == TxnSuccess || s == TxnFailed || s == TxnCancelled
}

// PaymentTransaction is one payment attempt against the gateway.
// TxnRef is the external reference carried through the redirect and callback.
// Once the status is terminal the row is never written again.
type PaymentTransaction struct {
	ID          uint               `gorm:"primaryKey"`
	TxnRef      string             `gorm:"size:100;uniqueIndex;not null"`
	RequesterID string             `gorm:"size:64;index"`
	Purpose     TransactionPurpose `gorm:"size:50;not null"`
	Status      TransactionStatus  `gorm:"size:20;index;not null"`
	Amount      int64              `gorm:"not null"` // integral VND
	Description string             `gorm:"size:500"`
	ClientIP    string             `gorm:"size:50"`

	// gateway callback metadata
	GatewayTxnNo string `gorm:"size:100"`
	ResponseCode string `gorm:"size:10"`
	BankCode     string `gorm:"size:50"`
	CardType     string `gorm:"size:50"`
	PayDate      string `gorm:"size:20"`
	BankTranNo   string `gorm:"size:100"`

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

type OrderStatus string

const (
	OrderPending OrderStatus = "PENDING"
	OrderSuccess OrderStatus = "SUCCESS"
	OrderFailed  OrderStatus = "FAILED"
)

// Order is one purchase intent. Only the fulfillment coordinator flips its
// status, exactly once per transaction outcome.
type Order struct {
	ID            uint        `gorm:"primaryKey"`
	TransactionID uint        `gorm:"index;not null"`
	BuyerID       string      `gorm:"size:64;index;not null"`
	ToolID        uint        `gorm:"index;not null"`
	TotalPrice    int64       `gorm:"not null"`
	Status        OrderStatus `gorm:"size:20;index;not null"`
	FailReason    string      `gorm:"size:500"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderLineItem struct {
	ID        uint  `gorm:"primaryKey"`
	OrderID   uint  `gorm:"index;not null"`
	PlanID    uint  `gorm:"index;not null"`
	Quantity  int   `gorm:"not null"` // >= 1
	UnitPrice int64 `gorm:"not null"`
	CreatedAt time.Time
}

// LicensePlan is a purchasable duration/price tier of a tool.
type LicensePlan struct {
	ID           uint   `gorm:"primaryKey"`
	ToolID       uint   `gorm:"index;not null"`
	Name         string `gorm:"size:100;not null"`
	DurationDays int    `gorm:"not null"`
	Price        int64  `gorm:"not null"`
	CreatedAt    time.Time
}

type LicenseStatus string

const (
	LicenseActive  LicenseStatus = "ACTIVE"
	LicenseExpired LicenseStatus = "EXPIRED"
	LicenseRevoked LicenseStatus = "REVOKED"
)

// LicenseAccount is one issued unit of access: either a generated
// username/password pair or a pool token. Token rows are reserved by binding
// an order, not by the used flag; used only flips when the buyer activates.
// ReservationID marks pool stock still staged by a seller and therefore not
// yet sellable.
type LicenseAccount struct {
	ID            uint          `gorm:"primaryKey"`
	PlanID        uint          `gorm:"index;not null"`
	OrderID       *uint         `gorm:"index"`
	ReservationID *uint         `gorm:"index"`
	Username      *string       `gorm:"size:100"`
	Password      *string       `gorm:"size:100"`
	Token         *string       `gorm:"size:64;uniqueIndex"`
	Used          bool          `gorm:"not null;default:false"`
	Status        LicenseStatus `gorm:"size:20;index;not null"`
	StartDate     *time.Time
	EndDate       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RenewalLog is append-only, one row per successful renewal.
type RenewalLog struct {
	ID               uint  `gorm:"primaryKey"`
	LicenseAccountID uint  `gorm:"index;not null"`
	TransactionID    *uint `gorm:"index"`
	RenewDate        time.Time
	NewEndDate       time.Time
	AmountPaid       int64
	CreatedAt        time.Time
}

type IssuanceMode string

const (
	IssuanceToken      IssuanceMode = "TOKEN"
	IssuanceCredential IssuanceMode = "CREDENTIAL"
)

// Tool is the catalog entry a plan belongs to. The core only reads its
// issuance mode and decrements available stock.
type Tool struct {
	ID           uint         `gorm:"primaryKey"`
	Name         string       `gorm:"size:200;not null"`
	SellerID     string       `gorm:"size:64;index;not null"`
	IssuanceMode IssuanceMode `gorm:"size:20;not null"`
	AvailableQty int          `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ReservationStatus string

const (
	ReservationStaged    ReservationStatus = "STAGED"
	ReservationCommitted ReservationStatus = "COMMITTED"
	ReservationAbandoned ReservationStatus = "ABANDONED"
)

// TokenReservation is a seller's provisional claim on a batch of freshly
// generated tokens, keyed by an opaque handle so its lifetime is independent
// of any web session.
type TokenReservation struct {
	ID        uint              `gorm:"primaryKey"`
	Handle    string            `gorm:"size:64;uniqueIndex;not null"`
	PlanID    uint              `gorm:"index;not null"`
	SellerID  string            `gorm:"size:64;index;not null"`
	Status    ReservationStatus `gorm:"size:20;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SellerPackage struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:100;not null"`
	DurationDays int    `gorm:"not null"`
	Price        int64  `gorm:"not null"`
	CreatedAt    time.Time
}

type SellerSubscription struct {
	ID              uint   `gorm:"primaryKey"`
	SellerID        string `gorm:"size:64;index;not null"`
	PackageID       uint   `gorm:"index;not null"`
	TransactionID   uint   `gorm:"uniqueIndex;not null"`
	PriceAtPurchase int64  `gorm:"not null"`
	StartDate       time.Time
	EndDate         time.Time
	Active          bool `gorm:"not null;default:true"`
	CreatedAt       time.Time
}
