package dto

import (
	"time"

	"license-market/internal/model"
)

type CheckoutLine struct {
	PlanID   uint `json:"plan_id"`
	Quantity int  `json:"quantity"`
}

type CheckoutRequest struct {
	Lines []CheckoutLine `json:"lines"`
}

type CheckoutResponse struct {
	TxnRef      string `json:"txn_ref"`
	RedirectURL string `json:"redirect_url"`
	OrderIDs    []uint `json:"order_ids"`
	Amount      int64  `json:"amount"`
}

type RenewalRequest struct {
	PlanID uint `json:"plan_id"`
}

type SubscribeRequest struct {
	PackageID uint `json:"package_id"`
}

// CallbackResult is what the payment-return handler redirects on.
type CallbackResult struct {
	TxnRef       string                   `json:"txn_ref"`
	Purpose      model.TransactionPurpose `json:"purpose"`
	Outcome      model.TransactionStatus  `json:"outcome"`
	Message      string                   `json:"message"`
	AlreadyFinal bool                     `json:"already_final"`
}

type StageBatchRequest struct {
	PlanID   uint `json:"plan_id"`
	Quantity int  `json:"quantity"`
}

type StageBatchResponse struct {
	Handle string   `json:"handle"`
	Tokens []string `json:"tokens"`
}

type LicenseAccountResponse struct {
	ID        uint                `json:"id"`
	PlanID    uint                `json:"plan_id"`
	OrderID   *uint               `json:"order_id,omitempty"`
	Username  *string             `json:"username,omitempty"`
	Password  *string             `json:"password,omitempty"`
	Token     *string             `json:"token,omitempty"`
	Used      bool                `json:"used"`
	Status    model.LicenseStatus `json:"status"`
	StartDate *time.Time          `json:"start_date,omitempty"`
	EndDate   *time.Time          `json:"end_date,omitempty"`
}

func NewLicenseAccountResponse(account *model.LicenseAccount) *LicenseAccountResponse {
	return &LicenseAccountResponse{
		ID:        account.ID,
		PlanID:    account.PlanID,
		OrderID:   account.OrderID,
		Username:  account.Username,
		Password:  account.Password,
		Token:     account.Token,
		Used:      account.Used,
		Status:    account.Status,
		StartDate: account.StartDate,
		EndDate:   account.EndDate,
	}
}
