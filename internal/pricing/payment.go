package pricing

import "errors"

var (
	ErrNegativeAmount    = errors.New("pricing: payment amounts must not be negative")
	ErrInstallmentNoCard = errors.New("pricing: installment requires a card amount")
	ErrInstallmentMonths = errors.New("pricing: installment months must be between 2 and 36")
)

const (
	minInstallmentMonths = 2
	maxInstallmentMonths = 36
)

// Payment is the card/cash split collected for one issuance.
type Payment struct {
	CardAmount        int64  `json:"card_amount"`
	CashAmount        int64  `json:"cash_amount"`
	Installment       bool   `json:"installment"`
	InstallmentMonths int    `json:"installment_months"`
	Note              string `json:"note"`
}

// Paid is the total collected so far.
func (p Payment) Paid() int64 { return p.CardAmount + p.CashAmount }

// InstallmentCount is the months sent to the platform; 0 means lump sum.
func (p Payment) InstallmentCount() int {
	if !p.Installment {
		return 0
	}
	return p.InstallmentMonths
}

// Validate enforces the input guards. It deliberately says nothing about
// paying more than the final price.
func (p Payment) Validate() error {
	if p.CardAmount < 0 || p.CashAmount < 0 {
		return ErrNegativeAmount
	}
	if !p.Installment {
		return nil
	}
	if p.CardAmount == 0 {
		return ErrInstallmentNoCard
	}
	if p.InstallmentMonths < minInstallmentMonths || p.InstallmentMonths > maxInstallmentMonths {
		return ErrInstallmentMonths
	}
	return nil
}

// Balance is the paid/unpaid reconciliation against a final price.
// Final == Paid + Unpaid always holds; Unpaid goes negative on overpayment.
type Balance struct {
	Final  int64 `json:"final_price"`
	Paid   int64 `json:"paid_amount"`
	Unpaid int64 `json:"unpaid_amount"`
}

// Overpaid reports an operator overpayment, shown but not blocked.
func (b Balance) Overpaid() bool { return b.Unpaid < 0 }

// Balance reconciles p against finalPrice.
func (p Payment) Balance(finalPrice int64) Balance {
	paid := p.Paid()
	return Balance{Final: finalPrice, Paid: paid, Unpaid: finalPrice - paid}
}
