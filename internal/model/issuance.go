package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// MinuteLayout is the wire format for every date crossing the platform
// boundary: minute precision with an explicit UTC marker.
const MinuteLayout = "2006-01-02T15:04:00Z"

// MinuteTime marshals as MinuteLayout after converting to UTC. Seconds and
// below are dropped.
type MinuteTime time.Time

func (m MinuteTime) Time() time.Time { return time.Time(m) }

func (m MinuteTime) String() string { return time.Time(m).UTC().Format(MinuteLayout) }

func (m MinuteTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *MinuteTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range []string{MinuteLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			*m = MinuteTime(t.UTC().Truncate(time.Minute))
			return nil
		}
	}
	return fmt.Errorf("model: unsupported time %q", s)
}

// IssuanceRequest is the creation payload for a ticket issuance. Policy and
// payment values are a snapshot taken from the wizard at submit time.
type IssuanceRequest struct {
	MemberID        int64      `json:"memberId"`
	ProductID       int64      `json:"wellnessTicketId"`
	StartDate       MinuteTime `json:"startDate"`
	ExpireDate      MinuteTime `json:"expireDate"`
	LimitType       LimitType  `json:"limitType"`
	LimitCnt        int        `json:"limitCnt"`
	TotalUsableCnt  int        `json:"totalUsableCnt"`
	DiscountPercent float64    `json:"discountValue"`
	TotalPayValue   int64      `json:"totalPayValue"`
	UnpaidValue     int64      `json:"unpaidValue"`
	CardPayValue    int64      `json:"cardPayValue"`
	CashPayValue    int64      `json:"cashPayValue"`
	CardInstallment int        `json:"cardInstallment"`
	Note            string     `json:"note"`
}

// IssuanceDetail is what the platform returns for the issuance update form.
type IssuanceDetail struct {
	ID              int64      `json:"id"`
	MemberID        int64      `json:"memberId"`
	MemberName      string     `json:"memberName"`
	ProductID       int64      `json:"wellnessTicketId"`
	ProductName     string     `json:"wellnessTicketName"`
	Kind            TicketKind `json:"type"`
	StartDate       MinuteTime `json:"startDate"`
	ExpireDate      MinuteTime `json:"expireDate"`
	RemainingCnt    int        `json:"remainingCnt"`
	LimitType       LimitType  `json:"limitType"`
	LimitCnt        int        `json:"limitCnt"`
	TotalPayValue   int64      `json:"totalPayValue"`
	UnpaidValue     int64      `json:"unpaidValue"`
	CardPayValue    int64      `json:"cardPayValue"`
	CashPayValue    int64      `json:"cashPayValue"`
	CardInstallment int        `json:"cardInstallment"`
	Note            string     `json:"note"`
	IsDelete        bool       `json:"isDelete"`
}

// IssuanceUpdate carries an operator's direct correction of an issued
// ticket: policy, dates, remaining count or status.
type IssuanceUpdate struct {
	ID           int64      `json:"id"`
	StartDate    MinuteTime `json:"startDate"`
	ExpireDate   MinuteTime `json:"expireDate"`
	RemainingCnt int        `json:"remainingCnt"`
	LimitType    LimitType  `json:"limitType"`
	LimitCnt     int        `json:"limitCnt"`
	IsDelete     bool       `json:"isDelete"`
}
