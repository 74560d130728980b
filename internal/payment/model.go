package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"texplicit_backend/internal/platform/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Number accepts a JSON number or a numeric string.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*n = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", raw)
	}
	*n = Number(v)
	return nil
}

// CreateOrderRequest is the /payment/create_order body. Amount is in rupees. The plan is
// stored with the order and applied when the payment is captured.
type CreateOrderRequest struct {
	Amount       Number       `json:"amount" binding:"required,gt=0"`
	SelectedPlan SelectedPlan `json:"selected_plan"`
}

type CountPlan struct {
	Count Number `json:"count" bson:"count"`
}

type SizeAmount struct {
	Value Number `json:"value" bson:"value"`
	Unit  string `json:"unit" bson:"unit"`
}

type DocumentPlan struct {
	Amount SizeAmount `json:"amount" bson:"amount"`
}

// SelectedPlan is what the user bought.
type SelectedPlan struct {
	ReportPlan   CountPlan    `json:"report_plan" bson:"report_plan"`
	ChatPlan     CountPlan    `json:"chat_plan" bson:"chat_plan"`
	DocumentPlan DocumentPlan `json:"document_plan" bson:"document_plan"`
}

// DocumentBytes converts the document plan to bytes. GB is 1024³, anything else is MB.
func (p SelectedPlan) DocumentBytes() int64 {
	v := float64(p.DocumentPlan.Amount.Value)
	if strings.EqualFold(p.DocumentPlan.Amount.Unit, "GB") {
		return int64(v * 1024 * 1024 * 1024)
	}
	return int64(v * 1024 * 1024)
}

// Order is a Razorpay order opened by a user, with the plan it pays for.
type Order struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	OrderID     string             `bson:"order_id" json:"order_id"`
	CreatedBy   database.Ref       `bson:"createdBy" json:"createdBy"`
	AmountPaise int64              `bson:"amount_paise" json:"amount_paise"`
	Currency    string             `bson:"currency" json:"currency"`
	Plan        SelectedPlan       `bson:"selected_plan" json:"selected_plan"`
	CreatedOn   time.Time          `bson:"createdOn" json:"createdOn"`
}

// CaptureRequest is sent by the checkout once Razorpay has taken the payment. SelectedPlan
// is ignored in favour of the plan stored with the order.
type CaptureRequest struct {
	RazorpayOrderID   string       `json:"razorpay_order_id" bson:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string       `json:"razorpay_payment_id" bson:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string       `json:"razorpay_signature" bson:"razorpay_signature" binding:"required"`
	SelectedPlan      SelectedPlan `json:"selected_plan" bson:"selected_plan"`
}

// History is one captured payment.
type History struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedBy      database.Ref       `bson:"createdBy" json:"createdBy"`
	CreatedOn      time.Time          `bson:"createdOn" json:"createdOn"`
	PaymentDetails CaptureRequest     `bson:"payment_details" json:"payment_details"`
	// Applied is set once the plan has been added to the subscription.
	Applied bool `bson:"applied" json:"applied"`
}
