package feedback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Feedback is one message left through the contact form.
type Feedback struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	EmailID      string             `bson:"emailId" json:"emailId"`
	CustomerName string             `bson:"customerName" json:"customerName"`
	PhoneNumber  *int64             `bson:"phoneNumber" json:"phoneNumber"`
	Comments     string             `bson:"comments" json:"comments"`
	Created      time.Time          `bson:"created" json:"created"`
}

// PhoneNumber accepts a JSON number, a numeric string, an empty string or null.
type PhoneNumber struct {
	Value *int64
}

func (p *PhoneNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		p.Value = nil
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		p.Value = nil
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(raw, "+"), 10, 64)
	if err != nil {
		return fmt.Errorf("phoneNumber must be numeric: %w", err)
	}
	p.Value = &n
	return nil
}

// CreateRequest is the POST /feedback body.
type CreateRequest struct {
	Email       string      `json:"email" binding:"required,email"`
	Name        string      `json:"name" binding:"required"`
	Comments    string      `json:"comments" binding:"required"`
	PhoneNumber PhoneNumber `json:"phoneNumber"`
}
