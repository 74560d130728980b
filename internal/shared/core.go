package shared

import (
	"context"
	"time"

	"texplicit_backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the account record stored in the users collection and carried through request contexts.
type User struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Name         string              `bson:"name" json:"name"`
	Email        string              `bson:"email" json:"email"`
	PasswordHash string              `bson:"passwordHash,omitempty" json:"-"`
	Role         domain.Role         `bson:"role" json:"role"`
	MobileNumber string              `bson:"mobileNumber" json:"mobileNumber"`
	CompanyName  string              `bson:"companyName" json:"companyName"`
	Website      string              `bson:"website" json:"website"`
	Subscription int                 `bson:"subscription" json:"subscription"`
	Image        string              `bson:"image" json:"image"`
	IsActive     bool                `bson:"isActive" json:"isActive"`
	ParentUserID *primitive.ObjectID `bson:"parentUserId,omitempty" json:"parentUserId,omitempty"`
	CreatedOn    time.Time           `bson:"createdOn" json:"createdOn"`
	Permissions  Permissions         `bson:"permissions" json:"permissions"`
}

// Permissions holds the menus a user may see and their subscription quotas.
type Permissions struct {
	Menu                 []int                 `bson:"menu" json:"menu"`
	SubscriptionDuration *SubscriptionDuration `bson:"subscription_duration,omitempty" json:"subscription_duration,omitempty"`
	Chat                 *ChatQuota            `bson:"chat,omitempty" json:"chat,omitempty"`
	Report               *ReportQuota          `bson:"report,omitempty" json:"report,omitempty"`
	Document             *DocumentQuota        `bson:"document,omitempty" json:"document,omitempty"`
}

type SubscriptionDuration struct {
	StartDate time.Time `bson:"start_date" json:"start_date"`
	EndDate   time.Time `bson:"end_date" json:"end_date"`
}

type ChatCount struct {
	ChatCount int64 `bson:"chat_count" json:"chat_count"`
}

type ChatQuota struct {
	Allowed ChatCount `bson:"allowed" json:"allowed"`
	Used    ChatCount `bson:"used" json:"used"`
}

// ReportQuota counters are keyed by "total" and by report type.
type ReportQuota struct {
	Allowed map[string]float64 `bson:"allowed" json:"allowed"`
	Used    map[string]float64 `bson:"used" json:"used"`
}

type DocumentSize struct {
	DocumentSize int64 `bson:"document_size" json:"document_size"`
}

type DocumentQuota struct {
	Allowed DocumentSize `bson:"allowed" json:"allowed"`
	Used    DocumentSize `bson:"used" json:"used"`
}

// HexID returns the user's id as a hex string.
func (u *User) HexID() string {
	return u.ID.Hex()
}

// IsAdmin reports whether the user has the Admin role.
func (u *User) IsAdmin() bool {
	return u.Role == domain.RoleAdmin
}

// Token purposes carried in the "typ" claim. Session routes only accept TokenAccess.
const (
	TokenAccess = "access"
	TokenReset  = "reset"
)

// Claims represents the JWT claims structure: {"id", "typ", "exp", "jti", "iat"}.
type Claims struct {
	UserID  string `json:"id"`
	Purpose string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService defines the interface for JWT operations.
type TokenService interface {
	GenerateToken(userID, purpose string, ttl time.Duration) (string, *Claims, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// UserLookup loads users for the authorization middleware and feature services.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
}
