// File: internal/shared/user_response.go
package shared

import (
	"strings"
	"time"

	"texplicit_backend/internal/domain"
)

// UserResponse defines the structure for user data sent in API responses.
type UserResponse struct {
	ID           string              `json:"_id"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Role         domain.Role         `json:"role"`
	RoleName     string              `json:"roleName"`
	MobileNumber string              `json:"mobileNumber"`
	CompanyName  string              `json:"companyName"`
	Website      string              `json:"website"`
	Subscription int                 `json:"subscription"`
	Image        string              `json:"image"`
	IsActive     bool                `json:"isActive"`
	ParentUserID string              `json:"parentUserId,omitempty"`
	CreatedOn    string              `json:"createdOn"`
	Permissions  PermissionsResponse `json:"permissions"`
}

// PermissionsResponse renders subscription dates as strings.
type PermissionsResponse struct {
	Menu                 []int             `json:"menu"`
	SubscriptionDuration map[string]string `json:"subscription_duration,omitempty"`
	Chat                 *ChatQuota        `json:"chat,omitempty"`
	Report               *ReportQuota      `json:"report,omitempty"`
	Document             *DocumentQuota    `json:"document,omitempty"`
}

// ImageURL joins the image route with a stored image name. Empty names stay empty.
func ImageURL(imageBaseURL, image string) string {
	if image == "" {
		return ""
	}
	return strings.TrimRight(imageBaseURL, "/") + "/" + image
}

// ToUserResponse converts a User to a UserResponse DTO. imageBaseURL is the absolute
// route serving account images, e.g. https://host/account/image.
func ToUserResponse(u *User, imageBaseURL string) UserResponse {
	resp := UserResponse{
		ID:           u.ID.Hex(),
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		RoleName:     u.Role.Name(),
		MobileNumber: u.MobileNumber,
		CompanyName:  u.CompanyName,
		Website:      u.Website,
		Subscription: u.Subscription,
		Image:        ImageURL(imageBaseURL, u.Image),
		IsActive:     u.IsActive,
		CreatedOn:    u.CreatedOn.UTC().Format(time.RFC3339),
		Permissions: PermissionsResponse{
			Menu:     u.Permissions.Menu,
			Chat:     u.Permissions.Chat,
			Report:   u.Permissions.Report,
			Document: u.Permissions.Document,
		},
	}
	if resp.Permissions.Menu == nil {
		resp.Permissions.Menu = []int{}
	}
	if u.ParentUserID != nil {
		resp.ParentUserID = u.ParentUserID.Hex()
	}
	if d := u.Permissions.SubscriptionDuration; d != nil {
		resp.Permissions.SubscriptionDuration = map[string]string{
			"start_date": d.StartDate.UTC().Format(time.RFC3339),
			"end_date":   d.EndDate.UTC().Format(time.RFC3339),
		}
	}
	return resp
}

// ToUserResponses converts a slice of users.
func ToUserResponses(users []*User, imageBaseURL string) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserResponse(u, imageBaseURL))
	}
	return out
}
