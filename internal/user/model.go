// File: internal/user/model.go
package user

import (
	"strings"
)

// SignupRequest is the body of POST /account/signup.
type SignupRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	Role         int    `json:"role"`
	MobileNumber string `json:"mobileNumber"`
	CompanyName  string `json:"companyName"`
	Website      string `json:"website"`
	Subscription int    `json:"subscription"`
	Menu         []int  `json:"menu"`
}

// UpdateProfileRequest is the body of PATCH /account/update. At least one field is required.
type UpdateProfileRequest struct {
	Name         *string `json:"name"`
	MobileNumber *string `json:"mobileNumber"`
	CompanyName  *string `json:"companyName"`
	Website      *string `json:"website"`
}

// Empty reports whether no field was supplied.
func (r UpdateProfileRequest) Empty() bool {
	return r.Name == nil && r.MobileNumber == nil && r.CompanyName == nil && r.Website == nil
}

// AdminUserRequest is the body of POST /admin/user/user-add-update. Dates use YYYY-MM-DD,
// document_size is in megabytes.
type AdminUserRequest struct {
	UserID       string   `json:"userId"`
	Name         *string  `json:"name"`
	Email        *string  `json:"email"`
	MobileNumber *string  `json:"mobileNumber"`
	CompanyName  *string  `json:"companyName"`
	Website      *string  `json:"website"`
	Role         *int     `json:"role"`
	Subscription *int     `json:"subscription"`
	Menu         []int    `json:"menu"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	DocumentSize *float64 `json:"document_size"`
	ChatCount    *int64   `json:"chat_count"`
	ReportCount  *float64 `json:"report_count"`
}

// UserStatusRequest is the body of PUT /admin/user/user_status.
type UserStatusRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// ChildUserRequest creates or edits a child account.
type ChildUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Menu  []int  `json:"menus"`
}

// ChildUserSummary is one row of the child user listing.
type ChildUserSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ChildUsersPage is the paginated child user listing.
type ChildUsersPage struct {
	Users         []ChildUserSummary `json:"users"`
	TotalRecs     int64              `json:"totalRecs"`
	TotalPageSize int64              `json:"totalPageSize"`
}

// NormalizeEmail lowercases and trims an address before it is stored or compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
