package user

import (
	"net/http"

	"texplicit_backend/internal/common"
)

var (
	ErrInvalidLogin       = common.NewAPIError(http.StatusBadRequest, "INVALID_LOGIN_INFO", common.MsgInvalidLoginInfo)
	ErrInactiveUser       = common.NewAPIError(http.StatusBadRequest, "ERROR_INACTIVE_USER", common.MsgErrorInactiveUser)
	ErrUnauthorizedAdmin  = common.NewAPIError(http.StatusBadRequest, "UNAUTHORIZED_ADMIN", common.MsgUnauthorizedAdmin)
	ErrDuplicateEmail     = common.NewAPIError(http.StatusBadRequest, "DUPLICATE_EMAIL", common.MsgDuplicateEmail)
	ErrDuplicateUser      = common.NewAPIError(http.StatusBadRequest, "DUPLICATE_USER", common.MsgDuplicateUser)
	ErrInvalidEmail       = common.NewAPIError(http.StatusBadRequest, "INVALID_EMAIL", common.MsgInvalidEmail)
	ErrInvalidToken       = common.NewAPIError(http.StatusBadRequest, "INVALID_TOKEN", common.MsgInvalidToken)
	ErrTokenExpired       = common.NewAPIError(http.StatusForbidden, "TOKEN_EXPIRED", common.MsgErrorTokenExpired)
	ErrInvalidNewPassword = common.NewAPIError(http.StatusBadRequest, "INVALID_NEW_PASSWORD", common.MsgInvalidNewPassword)
	ErrUserNotFound       = common.ErrNotFound.WithMessage(common.MsgNotFoundUser)
	ErrInvalidImageType   = common.NewAPIError(http.StatusBadRequest, "INVALID_IMAGE_TYPE", common.MsgInvalidImageType)
)
