// File: internal/common/messages.go
package common

// User-facing messages returned in the response envelope and event payloads.
const (
	MsgMissingRequiredParameters = "Missing required parameters"
	MsgMissingRequiredParameter  = "Missing required parameter: "
	MsgUnauthorized              = "Unauthorized access"
	MsgUnauthorizedAdmin         = "Unauthorized admin access"
	MsgInternalServerError       = "Internal server error"
	MsgInvalidSubscription       = "Subscription is invalid or exhausted. Please check plan details."
	MsgSubscriptionExpired       = "Subscription duration exceeded! Please check plan details."

	MsgOKLogin            = "Login successful"
	MsgOKLogout           = "Logout successful"
	MsgInvalidLoginInfo   = "Invalid email or password"
	MsgErrorInactiveUser  = "User is inactive. Please contact the administrator"
	MsgOKUserCreated      = "User created successfully"
	MsgOKUserUpdate       = "User updated successfully"
	MsgErrorUserUpdate    = "Failed to update user"
	MsgOKUserRetrieval    = "User retrieved successfully"
	MsgOKUsersRetrieval   = "Users retrieved successfully"
	MsgNotFoundUser       = "User not found"
	MsgDuplicateEmail     = "A user with this email already exists"
	MsgDuplicateUser      = "User already exists"
	MsgOKUserDelete       = "User deleted successfully"
	MsgOKUserStatusUpdate = "User status updated successfully"
	MsgOKUserImageUpdate  = "User image updated successfully"
	MsgErrorUserImage     = "Failed to update user image"
	MsgInvalidImageType   = "Invalid image type. Allowed types: jpg, png, jpeg"

	MsgInvalidEmail              = "Invalid email"
	MsgOKPasswordResetEmailSent  = "Password reset email sent"
	MsgErrorPasswordResetEmail   = "Failed to send password reset email"
	MsgMissingParameterToken     = "Missing token"
	MsgInvalidToken              = "Invalid token"
	MsgErrorTokenExpired         = "Token has expired"
	MsgOKTokenValid              = "Token is valid"
	MsgInvalidNewPassword        = "New password cannot be the same as the old password"
	MsgOKPasswordUpdate          = "Password updated successfully"
	MsgErrorPasswordUpdate       = "Failed to update password"
	MsgOKMenuRetrieval           = "Menu retrieved successfully"
	MsgOKCustomerFeedbackSave    = "Thank you for your feedback"
	MsgErrorCustomerFeedbackSave = "Failed to save feedback"
	MsgOKDemoRequest             = "Demo request received"
	MsgErrorDemoRequest          = "Failed to save demo request"
	MsgMissingAPIKey             = "Missing API key"
	MsgOKPricing                 = "Found pricing amounts"
	MsgOKRazorpayOrderGenerated  = "Razorpay order generated"
	MsgErrorRazorpayVerification = "Payment verification failed"
	MsgErrorUnknownOrder         = "No order found for this payment"
	MsgOKPaymentCaptured         = "Successfully verified payment and modified existing subscription!"
	MsgErrorSubscriptionUpdate   = "Failed to update existing subscription!"
	MsgOKPaymentHistory          = "Successfully retrieved payment history!"

	MsgOKChatQueued          = "Chat request received"
	MsgOKChatRetrieval       = "Chat history retrieved successfully"
	MsgOKChatDelete          = "Chat history deleted successfully"
	MsgChatDefaultResponse   = "Sorry, I am unable to answer your question at the moment. Try again later."
	MsgOKNewsQueued          = "Fetching news"
	MsgOKNewsDocumentSaved   = "News saved to documents"
	MsgOKNewsFound           = "News found"
	MsgOKNewsDone            = "No more news for this query"
	MsgErrorNewsSearch       = "Failed to search news. Try again later."
	MsgOKReportQueued        = "Report generation started"
	MsgOKReportRetrieval     = "Reports retrieved successfully"
	MsgOKReportDelete        = "Report deleted successfully"
	MsgOKReportShared        = "Reports shared successfully"
	MsgOKReportGenerated     = "Report generated successfully"
	MsgErrorReportGeneration = "Report generation failed"
	MsgNotFoundReport        = "Report not found"
	MsgErrorReportSave       = "Failed to save the generated report"
	MsgErrorReportShare      = "Failed to share reports"
	MsgInvalidReportType     = "Invalid report type"
	MsgInvalidReportSource   = "Invalid report source. Allowed: external, my_documents"
	MsgOKReportSearch        = "Search completed successfully"
	MsgOKFailedReportsDelete = "Failed reports deleted successfully"

	MsgOKFolderCreated      = "Folder created successfully"
	MsgDuplicateFolder      = "A folder with this name already exists"
	MsgOKFolderDelete       = "Folder deleted successfully"
	MsgOKDocumentsRetrieval = "Documents retrieved successfully"
	MsgOKDocumentsUpload    = "Upload started"
	MsgOKDocumentUploaded   = "Document uploaded successfully"
	MsgErrorDocumentUpload  = "Document upload failed"
	MsgInvalidDocumentType  = "Invalid file type. Allowed types: pdf, doc, docx, pptx, ppt, txt"
	MsgOKDocumentsMoved     = "Documents moved successfully"
	MsgErrorDocumentsMove   = "Failed to move documents"
	MsgOKFoldersRetrieval   = "Folders retrieved successfully"
	MsgOKDocumentRetrieval  = "Document retrieved successfully"
	MsgErrorDocumentShare   = "Failed to share documents"
	MsgUploadSkipped        = "Skipping upload of %s due to incompatible file format"
	MsgUploadFailed         = "Failed to save %s due to some error..."
	MsgOKDocumentDelete     = "Document deleted successfully"
	MsgOKDocumentRename     = "Document renamed successfully"
	MsgOKDocumentShared     = "Documents shared successfully"
	MsgNotFoundDocument     = "Document not found"
	MsgOKSummaryQueued      = "Summary generation started"
	MsgOKSummaryGenerated   = "Summary generated successfully"
	MsgErrorSummary         = "Summary generation failed"
	MsgErrorSearchDisabled  = "Report search is not configured"
)
