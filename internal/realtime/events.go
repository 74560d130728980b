package realtime

import "net/http"

// Event names. Most are prefixed or suffixed with the user id.
func ChatEvent(userID string) string                { return "chat_" + userID }
func ReportPendingEvent(userID string) string       { return userID + "_report_pending" }
func ReportEvent(userID string) string              { return userID + "_report" }
func ReportStatusEvent(userID string) string        { return userID + "_report_status" }
func NewsEvent(randomID, query string) string       { return randomID + "_" + query + "_news" }
func ErrorEvent(userID string) string               { return userID + "_error" }
func SuccessEvent(userID string) string             { return userID + "_success" }
func InfoEvent(userID string) string                { return userID + "_info" }
func UploadStatusEvent(userID string) string        { return userID + "_upload_status" }
func SummaryEvent(userID string) string             { return userID + "_summary" }
func SubscriptionInvalidEvent(userID string) string { return userID + "_subscription_invalid" }

// OK builds a successful event.
func OK(name, message string, data interface{}) Event {
	return Event{Name: name, Message: message, Data: data, Success: true, Status: http.StatusOK}
}

// Failed builds a failure event.
func Failed(name, message string, status int) Event {
	return Event{Name: name, Message: message, Data: []interface{}{}, Success: false, Status: status}
}

// EventsChannel is the redis channel that carries events from workers to the API process.
const EventsChannel = "texplicit:events"
