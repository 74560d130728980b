// File: internal/chat/model.go
package chat

import "time"

// Roles stored in the chat history.
const (
	RoleUser   = "user"
	RoleSystem = "system"
)

// TimestampLayout is the day-first layout of Entry.Timestamp.
const TimestampLayout = "02-01-2006 15:04:05"

// Entry is one message of a user's chat history.
type Entry struct {
	Role      string   `bson:"role" json:"role"`
	Content   string   `bson:"content" json:"content"`
	Sources   []string `bson:"sources" json:"sources"`
	Timestamp string   `bson:"timestamp" json:"timestamp"`
	ChatType  int      `bson:"chatType" json:"chatType"`
}

func newEntry(role, content string, sources []string, chatType int, at time.Time) Entry {
	if sources == nil {
		sources = []string{}
	}
	return Entry{Role: role, Content: content, Sources: sources, Timestamp: at.UTC().Format(TimestampLayout), ChatType: chatType}
}

// Request is the body of POST /chat.
type Request struct {
	Params Params `json:"params" binding:"required"`
}

// Params of a chat request.
type Params struct {
	Prompt   string `json:"prompt" binding:"required"`
	ChatType int    `json:"chatType"`
}

// Reply is emitted on the user's chat event once an answer is complete.
type Reply struct {
	Prompt    string   `json:"prompt"`
	Response  string   `json:"response"`
	Sources   []string `json:"sources"`
	Timestamp string   `json:"timestamp"`
	ChatType  int      `json:"chatType"`
}

// Chunk is emitted on the user's chat event while an answer streams.
type Chunk struct {
	Delta string `json:"delta"`
}

type replyPayload struct {
	Prompt   string `json:"prompt"`
	ChatType int    `json:"chatType"`
}
