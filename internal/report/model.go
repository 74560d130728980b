package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/platform/database"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is stored as {value, ref}.
type Status struct {
	Value domain.ReportStatus `bson:"value" json:"value"`
	Ref   string              `bson:"ref" json:"ref"`
}

func statusOf(s domain.ReportStatus) Status {
	return Status{Value: s, Ref: s.Label()}
}

// Report is one research report, pending until the worker finishes it.
type Report struct {
	ID                   primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Task                 string              `bson:"task" json:"task"`
	Subtopics            []string            `bson:"subtopics" json:"subtopics"`
	ReportType           domain.ReportType   `bson:"report_type" json:"report_type"`
	Source               domain.ReportSource `bson:"source" json:"source"`
	Format               string              `bson:"format" json:"format"`
	InputURLs            []string            `bson:"input_urls,omitempty" json:"input_urls,omitempty"`
	URLs                 []string            `bson:"urls" json:"urls"`
	Websearch            bool                `bson:"websearch" json:"websearch"`
	Report               string              `bson:"report" json:"report"`
	ReportPath           string              `bson:"report_path" json:"report_path"`
	Agent                string              `bson:"agent,omitempty" json:"agent,omitempty"`
	ReportGenerationID   GenerationID        `bson:"report_generation_id" json:"report_generation_id"`
	ReportGenerationTime float64             `bson:"report_generation_time" json:"report_generation_time"`
	Status               Status              `bson:"status" json:"status"`
	CreatedBy            database.Ref        `bson:"createdBy" json:"createdBy"`
	CreatedOn            time.Time           `bson:"createdOn" json:"createdOn"`
}

// OwnerHex is the id of the user the report belongs to.
func (r *Report) OwnerHex() string { return r.CreatedBy.ID.Hex() }

// DownloadName is "<Report Type Words> - <task[:10]>_<created>.md".
func (r *Report) DownloadName() string {
	task := []rune(r.Task)
	if len(task) > 10 {
		task = task[:10]
	}
	return fmt.Sprintf("%s - %s_%s.md", r.ReportType.Words(), string(task), r.CreatedOn.UTC().Format("2006-01-02 15:04:05"))
}

// StorageKey is where the markdown of a finished report is written.
func (r *Report) StorageKey() string {
	name := slug.Make(r.Task)
	if len(name) > 60 {
		name = strings.TrimRight(name[:60], "-")
	}
	if name == "" {
		name = "report"
	}
	return fmt.Sprintf("%s/reports/%s-%s.md", r.OwnerHex(), name, r.ID.Hex())
}

// GenerationID is the client's correlation id. Clients send it as a number or a string.
type GenerationID string

func (g *GenerationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*g = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*g = GenerationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("report_generation_id: %w", err)
	}
	*g = GenerationID(n.String())
	return nil
}

// GenerateRequest is the /report/generate body.
type GenerateRequest struct {
	Task               string              `json:"task" binding:"required"`
	ReportType         domain.ReportType   `json:"report_type"`
	Source             domain.ReportSource `json:"source"`
	Format             string              `json:"format"`
	ReportGenerationID GenerationID        `json:"report_generation_id"`
	Websearch          bool                `json:"websearch"`
	Subtopics          []string            `json:"subtopics"`
	URLs               []string            `json:"urls"`
}

// Filter narrows report listings.
type Filter struct {
	Source     string `form:"source"`
	Format     string `form:"format"`
	ReportType string `form:"report_type"`
}

// ShareRequest is the /report/share body.
type ShareRequest struct {
	ReportIDs []string `json:"reportIds" binding:"required,min=1"`
	EmailIDs  []string `json:"emailIds" binding:"required,min=1,dive,email"`
	Subject   string   `json:"subject"`
	Message   string   `json:"message"`
}

// SearchHit is one full-text match.
type SearchHit struct {
	ID         string            `json:"_id"`
	Task       string            `json:"task"`
	ReportType domain.ReportType `json:"report_type"`
	Score      float64           `json:"score"`
	Highlights []string          `json:"highlights"`
	CreatedOn  time.Time         `json:"createdOn"`
}

// StatusUpdate is the data of progress events sent while a report is researched.
type StatusUpdate struct {
	ReportGenerationID GenerationID `json:"report_generation_id"`
	Status             string       `json:"status"`
}

type generatePayload struct {
	ReportID string `json:"reportId"`
}
