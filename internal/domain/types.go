// File: internal/domain/types.go
package domain

import (
	"sort"
	"strings"
)

// NotAvailable is returned by Name lookups for unknown values.
const NotAvailable = "Not Available"

// Role of a user account.
type Role int

const (
	RoleAdmin        Role = 1
	RoleProfessional Role = 2
	RolePersonal     Role = 3
	RoleChild        Role = 4
)

var roleNames = map[int]string{
	int(RoleAdmin):        "Admin",
	int(RoleProfessional): "Professional",
	int(RolePersonal):     "Personal",
	int(RoleChild):        "Child",
}

// UserStatus of a user account.
type UserStatus int

const (
	UserStatusActive   UserStatus = 1
	UserStatusDeactive UserStatus = 2
	UserStatusBlocked  UserStatus = 3
)

var userStatusNames = map[int]string{
	int(UserStatusActive):   "Active",
	int(UserStatusDeactive): "Deactive",
	int(UserStatusBlocked):  "Blocked",
}

// ChatType selects how a chat prompt is answered.
type ChatType int

const (
	ChatTypeExternal        ChatType = 0
	ChatTypeDocument        ChatType = 1
	ChatTypeKnowledgeItem   ChatType = 2
	ChatTypeCustomerService ChatType = 3
)

var chatTypeNames = map[int]string{
	int(ChatTypeExternal):        "External",
	int(ChatTypeDocument):        "Document",
	int(ChatTypeKnowledgeItem):   "KnowledgeItem",
	int(ChatTypeCustomerService): "CustomerService",
}

// MenuItem is the index of an entry in the navigation menu.
type MenuItem int

const (
	MenuHome           MenuItem = 0
	MenuMyNetwork      MenuItem = 1
	MenuMyTexplicit    MenuItem = 2
	MenuMyDocuments    MenuItem = 3
	MenuMyDatasources  MenuItem = 4
	MenuNews           MenuItem = 5
	MenuAIChat         MenuItem = 6
	MenuUserManagement MenuItem = 7
	MenuAdmin          MenuItem = 8
	MenuReports        MenuItem = 9
)

var menuItemNames = map[int]string{
	int(MenuHome):           "Home",
	int(MenuMyNetwork):      "MyNetwork",
	int(MenuMyTexplicit):    "MyTexplicit",
	int(MenuMyDocuments):    "MyDocuments",
	int(MenuMyDatasources):  "MyDatasources",
	int(MenuNews):           "News",
	int(MenuAIChat):         "AIChat",
	int(MenuUserManagement): "UserManagement",
	int(MenuAdmin):          "Admin",
	int(MenuReports):        "Reports",
}

// SearchEngine used by the news and research search.
type SearchEngine int

const (
	EngineGoogle        SearchEngine = 0
	EngineBing          SearchEngine = 1
	EngineGoogleScholar SearchEngine = 2
)

// Param returns the engine identifier understood by SerpAPI.
func (e SearchEngine) Param() string {
	switch e {
	case EngineBing:
		return "bing"
	case EngineGoogleScholar:
		return "google_scholar"
	default:
		return "google"
	}
}

// ReportType names a report template.
type ReportType string

const (
	ResearchReport ReportType = "research_report"
	ResourceReport ReportType = "resource_report"
	OutlineReport  ReportType = "outline_report"
	CustomReport   ReportType = "custom_report"
	SubtopicReport ReportType = "subtopic_report"
	DetailedReport ReportType = "detailed_report"
)

// ReportTypes lists every supported report type.
var ReportTypes = []ReportType{ResearchReport, ResourceReport, OutlineReport, CustomReport, SubtopicReport, DetailedReport}

// Valid reports whether t is a known report type.
func (t ReportType) Valid() bool {
	for _, known := range ReportTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Words renders the type for humans: "research_report" -> "Research Report".
func (t ReportType) Words() string {
	parts := strings.Split(string(t), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// UsageWeight is what one report of this type costs against the total report allowance.
func (t ReportType) UsageWeight() float64 {
	if t == ResearchReport || t == DetailedReport {
		return 0.5
	}
	return 1
}

// ReportStatus tracks a report generation through its lifecycle.
type ReportStatus string

const (
	ReportPending ReportStatus = "pending"
	ReportSuccess ReportStatus = "success"
	ReportFailure ReportStatus = "failure"
)

// Label is the capitalised form stored next to the status ref.
func (s ReportStatus) Label() string {
	switch s {
	case ReportPending:
		return "Pending"
	case ReportSuccess:
		return "Success"
	case ReportFailure:
		return "Failure"
	}
	return NotAvailable
}

// ReportSource selects where report context comes from.
type ReportSource string

const (
	SourceExternal    ReportSource = "external"
	SourceMyDocuments ReportSource = "my_documents"
)

// DocumentType distinguishes files from folders in the documents collection.
type DocumentType string

const (
	DocumentFile   DocumentType = "File"
	DocumentFolder DocumentType = "Folder"
)

// EnumEntry is one element of ConvertToList.
type EnumEntry struct {
	ID    int    `json:"id"`
	Value string `json:"value"`
}

func convertToList(names map[int]string) []EnumEntry {
	out := make([]EnumEntry, 0, len(names))
	for id, name := range names {
		out = append(out, EnumEntry{ID: id, Value: strings.ReplaceAll(name, "_", " ")})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func name(names map[int]string, value int) string {
	n, ok := names[value]
	if !ok {
		return NotAvailable
	}
	return strings.ReplaceAll(n, "_", " ")
}

func RoleList() []EnumEntry       { return convertToList(roleNames) }
func UserStatusList() []EnumEntry { return convertToList(userStatusNames) }
func ChatTypeList() []EnumEntry   { return convertToList(chatTypeNames) }
func MenuItemList() []EnumEntry   { return convertToList(menuItemNames) }

func (r Role) Name() string       { return name(roleNames, int(r)) }
func (s UserStatus) Name() string { return name(userStatusNames, int(s)) }
func (c ChatType) Name() string   { return name(chatTypeNames, int(c)) }
func (m MenuItem) Name() string   { return name(menuItemNames, int(m)) }

// IsBaseUser reports whether the role is one an admin manages directly.
func (r Role) IsBaseUser() bool {
	return r == RolePersonal || r == RoleProfessional
}
