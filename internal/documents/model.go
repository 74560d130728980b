// File: internal/documents/model.go
package documents

import (
	"path"
	"strconv"
	"strings"
	"time"

	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/llm"
	"texplicit_backend/internal/platform/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is a file or folder in a user's document tree. Folders only carry a name and a root;
// the tree is expressed through root paths of the form "/<ownerId>/", "/<ownerId>/Folder",
// "/<ownerId>/Folder/Sub".
type Document struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Title             string               `bson:"title,omitempty" json:"title,omitempty"`
	Description       string               `bson:"description,omitempty" json:"description,omitempty"`
	ItemizedSummary   string               `bson:"itemizedSummary" json:"itemizedSummary"`
	HighlightsSummary []llm.Highlight      `bson:"highlightsSummary,omitempty" json:"-"`
	OriginalFileName  string               `bson:"originalFileName" json:"originalFileName"`
	VirtualFileName   string               `bson:"virtualFileName,omitempty" json:"virtualFileName,omitempty"`
	CreatedBy         database.Ref         `bson:"createdBy" json:"createdBy"`
	CreatedOn         time.Time            `bson:"createdOn" json:"createdOn"`
	Root              string               `bson:"root" json:"root"`
	Type              domain.DocumentType  `bson:"type" json:"type"`
	Size              int64                `bson:"size,omitempty" json:"size,omitempty"`
	Embeddings        bool                 `bson:"embeddings" json:"-"`
	VectorCount       int                  `bson:"vectorCount,omitempty" json:"-"`
	UsersWithAccess   []primitive.ObjectID `bson:"usersWithAccess" json:"usersWithAccess"`
	Owner             string               `bson:"owner,omitempty" json:"owner,omitempty"`
}

// IsFolder reports whether d is a folder record.
func (d *Document) IsFolder() bool {
	return d.Type == domain.DocumentFolder
}

// OwnerHex returns the creator's id.
func (d *Document) OwnerHex() string {
	return d.CreatedBy.ID.Hex()
}

// CanRead reports whether userID owns d or d was shared with them.
func (d *Document) CanRead(userID primitive.ObjectID) bool {
	if d.CreatedBy.ID == userID {
		return true
	}
	for _, id := range d.UsersWithAccess {
		if id == userID {
			return true
		}
	}
	return false
}

// StorageKey is where the file bytes live. Files are stored flat per owner, folders exist only
// as records, so moving or renaming never touches storage.
func (d *Document) StorageKey() string {
	return path.Join(d.OwnerHex(), d.VirtualFileName)
}

// Extension of the stored file without the dot.
func (d *Document) Extension() string {
	ext := path.Ext(d.VirtualFileName)
	return strings.TrimPrefix(ext, ".")
}

// UserRoot is the root of a user's top level folder.
func UserRoot(userID string) string {
	return "/" + userID + "/"
}

// RootFor maps a client path ("/", "/Folder", "/Folder/Sub") to the stored root.
func RootFor(userID, clientPath string) string {
	p := strings.Trim(strings.TrimSpace(clientPath), "/")
	return UserRoot(userID) + p
}

// ContentRoot is the root shared by everything inside folder f.
func ContentRoot(f *Document) string {
	if f.Root == UserRoot(f.OwnerHex()) {
		return f.Root + f.OriginalFileName
	}
	return f.Root + "/" + f.OriginalFileName
}

// uniqueName suffixes "(n)" before the extension until name is not taken.
func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := base + "(" + strconv.Itoa(i) + ")" + ext
		if !taken[candidate] {
			return candidate
		}
	}
}

// Listing is the display-documents response.
type Listing struct {
	Uploaded []*Document `json:"uploaded"`
	Shared   []*Document `json:"shared"`
}

// CreateFolderRequest is the body of POST /my-documents/create-folder.
type CreateFolderRequest struct {
	Path       string `json:"path"`
	FolderName string `json:"folderName" binding:"required"`
}

// MoveRequest moves files into a folder. An empty or "/" folderId targets the user's root.
type MoveRequest struct {
	FileIDs  []string `json:"fileIds" binding:"required,min=1"`
	FolderID string   `json:"folderId"`
}

// RenameRequest is the body of PUT /my-documents/rename/:id.
type RenameRequest struct {
	RenameValue string `json:"renameValue" binding:"required"`
}

// Share types.
const (
	ShareInternal = "internal"
	ShareEmail    = "email"
)

// ShareRequest shares documents with other users or by mail.
type ShareRequest struct {
	DocumentIDs     []string `json:"documentIds" binding:"required,min=1"`
	ShareType       string   `json:"shareType"`
	UsersWithAccess []string `json:"usersWithAccess"`
	EmailIDs        []string `json:"emailIds"`
	Subject         string   `json:"subject"`
	Message         string   `json:"message"`
}

// ItemizedRequest is the body of POST /my-documents/summary/itemized.
type ItemizedRequest struct {
	DocumentIDs []string `json:"documentIds" binding:"required,min=1"`
}

// HighlightsRequest is the body of POST /my-documents/summary/highlights.
type HighlightsRequest struct {
	FileIDs []string `json:"fileIds" binding:"required,min=1"`
}

// UploadStatus is the payload of upload progress events.
type UploadStatus struct {
	UploadID string `json:"uploadId"`
	Progress int    `json:"progress"`
}

// Summary kinds.
const (
	SummaryItemized   = "itemized"
	SummaryHighlights = "highlights"
)

type embedPayload struct {
	DocumentID string `json:"documentId"`
}

type summaryPayload struct {
	Kind          string   `json:"kind"`
	DocumentIDs   []string `json:"documentIds"`
	SentenceCount int      `json:"sentenceCount,omitempty"`
}

// SummaryItem is emitted once per summarised document.
type SummaryItem struct {
	DocumentID      string          `json:"documentId"`
	SequenceNumber  int             `json:"sequenceNumber"`
	Title           string          `json:"title"`
	CreatedOn       time.Time       `json:"createdOn"`
	ItemizedSummary string          `json:"itemizedSummary,omitempty"`
	Highlights      []llm.Highlight `json:"highlights,omitempty"`
}
