// File: internal/documents/service.go
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/filestorage"
	"texplicit_backend/internal/llm"
	"texplicit_backend/internal/mail"
	"texplicit_backend/internal/platform/database"
	"texplicit_backend/internal/realtime"
	"texplicit_backend/internal/shared"
	"texplicit_backend/internal/subscription"
	"texplicit_backend/internal/tasks"
	"texplicit_backend/internal/vectorstore"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxDescriptionLength = 1 << 20
	summaryInputLength   = 12000
)

var (
	ErrDuplicateFolder   = common.NewAPIError(http.StatusBadRequest, "DUPLICATE_FOLDER", common.MsgDuplicateFolder)
	ErrInvalidFileType   = common.NewAPIError(http.StatusBadRequest, "INVALID_FILE_TYPE", common.MsgInvalidDocumentType)
	ErrDocumentNotFound  = common.ErrNotFound.WithMessage(common.MsgNotFoundDocument)
	ErrMoveFailed        = common.ErrBadRequest.WithMessage(common.MsgErrorDocumentsMove)
	ErrShareFailed       = common.ErrBadRequest.WithMessage(common.MsgErrorDocumentShare)
	ErrInvalidFolderName = common.ErrBadRequest.WithMessage("Folder and file names may not contain '/'")
)

// Indexer writes and removes the vectors of a document.
type Indexer interface {
	IndexDocument(ctx context.Context, ownerID, documentID, source, text string) (int, error)
	DeleteDocument(ctx context.Context, ownerID, documentID string, count int) error
}

// Service manages the document tree of each user: folders, uploads, sharing and summaries.
type Service struct {
	repo    Repository
	store   filestorage.Store
	indexer Indexer
	subs    *subscription.Service
	queue   tasks.Queue
	model   llm.Client
	mailer  mail.Mailer
	events  realtime.Publisher
	cfg     *config.Config
	logger  *zap.Logger
	now     func() time.Time

	// nameMu serialises unique name allocation within a root.
	nameMu sync.Mutex
}

func NewService(
	repo Repository,
	store filestorage.Store,
	indexer Indexer,
	subs *subscription.Service,
	queue tasks.Queue,
	model llm.Client,
	mailer mail.Mailer,
	events realtime.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:    repo,
		store:   store,
		indexer: indexer,
		subs:    subs,
		queue:   queue,
		model:   model,
		mailer:  mailer,
		events:  events,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterTasks binds the embedding and summary handlers.
func (s *Service) RegisterTasks(r *tasks.Registry) {
	r.Register(tasks.TypeDocumentsEmbed, s.handleEmbed)
	r.Register(tasks.TypeDocumentsSummary, s.handleSummary)
}

func (s *Service) owned(ctx context.Context, userID, id string) (*Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerHex() != userID {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *Service) namesIn(ctx context.Context, root string, except primitive.ObjectID) (map[string]bool, error) {
	siblings, err := s.repo.FindByRoot(ctx, root)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(siblings))
	for _, d := range siblings {
		if d.ID != except {
			taken[d.OriginalFileName] = true
		}
	}
	return taken, nil
}

// targetRoot resolves a folder id to the root of its contents; "" and "/" mean the user's root.
func (s *Service) targetRoot(ctx context.Context, userID, folderID string) (string, error) {
	if folderID == "" || folderID == "/" {
		return UserRoot(userID), nil
	}
	folder, err := s.owned(ctx, userID, folderID)
	if err != nil {
		return "", err
	}
	if !folder.IsFolder() {
		return "", ErrDocumentNotFound
	}
	return ContentRoot(folder), nil
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", common.ErrMissingParameters
	}
	if strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidFolderName
	}
	return name, nil
}

// CreateFolder adds a folder under the client path ("/" for the top level) and returns its id.
func (s *Service) CreateFolder(ctx context.Context, userID, clientPath, name string) (string, error) {
	name, err := validName(name)
	if err != nil {
		return "", err
	}
	owner, ok := database.ParseObjectID(userID)
	if !ok {
		return "", common.ErrUnauthorized
	}
	root := RootFor(userID, clientPath)

	s.nameMu.Lock()
	defer s.nameMu.Unlock()
	siblings, err := s.repo.FindByRoot(ctx, root)
	if err != nil {
		return "", err
	}
	for _, d := range siblings {
		if d.IsFolder() && d.OriginalFileName == name {
			return "", ErrDuplicateFolder
		}
	}

	folder := &Document{
		OriginalFileName: name,
		CreatedBy:        database.UserRef(owner),
		CreatedOn:        s.now().UTC(),
		Type:             domain.DocumentFolder,
		Root:             root,
	}
	if err := s.repo.Create(ctx, folder); err != nil {
		return "", err
	}
	s.logger.Info("Folder created", zap.String("userID", userID), zap.String("root", root), zap.String("folder", name))
	return folder.ID.Hex(), nil
}

// DeleteFolder removes a folder and everything below it, files and vectors included.
func (s *Service) DeleteFolder(ctx context.Context, userID, id string) error {
	folder, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if !folder.IsFolder() {
		return ErrDocumentNotFound
	}
	contents, err := s.repo.FindUnder(ctx, userID, ContentRoot(folder))
	if err != nil {
		return err
	}
	ids := []primitive.ObjectID{folder.ID}
	for _, d := range contents {
		if !d.IsFolder() {
			s.removeFile(ctx, d)
		}
		ids = append(ids, d.ID)
	}
	n, err := s.repo.Delete(ctx, ids)
	if err != nil {
		return err
	}
	s.logger.Info("Folder deleted", zap.String("userID", userID), zap.String("folderID", id), zap.Int64("records", n))
	return nil
}

// FolderContents lists the direct children of a folder.
func (s *Service) FolderContents(ctx context.Context, userID, id string) ([]*Document, error) {
	folder, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !folder.IsFolder() {
		return nil, ErrDocumentNotFound
	}
	return s.repo.FindByRoot(ctx, ContentRoot(folder))
}

func (s *Service) Folders(ctx context.Context, userID string) ([]*Document, error) {
	return s.repo.ListFolders(ctx, userID)
}

func (s *Service) uploadStatus(ctx context.Context, userID, uploadID, message string, progress int) {
	s.events.Publish(ctx, userID, realtime.OK(realtime.UploadStatusEvent(userID), message, UploadStatus{UploadID: uploadID, Progress: progress}))
}

// Upload stores the files under the client path, skipping unsupported types, and queues their
// embedding. It returns the number of files stored.
func (s *Service) Upload(ctx context.Context, u *shared.User, files []*multipart.FileHeader, clientPath, uploadID string) (int, error) {
	if len(files) == 0 {
		return 0, common.ErrMissingParameters.WithMessage(common.MsgMissingRequiredParameter + "files")
	}
	if !s.subs.CheckDuration(ctx, u) {
		return 0, common.ErrInvalidSubscription.WithMessage(common.MsgSubscriptionExpired)
	}
	var total int64
	for _, fh := range files {
		total += fh.Size
	}
	if !s.subs.CheckDocument(ctx, u, total) {
		return 0, common.ErrInvalidSubscription
	}

	userID := u.HexID()
	root := RootFor(userID, clientPath)
	s.uploadStatus(ctx, userID, uploadID, fmt.Sprintf("Uploading %d document(s)...", len(files)), 20)

	var (
		mu       sync.Mutex
		uploaded []*Document
		g        errgroup.Group
	)
	g.SetLimit(max(s.cfg.UploadConcurrency, 1))
	for _, fh := range files {
		fh := fh
		g.Go(func() error {
			doc, err := s.uploadOne(ctx, u, fh, root, uploadID)
			if err != nil {
				s.logger.Error("Document upload failed", zap.String("userID", userID), zap.String("file", fh.Filename), zap.Error(err))
				s.events.Publish(ctx, userID, realtime.Failed(realtime.ErrorEvent(userID), fmt.Sprintf(common.MsgUploadFailed, fh.Filename), http.StatusInternalServerError))
				s.uploadStatus(ctx, userID, uploadID, fmt.Sprintf(common.MsgUploadFailed, fh.Filename), 20)
				return nil
			}
			if doc != nil {
				mu.Lock()
				uploaded = append(uploaded, doc)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	s.uploadStatus(ctx, userID, uploadID, "Saved documents to database...", 50)

	var stored int64
	for _, doc := range uploaded {
		stored += doc.Size
		s.queueEmbedding(ctx, userID, doc)
	}
	s.subs.RecordDocument(ctx, userID, stored)
	s.uploadStatus(ctx, userID, uploadID, "Parsing documents and getting them ready for chat...", 70)

	if len(uploaded) > 0 {
		msg := fmt.Sprintf("Successfully uploaded %d documents!", len(uploaded))
		s.events.Publish(ctx, userID, realtime.OK(realtime.SuccessEvent(userID), msg, nil))
		s.uploadStatus(ctx, userID, uploadID, msg, 100)
	}
	s.logger.Info("Documents uploaded", zap.String("userID", userID), zap.Int("files", len(files)), zap.Int("stored", len(uploaded)))
	return len(uploaded), nil
}

func (s *Service) uploadOne(ctx context.Context, u *shared.User, fh *multipart.FileHeader, root, uploadID string) (*Document, error) {
	name := path.Base(filepath.ToSlash(fh.Filename))
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if !AllowedExtensions[ext] {
		userID := u.HexID()
		msg := fmt.Sprintf(common.MsgUploadSkipped, name)
		s.events.Publish(ctx, userID, realtime.Failed(realtime.InfoEvent(userID), msg, http.StatusBadRequest))
		s.uploadStatus(ctx, userID, uploadID, msg, 20)
		return nil, nil
	}
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return s.saveFile(ctx, u.ID, name, ext, data, root)
}

// saveFile writes the bytes to storage and records the file under root with a unique name.
func (s *Service) saveFile(ctx context.Context, owner primitive.ObjectID, name, ext string, data []byte, root string) (*Document, error) {
	doc := &Document{
		ID:              primitive.NewObjectID(),
		Title:           Title(ext, data, name),
		Description:     llm.Truncate(ExtractText(ext, data), maxDescriptionLength),
		CreatedBy:       database.UserRef(owner),
		CreatedOn:       s.now().UTC(),
		Root:            root,
		Type:            domain.DocumentFile,
		Size:            int64(len(data)),
		UsersWithAccess: []primitive.ObjectID{},
	}
	doc.VirtualFileName = doc.ID.Hex() + "." + ext

	if _, err := s.store.Save(ctx, doc.StorageKey(), bytes.NewReader(data)); err != nil {
		return nil, err
	}

	s.nameMu.Lock()
	defer s.nameMu.Unlock()
	taken, err := s.namesIn(ctx, root, primitive.NilObjectID)
	if err == nil {
		doc.OriginalFileName = uniqueName(name, taken)
		err = s.repo.Create(ctx, doc)
	}
	if err != nil {
		if delErr := s.store.Delete(ctx, doc.StorageKey()); delErr != nil {
			s.logger.Warn("Failed to remove orphaned file", zap.String("key", doc.StorageKey()), zap.Error(delErr))
		}
		return nil, err
	}
	return doc, nil
}

func (s *Service) queueEmbedding(ctx context.Context, userID string, doc *Document) {
	if _, err := s.queue.Enqueue(ctx, tasks.TypeDocumentsEmbed, userID, embedPayload{DocumentID: doc.ID.Hex()}); err != nil {
		s.logger.Error("Failed to queue document embedding", zap.String("documentID", doc.ID.Hex()), zap.Error(err))
	}
}

// SaveText stores text as a Word document named "<title>.docx" in the given folder ("" for the
// top level) and queues its embedding.
func (s *Service) SaveText(ctx context.Context, u *shared.User, title, text, folderID string) (*Document, error) {
	title = strings.TrimSpace(strings.NewReplacer("/", "-", `\`, "-").Replace(title))
	if title == "" || strings.TrimSpace(text) == "" {
		return nil, common.ErrMissingParameters
	}
	userID := u.HexID()
	root, err := s.targetRoot(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}
	data, err := BuildDocx(title, text)
	if err != nil {
		return nil, fmt.Errorf("build docx: %w", err)
	}
	if !s.subs.CheckDuration(ctx, u) || !s.subs.CheckDocument(ctx, u, int64(len(data))) {
		return nil, common.ErrInvalidSubscription
	}
	doc, err := s.saveFile(ctx, u.ID, title+".docx", "docx", data, root)
	if err != nil {
		return nil, err
	}
	s.subs.RecordDocument(ctx, userID, doc.Size)
	s.queueEmbedding(ctx, userID, doc)
	return doc, nil
}

// List returns one page of the user's files at the client root and of the files shared with them.
func (s *Service) List(ctx context.Context, userID, clientRoot string, limit, offset int64) (*Listing, error) {
	uploaded, err := s.repo.ListOwned(ctx, userID, RootFor(userID, clientRoot), limit, offset)
	if err != nil {
		return nil, err
	}
	sharedDocs, err := s.repo.ListShared(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &Listing{Uploaded: uploaded, Shared: sharedDocs}, nil
}

// Get returns a document the user owns or that was shared with them.
func (s *Service) Get(ctx context.Context, userID, id string) (*Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	uid, _ := database.ParseObjectID(userID)
	if !doc.CanRead(uid) {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Move puts the user's files into the folder, renaming on collisions. Folders are not moved.
func (s *Service) Move(ctx context.Context, userID string, req MoveRequest) (int, error) {
	root, err := s.targetRoot(ctx, userID, req.FolderID)
	if err != nil {
		return 0, err
	}
	s.nameMu.Lock()
	defer s.nameMu.Unlock()
	taken, err := s.namesIn(ctx, root, primitive.NilObjectID)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, id := range req.FileIDs {
		doc, err := s.owned(ctx, userID, id)
		if err != nil || doc.IsFolder() {
			s.logger.Warn("Skipping move", zap.String("userID", userID), zap.String("documentID", id))
			continue
		}
		if doc.Root == root {
			moved++
			continue
		}
		name := uniqueName(doc.OriginalFileName, taken)
		if err := s.repo.Update(ctx, doc.ID, bson.M{"root": root, "originalFileName": name}); err != nil {
			return moved, err
		}
		taken[name] = true
		moved++
	}
	if moved == 0 {
		return 0, ErrMoveFailed
	}
	return moved, nil
}

func (s *Service) removeFile(ctx context.Context, doc *Document) {
	if err := s.store.Delete(ctx, doc.StorageKey()); err != nil && !errors.Is(err, filestorage.ErrNotExist) {
		s.logger.Warn("Failed to delete stored file", zap.String("key", doc.StorageKey()), zap.Error(err))
	}
	if doc.VectorCount > 0 {
		if err := s.indexer.DeleteDocument(ctx, doc.OwnerHex(), doc.ID.Hex(), doc.VectorCount); err != nil {
			s.logger.Warn("Failed to delete document vectors", zap.String("documentID", doc.ID.Hex()), zap.Error(err))
		}
	}
}

// Delete removes one of the user's files, or a folder with its contents.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	doc, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if doc.IsFolder() {
		return s.DeleteFolder(ctx, userID, id)
	}
	s.removeFile(ctx, doc)
	_, err = s.repo.Delete(ctx, []primitive.ObjectID{doc.ID})
	return err
}

// DeleteMany removes the listed files the user owns and returns how many were deleted.
func (s *Service) DeleteMany(ctx context.Context, userID string, ids []string) (int64, error) {
	docs, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	var remove []primitive.ObjectID
	for _, d := range docs {
		if d.OwnerHex() != userID || d.IsFolder() {
			continue
		}
		s.removeFile(ctx, d)
		remove = append(remove, d.ID)
	}
	if len(remove) == 0 {
		return 0, ErrDocumentNotFound
	}
	return s.repo.Delete(ctx, remove)
}

// Rename changes a file's display name, keeping its extension, or a folder's name together with
// the roots of everything inside it.
func (s *Service) Rename(ctx context.Context, userID, id, value string) (string, error) {
	value, err := validName(value)
	if err != nil {
		return "", err
	}
	doc, err := s.owned(ctx, userID, id)
	if err != nil {
		return "", err
	}

	s.nameMu.Lock()
	defer s.nameMu.Unlock()
	taken, err := s.namesIn(ctx, doc.Root, doc.ID)
	if err != nil {
		return "", err
	}

	if !doc.IsFolder() {
		ext := doc.Extension()
		name := uniqueName(strings.TrimSuffix(value, "."+ext)+"."+ext, taken)
		return name, s.repo.Update(ctx, doc.ID, bson.M{"originalFileName": name})
	}

	if taken[value] {
		return "", ErrDuplicateFolder
	}
	oldRoot := ContentRoot(doc)
	renamed := *doc
	renamed.OriginalFileName = value
	newRoot := ContentRoot(&renamed)

	children, err := s.repo.FindUnder(ctx, userID, oldRoot)
	if err != nil {
		return "", err
	}
	for _, c := range children {
		if err := s.repo.Update(ctx, c.ID, bson.M{"root": newRoot + strings.TrimPrefix(c.Root, oldRoot)}); err != nil {
			return "", err
		}
	}
	return value, s.repo.Update(ctx, doc.ID, bson.M{"originalFileName": value})
}

// Share grants other users access to documents, or mails them as attachments.
func (s *Service) Share(ctx context.Context, u *shared.User, req ShareRequest) (int64, error) {
	switch req.ShareType {
	case "", ShareInternal:
		if len(req.UsersWithAccess) == 0 {
			return 0, common.ErrMissingParameters.WithMessage(common.MsgMissingRequiredParameter + "usersWithAccess")
		}
		n, err := s.repo.ShareWith(ctx, u.HexID(), req.DocumentIDs, req.UsersWithAccess)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrShareFailed
		}
		return n, nil
	case ShareEmail:
		return s.shareByMail(ctx, u, req)
	default:
		return 0, common.ErrBadRequest.WithMessage("Unknown share type: " + req.ShareType)
	}
}

func (s *Service) shareByMail(ctx context.Context, u *shared.User, req ShareRequest) (int64, error) {
	if len(req.EmailIDs) == 0 {
		return 0, common.ErrMissingParameters.WithMessage(common.MsgMissingRequiredParameter + "emailIds")
	}
	docs, err := s.repo.FindByIDs(ctx, req.DocumentIDs)
	if err != nil {
		return 0, err
	}
	var attachments []mail.Attachment
	for _, d := range docs {
		if d.IsFolder() || !d.CanRead(u.ID) {
			continue
		}
		content, err := s.readAll(ctx, d)
		if err != nil {
			s.logger.Warn("Skipping unreadable document", zap.String("documentID", d.ID.Hex()), zap.Error(err))
			continue
		}
		attachments = append(attachments, mail.Attachment{Name: d.OriginalFileName, Content: content})
	}
	if len(attachments) == 0 {
		return 0, ErrShareFailed
	}

	to := make([]mail.Recipient, 0, len(req.EmailIDs))
	for _, e := range req.EmailIDs {
		to = append(to, mail.Recipient{Email: e})
	}
	msg, err := mail.DocumentShare(u.Name, to, attachments)
	if err != nil {
		return 0, err
	}
	if req.Subject != "" {
		msg.Subject = req.Subject
	}
	if req.Message != "" {
		msg.HTML = "<p>" + html.EscapeString(req.Message) + "</p>"
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("Failed to mail documents", zap.String("userID", u.HexID()), zap.Error(err))
		return 0, ErrShareFailed
	}
	return int64(len(attachments)), nil
}

func (s *Service) readAll(ctx context.Context, d *Document) ([]byte, error) {
	rc, err := s.store.Open(ctx, d.StorageKey())
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Open streams a file by its virtual name to its owner or a user it was shared with.
func (s *Service) Open(ctx context.Context, userID, virtualName string) (io.ReadCloser, *Document, error) {
	doc, err := s.repo.FindByVirtualName(ctx, virtualName)
	if err != nil {
		return nil, nil, err
	}
	uid, _ := database.ParseObjectID(userID)
	if !doc.CanRead(uid) {
		return nil, nil, ErrDocumentNotFound
	}
	rc, err := s.store.Open(ctx, doc.StorageKey())
	if err != nil {
		if errors.Is(err, filestorage.ErrNotExist) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, err
	}
	return rc, doc, nil
}

// QueueSummary schedules itemized or highlights summaries of the documents.
func (s *Service) QueueSummary(ctx context.Context, userID, kind string, ids []string, sentences int) error {
	if len(ids) == 0 {
		return common.ErrMissingParameters
	}
	if sentences <= 0 {
		sentences = s.cfg.SummaryDefaultNumSentences
	}
	payload := summaryPayload{Kind: kind, DocumentIDs: ids, SentenceCount: sentences}
	if _, err := s.queue.Enqueue(ctx, tasks.TypeDocumentsSummary, userID, payload); err != nil {
		s.logger.Error("Failed to queue summary", zap.String("userID", userID), zap.Error(err))
		return common.ErrServiceUnavailable
	}
	return nil
}

func (s *Service) handleEmbed(ctx context.Context, task tasks.Task) error {
	var p embedPayload
	if err := task.Decode(&p); err != nil {
		return err
	}
	doc, err := s.repo.FindByID(ctx, p.DocumentID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	}
	n, err := s.indexer.IndexDocument(ctx, doc.OwnerHex(), doc.ID.Hex(), doc.OriginalFileName, doc.Description)
	if err != nil {
		if errors.Is(err, vectorstore.ErrNoText) {
			s.logger.Info("Document has no text to embed", zap.String("documentID", p.DocumentID))
			return nil
		}
		return err
	}
	return s.repo.Update(ctx, doc.ID, bson.M{"embeddings": true, "vectorCount": n})
}

func (s *Service) handleSummary(ctx context.Context, task tasks.Task) error {
	var p summaryPayload
	if err := task.Decode(&p); err != nil {
		return err
	}
	userID := task.UserID
	uid, _ := database.ParseObjectID(userID)
	docs, err := s.repo.FindByIDs(ctx, p.DocumentIDs)
	if err != nil {
		return err
	}
	byID := make(map[string]*Document, len(docs))
	for _, d := range docs {
		byID[d.ID.Hex()] = d
	}

	event := realtime.SummaryEvent(userID)
	for i, id := range p.DocumentIDs {
		doc, ok := byID[id]
		if !ok || doc.IsFolder() || !doc.CanRead(uid) {
			s.events.Publish(ctx, userID, realtime.Failed(event, common.MsgNotFoundDocument, http.StatusNotFound))
			continue
		}
		item := SummaryItem{DocumentID: id, SequenceNumber: i + 1, Title: doc.Title, CreatedOn: doc.CreatedOn}
		var err error
		switch p.Kind {
		case SummaryHighlights:
			item.Highlights, err = s.highlights(ctx, doc)
		default:
			item.ItemizedSummary, err = s.itemized(ctx, doc, p.SentenceCount)
		}
		if err != nil {
			s.logger.Error("Summary failed", zap.String("documentID", id), zap.String("kind", p.Kind), zap.Error(err))
			s.events.Publish(ctx, userID, realtime.Failed(event, common.MsgErrorSummary, http.StatusInternalServerError))
			continue
		}
		s.events.Publish(ctx, userID, realtime.OK(event, common.MsgOKSummaryGenerated, item))
	}
	return nil
}

func (s *Service) summaryRequest(prompt string) llm.Request {
	return llm.Request{
		Model:       s.cfg.FastLLMModel,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   s.cfg.SummaryTokenLimit,
		Temperature: s.cfg.Temperature,
	}
}

func (s *Service) itemized(ctx context.Context, doc *Document, sentences int) (string, error) {
	if doc.ItemizedSummary != "" {
		return doc.ItemizedSummary, nil
	}
	if strings.TrimSpace(doc.Description) == "" {
		return "", vectorstore.ErrNoText
	}
	prompt := llm.ItemizedSummaryPrompt(llm.Truncate(doc.Description, summaryInputLength), sentences)
	summary, err := s.model.Complete(ctx, s.summaryRequest(prompt))
	if err != nil {
		return "", err
	}
	if err := s.repo.Update(ctx, doc.ID, bson.M{"itemizedSummary": summary}); err != nil {
		s.logger.Warn("Failed to store itemized summary", zap.String("documentID", doc.ID.Hex()), zap.Error(err))
	}
	return summary, nil
}

func (s *Service) highlights(ctx context.Context, doc *Document) ([]llm.Highlight, error) {
	if len(doc.HighlightsSummary) > 0 {
		return doc.HighlightsSummary, nil
	}
	if strings.TrimSpace(doc.Description) == "" {
		return nil, vectorstore.ErrNoText
	}
	raw, err := s.model.Complete(ctx, s.summaryRequest(llm.HighlightsPrompt(llm.Truncate(doc.Description, summaryInputLength))))
	if err != nil {
		return nil, err
	}
	var out []llm.Highlight
	if err := llm.DecodeJSON(raw, &out); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, doc.ID, bson.M{"highlightsSummary": out}); err != nil {
		s.logger.Warn("Failed to store highlights", zap.String("documentID", doc.ID.Hex()), zap.Error(err))
	}
	return out, nil
}
