package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/llm"
	"texplicit_backend/internal/realtime"
	"texplicit_backend/internal/shared"
	"texplicit_backend/internal/subscription"
	"texplicit_backend/internal/tasks"
	"texplicit_backend/internal/vectorstore"

	"go.uber.org/zap"
)

const (
	historyWindow  = 10
	documentTopK   = 4
	defaultTimeout = 60 * time.Second
)

// Retriever finds the chunks of a user's documents relevant to a question.
type Retriever interface {
	Search(ctx context.Context, ownerID, query string, topK int) ([]vectorstore.Match, error)
}

// Service answers chat prompts in the background and keeps the history.
type Service struct {
	repo      Repository
	users     shared.UserLookup
	subs      *subscription.Service
	queue     tasks.Queue
	model     llm.Client
	retriever Retriever
	events    realtime.Publisher
	cfg       *config.Config
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

func NewService(
	repo Repository,
	users shared.UserLookup,
	subs *subscription.Service,
	queue tasks.Queue,
	model llm.Client,
	retriever Retriever,
	events realtime.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		subs:      subs,
		queue:     queue,
		model:     model,
		retriever: retriever,
		events:    events,
		cfg:       cfg,
		logger:    logger,
		timeout:   defaultTimeout,
		now:       time.Now,
	}
}

// RegisterTasks binds the reply handler to the task registry.
func (s *Service) RegisterTasks(r *tasks.Registry) {
	r.Register(tasks.TypeChatReply, s.handleReply)
}

// Ask checks the chat allowance and queues the reply.
func (s *Service) Ask(ctx context.Context, u *shared.User, params Params) error {
	prompt := strings.TrimSpace(params.Prompt)
	if prompt == "" {
		return common.ErrMissingParameters.WithMessage(common.MsgMissingRequiredParameter + "prompt")
	}
	if !s.subs.CheckDuration(ctx, u) || !s.subs.CheckChat(ctx, u) {
		return common.ErrInvalidSubscription
	}
	id, err := s.queue.Enqueue(ctx, tasks.TypeChatReply, u.HexID(), replyPayload{Prompt: prompt, ChatType: params.ChatType})
	if err != nil {
		s.logger.Error("Failed to queue chat reply", zap.String("userID", u.HexID()), zap.Error(err))
		return common.ErrServiceUnavailable
	}
	s.logger.Debug("Chat reply queued", zap.String("userID", u.HexID()), zap.String("taskID", id))
	return nil
}

// History returns a page of the history counted from its end, oldest first.
func (s *Service) History(ctx context.Context, userID string, limit, offset int64) ([]Entry, error) {
	all, err := s.repo.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pageFromEnd(all, limit, offset), nil
}

func pageFromEnd(all []Entry, limit, offset int64) []Entry {
	n := int64(len(all))
	end := n - offset
	if end <= 0 {
		return []Entry{}
	}
	start := end - limit
	if start < 0 || limit <= 0 {
		start = 0
	}
	return all[start:end]
}

// Clear deletes the user's chat history.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.repo.Clear(ctx, userID)
}

func (s *Service) handleReply(ctx context.Context, task tasks.Task) error {
	var p replyPayload
	if err := task.Decode(&p); err != nil {
		return err
	}
	logger := s.logger.With(zap.String("userID", task.UserID), zap.String("taskID", task.ID))

	history, err := s.repo.History(ctx, task.UserID)
	if err != nil {
		logger.Warn("Chat history unavailable", zap.Error(err))
		history = nil
	}
	asked := s.now()

	replyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	answer, sources, err := s.answer(replyCtx, task.UserID, p, recent(history, historyWindow))
	cancel()
	produced := err == nil && strings.TrimSpace(answer) != ""
	if !produced {
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Chat reply failed", zap.Error(err))
		}
		answer, sources = common.MsgChatDefaultResponse, nil
	}

	question := newEntry(RoleUser, p.Prompt, nil, p.ChatType, asked)
	reply := newEntry(RoleSystem, answer, sources, p.ChatType, s.now())
	if err := s.repo.Append(ctx, task.UserID, question, reply); err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	if produced {
		s.subs.RecordChat(ctx, task.UserID)
	}

	s.events.Publish(ctx, task.UserID, realtime.OK(realtime.ChatEvent(task.UserID), common.MsgOKChatRetrieval, []Reply{{
		Prompt:    p.Prompt,
		Response:  reply.Content,
		Sources:   reply.Sources,
		Timestamp: reply.Timestamp,
		ChatType:  p.ChatType,
	}}))
	return nil
}

func (s *Service) answer(ctx context.Context, userID string, p replyPayload, history []Entry) (string, []string, error) {
	if domain.ChatType(p.ChatType) == domain.ChatTypeDocument {
		return s.answerFromDocuments(ctx, userID, p.Prompt, history)
	}
	msgs := append([]llm.Message{{Role: llm.RoleSystem, Content: llm.ChatSystemPrompt}}, toMessages(history)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: p.Prompt})
	answer, err := s.model.Stream(ctx, s.request(msgs), func(delta string) {
		s.events.Publish(ctx, userID, realtime.OK(realtime.ChatEvent(userID), "", Chunk{Delta: delta}))
	})
	return answer, nil, err
}

func (s *Service) answerFromDocuments(ctx context.Context, userID, prompt string, history []Entry) (string, []string, error) {
	question := prompt
	if len(history) > 0 {
		msgs := append([]llm.Message{{Role: llm.RoleSystem, Content: llm.ContextualizePrompt}}, toMessages(history)...)
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: prompt})
		if standalone, err := s.model.Complete(ctx, s.request(msgs)); err == nil && standalone != "" {
			question = standalone
		}
	}
	matches, err := s.retriever.Search(ctx, userID, question, documentTopK)
	if err != nil {
		return "", nil, err
	}
	var (
		contextText []string
		sources     []string
		seen        = map[string]bool{}
	)
	for _, m := range matches {
		contextText = append(contextText, m.Text)
		if m.Source != "" && !seen[m.Source] {
			seen[m.Source] = true
			sources = append(sources, m.Source)
		}
	}
	answer, err := s.model.Complete(ctx, s.request([]llm.Message{
		{Role: llm.RoleUser, Content: llm.DocumentQAPrompt(strings.Join(contextText, "\n\n"), question)},
	}))
	if err != nil {
		return "", nil, err
	}
	return answer, sources, nil
}

func (s *Service) request(msgs []llm.Message) llm.Request {
	return llm.Request{Model: s.cfg.FastLLMModel, Messages: msgs, MaxTokens: s.cfg.FastTokenLimit, Temperature: s.cfg.Temperature}
}

func recent(history []Entry, n int) []Entry {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func toMessages(history []Entry) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, e := range history {
		role := llm.RoleAssistant
		if e.Role == RoleUser {
			role = llm.RoleUser
		}
		out = append(out, llm.Message{Role: role, Content: e.Content})
	}
	return out
}
