package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/metrics"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/models"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/store"
	apperrors "github.com/Xavierrodgriues/vacancyamerica-backend/pkg/errors"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
)

// The denial message is identical for "not friends" and "blocked" so the
// response does not reveal which one applies.
const msgNotEligible = "you can only message friends who have not blocked you"

const typingThrottle = 3 * time.Second

type ConversationRepository interface {
	FindByPair(ctx context.Context, a, b string) (*models.Conversation, error)
	FindByID(ctx context.Context, id string) (*models.Conversation, error)
	Create(ctx context.Context, a, b string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID string, page, pageSize int) ([]models.Conversation, error)
	ListIDsForUser(ctx context.Context, userID string) ([]string, error)
	TouchLastMessage(ctx context.Context, conversationID, sealedBody, senderID string, at time.Time) error
}

type MessageRepository interface {
	Append(ctx context.Context, conversationID, senderID string, senderKind models.SenderKind, body string, kind models.MessageKind) (*models.DirectMessage, error)
	Page(ctx context.Context, conversationID, beforeID string, limit int) ([]models.DirectMessage, bool, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
	UnreadCounts(ctx context.Context, conversationIDs []string, userID string) (map[string]int64, error)
}

// Cipher seals bodies before they are stored and opens them on the way out.
// Both calls always return usable text; a non-nil error reports degradation.
type Cipher interface {
	Seal(plaintext string) (string, error)
	Open(wire string) (string, error)
}

type MessageView struct {
	ID             string             `json:"id"`
	ConversationID string             `json:"conversationId"`
	Sender         models.UserSummary `json:"sender"`
	Text           string             `json:"text"`
	Kind           models.MessageKind `json:"kind"`
	ReadBy         []string           `json:"readBy"`
	CreatedAt      time.Time          `json:"createdAt"`
}

type LastMessageView struct {
	Text      string    `json:"text"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

type ConversationView struct {
	ID           string               `json:"id"`
	Participants []models.UserSummary `json:"participants"`
	Peer         models.UserSummary   `json:"peer"`
	LastMessage  *LastMessageView     `json:"lastMessage"`
	UnreadCount  int64                `json:"unreadCount"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

type HistoryPage struct {
	Messages   []MessageView `json:"messages"`
	HasMore    bool          `json:"hasMore"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

type ChatService struct {
	conversations ConversationRepository
	messages      MessageRepository
	cipher        Cipher
	gate          RelationshipGate
	directory     SenderDirectory
	publisher     Publisher

	now        func() time.Time
	typingMu   sync.Mutex
	lastTyping map[string]time.Time
}

func NewChatService(
	conversations ConversationRepository,
	messages MessageRepository,
	cipher Cipher,
	gate RelationshipGate,
	directory SenderDirectory,
	publisher Publisher,
) *ChatService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		cipher:        cipher,
		gate:          gate,
		directory:     directory,
		publisher:     publisher,
		now:           time.Now,
		lastTyping:    make(map[string]time.Time),
	}
}

// StartOrGetConversation returns the caller's conversation with peerID,
// creating it on first contact. Both orderings of the pair land on the
// same conversation.
func (s *ChatService) StartOrGetConversation(ctx context.Context, callerID, peerID string) (*ConversationView, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return nil, apperrors.BadRequest("peerId is required")
	}
	if peerID == callerID {
		return nil, apperrors.Forbidden("you cannot start a conversation with yourself")
	}

	if err := s.checkEligible(ctx, callerID, peerID); err != nil {
		return nil, err
	}

	conv, err := s.conversations.FindByPair(ctx, callerID, peerID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		conv, err = s.conversations.Create(ctx, callerID, peerID)
		if errors.Is(err, store.ErrSelfConversation) {
			return nil, apperrors.Forbidden("you cannot start a conversation with yourself")
		}
		if err != nil {
			return nil, err
		}
		metrics.ConversationsStarted.Inc()
		logger.Info().Str("conversation_id", conv.ID).Str("user_id", callerID).Msg("conversation started")
	}

	views, err := s.conversationViews(ctx, callerID, []models.Conversation{*conv})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListInbox pages the user's conversations by latest activity, each with its
// opened last message and the caller's unread count.
func (s *ChatService) ListInbox(ctx context.Context, userID string, page, pageSize int) ([]ConversationView, error) {
	convs, err := s.conversations.ListForUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return s.conversationViews(ctx, userID, convs)
}

// GetHistory returns one page of a conversation in chronological order.
// Reading marks the peer's messages as read and, if anything changed, tells
// the peer.
func (s *ChatService) GetHistory(ctx context.Context, userID, conversationID, beforeID string, limit int) (*HistoryPage, error) {
	conv, err := s.authorize(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	msgs, hasMore, err := s.messages.Page(ctx, conv.ID, beforeID, limit)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("cursor message not found")
	}
	if err != nil {
		return nil, err
	}

	views, err := s.messageViews(ctx, msgs)
	if err != nil {
		return nil, err
	}

	marked, err := s.messages.MarkRead(ctx, conv.ID, userID)
	if err != nil {
		// the page is still valid; receipts catch up on the next read
		logger.Warn().Err(err).Str("conversation_id", conv.ID).Str("user_id", userID).Msg("mark read failed")
	}
	if marked > 0 {
		metrics.MessagesMarkedRead.Add(float64(marked))
		for i := range views {
			if views[i].Sender.ID != userID && !contains(views[i].ReadBy, userID) {
				views[i].ReadBy = append(views[i].ReadBy, userID)
			}
		}
		s.publisher.Publish(conv.Peer(userID), EventMessagesRead, MessagesReadEvent{
			ConversationID: conv.ID,
			ReadBy:         userID,
		})
	}

	page := &HistoryPage{Messages: views, HasMore: hasMore}
	if len(views) > 0 {
		page.NextCursor = views[0].ID
	}
	return page, nil
}

// Send stores a message sealed and returns it in cleartext. The peer gets
// the same cleartext over the realtime channel; the sealed body never
// leaves the store.
func (s *ChatService) Send(ctx context.Context, userID, conversationID, rawText string) (*MessageView, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, apperrors.BadRequest("text is required")
	}

	conv, err := s.authorize(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	peerID := conv.Peer(userID)
	if err := s.checkEligible(ctx, userID, peerID); err != nil {
		return nil, err
	}

	text, err := SanitizeMessageContent(rawText)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}

	sender, err := summaryOf(ctx, s.directory, SenderRef{ID: userID})
	if err != nil {
		return nil, err
	}

	sealed, sealErr := s.cipher.Seal(text)
	if sealErr != nil {
		metrics.CipherFailures.WithLabelValues("seal").Inc()
		logger.Warn().Err(sealErr).Str("conversation_id", conv.ID).Msg("message stored unsealed")
	}

	msg, err := s.messages.Append(ctx, conv.ID, userID, models.SenderKind(sender.Kind), sealed, models.MessageKindText)
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	// The message row is authoritative; a stale inbox snapshot is tolerated
	if err := s.conversations.TouchLastMessage(ctx, conv.ID, sealed, userID, msg.CreatedAt); err != nil {
		logger.Warn().Err(err).Str("conversation_id", conv.ID).Str("message_id", msg.ID).Msg("last message snapshot not updated")
	}

	view := MessageView{
		ID:             msg.ID,
		ConversationID: conv.ID,
		Sender:         sender,
		Text:           text,
		Kind:           msg.Kind,
		ReadBy:         []string{},
		CreatedAt:      msg.CreatedAt,
	}

	s.publisher.Publish(peerID, EventNewMessage, NewMessageEvent{ConversationID: conv.ID, Message: view})
	return &view, nil
}

// Typing relays a typing indicator to the peer. Start events are throttled
// per user and conversation; nothing is persisted.
func (s *ChatService) Typing(ctx context.Context, userID, conversationID string, typing bool) error {
	conv, err := s.authorize(ctx, userID, conversationID)
	if err != nil {
		return err
	}

	key := userID + ":" + conv.ID
	event := EventUserStopTyping
	if typing {
		now := s.now()
		s.typingMu.Lock()
		last, seen := s.lastTyping[key]
		throttled := seen && now.Sub(last) < typingThrottle
		if !throttled {
			s.pruneTyping(now)
			s.lastTyping[key] = now
		}
		s.typingMu.Unlock()
		if throttled {
			return nil
		}
		event = EventUserTyping
	} else {
		s.typingMu.Lock()
		delete(s.lastTyping, key)
		s.typingMu.Unlock()
	}

	s.publisher.Publish(conv.Peer(userID), event, TypingEvent{ConversationID: conv.ID, UserID: userID})
	return nil
}

// pruneTyping drops expired throttle entries, which covers clients that
// disconnect without sending stopTyping. Caller holds typingMu.
func (s *ChatService) pruneTyping(now time.Time) {
	for key, last := range s.lastTyping {
		if now.Sub(last) >= typingThrottle {
			delete(s.lastTyping, key)
		}
	}
}

// UnreadTotal sums the user's unread messages across all conversations
func (s *ChatService) UnreadTotal(ctx context.Context, userID string) (int64, error) {
	ids, err := s.conversations.ListIDsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	counts, err := s.messages.UnreadCounts(ctx, ids, userID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (s *ChatService) authorize(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, apperrors.BadRequest("conversationId is required")
	}
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("conversation not found")
	}
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, apperrors.Forbidden("you are not a participant in this conversation")
	}
	return conv, nil
}

func (s *ChatService) checkEligible(ctx context.Context, a, b string) error {
	ok, err := s.gate.CanMessage(ctx, a, b)
	if err != nil {
		return fmt.Errorf("relationship check: %w", err)
	}
	if !ok {
		return apperrors.Forbidden(msgNotEligible)
	}
	return nil
}

func (s *ChatService) open(wire, conversationID string) string {
	text, err := s.cipher.Open(wire)
	if err != nil {
		metrics.CipherFailures.WithLabelValues("open").Inc()
		logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("stored message could not be opened")
	}
	return text
}

func (s *ChatService) messageViews(ctx context.Context, msgs []models.DirectMessage) ([]MessageView, error) {
	refs := make([]SenderRef, 0, len(msgs))
	for _, m := range msgs {
		refs = append(refs, SenderRef{Kind: m.SenderKind, ID: m.SenderID})
	}
	senders, err := s.directory.Summaries(ctx, refs)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		readBy := append([]string{}, m.ReadBy...)
		views = append(views, MessageView{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Sender:         senders[SenderRef{Kind: m.SenderKind, ID: m.SenderID}],
			Text:           s.open(m.Body, m.ConversationID),
			Kind:           m.Kind,
			ReadBy:         readBy,
			CreatedAt:      m.CreatedAt,
		})
	}
	return views, nil
}

func (s *ChatService) conversationViews(ctx context.Context, userID string, convs []models.Conversation) ([]ConversationView, error) {
	ids := make([]string, 0, len(convs))
	refs := make([]SenderRef, 0, len(convs)*2)
	for _, c := range convs {
		ids = append(ids, c.ID)
		refs = append(refs, SenderRef{ID: c.ParticipantA}, SenderRef{ID: c.ParticipantB})
	}

	unread, err := s.messages.UnreadCounts(ctx, ids, userID)
	if err != nil {
		return nil, err
	}
	people, err := s.directory.Summaries(ctx, refs)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		v := ConversationView{
			ID: c.ID,
			Participants: []models.UserSummary{
				people[SenderRef{ID: c.ParticipantA}],
				people[SenderRef{ID: c.ParticipantB}],
			},
			Peer:        people[SenderRef{ID: c.Peer(userID)}],
			UnreadCount: unread[c.ID],
			CreatedAt:   c.CreatedAt,
			UpdatedAt:   c.UpdatedAt,
		}
		// The snapshot is always opened, never served sealed
		if c.LastMessageAt != nil {
			last := &LastMessageView{
				Text:      s.open(c.LastMessageBody, c.ID),
				CreatedAt: *c.LastMessageAt,
			}
			if c.LastMessageSenderID != nil {
				last.SenderID = *c.LastMessageSenderID
			}
			v.LastMessage = last
		}
		views = append(views, v)
	}
	return views, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
