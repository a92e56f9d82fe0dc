package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindSystem MessageKind = "system"
)

// SenderKind discriminates which directory a sender id resolves against
type SenderKind string

const (
	SenderKindUser  SenderKind = "user"
	SenderKindAdmin SenderKind = "admin"
)

// Conversation is a two-party thread. The pair is stored sorted
// (ParticipantA < ParticipantB) and the composite unique index on it is what
// guarantees a single conversation per pair of users.
type Conversation struct {
	ID           string `gorm:"primaryKey;type:text" json:"id"`
	ParticipantA string `gorm:"type:text;not null;uniqueIndex:idx_conversation_pair,priority:1;check:chk_conversation_pair_order,participant_a < participant_b" json:"-"`
	ParticipantB string `gorm:"type:text;not null;uniqueIndex:idx_conversation_pair,priority:2;index:idx_conversation_participant_b" json:"-"`

	// Denormalized snapshot of the newest message, body still sealed
	LastMessageBody     string     `gorm:"type:text" json:"-"`
	LastMessageSenderID *string    `gorm:"type:text" json:"-"`
	LastMessageAt       *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// Participants returns the pair in stored order
func (c *Conversation) Participants() [2]string {
	return [2]string{c.ParticipantA, c.ParticipantB}
}

// HasParticipant reports whether userID is one of the two members
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.ParticipantA == userID || c.ParticipantB == userID)
}

// Peer returns the other participant, or "" if userID is not a member
func (c *Conversation) Peer(userID string) string {
	switch userID {
	case c.ParticipantA:
		return c.ParticipantB
	case c.ParticipantB:
		return c.ParticipantA
	}
	return ""
}

// SortPair orders two identities the way conversations store them
func SortPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// DirectMessage is one entry in a conversation's append-only log.
// Body holds the wire text: sealed for new writes, legacy formats for old rows.
type DirectMessage struct {
	ID             string      `gorm:"primaryKey;type:text" json:"id"`
	ConversationID string      `gorm:"type:text;not null;index:idx_dm_conversation_created,priority:1" json:"conversationId"`
	SenderID       string      `gorm:"type:text;not null;index" json:"senderId"`
	SenderKind     SenderKind  `gorm:"type:text;not null;default:'user'" json:"senderKind"`
	Body           string      `gorm:"type:text;not null" json:"text"`
	Kind           MessageKind `gorm:"type:text;not null;default:'text'" json:"kind"`
	CreatedAt      time.Time   `gorm:"index:idx_dm_conversation_created,priority:2" json:"createdAt"`

	Reads  []MessageRead `gorm:"foreignKey:MessageID" json:"-"`
	ReadBy []string      `gorm:"-" json:"readBy"`
}

func (DirectMessage) TableName() string {
	return "direct_messages"
}

// BeforeCreate assigns a UUIDv7 so ids sort with creation time; the id
// breaks ties between messages that share a timestamp.
func (m *DirectMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		id, genErr := uuid.NewV7()
		if genErr != nil {
			return genErr
		}
		m.ID = id.String()
	}
	return
}

// AfterFind flattens the preloaded read rows into the reader set
func (m *DirectMessage) AfterFind(tx *gorm.DB) (err error) {
	if m.Reads == nil {
		return
	}
	m.ReadBy = make([]string, 0, len(m.Reads))
	for _, r := range m.Reads {
		m.ReadBy = append(m.ReadBy, r.ReaderID)
	}
	return
}

// IsReadBy reports membership in the reader set. Senders count as readers.
func (m *DirectMessage) IsReadBy(userID string) bool {
	if m.SenderID == userID {
		return true
	}
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// MessageRead records that a reader has seen a message. The composite
// primary key gives the reader set its set semantics; rows are never deleted.
type MessageRead struct {
	MessageID string    `gorm:"primaryKey;type:text" json:"messageId"`
	ReaderID  string    `gorm:"primaryKey;type:text;index" json:"readerId"`
	ReadAt    time.Time `json:"readAt"`
}

func (MessageRead) TableName() string {
	return "direct_message_reads"
}
