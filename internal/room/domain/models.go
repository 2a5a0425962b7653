// Package domain contains the per-conversation timeline written by the worker.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Room is one conversation thread. RoomKey is the provider's identifier and is
// stored in the room_id column; ID is the internal key messages point at.
type Room struct {
	ID             snowflake.ID   `gorm:"primaryKey;autoIncrement:false"`
	RoomKey        string         `gorm:"column:room_id;type:text;not null;uniqueIndex:ux_rooms_room_id"`
	Channel        string         `gorm:"type:text;not null"`
	RawMeta        datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"not null"`
	LastActivityAt time.Time      `gorm:"not null"`
}

func (Room) TableName() string { return "rooms" }

// Message is immutable once written. ExternalMsgID is the provider message id;
// (room_id, msg_id) is unique when it is present.
type Message struct {
	ID            snowflake.ID   `gorm:"primaryKey;autoIncrement:false"`
	RoomID        snowflake.ID   `gorm:"not null;uniqueIndex:ux_messages_room_msg,priority:1;index:ix_messages_room_created,priority:1"`
	ExternalMsgID *string        `gorm:"column:msg_id;type:text;uniqueIndex:ux_messages_room_msg,priority:2"`
	SenderType    SenderType     `gorm:"type:text;not null"`
	SenderID      *string        `gorm:"type:text"`
	Phone         *string        `gorm:"type:text"`
	Content       string         `gorm:"type:text;not null"`
	RawPayload    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null;index:ix_messages_room_created,priority:2"`
	IngestedAt    time.Time      `gorm:"not null"`
}

func (Message) TableName() string { return "messages" }

type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderSystem   SenderType = "system"
	SenderUnknown  SenderType = "unknown"
)

var senderAliases = map[string]SenderType{
	"customer": SenderCustomer,
	"user":     SenderCustomer,
	"client":   SenderCustomer,
	"contact":  SenderCustomer,
	"visitor":  SenderCustomer,
	"lead":     SenderCustomer,
	"agent":    SenderAgent,
	"admin":    SenderAgent,
	"operator": SenderAgent,
	"staff":    SenderAgent,
	"cs":       SenderAgent,
	"system":   SenderSystem,
	"bot":      SenderSystem,
}

// ParseSenderType maps provider sender labels onto the closed set. Anything
// unrecognized is SenderUnknown.
func ParseSenderType(raw string) SenderType {
	if t, ok := senderAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return SenderUnknown
}
