package model

type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    int64
}

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindAudio MessageKind = "audio"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindAudio:
		return true
	}
	return false
}

// Message is immutable after append except for the two monotone
// delivery flags. Seen implies Delivered.
type Message struct {
	ID        string      `json:"id"`
	Sender    string      `json:"sender"`
	Receiver  string      `json:"receiver"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind"`
	CreatedAt int64       `json:"createdAt"` // unix nanos, monotone per conversation
	Delivered bool        `json:"delivered"`
	Seen      bool        `json:"seen"`
}

// ConversationPreview summarizes the newest message exchanged with a
// partner, for the conversation list.
type ConversationPreview struct {
	PartnerID   string
	LastMessage string
	LastKind    MessageKind
	LastAt      int64
}
