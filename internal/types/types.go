package types

import "time"

type SessionResponse struct {
	Username string `json:"username,omitempty"`
	UserRole string `json:"userRole,omitempty"`
}

type HistoryEntry struct {
	Sender   string `json:"sender"`
	Message  string `json:"message"`
	Receiver string `json:"receiver,omitempty"`
	Room     string `json:"room,omitempty"`
}

// HistoryResponse lists entries newest first.
type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
}

type Contact struct {
	Contact     string    `json:"contact"`
	LastMessage string    `json:"lastMessage"`
	Timestamp   time.Time `json:"timestamp"`
}

type ContactsResponse struct {
	Contacts []Contact `json:"contacts"`
}

type UserDTO struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type UsersResponse struct {
	Users []UserDTO `json:"users"`
}
