package realtime

import "encoding/json"

// Frame is the JSON envelope for every message on the realtime channel.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound frame types.
const (
	TypeRequestDocuments = "requestDocuments"
	TypeCreateDocument   = "createDocument"
	TypeJoinDocument     = "joinDocument"
	TypeGetDocument      = "getDocument"
	TypeUpdateContent    = "updateContent"
	TypeUpdateTitle      = "updateTitle"
	TypeDeleteDocument   = "deleteDocument"
)

// Outbound frame types.
const (
	TypeDocumentsList   = "documentsList"
	TypeActiveUsers     = "activeUsers"
	TypeDocumentContent = "documentContent"
	TypeContentUpdate   = "contentUpdate"
	TypeError           = "error"
)

// Error codes carried by TypeError frames.
const (
	CodeNotFound    = "not_found"
	CodeUnknownType = "unknown_type"
)

type createDocumentData struct {
	Title string `json:"title"`
}

type joinDocumentData struct {
	DocID string `json:"docId"`
}

type docRefData struct {
	DocID string `json:"docId"`
}

type updateContentData struct {
	DocID   string `json:"docId"`
	Content string `json:"content"`
}

type updateTitleData struct {
	DocID string `json:"docId"`
	Title string `json:"title"`
}

// DocumentContentData answers a getDocument request.
type DocumentContentData struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ContentUpdateData is the room-scoped edit notification.
type ContentUpdateData struct {
	Content string `json:"content"`
}

// ErrorData is the structured realtime error, delivered only to the
// connection whose request failed.
type ErrorData struct {
	Code  string `json:"code"`
	DocID string `json:"docId,omitempty"`
}

// newFrame marshals data into a Frame. Payloads are plain structs and
// slices; a marshal failure here would be a programming error, so it is
// swallowed into an empty body.
func newFrame(typ string, data any) Frame {
	b, _ := json.Marshal(data)
	return Frame{Type: typ, Data: b}
}
