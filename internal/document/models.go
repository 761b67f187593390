package document

import "time"

// DefaultTitle is applied when a document is created without a title.
const DefaultTitle = "Untitled Document"

// Document is the canonical document model. The in-memory store is
// authoritative; the same shape is mirrored to MongoDB when a mirror is
// configured.
type Document struct {
	ID            string    `json:"id" bson:"id"`
	Title         string    `json:"title" bson:"title"`
	Content       string    `json:"content" bson:"content"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
	Collaborators []string  `json:"collaborators" bson:"collaborators"`
}

// Clone returns a copy safe to hand outside the store. Collaborators is
// copied so callers never alias the store's slice.
func (d *Document) Clone() *Document {
	c := *d
	c.Collaborators = append([]string(nil), d.Collaborators...)
	return &c
}
