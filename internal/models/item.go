package models

import "strings"

// Attachment is one file owned by an item.
type Attachment struct {
	ID          int64  `json:"id"`
	FileName    string `json:"file_name"`
	FilePath    string `json:"file_path"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
}

// IsImage reports whether the attachment can be previewed inline.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.ContentType)), "image/")
}

// Item is one entry on the drop board.
type Item struct {
	ID          int64        `json:"id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   int64        `json:"created_at"`
	UpdatedAt   int64        `json:"updated_at"`
	Favorite    bool         `json:"favorite"`
}

// HasContent reports whether the item carries non-blank text.
func (i Item) HasContent() bool {
	return strings.TrimSpace(i.Content) != ""
}

// Images returns the image attachments in their original order.
func (i Item) Images() []Attachment {
	var out []Attachment
	for _, a := range i.Attachments {
		if a.IsImage() {
			out = append(out, a)
		}
	}
	return out
}

// ListSnapshot is the full list returned by the list endpoint.
// ExpireSeconds of zero means items never expire.
type ListSnapshot struct {
	List          []Item `json:"list"`
	ExpireSeconds int64  `json:"expire_seconds"`
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (s ListSnapshot) Clone() ListSnapshot {
	out := ListSnapshot{ExpireSeconds: s.ExpireSeconds}
	if s.List == nil {
		return out
	}
	out.List = make([]Item, len(s.List))
	for i, item := range s.List {
		cp := item
		if item.Attachments != nil {
			cp.Attachments = append([]Attachment(nil), item.Attachments...)
		}
		out.List[i] = cp
	}
	return out
}

// Find returns the item with id, if present.
func (s ListSnapshot) Find(id int64) (Item, bool) {
	for _, item := range s.List {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}
