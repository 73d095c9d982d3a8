package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is a 64-bit row identifier. Clients may send it as a JSON number or as
// a decimal string; responses always carry it as a string.
type ID int64

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", data)
	}
	*id = ID(n)
	return nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a decimal identifier taken from a URL path or a token claim.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return ID(n), nil
}

type User struct {
	ID           ID        `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Tag struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Note is owned by UserID, or public when UserID is nil.
type Note struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    *ID       `json:"userId"`
	Summary   *string   `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
	Tags      []Tag     `json:"tags"`
}

// TagRef points at an existing tag.
type TagRef struct {
	ID ID `json:"id" validate:"required"`
}

type NoteInput struct {
	Title   string   `json:"title" validate:"required"`
	Content string   `json:"content" validate:"required"`
	Tags    []TagRef `json:"tags" validate:"omitempty,dive"`
}

// NotePatch carries a partial update. Nil fields are left unchanged; a
// non-nil Tags replaces the whole tag set.
type NotePatch struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Tags    *[]TagRef `json:"tags" validate:"omitempty,dive"`
}

type TagInput struct {
	Name string `json:"name" validate:"required"`
}

type TagIDsInput struct {
	TagIDs []ID `json:"tagIds" validate:"required"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TagIDs flattens references into identifiers.
func TagIDs(refs []TagRef) []ID {
	ids := make([]ID, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}
