// Package model defines domain entities used by services, the workflow and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User is an account that owns documents. The password is never stored in plaintext.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"` // unique
	PwdHash   string    `json:"pwd_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// Template is a reusable document skeleton from the catalog. Immutable once loaded.
type Template struct {
	ID          string  `yaml:"id"`
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	Category    string  `yaml:"category"`
	Premium     bool    `yaml:"premium"`
	Body        string  `yaml:"body"`
	Fields      []Field `yaml:"fields"`
}

// DocumentDraft is the caller input for creating a document.
type DocumentDraft struct {
	OwnerID    uuid.UUID
	TemplateID string
	Title      string
	Body       string
	Fields     []Field
}

// Document is a concrete instance created from a template plus field values.
type Document struct {
	ID         uuid.UUID      `json:"id"`
	OwnerID    uuid.UUID      `json:"owner_id"`
	TemplateID string         `json:"template_id,omitempty"`
	Title      string         `json:"title"`
	Body       string         `json:"body"` // raw body with {{key}} tokens
	Fields     []Field        `json:"fields"`
	Status     DocumentStatus `json:"status"`
	Signers    []Signer       `json:"signers,omitempty"`
	Ver        int64          `json:"ver"` // optimistic concurrency stamp, 1 after create
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Signer returns the signer with the given id.
func (d *Document) Signer(id string) (*Signer, bool) {
	for i := range d.Signers {
		if d.Signers[i].ID == id {
			return &d.Signers[i], true
		}
	}
	return nil, false
}

// AllSigned reports whether the document has signers and every one of them signed.
// Order is irrelevant.
func (d *Document) AllSigned() bool {
	if len(d.Signers) == 0 {
		return false
	}
	for _, s := range d.Signers {
		if s.Status != SignerSigned {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to mutate.
func (d *Document) Clone() *Document {
	c := *d
	c.Fields = append([]Field(nil), d.Fields...)
	if d.Signers != nil {
		c.Signers = make([]Signer, len(d.Signers))
		for i, s := range d.Signers {
			c.Signers[i] = s.clone()
		}
	}
	return &c
}

// SignerInvite is the identity input supplied by the caller when signing starts.
type SignerInvite struct {
	ID    string
	Name  string
	Email string
}

// Signer is a party invited to sign a document.
type Signer struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	Status   SignerStatus `json:"status"`
	SignedAt *time.Time   `json:"signed_at,omitempty"`
	Artifact []byte       `json:"artifact,omitempty"` // opaque, never validated
}

func (s Signer) clone() Signer {
	if s.SignedAt != nil {
		t := *s.SignedAt
		s.SignedAt = &t
	}
	s.Artifact = append([]byte(nil), s.Artifact...)
	return s
}

// Stats counts an owner's documents per status.
type Stats struct {
	Total   int
	Draft   int
	Pending int
	Signed  int
	Expired int
}
