package model

import (
	"fmt"
	"strings"
)

// DocumentStatus is the lifecycle stage of a document.
type DocumentStatus string

const (
	StatusDraft   DocumentStatus = "draft"
	StatusPending DocumentStatus = "pending"
	StatusSigned  DocumentStatus = "signed"
	StatusExpired DocumentStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s DocumentStatus) Terminal() bool { return s == StatusSigned || s == StatusExpired }

// ParseDocumentStatus accepts canonical names and the Portuguese labels used by the
// dashboard. "Aguardando" and "Pendente" both mean pending.
func ParseDocumentStatus(v string) (DocumentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "draft", "rascunho":
		return StatusDraft, nil
	case "pending", "pendente", "aguardando":
		return StatusPending, nil
	case "signed", "assinado":
		return StatusSigned, nil
	case "expired", "expirado":
		return StatusExpired, nil
	}
	return "", fmt.Errorf("unknown document status %q", v)
}

// SignerStatus is the state of a single signer.
type SignerStatus string

const (
	SignerPending SignerStatus = "pending"
	SignerSigned  SignerStatus = "signed"
)
