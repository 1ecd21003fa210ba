// Package signflowv1 is the wire contract of the signflow.v1.Signflow gRPC service.
//
// Messages travel as JSON under the "json" content-subtype; timestamps use the
// well-known protobuf Timestamp type.
package signflowv1

import "google.golang.org/protobuf/types/known/timestamppb"

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string                 `json:"access_token"`
	ExpiresAt   *timestamppb.Timestamp `json:"expires_at,omitempty"`
	UserID      string                 `json:"user_id"`
	Name        string                 `json:"name"`
	Email       string                 `json:"email"`
}

type Field struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Value string `json:"value,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

type Template struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Premium     bool     `json:"premium,omitempty"`
	Body        string   `json:"body"`
	Fields      []*Field `json:"fields,omitempty"`
}

type ListTemplatesRequest struct {
	Category string `json:"category,omitempty"`
	Query    string `json:"query,omitempty"`
}

type ListTemplatesResponse struct {
	Templates  []*Template `json:"templates"`
	Categories []string    `json:"categories,omitempty"`
}

type GetTemplateRequest struct {
	ID string `json:"id"`
}

type GetTemplateResponse struct {
	Template *Template `json:"template"`
}

type PreviewRequest struct {
	TemplateID string            `json:"template_id"`
	Values     map[string]string `json:"values,omitempty"`
}

type PreviewResponse struct {
	HTML string `json:"html"`
}

type Signer struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name,omitempty"`
	Email    string                 `json:"email,omitempty"`
	Status   string                 `json:"status"`
	SignedAt *timestamppb.Timestamp `json:"signed_at,omitempty"`
}

type Document struct {
	ID         string                 `json:"id"`
	OwnerID    string                 `json:"owner_id"`
	TemplateID string                 `json:"template_id,omitempty"`
	Title      string                 `json:"title"`
	Body       string                 `json:"body"`
	Rendered   string                 `json:"rendered,omitempty"`
	Fields     []*Field               `json:"fields,omitempty"`
	Status     string                 `json:"status"`
	Signers    []*Signer              `json:"signers,omitempty"`
	Ver        int64                  `json:"ver"`
	CreatedAt  *timestamppb.Timestamp `json:"created_at,omitempty"`
	UpdatedAt  *timestamppb.Timestamp `json:"updated_at,omitempty"`
}

// CreateDocumentRequest creates from a template when TemplateID is set (Values apply),
// otherwise from Body and Fields.
type CreateDocumentRequest struct {
	TemplateID string            `json:"template_id,omitempty"`
	Title      string            `json:"title,omitempty"`
	Body       string            `json:"body,omitempty"`
	Fields     []*Field          `json:"fields,omitempty"`
	Values     map[string]string `json:"values,omitempty"`
}

type CreateDocumentResponse struct {
	Document *Document `json:"document"`
}

type GetDocumentRequest struct {
	ID string `json:"id"`
}

type GetDocumentResponse struct {
	Document *Document `json:"document"`
}

type ListDocumentsRequest struct {
	Status string `json:"status,omitempty"`
}

type ListDocumentsResponse struct {
	Documents []*Document `json:"documents"`
}

type UpdateFieldsRequest struct {
	ID      string            `json:"id"`
	BaseVer int64             `json:"base_ver"`
	Title   string            `json:"title,omitempty"`
	Values  map[string]string `json:"values,omitempty"`
}

type UpdateFieldsResponse struct {
	Document *Document `json:"document"`
}

type SignerInvite struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type StartSigningRequest struct {
	ID      string          `json:"id"`
	Signers []*SignerInvite `json:"signers"`
}

type StartSigningResponse struct {
	Document *Document `json:"document"`
}

type SubmitSignatureRequest struct {
	DocumentID string `json:"document_id"`
	SignerID   string `json:"signer_id"`
	Artifact   []byte `json:"artifact"`
}

type SubmitSignatureResponse struct {
	Document  *Document `json:"document"`
	Completed bool      `json:"completed"`
}

type CancelDocumentRequest struct {
	ID string `json:"id"`
}

type CancelDocumentResponse struct {
	Document *Document `json:"document"`
}

type GetStatsRequest struct{}

type GetStatsResponse struct {
	Total   int64 `json:"total"`
	Draft   int64 `json:"draft"`
	Pending int64 `json:"pending"`
	Signed  int64 `json:"signed"`
	Expired int64 `json:"expired"`
}
