// Package convert maps domain types to the signflow.v1 wire messages and back.
package convert

import (
	"fmt"
	"strings"
	"time"

	u "github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/timestamppb"

	pb "github.com/and161185/signflow/api/signflow/v1"
	model "github.com/and161185/signflow/internal/model"
)

// --- helpers ---

func ts(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

func tsPtr(t *time.Time) *timestamppb.Timestamp {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func fromTS(p *timestamppb.Timestamp) time.Time {
	if p == nil {
		return time.Time{}
	}
	return p.AsTime()
}

// --- Fields ---

// ToWireFields converts domain fields.
func ToWireFields(fs []model.Field) []*pb.Field {
	if len(fs) == 0 {
		return nil
	}
	out := make([]*pb.Field, 0, len(fs))
	for _, f := range fs {
		out = append(out, &pb.Field{Key: f.Key, Label: f.Label, Value: f.Value, Kind: string(f.Kind)})
	}
	return out
}

// FromWireFields converts wire fields, rejecting nil entries and unknown kinds.
func FromWireFields(in []*pb.Field) ([]model.Field, error) {
	out := make([]model.Field, 0, len(in))
	for i, f := range in {
		if f == nil {
			return nil, fmt.Errorf("field[%d]: nil", i)
		}
		k, err := model.ParseFieldKind(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("field[%d]: %w", i, err)
		}
		out = append(out, model.Field{Key: f.Key, Label: f.Label, Value: f.Value, Kind: k})
	}
	return out, nil
}

// --- Templates ---

// ToWireTemplate converts a catalog template.
func ToWireTemplate(t model.Template) *pb.Template {
	return &pb.Template{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Premium:     t.Premium,
		Body:        t.Body,
		Fields:      ToWireFields(t.Fields),
	}
}

// ToWireTemplates converts a list of templates.
func ToWireTemplates(ts []model.Template) []*pb.Template {
	out := make([]*pb.Template, 0, len(ts))
	for _, t := range ts {
		out = append(out, ToWireTemplate(t))
	}
	return out
}

// --- Documents ---

// ToWireDocument converts a document. rendered is the sanitized body, may be empty.
// Signature artifacts stay server-side.
func ToWireDocument(d model.Document, rendered string) *pb.Document {
	out := &pb.Document{
		ID:         d.ID.String(),
		OwnerID:    d.OwnerID.String(),
		TemplateID: d.TemplateID,
		Title:      d.Title,
		Body:       d.Body,
		Rendered:   rendered,
		Fields:     ToWireFields(d.Fields),
		Status:     string(d.Status),
		Ver:        d.Ver,
		CreatedAt:  ts(d.CreatedAt),
		UpdatedAt:  ts(d.UpdatedAt),
	}
	for _, s := range d.Signers {
		out.Signers = append(out.Signers, &pb.Signer{
			ID:       s.ID,
			Name:     s.Name,
			Email:    s.Email,
			Status:   string(s.Status),
			SignedAt: tsPtr(s.SignedAt),
		})
	}
	return out
}

// FromWireDocument converts a wire document for client-side display.
func FromWireDocument(in *pb.Document) (model.Document, error) {
	if in == nil {
		return model.Document{}, fmt.Errorf("nil Document")
	}
	id, err := u.FromString(in.ID)
	if err != nil {
		return model.Document{}, fmt.Errorf("invalid id: %w", err)
	}
	owner, err := u.FromString(in.OwnerID)
	if err != nil {
		return model.Document{}, fmt.Errorf("invalid owner_id: %w", err)
	}
	st, err := model.ParseDocumentStatus(in.Status)
	if err != nil {
		return model.Document{}, err
	}
	fields, err := FromWireFields(in.Fields)
	if err != nil {
		return model.Document{}, err
	}
	d := model.Document{
		ID:         id,
		OwnerID:    owner,
		TemplateID: in.TemplateID,
		Title:      in.Title,
		Body:       in.Body,
		Fields:     fields,
		Status:     st,
		Ver:        in.Ver,
		CreatedAt:  fromTS(in.CreatedAt),
		UpdatedAt:  fromTS(in.UpdatedAt),
	}
	for _, s := range in.Signers {
		if s == nil {
			continue
		}
		sg := model.Signer{ID: s.ID, Name: s.Name, Email: s.Email, Status: model.SignerStatus(s.Status)}
		if s.SignedAt != nil {
			at := s.SignedAt.AsTime()
			sg.SignedAt = &at
		}
		d.Signers = append(d.Signers, sg)
	}
	return d, nil
}

// FromWireInvites converts signer invites; ids are trimmed.
func FromWireInvites(in []*pb.SignerInvite) ([]model.SignerInvite, error) {
	out := make([]model.SignerInvite, 0, len(in))
	for i, s := range in {
		if s == nil {
			return nil, fmt.Errorf("signer[%d]: nil", i)
		}
		out = append(out, model.SignerInvite{
			ID:    strings.TrimSpace(s.ID),
			Name:  strings.TrimSpace(s.Name),
			Email: strings.TrimSpace(s.Email),
		})
	}
	return out, nil
}

// ToWireStats converts per-status counters.
func ToWireStats(s model.Stats) *pb.GetStatsResponse {
	return &pb.GetStatsResponse{
		Total:   int64(s.Total),
		Draft:   int64(s.Draft),
		Pending: int64(s.Pending),
		Signed:  int64(s.Signed),
		Expired: int64(s.Expired),
	}
}
