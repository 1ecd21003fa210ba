// Package grpcserver exposes the signflow gRPC API handlers.
package grpcserver

import (
	"context"
	"strings"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	pb "github.com/and161185/signflow/api/signflow/v1"
	"github.com/and161185/signflow/internal/catalog"
	"github.com/and161185/signflow/internal/convert"
	"github.com/and161185/signflow/internal/model"
	"github.com/and161185/signflow/internal/render"
	"github.com/and161185/signflow/internal/service"
)

// Catalog is the template catalog as seen by the API.
type Catalog interface {
	List(f catalog.Filter) []model.Template
	Get(id string) (model.Template, error)
	Categories() []string
}

// Server wires services into gRPC handlers.
type Server struct {
	pb.UnimplementedSignflowServer
	auth    service.AuthService
	docs    service.DocumentService
	sigs    service.SignatureService
	catalog Catalog
	signKey []byte
}

// New constructs a gRPC server with injected services.
func New(
	auth service.AuthService, docs service.DocumentService, sigs service.SignatureService,
	cat Catalog, signKey []byte,
) *Server {
	return &Server{auth: auth, docs: docs, sigs: sigs, catalog: cat, signKey: signKey}
}

// --- Auth ---

// Register creates a new user account.
func (s *Server) Register(ctx context.Context, req *pb.RegisterRequest) (*pb.RegisterResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty email/password")
	}
	userID, err := s.auth.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.RegisterResponse{UserID: userID}, nil
}

func remoteIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// Login authenticates a user and returns an access token.
func (s *Server) Login(ctx context.Context, req *pb.LoginRequest) (*pb.LoginResponse, error) {
	tok, u, err := s.auth.Login(ctx, req.Email, req.Password, remoteIP(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.LoginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   timestampOrNil(tok.ExpiresAt),
		UserID:      u.ID.String(),
		Name:        u.Name,
		Email:       u.Email,
	}, nil
}

// --- Templates ---

// ListTemplates returns catalog templates matching the filter.
func (s *Server) ListTemplates(_ context.Context, req *pb.ListTemplatesRequest) (*pb.ListTemplatesResponse, error) {
	ts := s.catalog.List(catalog.Filter{Category: req.Category, Query: req.Query})
	return &pb.ListTemplatesResponse{
		Templates:  convert.ToWireTemplates(ts),
		Categories: s.catalog.Categories(),
	}, nil
}

// GetTemplate returns a single template by id.
func (s *Server) GetTemplate(_ context.Context, req *pb.GetTemplateRequest) (*pb.GetTemplateResponse, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, status.Error(codes.InvalidArgument, "empty template id")
	}
	t, err := s.catalog.Get(req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.GetTemplateResponse{Template: convert.ToWireTemplate(t)}, nil
}

// Preview renders a template with values without storing a document.
func (s *Server) Preview(ctx context.Context, req *pb.PreviewRequest) (*pb.PreviewResponse, error) {
	html, err := s.docs.Preview(ctx, req.TemplateID, req.Values)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.PreviewResponse{HTML: html}, nil
}

// --- Documents ---

// CreateDocument stores a new draft, from a template when one is named.
func (s *Server) CreateDocument(ctx context.Context, req *pb.CreateDocumentRequest) (*pb.CreateDocumentResponse, error) {
	owner, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var d *model.Document
	if req.TemplateID != "" {
		d, err = s.docs.CreateFromTemplate(ctx, owner, req.TemplateID, req.Title, req.Values)
	} else {
		fields, ferr := convert.FromWireFields(req.Fields)
		if ferr != nil {
			return nil, status.Errorf(codes.InvalidArgument, "bad fields: %v", ferr)
		}
		d, err = s.docs.Create(ctx, owner, req.Title, req.Body, fields)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.CreateDocumentResponse{Document: convert.ToWireDocument(*d, "")}, nil
}

// GetDocument returns one document with its rendered body.
func (s *Server) GetDocument(ctx context.Context, req *pb.GetDocumentRequest) (*pb.GetDocumentResponse, error) {
	owner, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	d, err := s.docs.Get(ctx, owner, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.GetDocumentResponse{Document: convert.ToWireDocument(*d, render.Preview(d.Body, d.Fields))}, nil
}

// ListDocuments returns the caller's documents, optionally filtered by status.
func (s *Server) ListDocuments(ctx context.Context, req *pb.ListDocumentsRequest) (*pb.ListDocumentsResponse, error) {
	owner, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var st model.DocumentStatus
	if req.Status != "" {
		if st, err = model.ParseDocumentStatus(req.Status); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "bad status: %v", err)
		}
	}
	ds, err := s.docs.List(ctx, owner, st)
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]*pb.Document, 0, len(ds))
	for _, d := range ds {
		out = append(out, convert.ToWireDocument(d, ""))
	}
	return &pb.ListDocumentsResponse{Documents: out}, nil
}

// UpdateFields sets field values on a draft under a version guard.
func (s *Server) UpdateFields(ctx context.Context, req *pb.UpdateFieldsRequest) (*pb.UpdateFieldsResponse, error) {
	owner, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	d, err := s.docs.UpdateFields(ctx, owner, id, req.BaseVer, req.Title, req.Values)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.UpdateFieldsResponse{Document: convert.ToWireDocument(*d, "")}, nil
}

// GetStats counts the caller's documents per status.
func (s *Server) GetStats(ctx context.Context, _ *pb.GetStatsRequest) (*pb.GetStatsResponse, error) {
	owner, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.docs.Stats(ctx, owner)
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.ToWireStats(st), nil
}

// --- Signing ---

// StartSigning invites signers and moves a draft to pending.
func (s *Server) StartSigning(ctx context.Context, req *pb.StartSigningRequest) (*pb.StartSigningResponse, error) {
	owner, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	invites, err := convert.FromWireInvites(req.Signers)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad signers: %v", err)
	}
	d, err := s.sigs.Start(ctx, owner, id, invites)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.StartSigningResponse{Document: convert.ToWireDocument(*d, "")}, nil
}

// SubmitSignature records one signer's artifact.
func (s *Server) SubmitSignature(ctx context.Context, req *pb.SubmitSignatureRequest) (*pb.SubmitSignatureResponse, error) {
	if _, err := s.caller(ctx); err != nil {
		return nil, err
	}
	id, err := parseID(req.DocumentID)
	if err != nil {
		return nil, err
	}
	d, err := s.sigs.Sign(ctx, id, req.SignerID, req.Artifact)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.SubmitSignatureResponse{
		Document:  convert.ToWireDocument(*d, ""),
		Completed: d.Status == model.StatusSigned,
	}, nil
}

// CancelDocument expires a draft or pending document.
func (s *Server) CancelDocument(ctx context.Context, req *pb.CancelDocumentRequest) (*pb.CancelDocumentResponse, error) {
	owner, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	d, err := s.sigs.Cancel(ctx, owner, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.CancelDocumentResponse{Document: convert.ToWireDocument(*d, "")}, nil
}

func parseID(v string) (uuid.UUID, error) {
	id, err := uuid.FromString(strings.TrimSpace(v))
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "bad id")
	}
	return id, nil
}

// caller prefers the id stored by AuthUnary and falls back to the request token.
func (s *Server) caller(ctx context.Context) (uuid.UUID, error) {
	if id, ok := UserIDFromCtx(ctx); ok {
		return id, nil
	}
	id, err := s.userIDFromCtx(ctx)
	if err != nil {
		return uuid.Nil, status.Error(codes.Unauthenticated, "no auth")
	}
	return id, nil
}

// userIDFromCtx verifies the request token directly, for handlers reached without AuthUnary.
func (s *Server) userIDFromCtx(ctx context.Context) (uuid.UUID, error) {
	return verifyAccessToken(ctx, s.signKey)
}
