package signflowv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "signflow.v1.Signflow"

// FullMethod returns "/signflow.v1.Signflow/<method>".
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// SignflowServer is the server API.
type SignflowServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	ListTemplates(context.Context, *ListTemplatesRequest) (*ListTemplatesResponse, error)
	GetTemplate(context.Context, *GetTemplateRequest) (*GetTemplateResponse, error)
	Preview(context.Context, *PreviewRequest) (*PreviewResponse, error)
	CreateDocument(context.Context, *CreateDocumentRequest) (*CreateDocumentResponse, error)
	GetDocument(context.Context, *GetDocumentRequest) (*GetDocumentResponse, error)
	ListDocuments(context.Context, *ListDocumentsRequest) (*ListDocumentsResponse, error)
	UpdateFields(context.Context, *UpdateFieldsRequest) (*UpdateFieldsResponse, error)
	StartSigning(context.Context, *StartSigningRequest) (*StartSigningResponse, error)
	SubmitSignature(context.Context, *SubmitSignatureRequest) (*SubmitSignatureResponse, error)
	CancelDocument(context.Context, *CancelDocumentRequest) (*CancelDocumentResponse, error)
	GetStats(context.Context, *GetStatsRequest) (*GetStatsResponse, error)
}

// UnimplementedSignflowServer answers codes.Unimplemented for every method.
type UnimplementedSignflowServer struct{}

func unimplemented(m string) error { return status.Errorf(codes.Unimplemented, "method %s not implemented", m) }

func (UnimplementedSignflowServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, unimplemented("Register")
}
func (UnimplementedSignflowServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, unimplemented("Login")
}
func (UnimplementedSignflowServer) ListTemplates(context.Context, *ListTemplatesRequest) (*ListTemplatesResponse, error) {
	return nil, unimplemented("ListTemplates")
}
func (UnimplementedSignflowServer) GetTemplate(context.Context, *GetTemplateRequest) (*GetTemplateResponse, error) {
	return nil, unimplemented("GetTemplate")
}
func (UnimplementedSignflowServer) Preview(context.Context, *PreviewRequest) (*PreviewResponse, error) {
	return nil, unimplemented("Preview")
}
func (UnimplementedSignflowServer) CreateDocument(context.Context, *CreateDocumentRequest) (*CreateDocumentResponse, error) {
	return nil, unimplemented("CreateDocument")
}
func (UnimplementedSignflowServer) GetDocument(context.Context, *GetDocumentRequest) (*GetDocumentResponse, error) {
	return nil, unimplemented("GetDocument")
}
func (UnimplementedSignflowServer) ListDocuments(context.Context, *ListDocumentsRequest) (*ListDocumentsResponse, error) {
	return nil, unimplemented("ListDocuments")
}
func (UnimplementedSignflowServer) UpdateFields(context.Context, *UpdateFieldsRequest) (*UpdateFieldsResponse, error) {
	return nil, unimplemented("UpdateFields")
}
func (UnimplementedSignflowServer) StartSigning(context.Context, *StartSigningRequest) (*StartSigningResponse, error) {
	return nil, unimplemented("StartSigning")
}
func (UnimplementedSignflowServer) SubmitSignature(context.Context, *SubmitSignatureRequest) (*SubmitSignatureResponse, error) {
	return nil, unimplemented("SubmitSignature")
}
func (UnimplementedSignflowServer) CancelDocument(context.Context, *CancelDocumentRequest) (*CancelDocumentResponse, error) {
	return nil, unimplemented("CancelDocument")
}
func (UnimplementedSignflowServer) GetStats(context.Context, *GetStatsRequest) (*GetStatsResponse, error) {
	return nil, unimplemented("GetStats")
}

// PublicMethods need no access token.
var PublicMethods = map[string]bool{
	FullMethod("Register"):      true,
	FullMethod("Login"):         true,
	FullMethod("ListTemplates"): true,
	FullMethod("GetTemplate"):   true,
	FullMethod("Preview"):       true,
}

func unary[Req, Resp any](name string, call func(SignflowServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			h := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SignflowServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return h(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}, h)
		},
	}
}

// ServiceDesc describes signflow.v1.Signflow for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SignflowServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", SignflowServer.Register),
		unary("Login", SignflowServer.Login),
		unary("ListTemplates", SignflowServer.ListTemplates),
		unary("GetTemplate", SignflowServer.GetTemplate),
		unary("Preview", SignflowServer.Preview),
		unary("CreateDocument", SignflowServer.CreateDocument),
		unary("GetDocument", SignflowServer.GetDocument),
		unary("ListDocuments", SignflowServer.ListDocuments),
		unary("UpdateFields", SignflowServer.UpdateFields),
		unary("StartSigning", SignflowServer.StartSigning),
		unary("SubmitSignature", SignflowServer.SubmitSignature),
		unary("CancelDocument", SignflowServer.CancelDocument),
		unary("GetStats", SignflowServer.GetStats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "signflow/v1/signflow.proto",
}

// RegisterSignflowServer registers srv on s.
func RegisterSignflowServer(s grpc.ServiceRegistrar, srv SignflowServer) {
	s.RegisterService(&ServiceDesc, srv)
}
