package signflowv1

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls signflow.v1.Signflow. Every call uses the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, "Register", in, opts)
}

func (c *Client) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, "Login", in, opts)
}

func (c *Client) ListTemplates(ctx context.Context, in *ListTemplatesRequest, opts ...grpc.CallOption) (*ListTemplatesResponse, error) {
	return invoke[ListTemplatesResponse](ctx, c.cc, "ListTemplates", in, opts)
}

func (c *Client) GetTemplate(ctx context.Context, in *GetTemplateRequest, opts ...grpc.CallOption) (*GetTemplateResponse, error) {
	return invoke[GetTemplateResponse](ctx, c.cc, "GetTemplate", in, opts)
}

func (c *Client) Preview(ctx context.Context, in *PreviewRequest, opts ...grpc.CallOption) (*PreviewResponse, error) {
	return invoke[PreviewResponse](ctx, c.cc, "Preview", in, opts)
}

func (c *Client) CreateDocument(ctx context.Context, in *CreateDocumentRequest, opts ...grpc.CallOption) (*CreateDocumentResponse, error) {
	return invoke[CreateDocumentResponse](ctx, c.cc, "CreateDocument", in, opts)
}

func (c *Client) GetDocument(ctx context.Context, in *GetDocumentRequest, opts ...grpc.CallOption) (*GetDocumentResponse, error) {
	return invoke[GetDocumentResponse](ctx, c.cc, "GetDocument", in, opts)
}

func (c *Client) ListDocuments(ctx context.Context, in *ListDocumentsRequest, opts ...grpc.CallOption) (*ListDocumentsResponse, error) {
	return invoke[ListDocumentsResponse](ctx, c.cc, "ListDocuments", in, opts)
}

func (c *Client) UpdateFields(ctx context.Context, in *UpdateFieldsRequest, opts ...grpc.CallOption) (*UpdateFieldsResponse, error) {
	return invoke[UpdateFieldsResponse](ctx, c.cc, "UpdateFields", in, opts)
}

func (c *Client) StartSigning(ctx context.Context, in *StartSigningRequest, opts ...grpc.CallOption) (*StartSigningResponse, error) {
	return invoke[StartSigningResponse](ctx, c.cc, "StartSigning", in, opts)
}

func (c *Client) SubmitSignature(ctx context.Context, in *SubmitSignatureRequest, opts ...grpc.CallOption) (*SubmitSignatureResponse, error) {
	return invoke[SubmitSignatureResponse](ctx, c.cc, "SubmitSignature", in, opts)
}

func (c *Client) CancelDocument(ctx context.Context, in *CancelDocumentRequest, opts ...grpc.CallOption) (*CancelDocumentResponse, error) {
	return invoke[CancelDocumentResponse](ctx, c.cc, "CancelDocument", in, opts)
}

func (c *Client) GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*GetStatsResponse, error) {
	return invoke[GetStatsResponse](ctx, c.cc, "GetStats", in, opts)
}
