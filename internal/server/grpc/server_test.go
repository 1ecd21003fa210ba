package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	pb "github.com/and161185/signflow/api/signflow/v1"
	"github.com/and161185/signflow/internal/catalog"
	"github.com/and161185/signflow/internal/errs"
	"github.com/and161185/signflow/internal/limiter"
	"github.com/and161185/signflow/internal/repository/kv"
	"github.com/and161185/signflow/internal/service"
	"github.com/and161185/signflow/internal/storage"
	"github.com/and161185/signflow/internal/workflow"
)

const bufSize = 1 << 20

func newStack(t *testing.T, signKey []byte) *Server {
	t.Helper()
	log := zaptest.NewLogger(t)
	p := storage.NewMemory()
	docs := kv.NewDocumentRepo(p)
	cat, err := catalog.Builtin()
	require.NoError(t, err)

	wf := workflow.New(docs, workflow.WithLogger(log))
	auth := service.NewAuthService(kv.NewUserRepo(p), signKey, time.Hour, limiter.NewMemory(time.Minute, 5, time.Minute))
	return New(auth,
		service.NewDocumentService(docs, cat),
		service.NewSignatureService(docs, wf, 5, log),
		cat, signKey)
}

func startBufGRPC(t *testing.T, srv *Server) (*pb.Client, func()) {
	t.Helper()
	log := zaptest.NewLogger(t)
	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(log),
		LoggingUnary(log),
		AuthUnary(srv.signKey),
	))
	pb.RegisterSignflowServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	stop := func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() }
	return pb.NewClient(cc), stop
}

/************ helpers ************/
func jwtFor(t *testing.T, sub string, key []byte, ttl time.Duration) string {
	t.Helper()
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl + 5*time.Second)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return s
}

func ctxAuth(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("authorization", "Bearer "+token))
}

func outAuth(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	st, ok := status.FromError(err)
	if !ok || st.Code() != want {
		t.Fatalf("want %s, got %v", want, err)
	}
}

func TestServer_E2E_SigningFlow(t *testing.T) {
	t.Parallel()

	signKey := []byte("test-secret")
	cl, stop := startBufGRPC(t, newStack(t, signKey))
	defer stop()
	ctx := context.Background()

	r1, err := cl.Register(ctx, &pb.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, r1.UserID)

	_, err = cl.Register(ctx, &pb.RegisterRequest{Name: "Ana", Email: "ANA@example.com", Password: "secret1"})
	requireCode(t, err, codes.AlreadyExists)

	lg, err := cl.Login(ctx, &pb.LoginRequest{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, r1.UserID, lg.UserID)
	require.Equal(t, "Ana", lg.Name)
	require.NotNil(t, lg.ExpiresAt)

	_, err = cl.Login(ctx, &pb.LoginRequest{Email: "ana@example.com", Password: "wrong!!"})
	requireCode(t, err, codes.Unauthenticated)

	_, err = cl.GetStats(ctx, &pb.GetStatsRequest{})
	requireCode(t, err, codes.Unauthenticated)

	authed := outAuth(lg.AccessToken)

	tl, err := cl.ListTemplates(ctx, &pb.ListTemplatesRequest{Category: "Termos"})
	require.NoError(t, err)
	require.Len(t, tl.Templates, 1)
	require.Equal(t, "3", tl.Templates[0].ID)
	require.NotEmpty(t, tl.Categories)

	pv, err := cl.Preview(ctx, &pb.PreviewRequest{TemplateID: "3", Values: map[string]string{"nome_usuario": "<b>Ana</b>"}})
	require.NoError(t, err)
	require.Contains(t, pv.HTML, "Ana")
	require.Contains(t, pv.HTML, "[Email do Usu")

	cr, err := cl.CreateDocument(authed, &pb.CreateDocumentRequest{
		TemplateID: "3",
		Values:     map[string]string{"nome_usuario": "Ana", "email_usuario": "ana@example.com"},
	})
	require.NoError(t, err)
	doc := cr.Document
	require.Equal(t, "draft", doc.Status)
	require.Equal(t, "Termo de Aceite", doc.Title)

	up, err := cl.UpdateFields(authed, &pb.UpdateFieldsRequest{
		ID: doc.ID, BaseVer: doc.Ver, Values: map[string]string{"descricao_servico": "Hospedagem"},
	})
	require.NoError(t, err)
	require.Greater(t, up.Document.Ver, doc.Ver)

	_, err = cl.UpdateFields(authed, &pb.UpdateFieldsRequest{
		ID: doc.ID, BaseVer: doc.Ver, Values: map[string]string{"descricao_servico": "stale"},
	})
	requireCode(t, err, codes.Aborted)

	gd, err := cl.GetDocument(authed, &pb.GetDocumentRequest{ID: doc.ID})
	require.NoError(t, err)
	require.Contains(t, gd.Document.Rendered, "Hospedagem")
	require.NotContains(t, gd.Document.Rendered, "{{")

	st, err := cl.StartSigning(authed, &pb.StartSigningRequest{ID: doc.ID, Signers: []*pb.SignerInvite{
		{ID: "s1", Name: "Ana"}, {ID: "s2", Name: "Bruno"},
	}})
	require.NoError(t, err)
	require.Equal(t, "pending", st.Document.Status)
	require.Len(t, st.Document.Signers, 2)

	s2, err := cl.SubmitSignature(authed, &pb.SubmitSignatureRequest{DocumentID: doc.ID, SignerID: "s2", Artifact: []byte("sig-2")})
	require.NoError(t, err)
	require.False(t, s2.Completed)
	require.Equal(t, "pending", s2.Document.Status)

	_, err = cl.SubmitSignature(authed, &pb.SubmitSignatureRequest{DocumentID: doc.ID, SignerID: "s2", Artifact: []byte("again")})
	requireCode(t, err, codes.AlreadyExists)

	_, err = cl.SubmitSignature(authed, &pb.SubmitSignatureRequest{DocumentID: doc.ID, SignerID: "nobody", Artifact: []byte("x")})
	requireCode(t, err, codes.NotFound)

	s1, err := cl.SubmitSignature(authed, &pb.SubmitSignatureRequest{DocumentID: doc.ID, SignerID: "s1", Artifact: []byte("sig-1")})
	require.NoError(t, err)
	require.True(t, s1.Completed)
	require.Equal(t, "signed", s1.Document.Status)

	_, err = cl.CancelDocument(authed, &pb.CancelDocumentRequest{ID: doc.ID})
	requireCode(t, err, codes.FailedPrecondition)

	ld, err := cl.ListDocuments(authed, &pb.ListDocumentsRequest{Status: "signed"})
	require.NoError(t, err)
	require.Len(t, ld.Documents, 1)

	_, err = cl.ListDocuments(authed, &pb.ListDocumentsRequest{Status: "bogus"})
	requireCode(t, err, codes.InvalidArgument)

	stats, err := cl.GetStats(authed, &pb.GetStatsRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Total)
	require.Equal(t, int64(1), stats.Signed)
}

func TestServer_E2E_CancelAndOwnership(t *testing.T) {
	t.Parallel()

	signKey := []byte("test-secret")
	cl, stop := startBufGRPC(t, newStack(t, signKey))
	defer stop()

	owner := outAuth(jwtFor(t, uuid.Must(uuid.NewV4()).String(), signKey, time.Minute))
	other := outAuth(jwtFor(t, uuid.Must(uuid.NewV4()).String(), signKey, time.Minute))

	cr, err := cl.CreateDocument(owner, &pb.CreateDocumentRequest{
		Title:  "Livre",
		Body:   "<p>Olá {{nome}}</p>",
		Fields: []*pb.Field{{Key: "nome", Label: "Nome", Kind: "text"}},
	})
	require.NoError(t, err)

	_, err = cl.GetDocument(other, &pb.GetDocumentRequest{ID: cr.Document.ID})
	requireCode(t, err, codes.NotFound)

	_, err = cl.CancelDocument(other, &pb.CancelDocumentRequest{ID: cr.Document.ID})
	requireCode(t, err, codes.NotFound)

	cd, err := cl.CancelDocument(owner, &pb.CancelDocumentRequest{ID: cr.Document.ID})
	require.NoError(t, err)
	require.Equal(t, "expired", cd.Document.Status)

	_, err = cl.StartSigning(owner, &pb.StartSigningRequest{ID: cr.Document.ID, Signers: []*pb.SignerInvite{{ID: "s1"}}})
	requireCode(t, err, codes.FailedPrecondition)

	_, err = cl.GetDocument(owner, &pb.GetDocumentRequest{ID: "not-a-uuid"})
	requireCode(t, err, codes.InvalidArgument)

	_, err = cl.CreateDocument(owner, &pb.CreateDocumentRequest{
		Body: "x", Fields: []*pb.Field{{Key: "a", Kind: "blob"}},
	})
	requireCode(t, err, codes.InvalidArgument)
}

func TestServer_E2E_TemplateErrors(t *testing.T) {
	t.Parallel()

	cl, stop := startBufGRPC(t, newStack(t, []byte("k")))
	defer stop()
	ctx := context.Background()

	_, err := cl.GetTemplate(ctx, &pb.GetTemplateRequest{ID: "404"})
	requireCode(t, err, codes.NotFound)

	_, err = cl.GetTemplate(ctx, &pb.GetTemplateRequest{ID: " "})
	requireCode(t, err, codes.InvalidArgument)

	gt, err := cl.GetTemplate(ctx, &pb.GetTemplateRequest{ID: "1"})
	require.NoError(t, err)
	require.NotEmpty(t, gt.Template.Fields)

	_, err = cl.Preview(ctx, &pb.PreviewRequest{TemplateID: "3", Values: map[string]string{"unknown": "x"}})
	requireCode(t, err, codes.InvalidArgument)
}

func Test_toStatus_Mapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want codes.Code
	}{
		{errs.ErrNotFound, codes.NotFound},
		{errs.ErrInvalidState, codes.FailedPrecondition},
		{errs.ErrAlreadySigned, codes.AlreadyExists},
		{errs.ErrAlreadyExists, codes.AlreadyExists},
		{errs.ErrConcurrentModification, codes.Aborted},
		{errs.ErrStorage, codes.Unavailable},
		{errs.ErrInvalidArgument, codes.InvalidArgument},
		{errs.ErrUnauthorized, codes.Unauthenticated},
		{errs.ErrRateLimited, codes.ResourceExhausted},
		{fmt.Errorf("get: %w", errs.ErrNotFound), codes.NotFound},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{status.Error(codes.PermissionDenied, "x"), codes.PermissionDenied},
		{errors.New("db password is hunter2"), codes.Internal},
	}
	for _, c := range cases {
		requireCode(t, toStatus(c.err), c.want)
	}
	require.NoError(t, toStatus(nil))

	st, _ := status.FromError(toStatus(errors.New("db password is hunter2")))
	require.False(t, strings.Contains(st.Message(), "hunter2"))
}

func Test_remoteIP_EmptyIsOk(t *testing.T) {
	if got := remoteIP(context.Background()); got != "" {
		t.Fatalf("want empty, got %q", got)
	}
}

func Test_Register_EmptyFields(t *testing.T) {
	s := &Server{signKey: []byte("k")}
	_, err := s.Register(context.Background(), &pb.RegisterRequest{})
	requireCode(t, err, codes.InvalidArgument)
}

func Test_OwnerScoped_Unauthenticated(t *testing.T) {
	t.Parallel()
	s := &Server{signKey: []byte("k")}
	ctx := context.Background()

	_, err := s.CreateDocument(ctx, &pb.CreateDocumentRequest{})
	requireCode(t, err, codes.Unauthenticated)
	_, err = s.GetDocument(ctx, &pb.GetDocumentRequest{ID: "x"})
	requireCode(t, err, codes.Unauthenticated)
	_, err = s.ListDocuments(ctx, &pb.ListDocumentsRequest{})
	requireCode(t, err, codes.Unauthenticated)
	_, err = s.UpdateFields(ctx, &pb.UpdateFieldsRequest{})
	requireCode(t, err, codes.Unauthenticated)
	_, err = s.StartSigning(ctx, &pb.StartSigningRequest{})
	requireCode(t, err, codes.Unauthenticated)
	_, err = s.SubmitSignature(ctx, &pb.SubmitSignatureRequest{})
	requireCode(t, err, codes.Unauthenticated)
	_, err = s.CancelDocument(ctx, &pb.CancelDocumentRequest{})
	requireCode(t, err, codes.Unauthenticated)
	_, err = s.GetStats(ctx, &pb.GetStatsRequest{})
	requireCode(t, err, codes.Unauthenticated)
}

func Test_BadIDs_WithAuth(t *testing.T) {
	t.Parallel()
	key := []byte("secret")
	s := &Server{signKey: key}
	ctx := ctxAuth(jwtFor(t, uuid.Must(uuid.NewV4()).String(), key, time.Hour))

	_, err := s.GetDocument(ctx, &pb.GetDocumentRequest{ID: "not-a-uuid"})
	requireCode(t, err, codes.InvalidArgument)
	_, err = s.UpdateFields(ctx, &pb.UpdateFieldsRequest{ID: "bad"})
	requireCode(t, err, codes.InvalidArgument)
	_, err = s.StartSigning(ctx, &pb.StartSigningRequest{ID: "bad"})
	requireCode(t, err, codes.InvalidArgument)
	_, err = s.SubmitSignature(ctx, &pb.SubmitSignatureRequest{DocumentID: "bad"})
	requireCode(t, err, codes.InvalidArgument)
	_, err = s.CancelDocument(ctx, &pb.CancelDocumentRequest{ID: "bad"})
	requireCode(t, err, codes.InvalidArgument)
}

func Test_StartSigning_NilInvite(t *testing.T) {
	t.Parallel()
	key := []byte("secret")
	s := &Server{signKey: key}
	ctx := ctxAuth(jwtFor(t, uuid.Must(uuid.NewV4()).String(), key, time.Hour))

	_, err := s.StartSigning(ctx, &pb.StartSigningRequest{
		ID: uuid.Must(uuid.NewV4()).String(), Signers: []*pb.SignerInvite{nil},
	})
	requireCode(t, err, codes.InvalidArgument)
}

func Test_caller_PrefersContextID(t *testing.T) {
	t.Parallel()
	s := &Server{signKey: []byte("k")}
	want := uuid.Must(uuid.NewV4())
	got, err := s.caller(WithUserID(context.Background(), want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func Test_bearerTokenFromMD_MultipleHeaders_CaseInsensitive_Spaces(t *testing.T) {
	t.Parallel()
	md := metadata.New(nil)
	md.Append("authorization", "Basic foo")
	md.Append("authorization", "  bearer   tok.part.sig   ")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	got, err := bearerTokenFromMD(ctx)
	if err != nil || got != "tok.part.sig" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}

func Test_userIDFromCtx_NotBeforeInFuture(t *testing.T) {
	t.Parallel()
	key := []byte("k")
	s := &Server{signKey: key}
	sub := uuid.Must(uuid.NewV4()).String()
	nbf := time.Now().UTC().Add(10 * time.Minute)
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		NotBefore: jwt.NewNumericDate(nbf),
		ExpiresAt: jwt.NewNumericDate(nbf.Add(time.Hour)),
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if _, err := s.userIDFromCtx(ctxAuth(tok)); err == nil {
		t.Fatalf("expected error for nbf in future")
	}
}

func Test_userIDFromCtx_WrongKeySignature(t *testing.T) {
	t.Parallel()
	sub := uuid.Must(uuid.NewV4()).String()
	tok := jwtFor(t, sub, []byte("signer"), time.Hour)
	s := &Server{signKey: []byte("verifier")}
	if _, err := s.userIDFromCtx(ctxAuth(tok)); err == nil {
		t.Fatalf("expected invalid signature error")
	}
}

type loopbackAddr struct{}

func (loopbackAddr) Network() string { return "tcp" }
func (loopbackAddr) String() string  { return "127.0.0.1:5555" }

func Test_remoteIP_WithPeer(t *testing.T) {
	t.Parallel()
	pctx := peer.NewContext(context.Background(), &peer.Peer{Addr: loopbackAddr{}})
	if got := remoteIP(pctx); got == "" {
		t.Fatalf("expected non-empty peer ip:port")
	}
}

func Test_bearerTokenFromMD_NoBearerAmongMany(t *testing.T) {
	t.Parallel()
	md := metadata.New(nil)
	md.Append("authorization", "Basic a")
	md.Append("authorization", "Digest b")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("expected error when no bearer present")
	}
}

func Test_userIDFromCtx_LeewayAllowsSmallClockSkew(t *testing.T) {
	t.Parallel()
	key := []byte("k")
	s := &Server{signKey: key}
	sub := uuid.Must(uuid.NewV4()).String()
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(1 * time.Second)),
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if _, err := s.userIDFromCtx(ctxAuth(tok)); err != nil {
		t.Fatalf("unexpected leeway validation error: %v", err)
	}
}
