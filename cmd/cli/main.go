// Command sf is a CLI client for the signflow service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpcinsecure "google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	pb "github.com/and161185/signflow/api/signflow/v1"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id,omitempty"`
	Email       string    `json:"email,omitempty"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "signflow")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "signflow")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// tokenExpiry prefers the server-reported expiry and falls back to the exp claim.
func tokenExpiry(token string, reported *timestamppb.Timestamp) time.Time {
	if reported != nil {
		return reported.AsTime()
	}
	var claims jwt.RegisteredClaims
	_, _, _ = jwt.NewParser().ParseUnverified(token, &claims)
	if claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(15 * time.Minute)
}

// ---- grpc dial ----

type conn struct {
	addr      string
	caPath    string
	insecure  bool
	plaintext bool
}

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, insecure bool) (credentials.TransportCredentials, error) {
	if insecure {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func (c conn) dial(ctx context.Context, bearer string) (*grpc.ClientConn, *pb.Client, error) {
	var creds credentials.TransportCredentials
	if c.plaintext {
		creds = grpcinsecure.NewCredentials()
	} else {
		var err error
		if creds, err = loadTLS(c.caPath, c.insecure); err != nil {
			return nil, nil, err
		}
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, secure: !c.plaintext}))
	}
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(ctx, c.addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cc, pb.NewClient(cc), nil
}

// authed dials with the stored token.
func (c conn) authed(ctx context.Context) (*grpc.ClientConn, *pb.Client) {
	token, err := loadToken()
	if err != nil {
		fail(err)
	}
	cc, cli, err := c.dial(ctx, token)
	if err != nil {
		fail(err)
	}
	return cc, cli
}

func (c conn) anonymous(ctx context.Context) (*grpc.ClientConn, *pb.Client) {
	cc, cli, err := c.dial(ctx, "")
	if err != nil {
		fail(err)
	}
	return cc, cli
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `sf CLI
Usage:
  sf -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  register   -name <name> -email <email> -p <password>
  login      -email <email> -p <password>             (saves token)
  templates  [-category <c>] [-q <text>]
  template   -id <template id>
  preview    -template <id> [-set key=value ...] [-o file.html]
  create     -template <id> [-title t] [-set key=value ...]
  create     -title t -body-file <file> [-field key:label:kind ...] [-set key=value ...]
  list       [-status draft|pending|signed|expired]
  get        -id <uuid> [-html]
  update     -id <uuid> -base <ver> [-title t] [-set key=value ...]
  start      -id <uuid> -signer id[:name[:email]] ...
  sign       -id <uuid> -signer <id> (-file <artifact> | -text <typed name>)
  cancel     -id <uuid>
  stats
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	// global flags
	addr := flag.String("addr", "localhost:8443", "server addr")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	insecure := flag.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := flag.Bool("plaintext", false, "no TLS at all (dev server started with -insecure)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]
	c := conn{addr: *addr, caPath: *caPath, insecure: *insecure, plaintext: *plaintext}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("sf %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		name := fs.String("name", "", "display name")
		email := fs.String("email", "", "email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *email == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -email and -p")
			os.Exit(1)
		}

		cc, cli := c.anonymous(ctx)
		defer cc.Close()

		resp, err := cli.Register(ctx, &pb.RegisterRequest{Name: *name, Email: *email, Password: *p})
		if err != nil {
			fail(err)
		}
		fmt.Println(resp.UserID)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *email == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -email and -p")
			os.Exit(1)
		}

		cc, cli := c.anonymous(ctx)
		defer cc.Close()

		resp, err := cli.Login(ctx, &pb.LoginRequest{Email: *email, Password: *p})
		if err != nil {
			fail(err)
		}
		err = saveToken(tokenFile{
			AccessToken: resp.AccessToken,
			ExpiresAt:   tokenExpiry(resp.AccessToken, resp.ExpiresAt),
			UserID:      resp.UserID,
			Email:       resp.Email,
		})
		if err != nil {
			fail(err)
		}
		fmt.Printf("ok (%s)\n", resp.Name)

	case "templates":
		cmdTemplates(ctx, c, args)
	case "template":
		cmdTemplate(ctx, c, args)
	case "preview":
		cmdPreview(ctx, c, args)
	case "create":
		cmdCreate(ctx, c, args)
	case "list":
		cmdList(ctx, c, args)
	case "get":
		cmdGet(ctx, c, args)
	case "update":
		cmdUpdate(ctx, c, args)
	case "start":
		cmdStart(ctx, c, args)
	case "sign":
		cmdSign(ctx, c, args)
	case "cancel":
		cmdCancel(ctx, c, args)
	case "stats":
		cmdStats(ctx, c)
	default:
		usage()
	}
}

// ---- helpers ----

func tsString(ts *timestamppb.Timestamp) string {
	if ts == nil {
		return ""
	}
	return ts.AsTime().UTC().Format(time.RFC3339)
}

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
