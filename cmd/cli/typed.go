package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	u "github.com/gofrs/uuid/v5"

	pb "github.com/and161185/signflow/api/signflow/v1"
)

// ------- repeatable flags -------

// valuesFlag collects repeated -set key=value pairs.
type valuesFlag map[string]string

func (v valuesFlag) String() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+v[k])
	}
	return strings.Join(parts, ",")
}

func (v valuesFlag) Set(s string) error {
	k, val, ok := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	v[k] = val
	return nil
}

// listFlag collects repeated string flags.
type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ",") }
func (l *listFlag) Set(s string) error { *l = append(*l, s); return nil }

// ------- parsers -------

// parseSigner reads "id[:name[:email]]".
func parseSigner(s string) (*pb.SignerInvite, error) {
	parts := strings.SplitN(s, ":", 3)
	inv := &pb.SignerInvite{ID: strings.TrimSpace(parts[0])}
	if inv.ID == "" {
		return nil, fmt.Errorf("signer %q: empty id", s)
	}
	if len(parts) > 1 {
		inv.Name = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		inv.Email = strings.TrimSpace(parts[2])
	}
	return inv, nil
}

// parseField reads "key[:label[:kind]]".
func parseField(s string) (*pb.Field, error) {
	parts := strings.SplitN(s, ":", 3)
	f := &pb.Field{Key: strings.TrimSpace(parts[0])}
	if f.Key == "" {
		return nil, fmt.Errorf("field %q: empty key", s)
	}
	if len(parts) > 1 {
		f.Label = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		f.Kind = strings.TrimSpace(parts[2])
	}
	return f, nil
}

func checkUUID(id string) error {
	if _, err := u.FromString(id); err != nil {
		return errors.New("-id must be a uuid")
	}
	return nil
}

// ------- views -------

type docRow struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Signers string `json:"signers,omitempty"`
	Ver     int64  `json:"ver"`
	Updated string `json:"updated"`
}

func summarize(d *pb.Document) docRow {
	signed := 0
	for _, s := range d.Signers {
		if s.Status == "signed" {
			signed++
		}
	}
	r := docRow{ID: d.ID, Title: d.Title, Status: d.Status, Ver: d.Ver, Updated: tsString(d.UpdatedAt)}
	if len(d.Signers) > 0 {
		r.Signers = strconv.Itoa(signed) + "/" + strconv.Itoa(len(d.Signers))
	}
	return r
}

func need(cond bool, msg string) {
	if !cond {
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(1)
	}
}

// ------- commands -------

// cmdTemplates lists catalog templates.
func cmdTemplates(ctx context.Context, c conn, args []string) {
	fs := flag.NewFlagSet("templates", flag.ExitOnError)
	category := fs.String("category", "", "category filter")
	q := fs.String("q", "", "search title/description")
	_ = fs.Parse(args)

	cc, cli := c.anonymous(ctx)
	defer cc.Close()

	out, err := cli.ListTemplates(ctx, &pb.ListTemplatesRequest{Category: *category, Query: *q})
	if err != nil {
		fail(err)
	}
	type row struct {
		ID, Title, Category string
		Premium             bool
		Fields              int
	}
	rows := make([]row, 0, len(out.Templates))
	for _, t := range out.Templates {
		rows = append(rows, row{ID: t.ID, Title: t.Title, Category: t.Category, Premium: t.Premium, Fields: len(t.Fields)})
	}
	printJSON(rows)
}

// cmdTemplate prints one template with its fields.
func cmdTemplate(ctx context.Context, c conn, args []string) {
	fs := flag.NewFlagSet("template", flag.ExitOnError)
	id := fs.String("id", "", "template id")
	_ = fs.Parse(args)
	need(*id != "", "need -id")

	cc, cli := c.anonymous(ctx)
	defer cc.Close()

	out, err := cli.GetTemplate(ctx, &pb.GetTemplateRequest{ID: *id})
	if err != nil {
		fail(err)
	}
	printJSON(out.Template)
}

// cmdPreview renders a template with values without creating a document.
func cmdPreview(ctx context.Context, c conn, args []string) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	tpl := fs.String("template", "", "template id")
	outFile := fs.String("o", "", "write html to file instead of stdout")
	values := valuesFlag{}
	fs.Var(values, "set", "field value key=value (repeatable)")
	_ = fs.Parse(args)
	need(*tpl != "", "need -template")

	cc, cli := c.anonymous(ctx)
	defer cc.Close()

	out, err := cli.Preview(ctx, &pb.PreviewRequest{TemplateID: *tpl, Values: values})
	if err != nil {
		fail(err)
	}
	if *outFile != "" {
		if err := os.WriteFile(*outFile, []byte(out.HTML), 0o600); err != nil {
			fail(err)
		}
		return
	}
	fmt.Println(out.HTML)
}

// cmdCreate creates a draft from a template or from a body file.
func cmdCreate(ctx context.Context, c conn, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	tpl := fs.String("template", "", "template id")
	title := fs.String("title", "", "title")
	bodyFile := fs.String("body-file", "", "document body with {{key}} tokens ('-'=stdin)")
	values := valuesFlag{}
	fs.Var(values, "set", "field value key=value (repeatable)")
	var fieldSpecs listFlag
	fs.Var(&fieldSpecs, "field", "field key:label:kind (repeatable, body-file only)")
	_ = fs.Parse(args)
	need(*tpl != "" || *bodyFile != "", "need -template or -body-file")

	req := &pb.CreateDocumentRequest{TemplateID: *tpl, Title: *title, Values: values}
	if *tpl == "" {
		body, err := readAll(*bodyFile)
		if err != nil {
			fail(err)
		}
		req.Body = string(body)
		for _, s := range fieldSpecs {
			f, err := parseField(s)
			if err != nil {
				fail(err)
			}
			f.Value = values[f.Key]
			req.Fields = append(req.Fields, f)
		}
		req.Values = nil
	}

	cc, cli := c.authed(ctx)
	defer cc.Close()

	out, err := cli.CreateDocument(ctx, req)
	if err != nil {
		fail(err)
	}
	printJSON(summarize(out.Document))
}

// cmdList prints the caller's documents.
func cmdList(ctx context.Context, c conn, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	st := fs.String("status", "", "status filter")
	_ = fs.Parse(args)

	cc, cli := c.authed(ctx)
	defer cc.Close()

	out, err := cli.ListDocuments(ctx, &pb.ListDocumentsRequest{Status: *st})
	if err != nil {
		fail(err)
	}
	rows := make([]docRow, 0, len(out.Documents))
	for _, d := range out.Documents {
		rows = append(rows, summarize(d))
	}
	printJSON(rows)
}

// cmdGet prints a document, or only its rendered html with -html.
func cmdGet(ctx context.Context, c conn, args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	id := fs.String("id", "", "document id (uuid)")
	html := fs.Bool("html", false, "print rendered html only")
	_ = fs.Parse(args)
	if err := checkUUID(*id); err != nil {
		fail(err)
	}

	cc, cli := c.authed(ctx)
	defer cc.Close()

	out, err := cli.GetDocument(ctx, &pb.GetDocumentRequest{ID: *id})
	if err != nil {
		fail(err)
	}
	if *html {
		fmt.Println(out.Document.Rendered)
		return
	}
	printJSON(out.Document)
}

// cmdUpdate sets field values on a draft.
func cmdUpdate(ctx context.Context, c conn, args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.String("id", "", "document id (uuid)")
	base := fs.Int64("base", 0, "base version")
	title := fs.String("title", "", "new title")
	values := valuesFlag{}
	fs.Var(values, "set", "field value key=value (repeatable)")
	_ = fs.Parse(args)
	if err := checkUUID(*id); err != nil {
		fail(err)
	}
	need(*base > 0, "need -base")

	cc, cli := c.authed(ctx)
	defer cc.Close()

	out, err := cli.UpdateFields(ctx, &pb.UpdateFieldsRequest{ID: *id, BaseVer: *base, Title: *title, Values: values})
	if err != nil {
		fail(err)
	}
	printJSON(summarize(out.Document))
}

// cmdStart invites signers.
func cmdStart(ctx context.Context, c conn, args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	id := fs.String("id", "", "document id (uuid)")
	var specs listFlag
	fs.Var(&specs, "signer", "signer id[:name[:email]] (repeatable)")
	_ = fs.Parse(args)
	if err := checkUUID(*id); err != nil {
		fail(err)
	}
	need(len(specs) > 0, "need at least one -signer")

	req := &pb.StartSigningRequest{ID: *id}
	for _, s := range specs {
		inv, err := parseSigner(s)
		if err != nil {
			fail(err)
		}
		req.Signers = append(req.Signers, inv)
	}

	cc, cli := c.authed(ctx)
	defer cc.Close()

	out, err := cli.StartSigning(ctx, req)
	if err != nil {
		fail(err)
	}
	printJSON(out.Document.Signers)
}

// cmdSign submits a signature artifact for one signer.
func cmdSign(ctx context.Context, c conn, args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	id := fs.String("id", "", "document id (uuid)")
	signer := fs.String("signer", "", "signer id")
	file := fs.String("file", "", "signature artifact file ('-'=stdin)")
	text := fs.String("text", "", "typed signature")
	_ = fs.Parse(args)
	if err := checkUUID(*id); err != nil {
		fail(err)
	}
	need(*signer != "", "need -signer")
	need((*file == "") != (*text == ""), "need exactly one of -file or -text")

	artifact := []byte(*text)
	if *file != "" {
		b, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		artifact = b
	}

	cc, cli := c.authed(ctx)
	defer cc.Close()

	out, err := cli.SubmitSignature(ctx, &pb.SubmitSignatureRequest{DocumentID: *id, SignerID: *signer, Artifact: artifact})
	if err != nil {
		fail(err)
	}
	row := summarize(out.Document)
	printJSON(struct {
		docRow
		Completed bool `json:"completed"`
	}{row, out.Completed})
}

// cmdCancel expires a draft or pending document.
func cmdCancel(ctx context.Context, c conn, args []string) {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	id := fs.String("id", "", "document id (uuid)")
	_ = fs.Parse(args)
	if err := checkUUID(*id); err != nil {
		fail(err)
	}

	cc, cli := c.authed(ctx)
	defer cc.Close()

	out, err := cli.CancelDocument(ctx, &pb.CancelDocumentRequest{ID: *id})
	if err != nil {
		fail(err)
	}
	printJSON(summarize(out.Document))
}

// cmdStats prints per-status counters.
func cmdStats(ctx context.Context, c conn) {
	cc, cli := c.authed(ctx)
	defer cc.Close()

	out, err := cli.GetStats(ctx, &pb.GetStatsRequest{})
	if err != nil {
		fail(err)
	}
	printJSON(out)
}
