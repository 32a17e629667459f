package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jrsteele09/go-rag-client/apiclient"
	"github.com/jrsteele09/go-rag-client/authsession"
	"github.com/jrsteele09/go-rag-client/internal/utils"
)

type command struct {
	usage   string
	summary string
	run     func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error
}

var commands = map[string]command{
	"login":           {"-email EMAIL -password PASSWORD", "sign in and store the session", cmdLogin},
	"logout":          {"", "sign out and forget the session", cmdLogout},
	"whoami":          {"", "show the signed-in user", cmdWhoami},
	"register":        {"-email EMAIL -password PASSWORD [-first NAME] [-last NAME]", "create an account", cmdRegister},
	"reset-request":   {"-email EMAIL", "request a password reset", cmdResetRequest},
	"reset-confirm":   {"-token TOKEN -password PASSWORD", "set a new password with a reset token", cmdResetConfirm},
	"change-password": {"-current PASSWORD -new PASSWORD", "change the password of the signed-in user", cmdChangePassword},
	"docs":            {"list [-skip N] [-limit N] [-status S] | get ID | upload FILE... | delete ID", "manage documents", cmdDocs},
	"search":          {"[-limit N] [-threshold F] QUERY...", "semantic search over the documents", cmdSearch},
	"suggest":         {"QUERY...", "query suggestions", cmdSuggest},
	"chat":            {"[-conversation ID] MESSAGE...", "ask the assistant", cmdChat},
	"history":         {"CONVERSATION_ID", "show a conversation", cmdHistory},
	"conversations":   {"", "list your conversations", cmdConversations},
	"status":          {"", "system status", cmdStatus},
	"health":          {"", "API health probe", cmdHealth},
	"reindex":         {"", "rebuild the search index", cmdReindex},
	"analytics":       {"[-days N] queries | documents", "usage analytics", cmdAnalytics},
	"version":         {"", "print the version", nil},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: ragcli [-api URL] [-timeout D] <command> [flags] [args]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, commands[name].summary)
	}
	_ = tw.Flush()
}

func cmdLogin(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("RAG_PASSWORD"), "account password (default $RAG_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errUsage
	}
	res := a.manager.Login(ctx, *email, *password)
	if !res.Success {
		return res.Err()
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", res.Data.DisplayName())
	return nil
}

func cmdLogout(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if res := a.manager.Logout(ctx); !res.Success {
		return res.Err()
	}
	a.println("Signed out")
	return nil
}

func cmdWhoami(_ context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	snap := a.manager.Snapshot()
	switch snap.State {
	case authsession.StateAuthenticated:
		if snap.Degraded() {
			fmt.Fprintf(a.errOut, "warning: %s\n", snap.LastError)
		}
		return a.printJSON(snap.User)
	case authsession.StateResolving:
		return fmt.Errorf("could not confirm the session: %s", authsession.MsgNoConnection)
	}
	if snap.LastError != "" {
		return errors.New(snap.LastError)
	}
	return errors.New(authsession.MsgNotSignedIn)
}

func cmdRegister(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	var in apiclient.RegisterRequest
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Password, "password", os.Getenv("RAG_PASSWORD"), "account password (default $RAG_PASSWORD)")
	fs.StringVar(&in.FirstName, "first", "", "first name")
	fs.StringVar(&in.LastName, "last", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if in.Email == "" {
		return errUsage
	}
	res := a.manager.Register(ctx, in)
	if !res.Success {
		return res.Err()
	}
	fmt.Fprintf(a.out, "Registered %s. Run `ragcli login` to sign in.\n", in.Email)
	return nil
}

func cmdResetRequest(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errUsage
	}
	res := a.manager.RequestPasswordReset(ctx, *email)
	if !res.Success {
		return res.Err()
	}
	a.println(res.Data.Message)
	return nil
}

func cmdResetConfirm(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	token := fs.String("token", "", "reset token from the email")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return errUsage
	}
	res := a.manager.ConfirmPasswordReset(ctx, *token, *password)
	if !res.Success {
		return res.Err()
	}
	a.println(res.Data.Message)
	return nil
}

func cmdChangePassword(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	current := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	res := a.manager.ChangePassword(ctx, *current, *next)
	if !res.Success {
		return res.Err()
	}
	a.println(res.Data.Message)
	return nil
}

func cmdDocs(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "list":
		var params apiclient.ListDocumentsParams
		fs.IntVar(&params.Skip, "skip", 0, "documents to skip")
		fs.IntVar(&params.Limit, "limit", 0, "maximum documents to return")
		status := fs.String("status", "", "processing, processed or failed")
		if err := fs.Parse(args); err != nil {
			return err
		}
		params.Status = apiclient.DocumentStatus(*status)
		docs, err := a.client.ListDocuments(ctx, params)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFILENAME\tSIZE\tSTATUS\tUPLOADED")
		for _, d := range docs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", d.ID, d.Filename, d.Size, d.Status, d.UploadedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	case "get":
		if len(args) != 1 {
			return errUsage
		}
		doc, err := a.client.GetDocument(ctx, args[0])
		if err != nil {
			return err
		}
		return a.printJSON(doc)
	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		msg, err := a.client.DeleteDocument(ctx, args[0])
		if err != nil {
			return err
		}
		a.println(msg.Message)
		return nil
	case "upload":
		if len(args) == 0 {
			return errUsage
		}
		uploads := make([]apiclient.Upload, 0, len(args))
		for _, path := range args {
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			uploads = append(uploads, apiclient.Upload{
				Filename:    filepath.Base(path),
				ContentType: mime.TypeByExtension(filepath.Ext(path)),
				Content:     content,
			})
		}
		if len(uploads) == 1 {
			doc, err := a.client.UploadDocument(ctx, uploads[0])
			if err != nil {
				return err
			}
			return a.printJSON(doc)
		}
		docs, err := a.client.UploadDocuments(ctx, uploads)
		if err != nil {
			return err
		}
		return a.printJSON(docs)
	}
	return errUsage
}

func cmdSearch(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	limit := fs.Int("limit", 0, "maximum results (server default when 0)")
	threshold := fs.Float64("threshold", -1, "minimum score (server default when negative)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	q := apiclient.SearchQuery{Query: strings.Join(fs.Args(), " ")}
	if *limit > 0 {
		q.Limit = utils.Ptr(*limit)
	}
	if *threshold >= 0 {
		q.Threshold = utils.Ptr(*threshold)
	}
	results, err := a.client.Search(ctx, q)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		a.println("No results")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(a.out, "[%.2f] %s\n  %s\n", r.Score, r.DocumentID, r.Content)
	}
	return nil
}

func cmdSuggest(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	suggestions, err := a.client.SearchSuggestions(ctx, strings.Join(fs.Args(), " "))
	if err != nil {
		return err
	}
	for _, s := range suggestions {
		a.println(s)
	}
	return nil
}

func cmdChat(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	conversation := fs.String("conversation", "", "continue this conversation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	resp, id, err := a.client.SendMessage(ctx, strings.Join(fs.Args(), " "), *conversation)
	if err != nil {
		return err
	}
	a.println(resp.Response)
	for _, s := range resp.Sources {
		fmt.Fprintf(a.out, "  source: %s (%.2f)\n", s.DocumentID, s.Score)
	}
	fmt.Fprintf(a.errOut, "conversation: %s\n", id)
	return nil
}

func cmdHistory(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	history, err := a.client.ChatHistory(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	for _, m := range history.History {
		fmt.Fprintf(a.out, "%s %s: %s\n", m.Timestamp.Format("15:04"), m.Role, m.Content)
	}
	return nil
}

func cmdConversations(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	list, err := a.client.Conversations(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tUPDATED")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.ID, c.Title, c.MessageCount, c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func cmdStatus(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	status, err := a.client.Status(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(status)
}

func cmdHealth(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	health, err := a.client.Health(ctx)
	if err != nil {
		return err
	}
	a.println(health.Status)
	return nil
}

func cmdReindex(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	msg, err := a.client.Reindex(ctx)
	if err != nil {
		return err
	}
	if msg.EstimatedTime != "" {
		fmt.Fprintf(a.out, "%s (estimated %s)\n", msg.Message, msg.EstimatedTime)
		return nil
	}
	a.println(msg.Message)
	return nil
}

func cmdAnalytics(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	days := fs.Int("days", 0, "look-back window for queries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	switch fs.Arg(0) {
	case "queries":
		queries, err := a.client.QueryAnalytics(ctx, *days)
		if err != nil {
			return err
		}
		return a.printJSON(queries)
	case "documents":
		docs, err := a.client.DocumentAnalytics(ctx)
		if err != nil {
			return err
		}
		return a.printJSON(docs)
	}
	return errUsage
}
