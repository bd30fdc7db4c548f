package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/isdb-fas/fasdesk/internal/markdown"
	"github.com/isdb-fas/fasdesk/internal/model"
)

func categoryFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "category",
		Aliases: []string{"c"},
		Usage:   "Scenario category (defaults to the session's active category)",
	}
}

func standardFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "fas",
		Usage: "Tag the question with a standard, e.g. \"FAS 28\"",
	}
}

func attachFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "attach",
		Usage: "Pending upload ID to attach (repeatable, all pending uploads when omitted)",
	}
}

// SessionCommand returns the session command
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Show the active category, current conversation and visible messages",
		Action: func(c *cli.Context) error {
			var snap model.Snapshot
			if err := clientFrom(c).do(c.Context, "GET", "/api/v1/session", nil, &snap); err != nil {
				return err
			}
			printSnapshot(c.App.Writer, snap)
			return nil
		},
	}
}

// CategoryCommand returns the category command
func CategoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "category",
		Usage:     "Switch the active scenario category",
		ArgsUsage: "CATEGORY",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("missing required argument: category")
			}
			var snap model.Snapshot
			req := model.SetCategoryRequest{Category: model.ScenarioCategory(strings.Join(c.Args().Slice(), " "))}
			if err := clientFrom(c).do(c.Context, "PUT", "/api/v1/session", req, &snap); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Active category: %s\n", snap.Category)
			return nil
		},
	}
}

// SendCommand returns the send command
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Ask a question in the current conversation, starting one if needed",
		ArgsUsage: "TEXT...",
		Flags: []cli.Flag{
			standardFlag(),
			attachFlag(),
			&cli.BoolFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "Wait for the answer and print it",
			},
			&cli.DurationFlag{
				Name:  "poll",
				Value: time.Second,
				Usage: "Interval between checks while waiting",
			},
		},
		Action: runSend,
	}
}

func runSend(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: text")
	}

	client := clientFrom(c)
	req := model.SendMessageRequest{
		Content:       strings.Join(c.Args().Slice(), " "),
		Standard:      model.StandardTag(c.String("fas")),
		AttachmentIDs: c.StringSlice("attach"),
	}

	var resp model.SendMessageResponse
	if err := client.do(c.Context, "POST", "/api/v1/messages", req, &resp); err != nil {
		return err
	}
	if resp.Created && resp.Conversation != nil {
		fmt.Fprintf(c.App.Writer, "Started conversation %q\n", resp.Conversation.Title)
	}
	fmt.Fprintf(c.App.Writer, "Sent message %s\n", resp.Message.ID)

	if !c.Bool("wait") {
		return nil
	}
	answer, err := waitForAnswer(c.Context, client, resp.Message.ID, c.Duration("poll"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer)
	fmt.Fprintln(c.App.Writer, answer.Content)
	return nil
}

// waitForAnswer polls the visible list until a system message follows the sent one.
func waitForAnswer(ctx context.Context, client *apiClient, sentID string, every time.Duration) (model.Message, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		var list model.ListMessagesResponse
		if err := client.do(ctx, "GET", "/api/v1/messages", nil, &list); err != nil {
			return model.Message{}, err
		}
		seen := false
		for _, m := range list.Messages {
			if m.ID == sentID {
				seen = true
				continue
			}
			if seen && m.Sender == model.SenderSystem {
				return m, nil
			}
		}
		if !seen {
			return model.Message{}, fmt.Errorf("message %s is no longer visible", sentID)
		}

		select {
		case <-ctx.Done():
			return model.Message{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// NewCommand returns the new command
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Start a new conversation, optionally with a first question",
		ArgsUsage: "[TEXT...]",
		Flags:     []cli.Flag{standardFlag(), attachFlag()},
		Action: func(c *cli.Context) error {
			req := model.CreateConversationRequest{
				Content:       strings.Join(c.Args().Slice(), " "),
				Standard:      model.StandardTag(c.String("fas")),
				AttachmentIDs: c.StringSlice("attach"),
			}
			var resp model.CreateConversationResponse
			if err := clientFrom(c).do(c.Context, "POST", "/api/v1/conversations", req, &resp); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Started conversation %q in %s\n", resp.Conversation.Title, resp.Conversation.Category)
			return nil
		},
	}
}

// ListCommand returns the list command
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List conversation titles, most recent first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "category",
				Aliases: []string{"c"},
				Usage:   "Only list one category",
			},
		},
		Action: func(c *cli.Context) error {
			path := "/api/v1/conversations"
			if cat := c.String("category"); cat != "" {
				path += "?category=" + url.QueryEscape(cat)
			}
			var resp model.ListConversationsResponse
			if err := clientFrom(c).do(c.Context, "GET", path, nil, &resp); err != nil {
				return err
			}
			for _, cat := range model.Categories() {
				titles, ok := resp.Conversations[cat]
				if !ok {
					continue
				}
				fmt.Fprintf(c.App.Writer, "%s:\n", cat)
				if len(titles) == 0 {
					fmt.Fprintln(c.App.Writer, "  (none)")
				}
				for _, t := range titles {
					fmt.Fprintf(c.App.Writer, "  %s\n", t)
				}
			}
			return nil
		},
	}
}

// resolveCategory returns the --category flag, or the session's active category.
func resolveCategory(c *cli.Context, client *apiClient) (model.ScenarioCategory, error) {
	if cat := c.String("category"); cat != "" {
		return model.ScenarioCategory(cat), nil
	}
	var snap model.Snapshot
	if err := client.do(c.Context, "GET", "/api/v1/session", nil, &snap); err != nil {
		return "", err
	}
	return snap.Category, nil
}

// LoadCommand returns the load command
func LoadCommand() *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "Show a stored conversation",
		ArgsUsage: "TITLE",
		Flags:     []cli.Flag{categoryFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("missing required argument: title")
			}
			client := clientFrom(c)
			cat, err := resolveCategory(c, client)
			if err != nil {
				return err
			}
			var snap model.Snapshot
			req := model.ConversationRequest{Category: cat, Title: c.Args().First()}
			if err := client.do(c.Context, "POST", "/api/v1/conversations/load", req, &snap); err != nil {
				return err
			}
			printSnapshot(c.App.Writer, snap)
			return nil
		},
	}
}

// RenameCommand returns the rename command
func RenameCommand() *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename a conversation",
		ArgsUsage: "OLD_TITLE NEW_TITLE",
		Flags:     []cli.Flag{categoryFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("missing required arguments: old and new title")
			}
			client := clientFrom(c)
			cat, err := resolveCategory(c, client)
			if err != nil {
				return err
			}
			req := model.RenameConversationRequest{Category: cat, OldTitle: c.Args().Get(0), NewTitle: c.Args().Get(1)}
			if err := client.do(c.Context, "POST", "/api/v1/conversations/rename", req, nil); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Renamed %q to %q\n", req.OldTitle, req.NewTitle)
			return nil
		},
	}
}

// DeleteCommand returns the delete command
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a conversation",
		ArgsUsage: "TITLE",
		Flags:     []cli.Flag{categoryFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("missing required argument: title")
			}
			client := clientFrom(c)
			cat, err := resolveCategory(c, client)
			if err != nil {
				return err
			}
			req := model.ConversationRequest{Category: cat, Title: c.Args().First()}
			if err := client.do(c.Context, "DELETE", "/api/v1/conversations", req, nil); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Deleted %q\n", req.Title)
			return nil
		},
	}
}

// MessagesCommand returns the messages command
func MessagesCommand() *cli.Command {
	return &cli.Command{
		Name:  "messages",
		Usage: "Print the visible messages",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "html",
				Usage: "Print the rendered markup instead of the raw text",
			},
		},
		Action: func(c *cli.Context) error {
			path := "/api/v1/messages"
			if c.Bool("html") {
				path += "?render=html"
			}
			var list model.ListMessagesResponse
			if err := clientFrom(c).do(c.Context, "GET", path, nil, &list); err != nil {
				return err
			}
			if c.Bool("html") {
				for _, r := range list.Rendered {
					fmt.Fprintln(c.App.Writer, r.HTML)
				}
				return nil
			}
			printMessages(c.App.Writer, list.Messages)
			if list.Responding {
				fmt.Fprintln(c.App.Writer, "(waiting for an answer...)")
			}
			return nil
		},
	}
}

// ClearCommand returns the clear command
func ClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Clear the visible messages without deleting conversations",
		Action: func(c *cli.Context) error {
			return clientFrom(c).do(c.Context, "DELETE", "/api/v1/messages", nil, nil)
		},
	}
}

// DownloadCommand returns the download command
func DownloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Save one message as a file",
		ArgsUsage: "MESSAGE_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "text, markdown, json or pdf",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory to write into (\"-\" for stdout)",
				Value:   ".",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("missing required argument: message ID")
			}
			name, data, err := clientFrom(c).download(c.Context, c.Args().First(), c.String("format"))
			if err != nil {
				return err
			}
			if c.String("output") == "-" {
				_, err := c.App.Writer.Write(data)
				return err
			}
			path := filepath.Join(c.String("output"), filepath.Base(name))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(c.App.Writer, "Saved %s\n", path)
			return nil
		},
	}
}

// UploadCommand returns the upload command
func UploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload files to attach to the next message",
		ArgsUsage: "FILE...",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("missing required argument: file")
			}
			client := clientFrom(c)
			for _, path := range c.Args().Slice() {
				var att model.FileAttachment
				if err := client.upload(c.Context, path, &att); err != nil {
					return fmt.Errorf("failed to upload %s: %w", path, err)
				}
				fmt.Fprintf(c.App.Writer, "%s\t%s\t%d bytes\n", att.ID, att.Name, att.Size)
			}
			return nil
		},
	}
}

// RenderCommand returns the render command
func RenderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render answer text to HTML locally (reads stdin when no file is given)",
		ArgsUsage: "[FILE]",
		Action: func(c *cli.Context) error {
			var (
				data []byte
				err  error
			)
			if c.NArg() > 0 {
				data, err = os.ReadFile(c.Args().First())
			} else {
				data, err = io.ReadAll(c.App.Reader)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, markdown.Render(string(data)))
			return nil
		},
	}
}

func printSnapshot(w io.Writer, snap model.Snapshot) {
	fmt.Fprintf(w, "Category: %s\n", snap.Category)
	if snap.Current != nil {
		fmt.Fprintf(w, "Conversation: %s\n", snap.Current.Title)
	} else {
		fmt.Fprintln(w, "Conversation: (none)")
	}
	fmt.Fprintln(w)
	printMessages(w, snap.Messages)
}

func printMessages(w io.Writer, msgs []model.Message) {
	for _, m := range msgs {
		tag := ""
		if m.Standard != "" {
			tag = " [" + string(m.Standard) + "]"
		}
		fmt.Fprintf(w, "%s %s%s (%s)\n", m.Timestamp.Local().Format("15:04"), m.Sender, tag, m.ID)
		fmt.Fprintln(w, m.Content)
		for _, a := range m.Attachments {
			fmt.Fprintf(w, "  attachment: %s (%s)\n", a.Name, a.URL)
		}
		fmt.Fprintln(w)
	}
}
