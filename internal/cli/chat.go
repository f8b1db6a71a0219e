package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"conductor/internal/runner"
	"conductor/internal/storage"
	"conductor/internal/tools"
)

// maxTranscriptTurns bounds the prior turns sent as context in the REPL.
const maxTranscriptTurns = 6

type chatOptions struct {
	mode         string
	contextFile  string
	search       bool
	jsonOutput   bool
	showThinking bool
}

// NewChatCmd creates the chat command.
func NewChatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Run a conversation",
		Long: `Run a conversation with the configured model backend.

With a message argument, or a message piped on stdin, one conversation runs
and its answer is printed. Without either, and with a terminal on stdin, an
interactive session starts; earlier turns are passed along as context.`,
		Example: `  # Ask a question (read-only)
  conductor chat "what does main.go do?"

  # Allow file changes and command execution
  conductor chat --mode agent "add a README"

  # Interactive session
  conductor chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(tools.ModeAsk), "conversation mode: ask or agent")
	cmd.Flags().StringVar(&opts.contextFile, "context-file", "", "file whose content is sent as context")
	cmd.Flags().BoolVar(&opts.search, "search", false, "enable or disable web search for this conversation")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&opts.showThinking, "show-thinking", false, "print the model's thinking")

	return cmd
}

func runChat(cmd *cobra.Command, args []string, opts chatOptions) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	app, err := cliCtx.BuildApp()
	if err != nil {
		return err
	}

	base := runner.Request{Mode: tools.ParseMode(opts.mode)}
	if cmd.Flags().Changed("search") {
		enabled := opts.search
		base.SearchEnabled = &enabled
	}
	if opts.contextFile != "" {
		data, err := os.ReadFile(opts.contextFile)
		if err != nil {
			return fmt.Errorf("read context file: %w", err)
		}
		base.Context = string(data)
	}

	s := &chatSession{app: app, out: cmd.OutOrStdout(), opts: opts, base: base}

	if len(args) > 0 {
		return s.send(cmd, strings.Join(args, " "), base.Context)
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return s.interactive(cmd, in)
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	message := strings.TrimSpace(string(data))
	if message == "" {
		return errors.New("no message given")
	}
	return s.send(cmd, message, base.Context)
}

type chatSession struct {
	app  *App
	out  io.Writer
	opts chatOptions
	base runner.Request

	transcript []string
}

// send runs one conversation and prints its outcome.
func (s *chatSession) send(cmd *cobra.Command, message, context string) error {
	req := s.base
	req.Message = message
	req.Context = context
	req.ConversationID = uuid.NewString()

	ctx := storage.WithConversationID(cmd.Context(), req.ConversationID)
	res, err := s.app.Controller.Run(ctx, req)
	if err != nil {
		return err
	}

	if s.app.DB != nil {
		conv, err := storage.NewConversation(req, res)
		if err == nil {
			err = s.app.DB.SaveConversation(ctx, conv)
		}
		if err != nil {
			GetCLIContext(cmd).Log().Warn().Err(err).Msg("Failed to save conversation")
		}
	}

	s.transcript = append(s.transcript, "User: "+message, "Assistant: "+res.Answer)
	if len(s.transcript) > 2*maxTranscriptTurns {
		s.transcript = s.transcript[len(s.transcript)-2*maxTranscriptTurns:]
	}

	if s.opts.jsonOutput {
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(s.out, res, s.opts.showThinking)
	return nil
}

func (s *chatSession) interactive(cmd *cobra.Command, in io.Reader) error {
	fmt.Fprintln(s.out, "Conductor Interactive Chat")
	fmt.Fprintln(s.out, "--------------------------")
	fmt.Fprintln(s.out, "Type 'exit' or 'quit' to end the session")
	fmt.Fprintln(s.out, "Type 'clear' to forget earlier turns")
	fmt.Fprintln(s.out, "Type 'mode agent' or 'mode ask' to switch modes")
	fmt.Fprintln(s.out)

	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(s.out, "[%s] You: ", s.base.Mode)
		input, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		message := strings.TrimSpace(input)
		lower := strings.ToLower(message)
		switch {
		case lower == "exit" || lower == "quit":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		case lower == "clear":
			s.transcript = nil
			fmt.Fprintln(s.out, "Starting new conversation...")
			continue
		case strings.HasPrefix(lower, "mode "):
			s.base.Mode = tools.ParseMode(strings.TrimPrefix(lower, "mode "))
			fmt.Fprintf(s.out, "Mode: %s\n", s.base.Mode)
			continue
		case message == "":
			continue
		}

		if err := s.send(cmd, message, s.context()); err != nil {
			fmt.Fprintf(s.out, "\nError: %v\n\n", err)
		}
	}
}

// context joins the configured context with the recent transcript.
func (s *chatSession) context() string {
	parts := make([]string, 0, 2)
	if s.base.Context != "" {
		parts = append(parts, s.base.Context)
	}
	if len(s.transcript) > 0 {
		parts = append(parts, "Previous turns:\n"+strings.Join(s.transcript, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

func printResult(w io.Writer, res *runner.Result, showThinking bool) {
	if showThinking && res.Thinking != "" {
		fmt.Fprintf(w, "Thinking:\n%s\n\n", res.Thinking)
	}
	fmt.Fprintln(w, res.Answer)

	if res.Plan != nil && len(res.Plan.Tasks) > 0 {
		fmt.Fprintf(w, "\nPlan:\n%s\n", res.Plan.String())
	}
	if len(res.FileOperations) > 0 {
		fmt.Fprintln(w, "\nFile operations:")
		for _, op := range res.FileOperations {
			fmt.Fprintf(w, "  %-7s %s\n", op.Type, op.Path)
		}
	}
	if res.HitRoundLimit {
		fmt.Fprintf(w, "\n(stopped after %d rounds)\n", len(res.Rounds))
	}
	fmt.Fprintln(w)
}
