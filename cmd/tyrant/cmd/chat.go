package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tyrant/src/config"
	"tyrant/src/history"
	"tyrant/src/message"
	"tyrant/src/options"
	"tyrant/src/tyrant"
)

var (
	chatAPIKey       string
	chatConversation string
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Get tough love for a message, or start an interactive session",
	Long: `Send one message and print the reply, or start an interactive session
when no message is given.

Examples:
  tyrant chat "I'll start my diet on Monday"
  tyrant chat --personality drill-sergeant --sass 10
  tyrant chat --provider anthropic --focus fitness,sleep
  tyrant chat --conversation <id> "ok I went for a run"`,
	RunE: runChat,
}

// session couples a dispatcher with its running transcript
type session struct {
	t        *tyrant.Tyrant
	settings *config.Settings
	store    history.Store
	convID   string
	turns    []message.Message
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	retargetModel(settings, cmd.Flags().Changed("provider"), cmd.Flags().Changed("model"))
	reg := loadRegistry()

	tag := options.Provider(settings.Tyrant.Provider)
	opts := []tyrant.Option{
		tyrant.WithRegistry(reg),
		tyrant.WithProviderConfig(settings.ProviderConfig(tag, "")),
	}
	if id := settings.Tyrant.Personality; id != "" {
		opts = append(opts, tyrant.UsePersonality(id, true))
	}

	t, err := tyrant.New(settings.APIKey(tag, chatAPIKey), settings.Overrides(), opts...)
	if err != nil {
		return err
	}

	store, err := openHistory(ctx, settings)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	s := &session{t: t, settings: settings, store: store, convID: chatConversation}
	if err := s.resume(ctx); err != nil {
		return err
	}

	if len(args) > 0 {
		reply, err := s.send(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}
	return s.repl(ctx)
}

// retargetModel drops the configured model when --provider picked another
// backend without --model; the provider section or adapter default applies.
func retargetModel(settings *config.Settings, providerChanged, modelChanged bool) {
	if providerChanged && !modelChanged {
		settings.Tyrant.Model = ""
	}
}

// resume loads the stored window of an existing conversation
func (s *session) resume(ctx context.Context) error {
	if s.convID == "" {
		return nil
	}
	if s.store == nil {
		return fmt.Errorf("--conversation requires history to be enabled")
	}

	conv, err := s.store.Get(ctx, s.convID)
	if err != nil {
		return err
	}
	if conv.Personality != "" && s.t.CurrentPersonality() == nil {
		if _, err := s.t.SetPersonality(conv.Personality, true); err != nil {
			return err
		}
	}

	s.turns, err = s.store.Messages(ctx, s.convID, s.settings.History.Size)
	return err
}

// send appends text to the transcript, asks the model, and records the pair
func (s *session) send(ctx context.Context, text string) (string, error) {
	user := message.User(text)
	window := append(s.window(), user)

	reply, err := s.t.GenerateResponse(ctx, window, options.Overrides{})
	if err != nil {
		return "", err
	}

	assistant := message.Assistant(reply)
	s.turns = append(s.turns, user, assistant)
	s.save(ctx, user, assistant)
	return reply, nil
}

// window is the tail of the transcript sent with each request
func (s *session) window() []message.Message {
	turns := s.turns
	if size := s.settings.History.Size; size > 0 && len(turns) > size {
		turns = turns[len(turns)-size:]
	}
	return append([]message.Message{}, turns...)
}

func (s *session) save(ctx context.Context, msgs ...message.Message) {
	if s.store == nil {
		return
	}
	if s.convID == "" {
		id := ""
		if p := s.t.CurrentPersonality(); p != nil {
			id = p.ID
		}
		conv, err := s.store.Create(ctx, id)
		if err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Failed to save conversation: "+err.Error()))
			return
		}
		s.convID = conv.ID
	}
	if err := s.store.Append(ctx, s.convID, msgs...); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Failed to save conversation: "+err.Error()))
	}
}

func (s *session) repl(ctx context.Context) error {
	fmt.Println(headerStyle.Render("GPTyrant") + " " + dimStyle.Render(s.t.String()))
	fmt.Println(dimStyle.Render("Commands: /personality <id|none>, /provider <tag> [model], /sass <1-10>, /clear, /exit"))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(userStyle.Render("you") + " > ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			done, err := s.command(line)
			if err != nil {
				fmt.Println(errorStyle.Render(err.Error()))
			}
			if done {
				return nil
			}
			continue
		}

		reply, err := s.send(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Println(errorStyle.Render(err.Error()))
			continue
		}
		fmt.Printf("%s > %s\n\n", voiceLabel(s.t.CurrentPersonality()), reply)
	}
}

// command handles a slash command, reporting whether the session should end
func (s *session) command(line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true, nil

	case "/clear":
		s.turns = nil
		s.convID = ""
		fmt.Println(dimStyle.Render("Started a new conversation"))

	case "/personality":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /personality <id|none>")
		}
		if fields[1] == "none" {
			s.t.ClearPersonality()
		} else if _, err := s.t.SetPersonality(fields[1], true); err != nil {
			return false, err
		}
		fmt.Println(dimStyle.Render(s.t.String()))

	case "/provider":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /provider <tag> [model]")
		}
		tag, ok := options.ParseProvider(fields[1])
		if !ok {
			return false, fmt.Errorf("unknown provider %q", fields[1])
		}
		model := ""
		if len(fields) > 2 {
			model = fields[2]
		}
		if model == "" {
			model = s.settings.Providers[string(tag)].Model
		}
		if err := s.t.SetProvider(tag, s.settings.APIKey(tag, ""), model); err != nil {
			return false, err
		}
		fmt.Println(dimStyle.Render(s.t.String()))

	case "/sass":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /sass <1-10>")
		}
		level, err := strconv.Atoi(fields[1])
		if err != nil {
			return false, fmt.Errorf("sass level must be a number")
		}
		s.t.UpdateOptions(options.Overrides{SassLevel: options.Int(options.ClampSassLevel(level))})
		fmt.Println(dimStyle.Render(s.t.String()))

	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("provider", "", "Provider (openai, anthropic, grok, gemini, vertex, ollama)")
	chatCmd.Flags().String("model", "", "Model override")
	chatCmd.Flags().Int("sass", options.DefaultSassLevel, "Sass level 1-10")
	chatCmd.Flags().StringSlice("focus", nil, "Comma-separated focus areas")
	chatCmd.Flags().StringP("personality", "P", "", "Personality id (see 'tyrant personalities list')")
	chatCmd.Flags().Float64("temperature", 0, "Sampling temperature (default derives from sass level)")
	chatCmd.Flags().Int("max-tokens", 0, "Completion token cap")
	chatCmd.Flags().StringVar(&chatAPIKey, "api-key", "", "API key (default from config or environment)")
	chatCmd.Flags().StringVarP(&chatConversation, "conversation", "c", "", "Continue a stored conversation")

	viper.BindPFlag("tyrant.provider", chatCmd.Flags().Lookup("provider"))
	viper.BindPFlag("tyrant.model", chatCmd.Flags().Lookup("model"))
	viper.BindPFlag("tyrant.sass_level", chatCmd.Flags().Lookup("sass"))
	viper.BindPFlag("tyrant.focus_areas", chatCmd.Flags().Lookup("focus"))
	viper.BindPFlag("tyrant.personality", chatCmd.Flags().Lookup("personality"))
	viper.BindPFlag("tyrant.temperature", chatCmd.Flags().Lookup("temperature"))
	viper.BindPFlag("tyrant.max_tokens", chatCmd.Flags().Lookup("max-tokens"))
}
