package nest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"fairytales/internal/cli/scheme/colours"
	"fairytales/internal/config"
	"fairytales/internal/domain/library"
	"fairytales/internal/domain/story"
	"fairytales/internal/story/generation"
	"fairytales/internal/story/playback"
	"fairytales/internal/story/session"
	"fairytales/internal/story/tts"
	"fairytales/internal/usage"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// StoryNest main application structure
type StoryNest struct {
	cfg      config.Config
	provider generation.Provider
	tts      tts.Engine
	narrator *tts.Narrator
	gate     *usage.Gate
	archive  *library.Archive
	Player   *playback.Engine
	redis    *redis.Client

	in     *bufio.Reader
	ctx    context.Context
	Cancel context.CancelFunc
}

func NewStoryNest(cfg config.Config) (*StoryNest, error) {
	ctx, cancel := context.WithCancel(context.Background())
	sn := &StoryNest{
		cfg:    cfg,
		in:     bufio.NewReader(os.Stdin),
		ctx:    ctx,
		Cancel: cancel,
	}
	if err := sn.init(); err != nil {
		sn.Close()
		return nil, err
	}
	return sn, nil
}

func (sn *StoryNest) init() error {
	genConfig := sn.cfg.GenerationConfig()
	if genConfig.APIKey == "" {
		// one Gemini key serves both text and speech
		genConfig.APIKey = sn.cfg.TTS.APIKey
	}
	provider, err := generation.NewProvider(genConfig)
	if err != nil {
		return fmt.Errorf("failed to create story generator: %w", err)
	}
	sn.provider = provider

	engine, err := tts.NewEngine(sn.cfg.TTSConfig())
	if err != nil {
		return fmt.Errorf("failed to create tts engine: %w", err)
	}
	sn.tts = engine
	sn.narrator = tts.NewNarrator(engine)

	account, err := sn.cfg.UsageAccount()
	if err != nil {
		return err
	}
	store, client, err := openStore(sn.ctx, sn.cfg.Usage)
	if err != nil {
		return err
	}
	sn.redis = client
	sn.gate = usage.NewGate(account, store, sn.cfg.Limits())

	archive, err := library.NewArchive(sn.cfg.Archive.Dir)
	if err != nil {
		return err
	}
	sn.archive = archive

	var out playback.Output
	speaker, err := playback.NewSpeakerOutput()
	if err != nil {
		logrus.WithError(err).Warn("No audio device, narration will play silently")
		out = playback.NewDiscardOutput()
	} else {
		out = speaker
	}
	sn.Player = playback.NewEngine(out)
	return nil
}

// openStore picks the ledger store named in the config. The redis client is
// returned so the caller can close it.
func openStore(ctx context.Context, cfg config.Usage) (usage.Store, *redis.Client, error) {
	switch strings.ToLower(cfg.Store) {
	case "memory":
		return usage.NewMemoryStore(), nil, nil
	case "", "file":
		store, err := usage.NewFileStore(cfg.File)
		return store, nil, err
	case "redis":
		client, err := usage.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return usage.NewRedisStore(client), client, nil
	default:
		return nil, nil, fmt.Errorf("unsupported usage store: %s", cfg.Store)
	}
}

// Close releases audio, speech and storage resources.
func (sn *StoryNest) Close() {
	if sn.Player != nil {
		sn.Player.Close()
	}
	if c, ok := sn.tts.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close tts engine")
		}
	}
	if sn.redis != nil {
		sn.redis.Close()
	}
}

func (sn *StoryNest) ShowWelcome() {
	fmt.Println()
	colours.Title.Println("🌟 Welcome to Fairytales! 🌟")
	fmt.Println()
	colours.Info.Println("📚 Available commands:")
	fmt.Println("  • fairytales create    - Make up a new story")
	fmt.Println("  • fairytales list      - Browse saved stories")
	fmt.Println("  • fairytales read      - Listen to a saved story")
	fmt.Println("  • fairytales delete    - Remove a saved story")
	fmt.Println("  • fairytales usage     - See how many stories are left")
	fmt.Println("  • fairytales settings  - Voices, themes and narration")
	fmt.Println()
	colours.Prompt.Println("✨ Ready for a magical story adventure? ✨")
}

func (sn *StoryNest) ask(label string) string {
	colours.Prompt.Print(label)
	input, _ := sn.in.ReadString('\n')
	return strings.TrimSpace(input)
}

// Create makes up a new story from flags, asking for anything missing.
func (sn *StoryNest) Create(cmd *cobra.Command, args []string) {
	req := requestFromFlags(cmd)

	if t, ok := story.FindTemplate(req.TemplateID); ok && t.ID != story.CustomTemplateID {
		colours.Info.Printf("🎭 Theme: %s\n", t.Title)
	}
	if req.ProtagonistName == "" {
		req.ProtagonistName = sn.ask("👧 Who is the story about? ")
	}
	req = req.ApplyTemplate()
	if req.Companion == "" {
		req.Companion = sn.ask("🦊 Who is their companion? ")
	}
	if req.Setting == "" {
		req.Setting = sn.ask("🏰 Where does it happen? ")
	}

	account := sn.gate.Account()
	voice := usage.VoiceFor(account, req.VoicePreference)
	if req.VoicePreference != "" && voice != req.VoicePreference {
		colours.Warning.Printf("🎤 Voice %q is not available, using %s\n", req.VoicePreference, voice)
	}
	req.VoicePreference = voice

	sess := session.New(sn.provider, sn.narrator, sn.gate)
	sess.OnChange(func(s session.Snapshot) {
		logrus.WithFields(logrus.Fields{
			"turn":  s.Turn.String(),
			"parts": len(s.Parts),
		}).Debug("Story session changed")
	})

	fmt.Println()
	colours.Info.Println("🪄 Making up your story...")
	outcome, err := sess.Start(sn.ctx, req)
	if err != nil {
		sn.printError(err)
		return
	}

	saved := library.NewSavedStory(sess.Snapshot().Request, nil)
	sn.afterTurn(sess, &saved, outcome)

	if !req.Interactive {
		if outcome.Part.HasAudio() {
			sn.Player.PlaySegment(0)
		}
		sn.waitForUserInput(sess, &saved)
		return
	}
	sn.interactiveLoop(sess, &saved, outcome)
}

func requestFromFlags(cmd *cobra.Command) story.Request {
	name, _ := cmd.Flags().GetString("name")
	companion, _ := cmd.Flags().GetString("companion")
	setting, _ := cmd.Flags().GetString("setting")
	voice, _ := cmd.Flags().GetString("voice")
	template, _ := cmd.Flags().GetString("template")
	interactive, _ := cmd.Flags().GetBool("interactive")

	return story.Request{
		ProtagonistName: strings.TrimSpace(name),
		Companion:       strings.TrimSpace(companion),
		Setting:         strings.TrimSpace(setting),
		VoicePreference: strings.TrimSpace(voice),
		Interactive:     interactive,
		TemplateID:      strings.TrimSpace(template),
	}
}

// afterTurn prints the new part, refreshes playback and saves the story.
func (sn *StoryNest) afterTurn(sess *session.Session, saved *library.SavedStory, outcome session.Outcome) {
	fmt.Println()
	colours.Title.Printf("📖 Part %d\n", outcome.Index+1)
	colours.Story.Println(outcome.Part.Text)
	if outcome.NarrationErr != nil {
		colours.Warning.Println("🔇 Narration is unavailable for this part (press 'r' to retry)")
	}
	sn.refresh(sess, saved)
}

func (sn *StoryNest) refresh(sess *session.Session, saved *library.SavedStory) {
	snap := sess.Snapshot()
	if err := sn.Player.Sync(sn.ctx, snap.Parts); err != nil {
		logrus.WithError(err).Warn("Failed to prepare narration")
	}
	if snap.Autoplay != nil && sn.Player.Autoplay(*snap.Autoplay) {
		sess.ClearAutoplay()
	}

	saved.Parts = snap.Parts
	if err := sn.archive.Save(*saved); err != nil {
		colours.Error.Printf("❌ Could not save story: %v\n", err)
	}
}

func (sn *StoryNest) interactiveLoop(sess *session.Session, saved *library.SavedStory, outcome session.Outcome) {
	for !outcome.Final {
		select {
		case <-sn.ctx.Done():
			return
		default:
		}

		fmt.Println()
		colours.Prompt.Println("🤔 What happens next?")
		for i, c := range outcome.Choices {
			colours.Choice.Printf("  %d. %s\n", i+1, c)
		}
		input := sn.ask("\n👉 Pick a number, or 'p' play all, 's' stop, 'r' retry narration, 'q' quit: ")

		switch strings.ToLower(input) {
		case "q", "quit":
			sn.Player.Stop()
			sn.sayGoodbye(saved)
			return
		case "p", "play":
			sn.Player.PlayAll()
			continue
		case "s", "stop":
			sn.Player.Stop()
			continue
		case "r", "retry":
			sn.retryNarration(sess, saved)
			continue
		case "":
			continue
		}

		choice, ok := pickChoice(input, outcome.Choices)
		if !ok {
			colours.Error.Println("❌ Invalid selection! Please try again.")
			continue
		}

		sn.Player.Stop()
		colours.Info.Printf("🪄 %s...\n", choice)
		next, err := sess.Choose(sn.ctx, choice)
		if err != nil {
			// the previous choices stay on offer
			sn.printError(err)
			continue
		}
		outcome = next
		sn.afterTurn(sess, saved, outcome)
	}

	fmt.Println()
	colours.Success.Println("🌟 The End! 🌟")
	sn.waitForUserInput(sess, saved)
}

// pickChoice maps a menu number to its choice; any longer text is taken as
// the listener's own idea for the next part.
func pickChoice(input string, choices []string) (string, bool) {
	if n, err := strconv.Atoi(input); err == nil {
		if n < 1 || n > len(choices) {
			return "", false
		}
		return choices[n-1], true
	}
	if len([]rune(input)) < 2 {
		return "", false
	}
	return input, true
}

func (sn *StoryNest) retryNarration(sess *session.Session, saved *library.SavedStory) {
	retried := 0
	for i, p := range sess.Snapshot().Parts {
		if p.HasAudio() {
			continue
		}
		if err := sess.RetryNarration(sn.ctx, i); err != nil {
			colours.Error.Printf("❌ Part %d: %v\n", i+1, err)
			continue
		}
		retried++
	}
	if retried == 0 {
		colours.Info.Println("ℹ️  Nothing to narrate again")
		return
	}
	sn.refresh(sess, saved)
	colours.Success.Printf("🎤 Narrated %d part(s)\n", retried)
}

func (sn *StoryNest) waitForUserInput(sess *session.Session, saved *library.SavedStory) {
	for {
		select {
		case <-sn.ctx.Done():
			return
		default:
		}

		input := sn.ask("\n⏯️  Press 'p' to play all, a part number to play it, 's' to stop, 'r' to retry narration, 'q' to quit: ")
		input = strings.ToLower(input)

		switch input {
		case "p", "play":
			if cues := sn.Player.PlayAll(); len(cues) == 0 {
				colours.Warning.Println("🔇 Nothing to play")
			} else {
				printCues(cues)
			}
		case "s", "stop":
			sn.Player.Stop()
			colours.Warning.Println("⏹️  Stopped")
		case "r", "retry":
			if sess == nil {
				colours.Info.Println("ℹ️  Narration can only be retried while creating a story")
				continue
			}
			sn.retryNarration(sess, saved)
		case "q", "quit":
			sn.Player.Stop()
			sn.sayGoodbye(saved)
			return
		case "":
			continue
		default:
			n, err := strconv.Atoi(input)
			if err != nil {
				colours.Info.Println("ℹ️  Use 'p' to play all, 's' to stop")
				continue
			}
			if err := sn.Player.PlaySegment(n - 1); err != nil {
				colours.Error.Printf("❌ %v\n", err)
			}
		}
	}
}

func printCues(cues []playback.Cue) {
	for _, c := range cues {
		fmt.Printf("  ▶️  Part %d at %s (%s)\n", c.Part+1, c.Start.Round(time.Second), c.Duration.Round(time.Second))
	}
}

func (sn *StoryNest) sayGoodbye(saved *library.SavedStory) {
	if saved != nil && len(saved.Parts) > 0 {
		colours.Info.Printf("🔗 Share: %s\n", library.ShareLink(sn.cfg.Share.BaseURL, saved.ID))
	}
	colours.Warning.Println("👋 Sweet dreams! 🌙")
}

func (sn *StoryNest) printError(err error) {
	var denied *usage.DeniedError
	switch {
	case errors.As(err, &denied):
		colours.Warning.Println("🔒 " + denialMessage(denied))
	case errors.Is(err, story.ErrInvalidRequest):
		colours.Error.Printf("❌ %v\n", err)
	case errors.Is(err, story.ErrMalformedContinuation):
		colours.Error.Println("❌ The storyteller got confused. Please try again.")
	case errors.Is(err, story.ErrGenerationFailed):
		colours.Error.Println("❌ The story could not be written right now. Please try again.")
	default:
		colours.Error.Printf("❌ Error: %v\n", err)
	}
	logrus.WithError(err).Debug("Story request failed")
}

func denialMessage(denied *usage.DeniedError) string {
	switch denied.Reason {
	case usage.ReasonRegistrationRequired:
		return "You've used all free stories. Register to keep creating!"
	case usage.ReasonSubscriptionRequired:
		return "Interactive stories and voice choice need a subscription."
	case usage.ReasonDailyLimitReached:
		return fmt.Sprintf("Daily limit of %d stories reached. Come back tomorrow!", denied.Limit)
	default:
		return denied.Error()
	}
}

func (sn *StoryNest) ListStories(cmd *cobra.Command, args []string) {
	fmt.Println()
	colours.Title.Println("📚 Saved Stories 📚")
	fmt.Println()

	stories, err := sn.archive.List()
	if err != nil {
		colours.Error.Println(err)
		return
	}

	for i, s := range stories {
		fmt.Printf("  %d. ", i+1)
		colours.Title.Printf("%s", s.Title)
		if s.Interactive {
			colours.Choice.Printf(" (interactive)")
		}
		fmt.Printf("\n     🧸 %s | 🏰 %s | 📄 %d parts | 🗓️ %s\n",
			s.Request.Companion, s.Request.Setting, len(s.Parts), s.CreatedAt.Format("2006-01-02 15:04"))
		colours.Info.Printf("     ID: %s\n", s.ID)
		fmt.Println()
	}

	if len(stories) == 0 {
		colours.Warning.Println("🔍 No stories yet. Try 'fairytales create'!")
	} else {
		colours.Success.Printf("✨ Found %d wonderful stories! ✨\n", len(stories))
	}
}

// ReadStory replays a saved story by id or share link.
func (sn *StoryNest) ReadStory(cmd *cobra.Command, args []string) {
	var (
		saved library.SavedStory
		err   error
	)
	if len(args) == 0 {
		saved, err = sn.selectStory()
	} else {
		saved, err = sn.archive.Find(args[0])
	}
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}

	fmt.Println()
	colours.Title.Printf("📖 %s\n", saved.Title)
	for i, p := range saved.Parts {
		fmt.Println()
		colours.Info.Printf("— %d —\n", i+1)
		colours.Story.Println(p.Text)
	}
	fmt.Println()

	if err := sn.Player.Sync(sn.ctx, saved.Parts); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	if cues := sn.Player.PlayAll(); len(cues) > 0 {
		colours.Success.Println("🎵 Starting story playback... 🎵")
		printCues(cues)
	} else {
		colours.Warning.Println("🔇 This story has no narration")
	}
	sn.waitForUserInput(nil, &saved)
}

func (sn *StoryNest) selectStory() (library.SavedStory, error) {
	stories, err := sn.archive.List()
	if err != nil {
		return library.SavedStory{}, err
	}
	if len(stories) == 0 {
		return library.SavedStory{}, library.ErrNotFound
	}

	fmt.Println()
	colours.Title.Println("📚 Choose Your Story 📚")
	fmt.Println()
	for i, s := range stories {
		fmt.Printf("%d. ", i+1)
		colours.Title.Printf("%s", s.Title)
		fmt.Printf(" (%d parts)\n", len(s.Parts))
	}

	input := sn.ask("\n🌟 Enter the number of your chosen story: ")
	choice, err := strconv.Atoi(input)
	if err != nil || choice < 1 || choice > len(stories) {
		return library.SavedStory{}, fmt.Errorf("invalid selection %q", input)
	}
	return stories[choice-1], nil
}

func (sn *StoryNest) DeleteStory(cmd *cobra.Command, args []string) {
	if err := sn.archive.Delete(library.ParseShareLink(args[0])); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	colours.Success.Println("🗑️  Story deleted")
}

func (sn *StoryNest) ShowUsage(cmd *cobra.Command, args []string) {
	account := sn.gate.Account()

	fmt.Println()
	colours.Title.Println("📊 Usage 📊")
	fmt.Println()
	fmt.Printf("  • Account: %s (%s", account.ID, account.Status)
	if account.Tier != "" {
		fmt.Printf(", %s", account.Tier)
	}
	fmt.Println(")")

	for _, interactive := range []bool{false, true} {
		kind := "Simple stories"
		if interactive {
			kind = "Interactive stories"
		}
		n, err := sn.gate.Remaining(sn.ctx, interactive)
		switch {
		case err != nil:
			colours.Error.Printf("❌ %v\n", err)
			return
		case n < 0:
			fmt.Printf("  • %s left: unlimited\n", kind)
		default:
			fmt.Printf("  • %s left: %d\n", kind, n)
		}
	}
	if account.CanUsePremium() {
		colours.Success.Println("  ⭐ Voice choice and interactive stories are unlocked")
	}
}

func (sn *StoryNest) ConfigureSettings(cmd *cobra.Command, args []string) {
	fmt.Println()
	colours.Title.Println("⚙️ Settings ⚙️")
	fmt.Println()

	colours.Prompt.Println("🎤 Voices:")
	for _, v := range story.Voices {
		marker := " "
		if v.ID == story.DefaultVoice {
			marker = "*"
		}
		fmt.Printf("  %s %-8s %s\n", marker, v.ID, v.Description)
	}
	fmt.Println()

	colours.Prompt.Println("🎭 Themes (--template):")
	for _, t := range story.Templates {
		fmt.Printf("  • %-18s %s\n", t.ID, t.Title)
	}
	fmt.Println()

	ttsConfig := sn.cfg.TTSConfig()
	colours.Prompt.Println("🔊 Narration:")
	fmt.Printf("  • Engine: %s\n", ttsConfig.Type)
	engines := make([]string, 0)
	for _, e := range tts.GetAvailableEngines(ttsConfig) {
		engines = append(engines, e.String())
	}
	fmt.Printf("  • Available: %s\n", strings.Join(engines, ", "))
	fmt.Printf("  • Generator: %s\n", sn.cfg.Generation.Provider)

	cacheable, ok := sn.tts.(tts.CacheableEngine)
	if !ok {
		return
	}
	if clearCache, _ := cmd.Flags().GetBool("clear-cache"); clearCache {
		if err := cacheable.ClearCache(); err != nil {
			colours.Error.Printf("❌ %v\n", err)
			return
		}
		colours.Success.Println("  🧹 Narration cache cleared")
	}
	if stats, err := cacheable.GetCacheStats(); err == nil {
		fmt.Printf("  • Cached narrations: %v (%v bytes)\n", stats["cached_files"], stats["total_size_bytes"])
	}
}
