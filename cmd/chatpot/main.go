package main

import (
	"context"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	pipeline "github.com/chatpot/chatpot-core/core"
	"github.com/chatpot/chatpot-core/core/audio/miniaudio"
	"github.com/chatpot/chatpot-core/core/avatar"
	"github.com/chatpot/chatpot-core/core/chat"
	"github.com/chatpot/chatpot-core/core/guard"
	sttdeepgram "github.com/chatpot/chatpot-core/core/speechtotext/deepgram"
	"github.com/chatpot/chatpot-core/core/store"
	"github.com/chatpot/chatpot-core/core/texttospeech"
	ttsdeepgram "github.com/chatpot/chatpot-core/core/texttospeech/deepgram"
	"github.com/chatpot/chatpot-core/core/texttospeech/elevenlabs"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	dataDir := os.Getenv("CHATPOT_DATA_DIR")
	db, err := store.Open(store.Options{Dir: dataDir, InMemory: dataDir == ""})
	if err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer db.Close()

	profile, err := db.UpsertProfile(store.Profile{
		Name: envOr("CHATPOT_PROFILE", "default"),
		MBTI: os.Getenv("CHATPOT_MBTI"),
	})
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	chatRecord, err := db.UpsertChat(store.Chat{ProfileID: profile.ID, Title: "terminal session"})
	if err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}

	endpoint := envOr("CHATPOT_CHAT_ENDPOINT", "http://localhost:3000/api/chat")
	chatClient := chat.NewClient(endpoint,
		chat.WithAPIKey(os.Getenv("CHATPOT_CHAT_API_KEY")),
		chat.WithModel(envOr("CHATPOT_CHAT_MODEL", "")),
	)

	registry := texttospeech.NewRegistry(texttospeech.ProviderDeepgram)
	registry.Register(texttospeech.ProviderDeepgram, ttsdeepgram.NewClient())
	registry.Register(texttospeech.ProviderElevenLabs, elevenlabs.NewClient())

	opts := baseControllerOptions(chatClient, registry, db, chatRecord.ID, profile.MBTI)
	opts = append(opts,
		pipeline.WithCaptureDevice(miniaudio.NewCaptureDevice()),
		pipeline.WithPlaybackDevice(miniaudio.NewPlaybackDevice()),
	)

	if transcriber, err := sttdeepgram.NewTranscriptionClient(); err != nil {
		log.Printf("Transcription disabled: %v", err)
	} else {
		opts = append(opts, pipeline.WithTranscriber(transcriber))
	}

	if bridgeURL := os.Getenv("CHATPOT_AVATAR_URL"); bridgeURL != "" {
		bridge, err := avatar.Dial(context.Background(), bridgeURL)
		if err != nil {
			log.Printf("Avatar bridge disabled: %v", err)
		} else {
			defer bridge.Close()
			opts = append(opts, pipeline.WithAvatar(bridge))
		}
	}

	// Without a redis address rate limiting stays in pass-through mode.
	if addr := os.Getenv("CHATPOT_REDIS_ADDR"); addr != "" {
		counterStore := guard.NewRedisStore(addr, os.Getenv("CHATPOT_REDIS_PASSWORD"))
		defer counterStore.Close()
		opts = append(opts, pipeline.WithAdmission(guard.NewLimiter(counterStore), profile.ID))
	}

	if tone := os.Getenv("CHATPOT_TONE"); tone != "" {
		opts = append(opts, pipeline.WithTone(chat.Tone(tone)))
	}

	model := newModel(opts)
	defer model.controller.Close()
	program := tea.NewProgram(model, tea.WithAltScreen())
	model.attach(program)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

// baseControllerOptions carries the collaborators every session gets
// regardless of environment. The content policy is always on.
func baseControllerOptions(chatClient *chat.Client, registry *texttospeech.Registry, db *store.Store, chatID, mbti string) []pipeline.ControllerOption {
	return []pipeline.ControllerOption{
		pipeline.WithChatClient(chatClient),
		pipeline.WithPolicy(guard.NewPolicy()),
		pipeline.WithSynthesizer(registry, texttospeech.Provider(os.Getenv("CHATPOT_TTS_PROVIDER"))),
		pipeline.WithVoice(os.Getenv("CHATPOT_VOICE")),
		pipeline.WithMessageStore(db, chatID),
		pipeline.WithMBTI(mbti),
	}
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
