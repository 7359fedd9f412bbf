package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sirgibblets/achew-core/internal/config"
	"github.com/sirgibblets/achew-core/internal/events"
	"github.com/sirgibblets/achew-core/internal/library"
	"github.com/sirgibblets/achew-core/internal/llm"
	"github.com/sirgibblets/achew-core/internal/mediaio"
	"github.com/sirgibblets/achew-core/internal/pipeline"
	"github.com/sirgibblets/achew-core/internal/segment"
	"github.com/sirgibblets/achew-core/internal/silence"
	"github.com/sirgibblets/achew-core/internal/transcribe"
	"github.com/sirgibblets/achew-core/internal/vad"
)

// achewd is the daemon that owns the single process-wide pipeline and
// exposes it over an HTTP+websocket API: godotenv for local config,
// echo with Logger/Recover middleware, a signal-driven graceful
// shutdown.
func main() {
	cfg := config.Load()

	store, err := config.OpenStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("open config store: %v", err)
	}
	defer store.Close()

	hub := events.NewHub()

	transcribeRegistry := transcribe.NewRegistry()
	if cfg.OpenAIAPIKey != "" {
		backend, err := transcribe.NewOpenAIBackend(transcribe.OpenAIConfig{APIKey: cfg.OpenAIAPIKey})
		if err != nil {
			log.Printf("openai transcription backend disabled: %v", err)
		} else if err := transcribeRegistry.Register(transcribe.Info{
			ServiceID: "openai-whisper", Name: "OpenAI Whisper", UsesGPU: false,
			SupportsBiasWords: true, Priority: 5,
		}, backend); err != nil {
			log.Printf("register openai backend: %v", err)
		}
	}
	if cfg.SherpaModelDir != "" {
		backend, err := transcribe.NewSherpaBackend(transcribe.SherpaConfig{
			EncoderPath: cfg.SherpaModelDir + "/encoder.onnx",
			DecoderPath: cfg.SherpaModelDir + "/decoder.onnx",
			JoinerPath:  cfg.SherpaModelDir + "/joiner.onnx",
			TokensPath:  cfg.SherpaModelDir + "/tokens.txt",
			SampleRate:  16000,
			NumThreads:  4,
		})
		if err != nil {
			log.Printf("sherpa transcription backend disabled: %v", err)
		} else if err := transcribeRegistry.Register(transcribe.Info{
			ServiceID: "sherpa", Name: "Sherpa-ONNX (offline)", UsesGPU: false,
			SupportsBiasWords: true, Priority: 10,
		}, backend); err != nil {
			log.Printf("register sherpa backend: %v", err)
		}
	}

	llmRegistry := llm.NewRegistry()
	if cfg.OpenAIAPIKey != "" {
		llmRegistry.Register("openai", llm.NewOpenAIProvider(cfg.OpenAIAPIKey, ""))
	}

	media := mediaio.New()
	media.FFmpegPath = cfg.FFmpegPath
	media.FFprobePath = cfg.FFprobePath

	sup := pipeline.NewSupervisor(pipeline.Config{
		Media:       media,
		Silence:     silence.New(),
		Vad:         &vad.Scanner{Media: media, Registry: media.Registry},
		Segment:     &segment.Extractor{Media: media},
		Transcribe:  transcribeRegistry,
		LLM:         llmRegistry,
		Library:     library.New(cfg.LibraryBaseURL),
		Events:      hub,
		SmartDetect: cfg.SmartDetect,
		TempRoot:    cfg.TempDir,
	})

	api := newAPI(sup, hub, store)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/ws", api.handleWebsocket)

	g := e.Group("/api")
	g.POST("/pipeline", api.createPipeline)
	g.DELETE("/pipeline", api.deletePipeline)
	g.GET("/pipeline", api.getPipelineState)
	g.POST("/pipeline/cancel", api.cancel)
	g.POST("/pipeline/restart", api.restartAtStep)
	g.POST("/cue-source", api.selectCueSource)
	g.GET("/cue-sets", api.getCueSets)
	g.POST("/cue-set", api.selectCueSet)
	g.POST("/configure-asr", api.configureASR)
	g.GET("/chapters", api.listChapters)
	g.POST("/chapters", api.addChapter)
	g.GET("/chapters/add-options", api.addOptions)
	g.PUT("/chapters/:id/title", api.editTitle)
	g.PUT("/chapters/:id/selected", api.toggleSelection)
	g.DELETE("/chapters/:id", api.deleteChapter)
	g.POST("/chapters/select-all", api.selectAll)
	g.POST("/chapters/deselect-all", api.deselectAll)
	g.POST("/history/undo", api.undo)
	g.POST("/history/redo", api.redo)
	g.POST("/submit", api.submit)
	g.GET("/export/:format", api.export)
	g.GET("/preferences", api.getPreferences)
	g.PUT("/preferences", api.savePreferences)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("shutting down")
		sup.Cancel()
		e.Close()
	}()

	log.Printf("achewd listening on %s", cfg.Addr)
	if err := e.Start(cfg.Addr); err != nil {
		log.Println("server stopped")
	}
}

// acceptWebsocket is a small indirection so handleWebsocket's signature
// stays testable without a real HTTP round trip.
func acceptWebsocket(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
}
