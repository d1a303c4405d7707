// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/jeranaias/gqlpilot/internal/assistant"
	"github.com/jeranaias/gqlpilot/internal/chatclient"
	"github.com/jeranaias/gqlpilot/internal/config"
	"github.com/jeranaias/gqlpilot/internal/corpus"
	"github.com/jeranaias/gqlpilot/internal/gptconfig"
	"github.com/jeranaias/gqlpilot/internal/prompt"
	"github.com/jeranaias/gqlpilot/internal/schema"
	"github.com/jeranaias/gqlpilot/internal/session"
	"github.com/jeranaias/gqlpilot/internal/storage"
)

// featuresTimeout bounds the settings read behind each schema summary.
const featuresTimeout = 2 * time.Second

// =============================================================================
// APP
// =============================================================================

// App holds the collaborators shared by the client commands. Client and
// Assistant are set by Connect.
type App struct {
	Config      *config.Config
	Corpus      *corpus.Holder
	Catalog     *schema.Catalog
	GPT         *gptconfig.Store
	Summarizer  *schema.Summarizer
	Transcripts *storage.TranscriptStore

	Client    *chatclient.Client
	Session   *session.Session
	Assistant *assistant.Assistant

	mu        sync.RWMutex
	settings  gptconfig.Config
	connected bool

	stopWatch context.CancelFunc
}

// OpenApp opens the local stores. The corpus override file, if any, is
// watched until Close.
func OpenApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	watchCtx, cancel := context.WithCancel(ctx)
	a.stopWatch = cancel
	holder, err := openCorpus(watchCtx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Corpus = holder

	if a.Catalog, err = openCatalog(cfg); err != nil {
		a.Close()
		return nil, err
	}

	if store, err := openGPTStore(cfg); err != nil {
		log.Printf("GPT_CONFIG_UNAVAILABLE | err=%v", err)
	} else {
		a.GPT = store
	}
	a.Summarizer = schema.NewSummarizer(a.Catalog, schema.Options{Features: a.features})

	dir, err := config.ResolvePath(cfg.Paths.TranscriptsDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.Transcripts, err = storage.NewTranscriptStore(dir); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Connect dials the chat service and builds the assistant.
func (a *App) Connect(ctx context.Context) error {
	mode, err := prompt.ParseMode(a.Config.Client.Mode)
	if err != nil {
		return &UsageError{Message: err.Error()}
	}

	client, err := chatclient.Dial(ctx, chatclient.Config{
		URL:       a.Config.Client.URL,
		AuthToken: a.Config.Server.AuthToken,
	})
	if err != nil {
		return err
	}
	a.Client = client
	a.loadSettings(ctx)
	a.Session = session.New()
	a.Assistant = assistant.New(assistant.Config{
		Mode:   mode,
		Space:  a.Config.Client.Space,
		Prompt: prompt.Config{DocLength: a.DocLength()},
	}, client, a.Session, a.Summarizer, a.Corpus.Get)
	return nil
}

// =============================================================================
// SERVICE SETTINGS
// =============================================================================

// loadSettings reads docLength and features from the dialed service, then
// from the local settings store, then falls back to the defaults.
func (a *App) loadSettings(ctx context.Context) {
	settings := gptconfig.Defaults()
	endpoint, err := gptconfig.EndpointFor(a.Config.Client.URL)
	if err == nil {
		var remote gptconfig.Config
		if remote, err = gptconfig.Fetch(ctx, endpoint, a.Config.Server.AuthToken); err == nil {
			settings = remote
		}
	}
	if err != nil {
		log.Printf("GPT_SETTINGS_FETCH_FAILED | url=%s err=%v", endpoint, err)
		if a.GPT != nil {
			lctx, cancel := context.WithTimeout(ctx, featuresTimeout)
			if local, lerr := a.GPT.Get(lctx); lerr == nil {
				settings = local
			}
			cancel()
		}
	}

	a.mu.Lock()
	a.settings = settings
	a.connected = true
	a.mu.Unlock()
	log.Printf("GPT_SETTINGS_LOADED | doc_length=%d features=%q", settings.DocLength, settings.Features)
}

// DocLength is the document budget for prompts and the copilot. A non-zero
// client.doc_length wins over the service setting.
func (a *App) DocLength() int {
	if n := a.Config.Client.DocLength; n > 0 {
		return n
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.connected && a.settings.DocLength > 0 {
		return a.settings.DocLength
	}
	return gptconfig.DefaultDocLength
}

// features gates the schema section of prompts. Before Connect it reads the
// local settings store.
func (a *App) features() string {
	a.mu.RLock()
	settings, connected := a.settings, a.connected
	a.mu.RUnlock()
	if connected {
		return settings.Features
	}
	if a.GPT == nil {
		return gptconfig.DefaultFeatures
	}
	fctx, cancel := context.WithTimeout(context.Background(), featuresTimeout)
	defer cancel()
	return a.GPT.Features(fctx)
}

// SchemaText returns the schema of the assistant's current space for the
// copilot. Missing spaces are reported as schema.ErrSpaceUnavailable.
func (a *App) SchemaText(ctx context.Context) (string, error) {
	space := ""
	if a.Assistant != nil {
		space = a.Assistant.Space()
	}
	return a.Summarizer.Summarize(ctx, space)
}

// Close releases everything opened.
func (a *App) Close() {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	var errs []error
	if a.Client != nil {
		errs = append(errs, a.Client.Close())
	}
	if a.Catalog != nil {
		errs = append(errs, a.Catalog.Close())
	}
	if a.GPT != nil {
		errs = append(errs, a.GPT.Close())
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("APP_CLOSE_FAILED | err=%v", err)
	}
}

// =============================================================================
// OPENERS
// =============================================================================

func openCorpus(ctx context.Context, cfg *config.Config) (*corpus.Holder, error) {
	if cfg.Paths.CorpusFile == "" {
		return corpus.NewHolder(corpus.Default()), nil
	}
	path, err := config.ResolvePath(cfg.Paths.CorpusFile)
	if err != nil {
		return nil, err
	}
	c, err := corpus.LoadFile(path)
	if err != nil {
		return nil, &CommandError{Command: "corpus", Action: "load", Reason: path, Err: err}
	}
	h := corpus.NewHolder(c)
	if err := corpus.Watch(ctx, path, h, 0); err != nil {
		log.Printf("CORPUS_WATCH_FAILED | path=%s err=%v", path, err)
	}
	return h, nil
}

func openCatalog(cfg *config.Config) (*schema.Catalog, error) {
	path, err := config.ResolvePath(cfg.Paths.CatalogDB)
	if err != nil {
		return nil, err
	}
	return schema.OpenCatalog(path)
}

func openGPTStore(cfg *config.Config) (*gptconfig.Store, error) {
	keyFile, err := config.ResolvePath(cfg.Paths.MasterKeyFile)
	if err != nil {
		return nil, err
	}
	secret, err := gptconfig.MasterSecret(keyFile)
	if err != nil {
		return nil, err
	}
	sealer, err := gptconfig.NewSealer(secret)
	if err != nil {
		return nil, err
	}
	path, err := config.ResolvePath(cfg.Paths.GPTDB)
	if err != nil {
		return nil, err
	}
	return gptconfig.Open(path, sealer)
}
