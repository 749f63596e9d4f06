package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/storyteller/internal/answer"
	"github.com/abhisek/storyteller/internal/answercache"
	"github.com/abhisek/storyteller/internal/config"
	"github.com/abhisek/storyteller/internal/dialogue"
	"github.com/abhisek/storyteller/internal/httpapi"
	"github.com/abhisek/storyteller/internal/identity"
	"github.com/abhisek/storyteller/internal/llm"
	"github.com/abhisek/storyteller/internal/logger"
	"github.com/abhisek/storyteller/internal/observability"
	"github.com/abhisek/storyteller/internal/thread"
)

// shutdownGrace bounds how long in-flight turns may run after a signal.
const shutdownGrace = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Addr = addr
		}
		if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
			cfg.Engine.Mode = mode
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		log, err := logger.New(cfg.LogMode)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cmd, cfg, log)
	},
}

func serve(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log *logger.Logger) error {
	st, err := openStoreAt(cmd, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("close store", "error", err)
		}
	}()
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	base, err := llm.NewProviderFromEnv(ctx, st.EventRepo(), log)
	if err != nil {
		return fmt.Errorf("LLM provider not configured: %w", err)
	}
	provider := metrics.InstrumentProvider(base)

	answers, err := answercache.New(cfg.Redis, st.ExpectedAnswers(), log)
	if err != nil {
		return fmt.Errorf("answer cache: %w", err)
	}
	if c, ok := answers.(io.Closer); ok {
		defer c.Close()
	}

	var validator answer.Validator
	if cfg.Engine.SemanticCheck {
		vcfg := answer.DefaultValidatorConfig()
		vcfg.Model = cfg.Engine.Model
		validator = answer.NewSemanticValidator(provider, vcfg)
	}

	engine := dialogue.New(cfg.Engine, dialogue.Deps{
		Threads:       thread.NewLocal(provider, st.Threads(), thread.DefaultHistory),
		Provider:      provider,
		Conversations: st.Conversations(),
		Answers:       answers,
		Graphs:        st.Graphs(),
		Instructions:  st.Instructions(),
		Documents:     st.Documents(),
		Assistants:    st.Assistants(),
		Grader:        answer.NewGrader(validator),
		Log:           log,
		Metrics:       metrics,
	})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Engine:        engine,
			Conversations: st.Conversations(),
			Verifier:      identity.NewVerifier(cfg.JWTSecret),
			Metrics:       metrics,
			Log:           log,
			CORSOrigins:   cfg.CORSOrigins,
			MaxBodyBytes:  cfg.MaxBodyBytes,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // streamed turns outlive any fixed write deadline
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening",
			"addr", cfg.Addr,
			"mode", cfg.Engine.Mode,
			"env", cfg.Env,
			"redis", cfg.Redis.Addr != "",
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides STORYTELLER_ADDR)")
	serveCmd.Flags().String("mode", "", "Engine mode: linear or graph (overrides STORYTELLER_MODE)")
}
