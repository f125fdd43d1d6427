package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/pipeline"
	"github.com/joselpq/arqcashflow/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		router := buildRouter(env.Pipeline, env.Store, routerConfig{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxUploadBytes: int64(cfg.Import.MaxFileMB) << 20,
		})
		return startServer(ctx, router, resolvePort(servePort, cfg.Server.Port))
	},
}

type routerConfig struct {
	AllowedOrigins []string
	// MaxUploadBytes bounds the uploaded file; zero means unlimited.
	MaxUploadBytes int64
}

// multipartOverhead is allowed on top of the file for form fields and
// part headers.
const multipartOverhead = 1 << 20

// buildRouter wires the HTTP routes. st may be nil, in which case the audit
// endpoint answers 503.
func buildRouter(imp importer, st store.Store, rc routerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rc.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1/tenants/{tenant}/imports", func(r chi.Router) {
		r.Post("/", handleImport(imp, rc))
		r.Get("/{importID}/audit", handleAudit(st))
	})

	return r
}

func handleImport(imp importer, rc routerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limit := rc.MaxUploadBytes; limit > 0 {
			if r.ContentLength > limit+multipartOverhead {
				writeError(w, http.StatusRequestEntityTooLarge, "file too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "file too large")
				return
			}
			writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
			return
		}
		defer file.Close() //nolint:errcheck

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read upload")
			return
		}

		res, err := imp.Import(r.Context(), pipeline.Input{
			Data:     data,
			Filename: header.Filename,
			Vertical: r.FormValue("vertical"),
			Tenant:   chi.URLParam(r, "tenant"),
			DryRun:   r.FormValue("dry_run") == "true",
		})
		if err != nil {
			status := importErrorStatus(err)
			zap.L().Warn("import request failed",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("file", header.Filename),
				zap.Int("status", status),
				zap.Error(err),
			)
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// importErrorStatus maps pipeline failures to HTTP statuses: the file itself
// is unacceptable (422), the request is incomplete (400) or the reasoning
// service failed (502).
func importErrorStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case pipeline.IsStructural(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrNoTenant):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func handleAudit(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			writeError(w, http.StatusServiceUnavailable, "store not configured")
			return
		}
		scope := store.Scope{TenantID: chi.URLParam(r, "tenant"), ImportID: chi.URLParam(r, "importID")}
		entries, err := st.Tenant(scope).ListAudit(r.Context())
		if err != nil {
			zap.L().Error("list audit failed", zap.String("import_id", scope.ImportID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not load audit trail")
			return
		}
		if entries == nil {
			entries = []store.AuditEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"import_id": scope.ImportID,
			"entries":   entries,
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// resolvePort returns the flag port when set, otherwise the config port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves h until ctx is cancelled, then shuts down gracefully.
func startServer(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
