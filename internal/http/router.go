package http

import (
	"net/http"

	"whisper/internal/auth"
	"whisper/internal/config"
	"whisper/internal/diary"
	"whisper/internal/http/handler"
	mw "whisper/internal/http/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewRouter(cfg config.Config, db *gorm.DB, jwtSvc *auth.JWT, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger(log))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	accounts := &auth.Accounts{DB: db}
	otp := &auth.OTPService{DB: db, TTL: cfg.OTPTTL}

	ah := &handler.AuthHandler{Accounts: accounts, OTP: otp, JWT: jwtSvc, Log: log}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)
	r.Post("/auth/otp/request", ah.RequestOTP)
	r.Post("/auth/otp/verify", ah.VerifyOTP)

	me := &handler.MeHandler{Accounts: accounts, Log: log}
	r.Route("/me", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Get("/", me.Me)
		r.Patch("/", me.Update)
		r.Post("/password", me.ChangePassword)
	})

	svc := &diary.Service{DB: db}
	feed := &diary.Feed{DB: db}
	entryH := &handler.EntryHandler{Svc: svc, Log: log}
	entryRead := &handler.EntryReadHandler{Feed: feed, Log: log, TagBatch: cfg.FeedBatchSize, TagTopN: cfg.TagCloudSize}
	public := &handler.PublicHandler{Feed: feed, Log: log, TagBatch: cfg.FeedBatchSize, TagTopN: cfg.TagCloudSize}

	r.Route("/entries", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Post("/", entryH.Create)
		r.Get("/", entryRead.List)
		r.Get("/tags", entryRead.Tags)

		r.Get("/{id}", entryRead.Get)
		r.Post("/{id}/events", entryH.AppendEvent)
		r.Get("/{id}/timeline", entryRead.Timeline)

		r.Post("/{id}/like", entryH.Like)
		r.Delete("/{id}/like", entryH.Unlike)

		r.Get("/{id}/comments", entryRead.Comments)
		r.Post("/{id}/comments", entryH.AddComment)
		r.Delete("/comments/{commentID}", entryH.DeleteComment)
	})

	r.Route("/public", func(r chi.Router) {
		r.Use(auth.OptionalAuth(jwtSvc))

		r.Get("/feed", public.List)
		r.Get("/tags", public.Tags)
		r.Get("/s/{slug}", public.Shared)
		r.Get("/entries/{id}", public.Entry)
		r.Get("/entries/{id}/comments", public.Comments)
	})

	return r
}
