package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"whisper/internal/auth"
	"whisper/internal/diary"
	"whisper/internal/hashtag"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

var errBoom = errors.New("db exploded")

// memFeed is an in-memory entryReader. Tag filtering uses the same substring
// semantics as the ILIKE predicate.
type memFeed struct {
	entries  []diary.Entry
	comments []diary.Comment
	events   []diary.EntryEvent
	likes    map[uint64]map[uint64]bool // entry -> user
	fail     bool
}

func (f *memFeed) filter(rows []diary.Entry, flt diary.Filter) []diary.Entry {
	out := []diary.Entry{}
	for _, e := range rows {
		if flt.Tag != "" && !hashtag.Matches(e.Content, flt.Tag) {
			continue
		}
		if flt.Before > 0 && e.ID >= flt.Before {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if flt.Limit > 0 && len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out
}

func (f *memFeed) ListOwn(_ context.Context, userID uint64, flt diary.Filter) ([]diary.Entry, error) {
	if f.fail {
		return nil, errBoom
	}
	var mine []diary.Entry
	for _, e := range f.entries {
		if e.UserID == userID {
			mine = append(mine, e)
		}
	}
	return f.filter(mine, flt), nil
}

func (f *memFeed) ListPublic(_ context.Context, flt diary.Filter) ([]diary.Entry, error) {
	if f.fail {
		return nil, errBoom
	}
	var pub []diary.Entry
	for _, e := range f.entries {
		if e.IsPublic {
			pub = append(pub, e)
		}
	}
	return f.filter(pub, flt), nil
}

func (f *memFeed) Get(_ context.Context, id, viewer uint64) (diary.Entry, error) {
	for _, e := range f.entries {
		if e.ID == id && e.Visible(viewer) {
			return e, nil
		}
	}
	return diary.Entry{}, diary.ErrNotFound
}

func (f *memFeed) BySlug(_ context.Context, slug string) (diary.Entry, error) {
	for _, e := range f.entries {
		if e.IsPublic && e.ShareSlug != nil && *e.ShareSlug == slug {
			return e, nil
		}
	}
	return diary.Entry{}, diary.ErrNotFound
}

func (f *memFeed) Comments(ctx context.Context, entryID, viewer uint64) ([]diary.Comment, error) {
	if _, err := f.Get(ctx, entryID, viewer); err != nil {
		return nil, err
	}
	var out []diary.Comment
	for _, c := range f.comments {
		if c.EntryID == entryID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *memFeed) Timeline(_ context.Context, entryID, userID uint64) ([]diary.EntryEvent, error) {
	for _, e := range f.entries {
		if e.ID == entryID && e.UserID == userID {
			var out []diary.EntryEvent
			for _, ev := range f.events {
				if ev.EntryID == entryID {
					out = append(out, ev)
				}
			}
			return out, nil
		}
	}
	return nil, diary.ErrNotFound
}

func (f *memFeed) LikedBy(_ context.Context, viewer uint64, ids []uint64) (map[uint64]bool, error) {
	out := map[uint64]bool{}
	for _, id := range ids {
		if f.likes[id][viewer] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *memFeed) cloud(keep func(diary.Entry) bool, batch, topN int) []hashtag.Tag {
	rows := f.filter(f.entries, diary.Filter{})
	var docs []string
	for _, e := range rows {
		if keep(e) && len(docs) < batch {
			docs = append(docs, e.Content)
		}
	}
	return hashtag.Aggregate(docs, topN)
}

func (f *memFeed) PublicTagCloud(_ context.Context, batch, topN int) ([]hashtag.Tag, error) {
	return f.cloud(func(e diary.Entry) bool { return e.IsPublic }, batch, topN), nil
}

func (f *memFeed) OwnTagCloud(_ context.Context, userID uint64, batch, topN int) ([]hashtag.Tag, error) {
	return f.cloud(func(e diary.Entry) bool { return e.UserID == userID }, batch, topN), nil
}

// recWriter records entryWriter calls and returns err for all of them.
type recWriter struct {
	err      error
	created  []diary.CreateEntryInput
	events   []diary.AppendEventInput
	likes    [][2]uint64
	unlikes  [][2]uint64
	comments []diary.AddCommentInput
	deleted  [][2]uint64
}

func (w *recWriter) CreateEntry(_ context.Context, userID uint64, in diary.CreateEntryInput) (uint64, error) {
	w.created = append(w.created, in)
	if w.err != nil {
		return 0, w.err
	}
	return 100 + userID, nil
}

func (w *recWriter) AppendEvent(_ context.Context, in diary.AppendEventInput) error {
	w.events = append(w.events, in)
	return w.err
}

func (w *recWriter) Like(_ context.Context, entryID, userID uint64) error {
	w.likes = append(w.likes, [2]uint64{entryID, userID})
	return w.err
}

func (w *recWriter) Unlike(_ context.Context, entryID, userID uint64) error {
	w.unlikes = append(w.unlikes, [2]uint64{entryID, userID})
	return w.err
}

func (w *recWriter) AddComment(_ context.Context, in diary.AddCommentInput) (diary.Comment, error) {
	w.comments = append(w.comments, in)
	if w.err != nil {
		return diary.Comment{}, w.err
	}
	return diary.Comment{ID: 9, EntryID: in.EntryID, UserID: in.UserID, Content: in.Content, IsAnonymous: in.Anonymous}, nil
}

func (w *recWriter) DeleteComment(_ context.Context, commentID, userID uint64) error {
	w.deleted = append(w.deleted, [2]uint64{commentID, userID})
	return w.err
}

type memAccounts struct {
	users map[uint64]auth.User
	err   error
}

func (a *memAccounts) Register(_ context.Context, email, password, displayName string) (auth.User, error) {
	if a.err != nil {
		return auth.User{}, a.err
	}
	if !auth.ValidPassword(password) {
		return auth.User{}, auth.ErrInvalidInput
	}
	id := uint64(len(a.users) + 1)
	e := auth.NormalizeEmail(email)
	u := auth.User{ID: id, Email: &e, DisplayName: displayName, CreatedAt: time.Now()}
	a.users[id] = u
	return u, nil
}

func (a *memAccounts) Authenticate(_ context.Context, email, password string) (auth.User, error) {
	for _, u := range a.users {
		if u.Email != nil && *u.Email == auth.NormalizeEmail(email) && password == "correct-password" {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrInvalidCredentials
}

func (a *memAccounts) Get(_ context.Context, id uint64) (auth.User, error) {
	if a.err != nil {
		return auth.User{}, a.err
	}
	u, ok := a.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (a *memAccounts) UpdateProfile(ctx context.Context, id uint64, displayName string) (auth.User, error) {
	u, err := a.Get(ctx, id)
	if err != nil {
		return u, err
	}
	u.DisplayName = displayName
	a.users[id] = u
	return u, nil
}

func (a *memAccounts) ChangePassword(_ context.Context, _ uint64, current, _ string) error {
	if current != "correct-password" {
		return auth.ErrInvalidCredentials
	}
	return nil
}

type memOTP struct {
	phone string
	err   error
}

func (o *memOTP) Request(_ context.Context, phone string) (string, error) {
	p, err := auth.NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	o.phone = p
	return "req-1", nil
}

func (o *memOTP) Verify(_ context.Context, phone, code string) (auth.User, error) {
	if o.err != nil {
		return auth.User{}, o.err
	}
	if code != "123456" {
		return auth.User{}, auth.ErrOTPInvalid
	}
	return auth.User{ID: 77, Phone: &phone}, nil
}

type testServer struct {
	jwt      *auth.JWT
	feed     *memFeed
	writer   *recWriter
	accounts *memAccounts
	otp      *memOTP
	handler  http.Handler
}

func slug(s string) *string { return &s }

func newTestServer() *testServer {
	ts := &testServer{
		jwt: auth.NewJWT("test-secret", time.Hour),
		feed: &memFeed{
			entries: []diary.Entry{
				{ID: 1, UserID: 10, Content: "private thoughts #sleep", Tags: pq.StringArray{"sleep"}},
				{ID: 2, UserID: 10, Content: "Rainy day #Mood #rain", IsPublic: true, IsAnonymous: true, ShareSlug: slug("slug-2"), Tags: pq.StringArray{"mood", "rain"}},
				{ID: 3, UserID: 11, Content: "#category theory is fun #rain", IsPublic: true, ShareSlug: slug("slug-3"), Tags: pq.StringArray{"category", "rain"}},
				{ID: 4, UserID: 11, Content: "my #cat sleeps", IsPublic: false, ShareSlug: slug("slug-4")},
			},
			comments: []diary.Comment{
				{ID: 1, EntryID: 2, UserID: 11, Content: "same #mood"},
				{ID: 2, EntryID: 2, UserID: 12, Content: "hugs", IsAnonymous: true},
			},
			events: []diary.EntryEvent{
				{ID: 5, EntryID: 1, UserID: 10, Type: diary.EventCreated, Payload: []byte(`{"content":"private thoughts #sleep"}`)},
			},
			likes: map[uint64]map[uint64]bool{3: {10: true}},
		},
		writer:   &recWriter{},
		accounts: &memAccounts{users: map[uint64]auth.User{}},
		otp:      &memOTP{},
	}

	log := zap.NewNop()
	ah := &AuthHandler{Accounts: ts.accounts, OTP: ts.otp, JWT: ts.jwt, Log: log}
	me := &MeHandler{Accounts: ts.accounts, Log: log}
	eh := &EntryHandler{Svc: ts.writer, Log: log}
	er := &EntryReadHandler{Feed: ts.feed, Log: log, TagBatch: 200, TagTopN: 10}
	ph := &PublicHandler{Feed: ts.feed, Log: log, TagBatch: 200, TagTopN: 10}

	r := chi.NewRouter()
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)
	r.Post("/auth/otp/request", ah.RequestOTP)
	r.Post("/auth/otp/verify", ah.VerifyOTP)
	r.Route("/me", func(r chi.Router) {
		r.Use(auth.RequireAuth(ts.jwt))
		r.Get("/", me.Me)
		r.Patch("/", me.Update)
		r.Post("/password", me.ChangePassword)
	})
	r.Route("/entries", func(r chi.Router) {
		r.Use(auth.RequireAuth(ts.jwt))
		r.Post("/", eh.Create)
		r.Get("/", er.List)
		r.Get("/tags", er.Tags)
		r.Get("/{id}", er.Get)
		r.Post("/{id}/events", eh.AppendEvent)
		r.Get("/{id}/timeline", er.Timeline)
		r.Post("/{id}/like", eh.Like)
		r.Delete("/{id}/like", eh.Unlike)
		r.Get("/{id}/comments", er.Comments)
		r.Post("/{id}/comments", eh.AddComment)
		r.Delete("/comments/{commentID}", eh.DeleteComment)
	})
	r.Route("/public", func(r chi.Router) {
		r.Use(auth.OptionalAuth(ts.jwt))
		r.Get("/feed", ph.List)
		r.Get("/tags", ph.Tags)
		r.Get("/s/{slug}", ph.Shared)
		r.Get("/entries/{id}", ph.Entry)
		r.Get("/entries/{id}/comments", ph.Comments)
	})
	ts.handler = r
	return ts
}
