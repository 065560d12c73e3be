package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/organizer-live/organizer/internal/app/identity"
	"github.com/organizer-live/organizer/internal/contracts"
	"github.com/organizer-live/organizer/internal/livecache"
	"github.com/organizer-live/organizer/internal/palette"
	platformauth "github.com/organizer-live/organizer/internal/platform/auth"
	"github.com/organizer-live/organizer/internal/platform/config"
	"github.com/organizer-live/organizer/internal/platform/dbpool"
	"github.com/organizer-live/organizer/internal/platform/env"
	"github.com/organizer-live/organizer/internal/platform/metrics"
	"github.com/organizer-live/organizer/internal/platform/natsutil"
	"github.com/organizer-live/organizer/internal/store"
	"github.com/organizer-live/organizer/services/frontend"
)

var userStreams = newUserStreamRegistry()

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Token auth, not cookie auth, so cross-origin pages are fine.
	CheckOrigin: func(*http.Request) bool { return true },
}

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(env.String("CONFIG_FILE", "organizer.yaml"))
	if err != nil {
		log.Fatal(err)
	}

	tokenManager := identity.NewTokenManager(cfg.JWTSecret)

	pool, err := dbpool.New(runCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	client, err := natsutil.ConnectJetStreamWithRetry(cfg.NATSURL, env.Duration("NATS_CONNECT_TIMEOUT", 90*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	eventStore := store.NewPostgresStore(pool, nil, client.SubscribeNew)
	if err := waitForEventSchema(runCtx, eventStore, 30*time.Second); err != nil {
		log.Fatal(err)
	}

	cache := livecache.New(eventStore)
	defer cache.Close()
	go func() {
		for {
			if err := cache.Run(runCtx); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				log.Printf("live cache feed dropped: %v", err)
			}
			select {
			case <-runCtx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkStreamerReadiness(r.Context(), pool, client.Conn); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.Handle("/", templ.Handler(frontend.LoginPage()))
	mux.Handle("/login", templ.Handler(frontend.LoginPage()))
	mux.Handle("/app", templ.Handler(frontend.TimelinePage()))
	mux.Handle("/static/", http.StripPrefix("/static/", frontend.StaticHandler()))

	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		claims, ok := claimsFromRequest(w, r, tokenManager)
		if !ok {
			return
		}

		streamCtx, cancelStream := context.WithCancel(r.Context())
		streamID := fmt.Sprintf("%d", time.Now().UnixNano())
		if cancelPrev := userStreams.Replace(claims.Subject, streamID, cancelStream); cancelPrev != nil {
			cancelPrev()
		}
		defer userStreams.Release(claims.Subject, streamID)
		defer cancelStream()

		snapshots, unwatch := cache.Watch()
		defer unwatch()

		sendTimeline := func(records store.Snapshot) {
			content := strings.ReplaceAll(renderTimeline(records), "\n", "")
			fmt.Fprint(w, "event: timeline\n")
			fmt.Fprintf(w, "data: %s\n\n", content)
			flusher.Flush()
		}

		sendTimeline(cache.Current())
		for {
			select {
			case <-streamCtx.Done():
				return
			case snapshot, open := <-snapshots:
				if !open {
					return
				}
				sendTimeline(snapshot)
			}
		}
	})

	mux.HandleFunc("/events/disconnect", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		claims, ok := claimsFromRequest(w, r, tokenManager)
		if !ok {
			return
		}
		userStreams.Cancel(claims.Subject)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := claimsFromRequest(w, r, tokenManager); !ok {
			return
		}
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serveSnapshotSocket(r.Context(), conn, cache)
	})

	server := &http.Server{
		Addr:              cfg.StreamerAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Keep WriteTimeout unset for long-lived SSE streams.
		IdleTimeout: 120 * time.Second,
	}

	fmt.Printf("Organizer streamer listening on %s\n", cfg.StreamerAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Std())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("organizer-streamer graceful shutdown failed: %v", err)
	}
}

// snapshotMessage is the JSON frame the websocket feed sends per change.
type snapshotMessage struct {
	Records []contracts.EventRecord `json:"records"`
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// serveSnapshotSocket pushes the full collection to one websocket client:
// the current state first, then every snapshot the cache applies.
func serveSnapshotSocket(ctx context.Context, conn *websocket.Conn, cache *livecache.Cache) {
	defer conn.Close()

	snapshots, unwatch := cache.Watch()
	defer unwatch()

	// Reader goroutine only consumes control frames and surfaces the close.
	readerDone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	writeSnapshot := func(records store.Snapshot) error {
		if records == nil {
			records = store.Snapshot{}
		}
		payload, err := json.Marshal(snapshotMessage{Records: records})
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(websocket.TextMessage, payload)
	}

	if err := writeSnapshot(cache.Current()); err != nil {
		return
	}

	pings := time.NewTicker(wsPingPeriod)
	defer pings.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-readerDone:
			return
		case <-pings.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case snapshot, open := <-snapshots:
			if !open {
				return
			}
			if err := writeSnapshot(snapshot); err != nil {
				return
			}
		}
	}
}

type userStreamLease struct {
	id     string
	cancel context.CancelFunc
}

// userStreamRegistry enforces one live stream per user: opening a new one
// cancels the previous.
type userStreamRegistry struct {
	mu     sync.Mutex
	byUser map[string]userStreamLease
}

func newUserStreamRegistry() *userStreamRegistry {
	return &userStreamRegistry{byUser: make(map[string]userStreamLease)}
}

func (r *userStreamRegistry) Replace(userID, streamID string, cancel context.CancelFunc) context.CancelFunc {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prevCancel context.CancelFunc
	if current, ok := r.byUser[userID]; ok {
		prevCancel = current.cancel
	}
	r.byUser[userID] = userStreamLease{id: streamID, cancel: cancel}
	return prevCancel
}

func (r *userStreamRegistry) Release(userID, streamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byUser[userID]
	if !ok {
		return
	}
	if current.id != streamID {
		return
	}
	delete(r.byUser, userID)
}

func (r *userStreamRegistry) Cancel(userID string) {
	r.mu.Lock()
	lease, ok := r.byUser[userID]
	if ok {
		delete(r.byUser, userID)
	}
	r.mu.Unlock()

	if ok && lease.cancel != nil {
		lease.cancel()
	}
}

// renderTimeline produces the <li> items of the timeline list, newest date
// last; the snapshot already arrives sorted. Off-palette icons and colours
// fall back to the defaults for display only.
func renderTimeline(records store.Snapshot) string {
	if len(records) == 0 {
		return `<li class="empty">No events yet. Add one to get started.</li>`
	}

	var sb strings.Builder
	for _, rec := range records {
		colour := "#" + palette.NormalizeColour(rec.Colour)
		icon := palette.NormalizeIcon(rec.Icon)

		sb.WriteString(`<li class="event" style="border-left-color: `)
		sb.WriteString(html.EscapeString(colour))
		sb.WriteString(`;">`)
		sb.WriteString(`<span class="marker" style="background: `)
		sb.WriteString(html.EscapeString(colour))
		sb.WriteString(`;"><i class="`)
		sb.WriteString(html.EscapeString(icon))
		sb.WriteString(`"></i></span>`)
		sb.WriteString(`<div class="body"><div class="when">`)
		sb.WriteString(html.EscapeString(rec.Date.Format("Mon, 02 Jan 2006")))
		sb.WriteString(`</div><h3>`)
		sb.WriteString(html.EscapeString(rec.Title))
		sb.WriteString(`</h3><p>`)
		sb.WriteString(html.EscapeString(rec.Description))
		sb.WriteString(`</p></div>`)
		sb.WriteString(`<button class="btn danger" data-delete-id="`)
		sb.WriteString(html.EscapeString(rec.ID))
		sb.WriteString(`">Delete</button>`)
		sb.WriteString(`</li>`)
	}
	return sb.String()
}

func waitForEventSchema(ctx context.Context, eventStore *store.PostgresStore, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = eventStore.EnsureSchema(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for event schema readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func checkStreamerReadiness(ctx context.Context, pool *pgxpool.Pool, conn *nats.Conn) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	if conn.Status() != nats.CONNECTED {
		return fmt.Errorf("nats is not connected: %s", conn.Status().String())
	}

	checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if err := pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func claimsFromRequest(w http.ResponseWriter, r *http.Request, tokenManager platformauth.Manager) (platformauth.Claims, bool) {
	token := platformauth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return platformauth.Claims{}, false
	}
	claims, err := tokenManager.Parse(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return platformauth.Claims{}, false
	}
	return claims, true
}
