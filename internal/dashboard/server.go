// Package dashboard serves a local JSON surface over the console state and
// user actions, for a UI shell or curl.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"snipe-console/internal/api"
	"snipe-console/internal/capability"
	"snipe-console/internal/control"
	"snipe-console/internal/domain"
	"snipe-console/internal/popup"
	"snipe-console/internal/router"
)

// Actions is the user action surface the dashboard exposes.
type Actions interface {
	Settings() control.SettingsView
	EditSettings(d domain.SettingsDomain, raw json.RawMessage) error
	SaveSettings(ctx context.Context, d domain.SettingsDomain, raw json.RawMessage) error
	SetPropagationMode(m domain.PropagationMode) error
	PopupState() popup.Snapshot
	Sequences() []popup.Sequence
	DismissPopup()
	RetryBlocked() (bool, error)
	ViewToken(ctx context.Context, tokenAddress string) (capability.OpenResult, error)
	Snipe(ctx context.Context, tokenAddress string, amount decimal.Decimal) (api.SnipeResult, error)
	StartBot(ctx context.Context) error
	StopBot(ctx context.Context) error
	Admins(list domain.AdminList) []domain.AdminEntry
	AddAdmin(ctx context.Context, list domain.AdminList, entry domain.AdminEntry) (domain.AdminEntry, error)
	RemoveAdmin(ctx context.Context, list domain.AdminList, id string) error
	TwitterLogin(ctx context.Context, username, password string) error
	TwitterLogout(ctx context.Context) error
}

// Notifications lists retained notifications, newest first.
type Notifications interface {
	List() []domain.Notification
}

// Deps are the dashboard's data sources.
type Deps struct {
	Actions       Actions
	Notifications Notifications
	Feed          *router.Feed
	Status        *router.StatusBoard
	// Connection reports the event channel status.
	Connection func() string
	// AllowedOrigins are the cross-origin callers admitted besides the
	// dashboard's own loopback origin. Their hosts are admitted too.
	AllowedOrigins []string
}

type Dashboard struct {
	actions       Actions
	notifications Notifications
	feed          *router.Feed
	status        *router.StatusBoard
	connection    func() string
	origins       map[string]bool
	hosts         map[string]bool
	logger        zerolog.Logger
}

func New(deps Deps) *Dashboard {
	d := &Dashboard{
		actions:       deps.Actions,
		notifications: deps.Notifications,
		feed:          deps.Feed,
		status:        deps.Status,
		connection:    deps.Connection,
		origins:       make(map[string]bool),
		hosts:         make(map[string]bool),
		logger:        log.Logger.With().Str("component", "dashboard").Logger(),
	}
	for _, o := range deps.AllowedOrigins {
		o = strings.TrimRight(o, "/")
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			d.logger.Warn().Str("origin", o).Msg("ignoring malformed allowed origin")
			continue
		}
		d.origins[o] = true
		d.hosts[strings.ToLower(u.Hostname())] = true
	}
	return d
}

// Handler returns the routed handler.
func (d *Dashboard) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/state", d.cors(get(d.handleState)))
	mux.HandleFunc("/api/notifications", d.cors(get(d.handleNotifications)))
	mux.HandleFunc("/api/tokens", d.cors(get(d.handleTokens)))
	mux.HandleFunc("/api/tokens/view", d.cors(post(d.handleViewToken)))
	mux.HandleFunc("/api/settings", d.cors(get(d.handleSettings)))
	mux.HandleFunc("/api/settings/propagation", d.cors(post(d.handlePropagation)))
	mux.HandleFunc("/api/settings/{domain}/{action}", d.cors(post(d.handleSettingsAction)))
	mux.HandleFunc("/api/popup/dismiss", d.cors(post(d.handleDismiss)))
	mux.HandleFunc("/api/popup/retry", d.cors(post(d.handleRetry)))
	mux.HandleFunc("/api/bot/start", d.cors(post(d.handleBot(true))))
	mux.HandleFunc("/api/bot/stop", d.cors(post(d.handleBot(false))))
	mux.HandleFunc("/api/snipe", d.cors(post(d.handleSnipe)))
	mux.HandleFunc("/api/admins/{list}", d.cors(d.handleAdmins))
	mux.HandleFunc("/api/admins/{list}/{id}", d.cors(d.handleAdminByID))
	mux.HandleFunc("/api/twitter/login", d.cors(post(d.handleTwitterLogin)))
	mux.HandleFunc("/api/twitter/logout", d.cors(post(d.handleTwitterLogout)))

	return mux
}

// Run serves on addr until ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           d.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	d.logger.Info().Str("addr", addr).Msg("dashboard started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// cors admits requests addressed to a loopback or allowlisted host whose
// Origin, when sent, is the dashboard itself or allowlisted. Everything else
// is refused before it reaches a handler.
func (d *Dashboard) cors(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.hostAllowed(r.Host) {
			d.logger.Warn().Str("host", r.Host).Str("path", r.URL.Path).Msg("request for foreign host rejected")
			http.Error(w, "host not allowed", http.StatusForbidden)
			return
		}
		if origin := r.Header.Get("Origin"); origin != "" {
			if !d.originAllowed(origin, r.Host) {
				d.logger.Warn().Str("origin", origin).Str("path", r.URL.Path).Msg("cross-origin request rejected")
				http.Error(w, "origin not allowed", http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h(w, r)
	}
}

func (d *Dashboard) hostAllowed(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" || d.hosts[host] {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (d *Dashboard) originAllowed(origin, host string) bool {
	origin = strings.TrimRight(origin, "/")
	if d.origins[origin] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return strings.EqualFold(u.Host, host) && d.hostAllowed(u.Host)
}

func get(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "GET only", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// writeError maps validation failures to 400 and everything else to 502,
// since the remaining failures come from the backend.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if isValidation(err) {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": err.Error()})
}

func isValidation(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidAmount,
		domain.ErrInvalidFees,
		domain.ErrInvalidPatch,
		domain.ErrInvalidURL,
		domain.ErrMissingAddress,
		domain.ErrMissingField,
		domain.ErrUnknownDomain,
		domain.ErrUnknownList,
		domain.ErrUnknownMode,
		errBadBody,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var errBadBody = errors.New("invalid request body")

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		return errBadBody
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errBadBody
	}
	return nil
}

func ok(w http.ResponseWriter) {
	writeJSON(w, map[string]bool{"success": true})
}
