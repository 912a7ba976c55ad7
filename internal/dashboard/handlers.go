package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"snipe-console/internal/control"
	"snipe-console/internal/domain"
	"snipe-console/internal/popup"
	"snipe-console/internal/router"
)

type stateView struct {
	Connection string               `json:"connection"`
	Popup      popup.Snapshot       `json:"popup"`
	Sequences  []popup.Sequence     `json:"sequences"`
	Status     router.Status        `json:"status"`
	Settings   control.SettingsView `json:"settings"`
	TokenCount int                  `json:"tokenCount"`
}

func (d *Dashboard) handleState(w http.ResponseWriter, r *http.Request) {
	conn := "unknown"
	if d.connection != nil {
		conn = d.connection()
	}
	writeJSON(w, stateView{
		Connection: conn,
		Popup:      d.actions.PopupState(),
		Sequences:  d.actions.Sequences(),
		Status:     d.status.Snapshot(),
		Settings:   d.actions.Settings().Redacted(),
		TokenCount: d.feed.Len(),
	})
}

func (d *Dashboard) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.notifications.List())
}

// handleTokens returns the feed through the confirmed display filter, or the
// whole feed with ?all=1.
func (d *Dashboard) handleTokens(w http.ResponseWriter, r *http.Request) {
	tokens := d.feed.Tokens()
	if r.URL.Query().Get("all") != "1" {
		tokens = d.feed.Visible(d.actions.Settings().Confirmed.Filter)
	}
	if tokens == nil {
		tokens = []domain.Token{}
	}
	writeJSON(w, tokens)
}

func (d *Dashboard) handleViewToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenAddress string `json:"tokenAddress"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := d.actions.ViewToken(r.Context(), req.TokenAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (d *Dashboard) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.actions.Settings().Redacted())
}

func (d *Dashboard) handleSettingsAction(w http.ResponseWriter, r *http.Request) {
	sd := domain.SettingsDomain(r.PathValue("domain"))
	var raw json.RawMessage
	if err := decodeBody(r, &raw); err != nil {
		writeError(w, err)
		return
	}

	var err error
	switch r.PathValue("action") {
	case "edit":
		err = d.actions.EditSettings(sd, raw)
	case "save":
		err = d.actions.SaveSettings(r.Context(), sd, raw)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, d.actions.Settings().Redacted())
}

func (d *Dashboard) handlePropagation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode domain.PropagationMode `json:"mode"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := d.actions.SetPropagationMode(req.Mode); err != nil {
		writeError(w, err)
		return
	}
	ok(w)
}

func (d *Dashboard) handleDismiss(w http.ResponseWriter, r *http.Request) {
	d.actions.DismissPopup()
	ok(w)
}

func (d *Dashboard) handleRetry(w http.ResponseWriter, r *http.Request) {
	opened, err := d.actions.RetryBlocked()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true, "opened": opened})
}

func (d *Dashboard) handleBot(start bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		if start {
			err = d.actions.StartBot(r.Context())
		} else {
			err = d.actions.StopBot(r.Context())
		}
		if err != nil {
			writeError(w, err)
			return
		}
		ok(w)
	}
}

func (d *Dashboard) handleSnipe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenAddress string          `json:"tokenAddress"`
		Amount       decimal.Decimal `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := d.actions.Snipe(r.Context(), req.TokenAddress, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (d *Dashboard) handleAdmins(w http.ResponseWriter, r *http.Request) {
	list := domain.AdminList(r.PathValue("list"))
	if !list.IsValid() {
		writeError(w, domain.ErrUnknownList)
		return
	}

	switch r.Method {
	case http.MethodGet:
		entries := d.actions.Admins(list)
		if entries == nil {
			entries = []domain.AdminEntry{}
		}
		writeJSON(w, entries)
	case http.MethodPost:
		var entry domain.AdminEntry
		if err := decodeBody(r, &entry); err != nil {
			writeError(w, err)
			return
		}
		stored, err := d.actions.AddAdmin(r.Context(), list, entry)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, stored)
	default:
		http.Error(w, "GET or POST only", http.StatusMethodNotAllowed)
	}
}

func (d *Dashboard) handleAdminByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "DELETE only", http.StatusMethodNotAllowed)
		return
	}
	list := domain.AdminList(r.PathValue("list"))
	if err := d.actions.RemoveAdmin(r.Context(), list, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	ok(w)
}

func (d *Dashboard) handleTwitterLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := d.actions.TwitterLogin(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	ok(w)
}

func (d *Dashboard) handleTwitterLogout(w http.ResponseWriter, r *http.Request) {
	if err := d.actions.TwitterLogout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	ok(w)
}
