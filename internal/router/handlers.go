package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"snipe-console/internal/domain"
	"snipe-console/internal/observability"
)

func (r *Router) buildToken(p domain.TokenPayload, global domain.GlobalSnipeSettings) (domain.Token, error) {
	if p.TokenAddress == "" {
		return domain.Token{}, domain.ErrMissingAddress
	}
	token := p.Token(r.nowMs())
	if token.Config == nil {
		cfg := global.TokenConfig()
		token.Config = &cfg
	}
	return token, nil
}

func (r *Router) onTokenDetected(_ context.Context, data json.RawMessage) error {
	var p domain.TokenPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	settings := r.settings.Confirmed()
	token, err := r.buildToken(p, settings.GlobalSnipe)
	if err != nil {
		return err
	}

	if r.feed.Insert(token) {
		observability.RecordTokenDetected(string(token.MatchType))
		r.notifier.Push(classificationType(token.MatchType), classificationMessage(token))
		if settings.Basic.SoundEnabled {
			r.sound.Alert(alertSound(token, settings))
		}
	} else {
		r.logger.Debug().Str("token", token.TokenAddress).Msg("duplicate detection")
	}

	if token.MatchType.IsPrimary() {
		r.popups.HandlePrimary(token)
	}
	return nil
}

// alertSound picks the token's sound, then the global snipe sound, then the
// basic alert sound.
func alertSound(token domain.Token, s domain.Settings) string {
	if token.Config != nil && token.Config.Sound != "" {
		return token.Config.Sound
	}
	if s.GlobalSnipe.Sound != "" {
		return s.GlobalSnipe.Sound
	}
	return s.Basic.AlertSound
}

func classificationType(m domain.MatchType) domain.NotificationType {
	if m.IsPrimary() {
		return domain.NotifySuccess
	}
	return domain.NotifyInfo
}

func classificationMessage(t domain.Token) string {
	label := t.Symbol
	if label == "" {
		label = t.TokenAddress
	}
	switch {
	case t.MatchType.IsPrimary():
		return fmt.Sprintf("Primary match: %s (%s)", label, t.MatchedEntity)
	case t.MatchType.IsSecondary():
		return fmt.Sprintf("Secondary match: %s (%s)", label, t.MatchedEntity)
	case t.MatchType == domain.MatchSnipeAll:
		return fmt.Sprintf("Snipe-all detection: %s on %s", label, t.Platform)
	}
	return fmt.Sprintf("New token: %s on %s", label, t.Platform)
}

func (r *Router) onSecondaryTrigger(_ context.Context, data json.RawMessage) error {
	var p domain.TokenPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	token, err := r.buildToken(p, r.settings.Confirmed().GlobalSnipe)
	if err != nil {
		return err
	}
	r.feed.Insert(token)
	r.popups.HandleSecondary(token)
	return nil
}

func (r *Router) onDetectionOnly(_ context.Context, data json.RawMessage) error {
	var p domain.TokenPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	token, err := r.buildToken(p, r.settings.Confirmed().GlobalSnipe)
	if err != nil {
		return err
	}
	if r.feed.Insert(token) {
		observability.RecordTokenDetected(string(token.MatchType))
	}
	r.notifier.Push(domain.NotifyInfo, "Detection only: "+classificationMessage(token))
	return nil
}

func (r *Router) onTxFailure(_ context.Context, data json.RawMessage) error {
	var p domain.TxFailurePayload
	if err := decode(data, &p); err != nil {
		return err
	}

	token, ok := r.feed.Token(p.TokenAddress)
	if !ok {
		token = domain.Token{TokenAddress: p.TokenAddress, Name: p.Name, Symbol: p.Symbol}
	}
	label := token.Symbol
	if label == "" {
		label = p.TokenAddress
	}
	detail := p.Detail()

	switch Classify(detail) {
	case FailureSlippage:
		r.logger.Info().Str("token", p.TokenAddress).Str("detail", detail).Msg("slippage failure")
		r.popups.ShowSlippage(token, detail)
	case FailureInsufficientFunds:
		r.notifier.Push(domain.NotifyError, fmt.Sprintf("Insufficient SOL balance to buy %s", label))
	case FailureDetectionOnly:
		r.notifier.Push(domain.NotifyInfo, fmt.Sprintf("Detection-only mode: no transaction sent for %s", label))
	default:
		r.notifier.Push(domain.NotifyError, fmt.Sprintf("Transaction failed for %s: %s", label, detail))
	}
	return nil
}

func (r *Router) onSnipeSuccess(_ context.Context, data json.RawMessage) error {
	var p domain.SnipeSuccessPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	label := p.Symbol
	if label == "" {
		label = p.TokenAddress
	}
	msg := "Snipe successful: " + label
	if p.Amount != "" {
		msg += fmt.Sprintf(" (%s SOL)", p.Amount)
	}
	r.notifier.Push(domain.NotifySuccess, msg)

	if r.settings.Confirmed().Basic.SoundEnabled {
		r.sound.Alert("success.mp3")
	}
	return nil
}

// validPageURL requires an absolute http(s) URL.
func validPageURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (r *Router) onAutoOpen(_ context.Context, data json.RawMessage) error {
	var p domain.AutoOpenPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if !validPageURL(p.URL) {
		r.logger.Warn().Str("url", p.URL).Msg("rejecting auto-open url")
		r.notifier.Push(domain.NotifyError, "Invalid token page URL received")
		return nil
	}
	r.popups.OpenURL(p.URL, p.TokenAddress)
	return nil
}

func (r *Router) onCommunityAdmins(_ context.Context, data json.RawMessage) error {
	var p domain.CommunityAdminsPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	r.status.AddCommunity(CommunityRecord{
		CommunityID:  p.CommunityID,
		TokenAddress: p.TokenAddress,
		Admins:       p.Admins,
		ScrapedAt:    r.nowMs(),
	})
	r.notifier.Push(domain.NotifyInfo, fmt.Sprintf("Scraped %d admins from community %s", len(p.Admins), p.CommunityID))
	return nil
}

func (r *Router) onCommunityReuse(_ context.Context, data json.RawMessage) error {
	var p domain.CommunityReusePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	r.status.AddReuse(ReuseRecord{
		CommunityID:   p.CommunityID,
		TokenAddress:  p.TokenAddress,
		PreviousToken: p.PreviousToken,
		DetectedAt:    r.nowMs(),
	})
	r.notifier.Push(domain.NotifyWarning, fmt.Sprintf("Community %s reused by %s", p.CommunityID, p.TokenAddress))
	return nil
}

func (r *Router) onTwitterLogin(_ context.Context, data json.RawMessage) error {
	var p domain.TwitterLoginPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	r.status.SetTwitter(TwitterSession{
		LoggedIn:  p.Success,
		Username:  p.Username,
		Message:   p.Message,
		CheckedAt: r.nowMs(),
	})
	if p.Success {
		r.notifier.Push(domain.NotifySuccess, "Twitter login successful: @"+p.Username)
	} else {
		r.notifier.Push(domain.NotifyError, "Twitter login failed: "+p.Message)
	}
	return nil
}

func (r *Router) onTwitterSession(_ context.Context, data json.RawMessage) error {
	var p domain.TwitterSessionPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	r.status.SetTwitter(TwitterSession{
		LoggedIn:  p.LoggedIn,
		Username:  p.Username,
		Message:   p.Message,
		CheckedAt: r.nowMs(),
	})
	if p.LoggedIn {
		r.notifier.Push(domain.NotifyInfo, "Twitter session active: @"+p.Username)
	} else {
		r.notifier.Push(domain.NotifyWarning, "Twitter session expired")
	}
	return nil
}

func (r *Router) onBotStatus(_ context.Context, data json.RawMessage) error {
	var p domain.BotStatusPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	r.status.SetBot(p.Running, p.Message)

	msg := p.Message
	if msg == "" {
		msg = "Bot stopped"
		if p.Running {
			msg = "Bot started"
		}
	}
	r.notifier.Push(domain.NotifyInfo, msg)
	return nil
}

func (r *Router) onSettingsUpdated(ctx context.Context, data json.RawMessage) error {
	// The payload is either the settings object or {"settings": {...}}, and
	// may carry only some domains: decode over the confirmed values.
	var wrapped struct {
		Settings json.RawMessage `json:"settings"`
	}
	if err := decode(data, &wrapped); err != nil {
		return err
	}
	raw := data
	if len(wrapped.Settings) > 0 {
		raw = wrapped.Settings
	}

	s := r.settings.Confirmed()
	if err := decode(raw, &s); err != nil {
		return err
	}
	r.settings.ApplyRemote(ctx, s)
	r.notifier.Push(domain.NotifyInfo, "Settings updated")
	return nil
}

func (r *Router) onAdminListUpdated(ctx context.Context, data json.RawMessage) error {
	var p domain.AdminListUpdatedPayload
	if len(data) > 0 {
		if err := decode(data, &p); err != nil {
			return err
		}
	}
	lists := []domain.AdminList{p.List}
	if p.List == "" {
		lists = []domain.AdminList{domain.ListPrimary, domain.ListSecondary}
	} else if !p.List.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownList, p.List)
	}

	// Reloading is a network call: detach it from the router.
	ctx = context.WithoutCancel(ctx)
	go func() {
		for _, l := range lists {
			if err := r.admins.Load(ctx, l); err != nil {
				r.logger.Warn().Err(err).Str("list", string(l)).Msg("admin list reload failed")
			}
		}
	}()
	return nil
}

func (r *Router) message(t domain.NotificationType) HandlerFunc {
	return func(_ context.Context, data json.RawMessage) error {
		var p domain.MessagePayload
		if err := decode(data, &p); err != nil {
			return err
		}
		if p.Message == "" {
			return nil
		}
		r.notifier.Push(t, p.Message)
		return nil
	}
}

func (r *Router) onConnected(_ context.Context, data json.RawMessage) error {
	var p domain.MessagePayload
	if len(data) > 0 {
		_ = json.Unmarshal(data, &p)
	}
	msg := p.Message
	if msg == "" {
		msg = "Connected to backend"
	}
	r.notifier.Push(domain.NotifySuccess, msg)
	return nil
}
