package control

import (
	"context"
	"encoding/json"
	"fmt"

	"snipe-console/internal/domain"
)

// EditSettings records a draft edit for domain d from a JSON patch.
func (c *Controller) EditSettings(d domain.SettingsDomain, raw json.RawMessage) error {
	switch d {
	case domain.DomainBasic:
		var p domain.BasicPatch
		if err := decodePatch(d, raw, &p); err != nil {
			return err
		}
		c.settings.EditBasic(p)
	case domain.DomainDetection:
		var p domain.DetectionPatch
		if err := decodePatch(d, raw, &p); err != nil {
			return err
		}
		c.settings.EditDetection(p)
	case domain.DomainFilter:
		var p domain.FilterPatch
		if err := decodePatch(d, raw, &p); err != nil {
			return err
		}
		c.settings.EditFilter(p)
	case domain.DomainGlobalSnipe:
		var p domain.GlobalSnipePatch
		if err := decodePatch(d, raw, &p); err != nil {
			return err
		}
		c.settings.EditGlobalSnipe(p)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownDomain, d)
	}
	return nil
}

// SaveSettings saves domain d with the given JSON patch merged into the
// pending edits. An empty patch saves the pending edits alone.
func (c *Controller) SaveSettings(ctx context.Context, d domain.SettingsDomain, raw json.RawMessage) error {
	switch d {
	case domain.DomainBasic:
		var p domain.BasicPatch
		if err := decodePatch(d, raw, &p); err != nil {
			return err
		}
		return c.settings.SaveBasic(ctx, p)
	case domain.DomainDetection:
		var p domain.DetectionPatch
		if err := decodePatch(d, raw, &p); err != nil {
			return err
		}
		return c.settings.SaveDetection(ctx, p)
	case domain.DomainFilter:
		var p domain.FilterPatch
		if err := decodePatch(d, raw, &p); err != nil {
			return err
		}
		return c.settings.SaveFilter(ctx, p)
	case domain.DomainGlobalSnipe:
		var p domain.GlobalSnipePatch
		if err := decodePatch(d, raw, &p); err != nil {
			return err
		}
		return c.settings.SaveGlobalSnipe(ctx, p)
	}
	return fmt.Errorf("%w: %q", domain.ErrUnknownDomain, d)
}

// SetPropagationMode chooses how a global snipe save reaches existing entries.
func (c *Controller) SetPropagationMode(m domain.PropagationMode) error {
	if err := c.settings.SetPropagationMode(m); err != nil {
		return c.invalid("Unknown propagation mode", err)
	}
	return nil
}

// SettingsView is the draft/confirmed pair shown to the user.
type SettingsView struct {
	Draft           domain.Settings                `json:"draft"`
	Confirmed       domain.Settings                `json:"confirmed"`
	Dirty           map[domain.SettingsDomain]bool `json:"dirty"`
	PropagationMode domain.PropagationMode         `json:"propagationMode"`
	// PrivateKeySet reports whether a wallet key is configured. The key
	// itself never leaves the engine through a view.
	PrivateKeySet bool `json:"privateKeySet"`
}

// Redacted blanks the wallet key in both copies.
func (v SettingsView) Redacted() SettingsView {
	v.PrivateKeySet = v.PrivateKeySet || v.Confirmed.Basic.PrivateKey != "" || v.Draft.Basic.PrivateKey != ""
	v.Draft.Basic.PrivateKey = ""
	v.Confirmed.Basic.PrivateKey = ""
	return v
}

// Settings returns the current settings view with the wallet key redacted.
func (c *Controller) Settings() SettingsView {
	dirty := make(map[domain.SettingsDomain]bool)
	for _, d := range domain.AllDomains() {
		dirty[d] = c.settings.IsDirty(d)
	}
	return SettingsView{
		Draft:           c.settings.Draft(),
		Confirmed:       c.settings.Confirmed(),
		Dirty:           dirty,
		PropagationMode: c.settings.PropagationMode(),
	}.Redacted()
}

func decodePatch(d domain.SettingsDomain, raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidPatch, d, err)
	}
	return nil
}
