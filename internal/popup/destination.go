package popup

import (
	"context"
	"net/url"

	"snipe-console/internal/domain"
)

// URL templates.
const (
	neoBullXURL = "https://neo.bullx.io/terminal?chainId=1399811149&address="
	axiomURL    = "https://axiom.trade/meme/"
	pumpFunURL  = "https://pump.fun/coin/"
	bonkFunURL  = "https://bonk.fun/token/"
)

// Destination returns the URL automated opens use for token under the
// current destination preference. It never fails: resolution errors fall
// through to the bare token address.
func (o *Orchestrator) Destination(ctx context.Context, token domain.Token) string {
	switch o.prefs.Destination() {
	case domain.DestinationAxiom:
		return axiomURL + url.PathEscape(o.axiomAddress(ctx, token))
	default:
		return neoBullXURL + url.QueryEscape(token.TokenAddress)
	}
}

// ViewURL returns the URL for a manual "view token" action. Platform pages
// take precedence over the preference.
func (o *Orchestrator) ViewURL(ctx context.Context, token domain.Token) string {
	switch token.Platform {
	case domain.PlatformPumpfun:
		return pumpFunURL + url.PathEscape(token.TokenAddress)
	case domain.PlatformLetsbonk:
		return bonkFunURL + url.PathEscape(token.TokenAddress)
	}
	return o.Destination(ctx, token)
}

// axiomAddress picks the most specific address: known bonding curve, then a
// resolved one, then the pair for bonk pools, then the token itself. Demo
// tokens always use the token address.
func (o *Orchestrator) axiomAddress(ctx context.Context, token domain.Token) string {
	if token.IsDemo {
		return token.TokenAddress
	}
	if token.BondingCurveAddress != "" {
		return token.BondingCurveAddress
	}

	pair := token.PairAddress
	res, err := o.resolver.Resolve(ctx, token.TokenAddress)
	if err != nil {
		o.logger.Warn().Err(err).Str("token", token.TokenAddress).Msg("resolution failed, using fallback")
	} else {
		if res.BondingCurve != "" {
			if o.onResolved != nil {
				o.onResolved(token.TokenAddress, res.BondingCurve)
			}
			return res.BondingCurve
		}
		if pair == "" {
			pair = res.Pair
		}
	}

	if token.IsBonkPool() && pair != "" {
		return pair
	}
	return token.TokenAddress
}
