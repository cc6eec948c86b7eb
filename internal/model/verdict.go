package model

import "encoding/json"

// Predicates is the full diagnostic vector of a breakout evaluation.
// Every field is always populated, whether or not the verdict fires.
type Predicates struct {
	EMAConvergence    bool `json:"ema_convergence"`
	PricePinned       bool `json:"price_pinned"`
	VolumeSurge       bool `json:"volume_surge"`
	MACDBullish       bool `json:"macd_bullish"`
	RSIMomentum       bool `json:"rsi_momentum"`
	VolatilitySqueeze bool `json:"volatility_squeeze"`
}

// PredicateNames lists the predicate keys in evaluation order (P1..P6).
var PredicateNames = [6]string{
	"ema_convergence",
	"price_pinned",
	"volume_surge",
	"macd_bullish",
	"rsi_momentum",
	"volatility_squeeze",
}

// Vector returns the predicates in evaluation order, aligned with PredicateNames.
func (p Predicates) Vector() [6]bool {
	return [6]bool{
		p.EMAConvergence,
		p.PricePinned,
		p.VolumeSurge,
		p.MACDBullish,
		p.RSIMomentum,
		p.VolatilitySqueeze,
	}
}

// All reports whether every predicate holds.
func (p Predicates) All() bool {
	for _, ok := range p.Vector() {
		if !ok {
			return false
		}
	}
	return true
}

// Failing returns the names of the predicates that do not hold.
func (p Predicates) Failing() []string {
	var names []string
	for i, ok := range p.Vector() {
		if !ok {
			names = append(names, PredicateNames[i])
		}
	}
	return names
}

// Verdict is the outcome of scanning one symbol.
type Verdict struct {
	Symbol     string     `json:"symbol"`
	Fire       bool       `json:"fire"`
	Predicates Predicates `json:"predicates"`
	Reason     string     `json:"reason,omitempty"`
	Error      ErrorKind  `json:"error,omitempty"`
	Snapshot   *Snapshot  `json:"snapshot,omitempty"`
}

// JSON returns the JSON-encoded verdict.
func (v *Verdict) JSON() ([]byte, error) {
	return json.Marshal(v)
}
