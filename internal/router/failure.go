package router

import (
	"regexp"
	"strings"
)

// FailureClass is the category of a transaction failure.
type FailureClass int

const (
	FailureGeneric FailureClass = iota
	FailureSlippage
	FailureInsufficientFunds
	FailureDetectionOnly
)

// Program error 6002 (0x1772) is the launchpad's TooMuchSolRequired.
var slippagePattern = regexp.MustCompile(`(?i)too\s*much\s*sol\s*required|0x1772|\b6002\b|slippage`)

// Classify inspects a failure message.
func Classify(detail string) FailureClass {
	if slippagePattern.MatchString(detail) {
		return FailureSlippage
	}
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "insufficient funds"),
		strings.Contains(lower, "insufficient lamports"),
		strings.Contains(lower, "insufficient balance"):
		return FailureInsufficientFunds
	case strings.Contains(lower, "detection only"),
		strings.Contains(lower, "detection-only"),
		strings.Contains(lower, "detection_only"):
		return FailureDetectionOnly
	}
	return FailureGeneric
}
