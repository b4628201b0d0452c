package entitlements

import "strings"

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Monthly transcription minute quotas per plan.
const (
	freeMonthlyMinutes int64 = 30
	proMonthlyMinutes  int64 = 1000
)

// Upload size ceilings per plan.
const (
	freeMaxUploadBytes int64 = 100 << 20 // 100 MiB
	proMaxUploadBytes  int64 = 2 << 30   // 2 GiB
)

// NormalizePlan maps any stored plan string onto a known plan, defaulting
// to free for unknown values.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	default:
		return PlanFree
	}
}

// MonthlyMinuteQuota returns the monthly transcription minute ceiling for a
// plan. The ledger checks against this but never refuses to record usage.
func MonthlyMinuteQuota(plan Plan) int64 {
	switch plan {
	case PlanPro:
		return proMonthlyMinutes
	default:
		return freeMonthlyMinutes
	}
}

// MaxUploadBytes returns the largest single upload allowed for a plan.
func MaxUploadBytes(plan Plan) int64 {
	switch plan {
	case PlanPro:
		return proMaxUploadBytes
	default:
		return freeMaxUploadBytes
	}
}
