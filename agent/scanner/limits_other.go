//go:build !linux && !darwin

package scanner

func clampBatchToFDLimit(batch int) int { return batch }
