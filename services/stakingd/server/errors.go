package server

import (
	"encoding/json"
	"errors"
	"net/http"

	nativecommon "duostake/native/common"
	"duostake/native/staking"
	"duostake/storage"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeEngineError maps engine failures onto stable error codes. Timing and
// liquidity gates are conflicts the caller can retry; invariant violations
// surface as internal errors because they should never happen.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, staking.ErrZeroAmount):
		writeError(w, http.StatusBadRequest, "zero_amount", err.Error())
	case errors.Is(err, staking.ErrRatioMismatch):
		writeError(w, http.StatusBadRequest, "ratio_mismatch", err.Error())
	case errors.Is(err, staking.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, "invalid_price", err.Error())
	case errors.Is(err, storage.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "insufficient_funds", err.Error())
	case errors.Is(err, staking.ErrUnknownPosition):
		writeError(w, http.StatusNotFound, "unknown_position", err.Error())
	case errors.Is(err, staking.ErrPositionInactive):
		writeError(w, http.StatusConflict, "position_inactive", err.Error())
	case errors.Is(err, staking.ErrIntervalNotElapsed):
		writeError(w, http.StatusConflict, "interval_not_elapsed", err.Error())
	case errors.Is(err, staking.ErrLockNotElapsed):
		writeError(w, http.StatusConflict, "lock_not_elapsed", err.Error())
	case errors.Is(err, staking.ErrInsufficientRewardLiquidity):
		writeError(w, http.StatusConflict, "insufficient_reward_liquidity", err.Error())
	case errors.Is(err, staking.ErrInsufficientExcess):
		writeError(w, http.StatusConflict, "insufficient_excess", err.Error())
	case errors.Is(err, nativecommon.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, "paused", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
