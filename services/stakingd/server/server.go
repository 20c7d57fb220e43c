package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"duostake/native/staking"
	"duostake/observability"
)

// Vault is the custody surface the daemon administers beyond what the engine
// itself consumes: crediting accounts from external rails and reading
// per-account balances.
type Vault interface {
	staking.AssetVault
	Credit(owner common.Address, asset staking.Asset, amount *big.Int) error
	AccountBalance(owner common.Address, asset staking.Asset) (*big.Int, error)
}

// Options configures the staking daemon server.
type Options struct {
	Engine      *staking.Engine
	Vault       Vault
	Params      *ParamStore
	Logger      *slog.Logger
	AdminTokens []string
	// Oracle, when set, accepts price quotes through the admin API. Only
	// wired for oracle-ratio deployments.
	Oracle *staking.ManualOracle
	// RequestsPerMinute throttles the whole API; zero disables throttling.
	RequestsPerMinute float64
	Burst             int
}

// Server exposes the staking engine over JSON HTTP. Mutating operations are
// serialized with one mutex: the engine is a serialized state machine and the
// daemon is its host.
type Server struct {
	mu      sync.Mutex
	engine  *staking.Engine
	vault   Vault
	params  *ParamStore
	logger  *slog.Logger
	auth    *authenticator
	oracle  *staking.ManualOracle
	metrics *observability.StakingMetrics

	requestsPerMinute float64
	burst             int
}

// New constructs the server. Engine, vault and params must be non-nil.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("server: engine not configured")
	}
	if opts.Vault == nil {
		return nil, fmt.Errorf("server: vault not configured")
	}
	if opts.Params == nil {
		return nil, fmt.Errorf("server: param store not configured")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:            opts.Engine,
		vault:             opts.Vault,
		params:            opts.Params,
		logger:            logger,
		auth:              newAuthenticator(opts.AdminTokens),
		oracle:            opts.Oracle,
		metrics:           observability.Metrics(),
		requestsPerMinute: opts.RequestsPerMinute,
		burst:             opts.Burst,
	}, nil
}

// Handler assembles the routed HTTP surface wrapped in tracing middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(rateLimit(s.requestsPerMinute, s.burst))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/staking", func(r chi.Router) {
		r.Post("/stake", s.handleStake)
		r.Post("/claim", s.handleClaim)
		r.Post("/unstake", s.handleUnstake)
		r.Get("/params", s.handleGetParams)
		r.Get("/positions/{owner}", s.handlePositions)
		r.Get("/positions/{owner}/{id}", s.handlePosition)
		r.Get("/positions/{owner}/{id}/accrued", s.handleAccrued)
		r.Get("/pool/{asset}", s.handlePoolStatus)
		r.Get("/pool/{asset}/audit", s.handlePoolAudit)
		r.Get("/accounts/{owner}/{asset}", s.handleAccountBalance)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(s.auth.middleware)
		r.Post("/credit", s.handleCredit)
		r.Post("/fund", s.handleFund)
		r.Post("/withdraw", s.handleWithdraw)
		r.Post("/pause", s.handlePause(true))
		r.Post("/unpause", s.handlePause(false))
		r.Post("/price", s.handleSetPrice)
		r.Put("/params", s.handleUpdateParams)
	})

	return otelhttp.NewHandler(r, "stakingd")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type positionResponse struct {
	Owner             string `json:"owner"`
	ID                uint64 `json:"id"`
	StartTime         int64  `json:"startTime"`
	LockEndTime       int64  `json:"lockEndTime"`
	LastClaimTime     int64  `json:"lastClaimTime"`
	PrincipalA        string `json:"principalA"`
	PrincipalB        string `json:"principalB"`
	RewardObligationA string `json:"rewardObligationA"`
	RewardObligationB string `json:"rewardObligationB"`
	RewardClaimedA    string `json:"rewardClaimedA"`
	RewardClaimedB    string `json:"rewardClaimedB"`
	ApyBps            uint64 `json:"apyBps"`
	RewardInterval    int64  `json:"rewardInterval"`
	LockPeriod        int64  `json:"lockPeriod"`
	Active            bool   `json:"active"`
	NextPayoutTime    int64  `json:"nextPayoutTime,omitempty"`
}

func toPositionResponse(pos *staking.Position) positionResponse {
	resp := positionResponse{
		Owner:             pos.Owner.Hex(),
		ID:                pos.ID,
		StartTime:         pos.StartTime,
		LockEndTime:       pos.LockEndTime,
		LastClaimTime:     pos.LastClaimTime,
		PrincipalA:        pos.PrincipalA.String(),
		PrincipalB:        pos.PrincipalB.String(),
		RewardObligationA: pos.RewardObligationA.String(),
		RewardObligationB: pos.RewardObligationB.String(),
		RewardClaimedA:    pos.RewardClaimedA.String(),
		RewardClaimedB:    pos.RewardClaimedB.String(),
		ApyBps:            pos.ApyBps,
		RewardInterval:    pos.RewardInterval,
		LockPeriod:        pos.LockPeriod,
		Active:            pos.Active,
	}
	if pos.Active {
		resp.NextPayoutTime = pos.LastClaimTime + pos.RewardInterval
	}
	return resp
}

func decodeBody(r *http.Request, into any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(into)
}

func parseOwnerParam(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid address: %q", value)
	}
	return common.HexToAddress(value), nil
}

func parseAmountField(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s amount: %q", field, value)
	}
	return amount, nil
}

func (s *Server) observe(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveOperation(operation, outcome, time.Since(start))
}

func (s *Server) publishPoolGauges() {
	for _, asset := range []staking.Asset{staking.AssetA, staking.AssetB} {
		status, err := s.engine.PoolStatus(asset)
		if err != nil {
			continue
		}
		s.metrics.SetPoolGauges(asset.String(), status.Custody, status.Reserved)
	}
}

type stakeRequest struct {
	Owner   string `json:"owner"`
	AmountA string `json:"amountA"`
	AmountB string `json:"amountB,omitempty"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req stakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	owner, err := parseOwnerParam(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	amountA, err := parseAmountField("asset a", req.AmountA)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	// The oracle variant derives the paired amount; an omitted amountB is
	// passed through as nil and rejected by the fixed variant.
	var amountB *big.Int
	if req.AmountB != "" {
		if amountB, err = parseAmountField("asset b", req.AmountB); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}

	s.mu.Lock()
	pos, err := s.engine.Stake(owner, amountA, amountB)
	s.mu.Unlock()
	s.observe("stake", start, err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.metrics.AddAmount("stake", staking.AssetA.String(), pos.PrincipalA)
	s.metrics.AddAmount("stake", staking.AssetB.String(), pos.PrincipalB)
	s.publishPoolGauges()
	writeJSON(w, http.StatusCreated, toPositionResponse(pos))
}

type positionRequest struct {
	Owner      string `json:"owner"`
	PositionID uint64 `json:"positionId"`
}

type payoutResponse struct {
	AmountA string `json:"amountA"`
	AmountB string `json:"amountB"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req positionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	owner, err := parseOwnerParam(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	s.mu.Lock()
	amountA, amountB, err := s.engine.Claim(owner, req.PositionID)
	s.mu.Unlock()
	s.observe("claim", start, err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.metrics.AddAmount("claim", staking.AssetA.String(), amountA)
	s.metrics.AddAmount("claim", staking.AssetB.String(), amountB)
	s.publishPoolGauges()
	writeJSON(w, http.StatusOK, payoutResponse{AmountA: amountA.String(), AmountB: amountB.String()})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req positionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	owner, err := parseOwnerParam(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	s.mu.Lock()
	payoutA, payoutB, err := s.engine.Unstake(owner, req.PositionID)
	s.mu.Unlock()
	s.observe("unstake", start, err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.metrics.AddAmount("unstake", staking.AssetA.String(), payoutA)
	s.metrics.AddAmount("unstake", staking.AssetB.String(), payoutB)
	s.publishPoolGauges()
	writeJSON(w, http.StatusOK, payoutResponse{AmountA: payoutA.String(), AmountB: payoutB.String()})
}

func (s *Server) handleGetParams(w http.ResponseWriter, _ *http.Request) {
	params := s.params.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"apyBps":                params.ApyBps,
		"lockPeriodSeconds":     params.LockPeriod,
		"rewardIntervalSeconds": params.RewardInterval,
		"paused":                s.params.IsPaused("staking"),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwnerParam(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	positions, err := s.engine.Positions(owner)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	resp := make([]positionResponse, 0, len(positions))
	for _, pos := range positions {
		resp = append(resp, toPositionResponse(pos))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) positionParams(r *http.Request) (common.Address, uint64, error) {
	owner, err := parseOwnerParam(chi.URLParam(r, "owner"))
	if err != nil {
		return common.Address{}, 0, err
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("invalid position id: %w", err)
	}
	return owner, id, nil
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	owner, id, err := s.positionParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	pos, err := s.engine.GetPosition(owner, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPositionResponse(pos))
}

func (s *Server) handleAccrued(w http.ResponseWriter, r *http.Request) {
	owner, id, err := s.positionParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	accruedA, accruedB, err := s.engine.Accrued(owner, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	unlockable, err := s.engine.IsUnlockable(owner, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	nextPayout, err := s.engine.NextPayoutTime(owner, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accruedA":       accruedA.String(),
		"accruedB":       accruedB.String(),
		"unlockable":     unlockable,
		"nextPayoutTime": nextPayout,
	})
}

func (s *Server) handlePoolStatus(w http.ResponseWriter, r *http.Request) {
	asset, err := staking.ParseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	status, err := s.engine.PoolStatus(asset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	total, err := s.engine.TotalPrincipal(asset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"asset":          asset.String(),
		"custody":        status.Custody.String(),
		"reserved":       status.Reserved.String(),
		"excess":         status.Excess.String(),
		"totalPrincipal": total.String(),
	})
}

// handlePoolAudit recomputes the reservation scalar from the full position
// set. This walks every position and is meant for operators, not hot paths.
func (s *Server) handlePoolAudit(w http.ResponseWriter, r *http.Request) {
	asset, err := staking.ParseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	recomputed, err := s.engine.RecomputeReserved(asset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	status, err := s.engine.PoolStatus(asset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"asset":      asset.String(),
		"tracked":    status.Reserved.String(),
		"recomputed": recomputed.String(),
		"consistent": status.Reserved.Cmp(recomputed) == 0,
	})
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwnerParam(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	asset, err := staking.ParseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	balance, err := s.vault.AccountBalance(owner, asset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"owner":   owner.Hex(),
		"asset":   asset.String(),
		"balance": balance.String(),
	})
}

type assetAmountRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

func (s *Server) parseAssetAmount(r *http.Request) (common.Address, staking.Asset, *big.Int, error) {
	var req assetAmountRequest
	if err := decodeBody(r, &req); err != nil {
		return common.Address{}, 0, nil, err
	}
	account, err := parseOwnerParam(req.Account)
	if err != nil {
		return common.Address{}, 0, nil, err
	}
	asset, err := staking.ParseAsset(req.Asset)
	if err != nil {
		return common.Address{}, 0, nil, err
	}
	amount, err := parseAmountField("asset", req.Amount)
	if err != nil {
		return common.Address{}, 0, nil, err
	}
	return account, asset, amount, nil
}

// handleCredit records an external deposit onto a ledger account so it can be
// staked. In production this is driven by settlement from outside rails.
func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	account, asset, amount, err := s.parseAssetAmount(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.mu.Lock()
	err = s.vault.Credit(account, asset, amount)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "credited"})
}

func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	account, asset, amount, err := s.parseAssetAmount(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.mu.Lock()
	err = s.engine.FundRewards(account, asset, amount)
	s.mu.Unlock()
	s.observe("fund", start, err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.publishPoolGauges()
	writeJSON(w, http.StatusOK, map[string]string{"status": "funded"})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	account, asset, amount, err := s.parseAssetAmount(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.mu.Lock()
	err = s.engine.WithdrawExcess(account, asset, amount)
	s.mu.Unlock()
	s.observe("withdraw", start, err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.publishPoolGauges()
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (s *Server) handlePause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.params.SetPaused(paused)
		s.logger.Info("pause switch changed", slog.Bool("paused", paused))
		writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
	}
}

type priceRequest struct {
	// Rate is asset B per asset A in 1e18 fixed point, as a decimal string.
	Rate      string `json:"rate"`
	Timestamp int64  `json:"timestamp"`
}

// handleSetPrice publishes a quote to the manual oracle. Deployments on the
// fixed-ratio variant have no oracle and reject the call.
func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	if s.oracle == nil {
		writeError(w, http.StatusConflict, "oracle_disabled", "deployment does not use an oracle ratio")
		return
	}
	var req priceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	rate, err := parseAmountField("rate", req.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	timestamp := req.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}
	if err := s.oracle.SetQuote(rate, timestamp); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.logger.Info("oracle quote published",
		slog.String("rate", rate.String()),
		slog.Int64("timestamp", timestamp),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "published"})
}

type paramsRequest struct {
	ApyBps                uint64 `json:"apyBps"`
	LockPeriodSeconds     int64  `json:"lockPeriodSeconds"`
	RewardIntervalSeconds int64  `json:"rewardIntervalSeconds"`
}

// handleUpdateParams swaps the staking terms for positions created from now
// on. Existing positions keep the snapshot taken at their creation.
func (s *Server) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	var req paramsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	params := staking.Params{
		ApyBps:         req.ApyBps,
		LockPeriod:     req.LockPeriodSeconds,
		RewardInterval: req.RewardIntervalSeconds,
	}
	if err := s.params.Update(params); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.logger.Info("staking params updated",
		slog.Uint64("apyBps", params.ApyBps),
		slog.Int64("lockPeriod", params.LockPeriod),
		slog.Int64("rewardInterval", params.RewardInterval),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
