package routes

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fall/core/types"
	"fall/crypto"
)

// Amounts travel as decimal strings; the ,string tag rejects bare numbers
// and anything that is not an unsigned integer.

type createExchangeRequest struct {
	ID              string `json:"id"`
	Admin           string `json:"admin"`
	LiquidityFeeBps uint64 `json:"liquidityFeeBps,string"`
	ProtocolFeeBps  uint64 `json:"protocolFeeBps,string"`
}

type exchangeResponse struct {
	ID              string         `json:"id"`
	Admin           crypto.Address `json:"admin"`
	LiquidityFeeBps uint64         `json:"liquidityFeeBps,string"`
	ProtocolFeeBps  uint64         `json:"protocolFeeBps,string"`
}

type createPoolRequest struct {
	Exchange string `json:"exchange"`
	AssetA   string `json:"assetA"`
	AssetB   string `json:"assetB"`
}

type depositRequest struct {
	Address string `json:"address"`
	AmountA uint64 `json:"amountA,string"`
	AmountB uint64 `json:"amountB,string"`
}

type depositResponse struct {
	AcceptedA      uint64 `json:"acceptedA,string"`
	AcceptedB      uint64 `json:"acceptedB,string"`
	Minted         uint64 `json:"minted,string"`
	UserShares     uint64 `json:"userShares,string"`
	ProtocolShares uint64 `json:"protocolShares,string"`
	Locked         uint64 `json:"locked,string"`
}

type withdrawRequest struct {
	Address string `json:"address"`
	Shares  uint64 `json:"shares,string"`
}

type withdrawResponse struct {
	AmountA uint64 `json:"amountA,string"`
	AmountB uint64 `json:"amountB,string"`
}

type swapRequest struct {
	Address      string `json:"address"`
	AssetIn      string `json:"assetIn"`
	AmountIn     uint64 `json:"amountIn,string"`
	MinAmountOut uint64 `json:"minAmountOut,string"`
}

type swapResponse struct {
	Raw       uint64 `json:"raw,string"`
	Fee       uint64 `json:"fee,string"`
	AmountOut uint64 `json:"amountOut,string"`
}

type amountRequest struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount,string"`
}

type actorRequest struct {
	Address string `json:"address"`
}

type redeemResponse struct {
	Principal    uint64 `json:"principal,string"`
	PrincipalA   uint64 `json:"principalA,string"`
	PrincipalB   uint64 `json:"principalB,string"`
	InterestOwed uint64 `json:"interestOwed,string"`
	InterestB    uint64 `json:"interestB,string"`
}

type repayResponse struct {
	Principal          uint64 `json:"principal,string"`
	InterestA          uint64 `json:"interestA,string"`
	InterestB          uint64 `json:"interestB,string"`
	CollateralReturned uint64 `json:"collateralReturned,string"`
}

type liquidationResponse struct {
	Principal       uint64 `json:"principal,string"`
	Collateral      uint64 `json:"collateral,string"`
	CollateralValue uint64 `json:"collateralValue,string"`
	Reward          uint64 `json:"reward,string"`
}

type faucetRequest struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Amount  uint64 `json:"amount,string"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// poolRoutes serves the mutating operations.
type poolRoutes struct {
	svc    Service
	logger *slog.Logger
}

func (pr *poolRoutes) mountAdmin(r chi.Router) {
	r.Post("/exchanges", pr.createExchange)
	r.Post("/faucet", pr.faucet)
}

func (pr *poolRoutes) mount(r chi.Router) {
	r.Post("/pools", pr.createPool)
	r.Post("/pools/{pool}/deposit", pr.deposit)
	r.Post("/pools/{pool}/withdraw", pr.withdraw)
	r.Post("/pools/{pool}/swap", pr.swap)
	r.Post("/pools/{pool}/lend", pr.lend)
	r.Post("/pools/{pool}/redeem", pr.redeem)
	r.Post("/pools/{pool}/collateral", pr.collateral)
	r.Post("/pools/{pool}/borrow", pr.borrow)
	r.Post("/pools/{pool}/repay", pr.repay)
	r.Post("/pools/{pool}/liquidate/{borrower}", pr.liquidate)
}

func (pr *poolRoutes) createExchange(w http.ResponseWriter, r *http.Request) {
	req := createExchangeRequest{}
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	// An explicit admin may differ from the caller; otherwise the caller
	// administers the exchange.
	var admin crypto.Address
	var err error
	if strings.TrimSpace(req.Admin) != "" {
		admin, err = parseAddress(req.Admin)
	} else {
		admin, err = actor(r, "")
	}
	if err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	exchange, err := pr.svc.CreateExchange(r.Context(), strings.TrimSpace(req.ID), admin, req.LiquidityFeeBps, req.ProtocolFeeBps)
	if err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exchangeResponse{
		ID:              exchange.ID,
		Admin:           exchange.AdminAddress(),
		LiquidityFeeBps: exchange.LiquidityFeeBps,
		ProtocolFeeBps:  exchange.ProtocolFeeBps,
	})
}

func (pr *poolRoutes) createPool(w http.ResponseWriter, r *http.Request) {
	req := createPoolRequest{}
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	pool, err := pr.svc.CreatePool(r.Context(), req.Exchange, req.AssetA, req.AssetB)
	if err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPoolResponse(pool))
}

// target decodes the body and resolves the pool and acting address every
// pool mutation needs. It writes the error response itself.
func (pr *poolRoutes) target(w http.ResponseWriter, r *http.Request, req interface{}, claimed func() string) (types.PoolID, crypto.Address, bool) {
	poolID, err := poolParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return types.PoolID{}, crypto.Address{}, false
	}
	if err := decodeRequest(r, req); err != nil {
		writeBadRequest(w, err)
		return types.PoolID{}, crypto.Address{}, false
	}
	who, err := actor(r, claimed())
	if err != nil {
		writeServiceError(w, pr.logger, r, err)
		return types.PoolID{}, crypto.Address{}, false
	}
	return poolID, who, true
}

func (pr *poolRoutes) deposit(w http.ResponseWriter, r *http.Request) {
	req := depositRequest{}
	poolID, who, ok := pr.target(w, r, &req, func() string { return req.Address })
	if !ok {
		return
	}
	res, err := pr.svc.DepositLiquidity(r.Context(), who, poolID, req.AmountA, req.AmountB)
	if err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, depositResponse{
		AcceptedA:      res.AcceptedA,
		AcceptedB:      res.AcceptedB,
		Minted:         res.Minted,
		UserShares:     res.UserShares,
		ProtocolShares: res.ProtocolShares,
		Locked:         res.Locked,
	})
}

func (pr *poolRoutes) withdraw(w http.ResponseWriter, r *http.Request) {
	req := withdrawRequest{}
	poolID, who, ok := pr.target(w, r, &req, func() string { return req.Address })
	if !ok {
		return
	}
	res, err := pr.svc.WithdrawLiquidity(r.Context(), who, poolID, req.Shares)
	if err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawResponse{AmountA: res.AmountA, AmountB: res.AmountB})
}

func (pr *poolRoutes) swap(w http.ResponseWriter, r *http.Request) {
	req := swapRequest{}
	poolID, who, ok := pr.target(w, r, &req, func() string { return req.Address })
	if !ok {
		return
	}
	res, err := pr.svc.Swap(r.Context(), who, poolID, req.AssetIn, req.AmountIn, req.MinAmountOut)
	if err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, swapResponse{Raw: res.Raw, Fee: res.Fee, AmountOut: res.Net})
}

func (pr *poolRoutes) lend(w http.ResponseWriter, r *http.Request) {
	req := amountRequest{}
	poolID, who, ok := pr.target(w, r, &req, func() string { return req.Address })
	if !ok {
		return
	}
	if err := pr.svc.Lend(r.Context(), who, poolID, req.Amount); err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (pr *poolRoutes) redeem(w http.ResponseWriter, r *http.Request) {
	req := actorRequest{}
	poolID, who, ok := pr.target(w, r, &req, func() string { return req.Address })
	if !ok {
		return
	}
	res, err := pr.svc.Redeem(r.Context(), who, poolID)
	if err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redeemResponse{
		Principal:    res.Principal,
		PrincipalA:   res.PrincipalA,
		PrincipalB:   res.PrincipalB,
		InterestOwed: res.InterestOwed,
		InterestB:    res.InterestB,
	})
}

func (pr *poolRoutes) collateral(w http.ResponseWriter, r *http.Request) {
	req := amountRequest{}
	poolID, who, ok := pr.target(w, r, &req, func() string { return req.Address })
	if !ok {
		return
	}
	position, err := pr.svc.DepositCollateral(r.Context(), who, poolID, req.Amount)
	if err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBorrowResponse(position))
}

func (pr *poolRoutes) borrow(w http.ResponseWriter, r *http.Request) {
	req := amountRequest{}
	poolID, who, ok := pr.target(w, r, &req, func() string { return req.Address })
	if !ok {
		return
	}
	position, err := pr.svc.Borrow(r.Context(), who, poolID, req.Amount)
	if err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBorrowResponse(position))
}

func (pr *poolRoutes) repay(w http.ResponseWriter, r *http.Request) {
	req := actorRequest{}
	poolID, who, ok := pr.target(w, r, &req, func() string { return req.Address })
	if !ok {
		return
	}
	res, err := pr.svc.Repay(r.Context(), who, poolID)
	if err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, repayResponse{
		Principal:          res.Principal,
		InterestA:          res.InterestA,
		InterestB:          res.InterestB,
		CollateralReturned: res.CollateralReturned,
	})
}

func (pr *poolRoutes) liquidate(w http.ResponseWriter, r *http.Request) {
	borrower, err := addressParam(r, "borrower")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	req := actorRequest{}
	poolID, who, ok := pr.target(w, r, &req, func() string { return req.Address })
	if !ok {
		return
	}
	res, err := pr.svc.Liquidate(r.Context(), who, borrower, poolID)
	if err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, liquidationResponse{
		Principal:       res.Principal,
		Collateral:      res.Collateral,
		CollateralValue: res.CollateralValue,
		Reward:          res.Reward,
	})
}

// faucet credits the address in the body. It is an admin route, so the
// recipient need not be the token subject.
func (pr *poolRoutes) faucet(w http.ResponseWriter, r *http.Request) {
	req := faucetRequest{}
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	to, err := parseAddress(req.Address)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := pr.svc.Faucet(r.Context(), to, strings.TrimSpace(req.Asset), req.Amount); err != nil {
		writeServiceError(w, pr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
