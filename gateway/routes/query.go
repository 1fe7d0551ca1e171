package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fall/core"
	"fall/core/types"
	"fall/crypto"
)

type poolResponse struct {
	ID          types.PoolID `json:"id"`
	Exchange    string       `json:"exchange"`
	AssetA      string       `json:"assetA"`
	AssetB      string       `json:"assetB"`
	ReserveA    uint64       `json:"reserveA,string"`
	ReserveB    uint64       `json:"reserveB,string"`
	ShareSupply uint64       `json:"shareSupply,string"`

	BorrowInterestHeight      uint64 `json:"borrowInterestHeight,string"`
	BorrowInterestAccumulator uint64 `json:"borrowInterestAccumulator,string"`
	ShareLendingHeight        uint64 `json:"shareLendingHeight,string"`
	ShareLendingAccumulator   uint64 `json:"shareLendingAccumulator,string"`

	TotalLent       uint64 `json:"totalLent,string"`
	TotalBorrowed   uint64 `json:"totalBorrowed,string"`
	TotalCollateral uint64 `json:"totalCollateral,string"`
	CreatedHeight   uint64 `json:"createdHeight,string"`

	Vault         *crypto.Address `json:"vault,omitempty"`
	LendingVault  *crypto.Address `json:"lendingVault,omitempty"`
	VaultA        *uint64         `json:"vaultA,omitempty,string"`
	VaultB        *uint64         `json:"vaultB,omitempty,string"`
	LendingVaultA *uint64         `json:"lendingVaultA,omitempty,string"`
	LendingVaultB *uint64         `json:"lendingVaultB,omitempty,string"`
}

func newPoolResponse(pool *types.Pool) poolResponse {
	vault, lendingVault := pool.Vault(), pool.LendingVault()
	return poolResponse{
		ID:                        pool.ID,
		Exchange:                  pool.Exchange,
		AssetA:                    pool.AssetA,
		AssetB:                    pool.AssetB,
		ReserveA:                  pool.ReserveA,
		ReserveB:                  pool.ReserveB,
		ShareSupply:               pool.ShareSupply,
		BorrowInterestHeight:      pool.BorrowInterestHeight,
		BorrowInterestAccumulator: pool.BorrowInterestAccumulator,
		ShareLendingHeight:        pool.ShareLendingHeight,
		ShareLendingAccumulator:   pool.ShareLendingAccumulator,
		TotalLent:                 pool.TotalLent,
		TotalBorrowed:             pool.TotalBorrowed,
		TotalCollateral:           pool.TotalCollateral,
		CreatedHeight:             pool.CreatedHeight,
		Vault:                     &vault,
		LendingVault:              &lendingVault,
	}
}

func newPoolViewResponse(view *core.PoolView) poolResponse {
	out := newPoolResponse(view.Pool)
	out.VaultA, out.VaultB = &view.VaultA, &view.VaultB
	out.LendingVaultA, out.LendingVaultB = &view.LendingVaultA, &view.LendingVaultB
	return out
}

type borrowResponse struct {
	Pool             types.PoolID   `json:"pool"`
	Borrower         crypto.Address `json:"borrower"`
	Principal        uint64         `json:"principal,string"`
	Collateral       uint64         `json:"collateral,string"`
	CheckpointHeight uint64         `json:"checkpointHeight,string"`
}

func newBorrowResponse(p *types.BorrowPosition) borrowResponse {
	return borrowResponse{
		Pool:             p.Pool,
		Borrower:         p.BorrowerAddress(),
		Principal:        p.Principal,
		Collateral:       p.Collateral,
		CheckpointHeight: p.CheckpointHeight,
	}
}

type lenderResponse struct {
	Pool             types.PoolID   `json:"pool"`
	Lender           crypto.Address `json:"lender"`
	Principal        uint64         `json:"principal,string"`
	CheckpointHeight uint64         `json:"checkpointHeight,string"`
}

type priceResponse struct {
	Pool     types.PoolID `json:"pool"`
	AssetA   string       `json:"assetA"`
	AssetB   string       `json:"assetB"`
	ReserveA uint64       `json:"reserveA,string"`
	ReserveB uint64       `json:"reserveB,string"`
}

type balanceResponse struct {
	Address crypto.Address `json:"address"`
	Asset   string         `json:"asset"`
	Balance uint64         `json:"balance,string"`
}

type heightResponse struct {
	Height uint64 `json:"height,string"`
}

// queryRoutes serves read-only views under the service read lock.
type queryRoutes struct {
	svc    Service
	logger *slog.Logger
}

func (qr *queryRoutes) mount(r chi.Router) {
	r.Get("/height", qr.height)
	r.Get("/pools", qr.listPools)
	r.Get("/pools/{pool}", qr.getPool)
	r.Get("/pools/{pool}/price", qr.price)
	r.Get("/pools/{pool}/lenders/{addr}", qr.lender)
	r.Get("/pools/{pool}/borrowers/{addr}", qr.borrower)
	r.Get("/balances/{addr}/{asset}", qr.balance)
}

func (qr *queryRoutes) height(w http.ResponseWriter, r *http.Request) {
	height, err := qr.svc.Height()
	if err != nil {
		writeServiceError(w, qr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, heightResponse{Height: height})
}

func (qr *queryRoutes) listPools(w http.ResponseWriter, r *http.Request) {
	views, err := qr.svc.Pools()
	if err != nil {
		writeServiceError(w, qr.logger, r, err)
		return
	}
	out := make([]poolResponse, 0, len(views))
	for _, view := range views {
		out = append(out, newPoolViewResponse(view))
	}
	writeJSON(w, http.StatusOK, out)
}

func (qr *queryRoutes) getPool(w http.ResponseWriter, r *http.Request) {
	poolID, err := poolParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	view, err := qr.svc.Pool(poolID)
	if err != nil {
		writeServiceError(w, qr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolViewResponse(view))
}

func (qr *queryRoutes) price(w http.ResponseWriter, r *http.Request) {
	poolID, err := poolParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	view, err := qr.svc.Pool(poolID)
	if err != nil {
		writeServiceError(w, qr.logger, r, err)
		return
	}
	reserveA, reserveB, err := qr.svc.Price(poolID)
	if err != nil {
		writeServiceError(w, qr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{
		Pool:     poolID,
		AssetA:   view.AssetA,
		AssetB:   view.AssetB,
		ReserveA: reserveA,
		ReserveB: reserveB,
	})
}

func (qr *queryRoutes) lender(w http.ResponseWriter, r *http.Request) {
	poolID, err := poolParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	addr, err := addressParam(r, "addr")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	position, err := qr.svc.LenderPosition(poolID, addr)
	if err != nil {
		writeServiceError(w, qr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lenderResponse{
		Pool:             position.Pool,
		Lender:           position.LenderAddress(),
		Principal:        position.Principal,
		CheckpointHeight: position.CheckpointHeight,
	})
}

func (qr *queryRoutes) borrower(w http.ResponseWriter, r *http.Request) {
	poolID, err := poolParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	addr, err := addressParam(r, "addr")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	position, err := qr.svc.BorrowPosition(poolID, addr)
	if err != nil {
		writeServiceError(w, qr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBorrowResponse(position))
}

func (qr *queryRoutes) balance(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "addr")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	asset := chi.URLParam(r, "asset")
	balance, err := qr.svc.Balance(asset, addr)
	if err != nil {
		writeServiceError(w, qr.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Asset: asset, Balance: balance})
}
