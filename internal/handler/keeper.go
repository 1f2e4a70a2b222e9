package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"roundkeeper/internal/oracle"
	"roundkeeper/internal/service"
)

// KeeperHandler exposes the round lifecycle and claim relay.
type KeeperHandler struct {
	Rounds   *service.RoundController
	Auto     *service.AutoManager
	Contract *service.ContractService
	Claims   *service.ClaimEvaluator
	Prices   service.PriceSource
	Logger   *zap.Logger
}

func (h *KeeperHandler) Register(r *gin.Engine) {
	r.POST("/api/claim", h.claim)
	r.POST("/api/contract/init", h.initContract)
	r.POST("/api/contract/start-round", h.startRound)
	r.POST("/api/keeper/settle", h.settle)
	r.POST("/api/keeper/auto-manage", h.autoManage)
	r.GET("/api/rounds/current", h.currentRound)
	r.GET("/api/rewards/:address", h.rewards)
	r.GET("/api/price", h.price)
}

type claimRequest struct {
	RoundID     uint64 `json:"roundId"`
	UserAddress string `json:"userAddress"`
}

// @Summary Claim winnings for a user
// @Tags keeper
// @Accept json
// @Produce json
// @Param body body claimRequest true "round and user"
// @Success 200 {object} service.ClaimResult
// @Failure 400 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/claim [post]
func (h *KeeperHandler) claim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if req.RoundID == 0 || strings.TrimSpace(req.UserAddress) == "" {
		Error(c, http.StatusBadRequest, "missing roundId or userAddress", nil)
		return
	}
	res, err := h.Claims.Claim(c.Request.Context(), req.RoundID, req.UserAddress)
	if err != nil {
		h.logger().Warn("claim failed", zap.Uint64("round_id", req.RoundID), zap.String("user", req.UserAddress), zap.Error(err))
		errorFrom(c, err, nil)
		return
	}
	if res.Status == service.ClaimStatusNoWinnings {
		Error(c, http.StatusBadRequest, "no winnings to claim", map[string]any{
			"status":      res.Status,
			"roundId":     res.RoundID,
			"userAddress": res.UserAddress,
		})
		return
	}
	Ok(c, res, nil)
}

// @Summary Initialize the betting module
// @Tags contract
// @Produce json
// @Success 200 {object} service.InitResult
// @Router /api/contract/init [post]
func (h *KeeperHandler) initContract(c *gin.Context) {
	res, err := h.Contract.Init(c.Request.Context())
	if err != nil {
		errorFrom(c, err, nil)
		return
	}
	Ok(c, res, nil)
}

// @Summary Start a round at the current oracle price
// @Tags contract
// @Produce json
// @Success 200 {object} service.StartResult
// @Failure 409 {object} map[string]any
// @Router /api/contract/start-round [post]
func (h *KeeperHandler) startRound(c *gin.Context) {
	res, err := h.Rounds.StartRoundAtMarket(c.Request.Context())
	if err != nil {
		errorFrom(c, err, nil)
		return
	}
	Ok(c, res, nil)
}

type settleRequest struct {
	RoundID uint64 `json:"roundId"`
	// EndPrice is in dollars. When omitted the oracle price is used.
	EndPrice *decimal.Decimal `json:"endPrice"`
}

// @Summary Settle a round and start the next one
// @Tags keeper
// @Accept json
// @Produce json
// @Param body body settleRequest true "round and end price"
// @Description An already settled round is answered with status already_settled.
// @Success 200 {object} service.AdvanceResult
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/keeper/settle [post]
func (h *KeeperHandler) settle(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if req.RoundID == 0 {
		Error(c, http.StatusBadRequest, "missing roundId", nil)
		return
	}
	var endMicro *uint64
	if req.EndPrice != nil {
		micro, err := oracle.ToMicro(*req.EndPrice)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid endPrice: "+err.Error(), nil)
			return
		}
		endMicro = &micro
	}
	res, err := h.Rounds.AdvanceToNextRound(c.Request.Context(), req.RoundID, endMicro)
	if errors.Is(err, service.ErrAlreadySettled) && res != nil {
		Ok(c, res, nil)
		return
	}
	if err != nil {
		var meta map[string]any
		if res != nil && res.SettledRound.TransactionHash != "" {
			// settled, but the next round did not start
			meta = map[string]any{"runId": res.RunID, "settledRound": res.SettledRound}
		}
		errorFrom(c, err, meta)
		return
	}
	Ok(c, res, nil)
}

// @Summary Evaluate the current round and advance it when expired
// @Tags keeper
// @Produce json
// @Success 200 {object} service.Evaluation
// @Failure 400 {object} map[string]any
// @Router /api/keeper/auto-manage [post]
func (h *KeeperHandler) autoManage(c *gin.Context) {
	eval, err := h.Auto.Evaluate(c.Request.Context())
	if errors.Is(err, service.ErrNoRoundsExist) {
		Error(c, http.StatusBadRequest, "no rounds exist", map[string]any{
			"action":  eval.Action,
			"message": eval.Message,
		})
		return
	}
	if err != nil {
		h.logger().Warn("auto-manage failed", zap.Error(err))
		errorFrom(c, err, nil)
		return
	}
	Ok(c, eval, nil)
}

// @Summary Current round state
// @Tags rounds
// @Produce json
// @Success 200 {object} service.RoundState
// @Router /api/rounds/current [get]
func (h *KeeperHandler) currentRound(c *gin.Context) {
	st, err := h.Rounds.State(c.Request.Context())
	if err != nil {
		errorFrom(c, err, nil)
		return
	}
	Ok(c, st, nil)
}

// @Summary Unclaimed rewards for an address
// @Tags rounds
// @Produce json
// @Param address path string true "account address"
// @Param lookback query int false "rounds to scan"
// @Success 200 {object} service.ClaimableRewards
// @Router /api/rewards/{address} [get]
func (h *KeeperHandler) rewards(c *gin.Context) {
	res, err := h.Claims.Claimable(c.Request.Context(), c.Param("address"), intQuery(c, "lookback", 0))
	if err != nil {
		errorFrom(c, err, nil)
		return
	}
	Ok(c, res, nil)
}

// @Summary Current oracle price
// @Tags oracle
// @Produce json
// @Success 200 {object} oracle.Price
// @Failure 502 {object} map[string]any
// @Router /api/price [get]
func (h *KeeperHandler) price(c *gin.Context) {
	if h.Prices == nil {
		Error(c, http.StatusServiceUnavailable, "price oracle not configured", nil)
		return
	}
	p, err := h.Prices.FetchCurrentPrice(c.Request.Context())
	if err != nil {
		errorFrom(c, err, nil)
		return
	}
	Ok(c, p, nil)
}

func (h *KeeperHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
