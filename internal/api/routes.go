package api

import (
	"bytes"
	"encoding/hex"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rawblock/txlock-engine/internal/auditlog"
	"github.com/rawblock/txlock-engine/internal/relay"
	"github.com/rawblock/txlock-engine/internal/txlock"
	"github.com/rawblock/txlock-engine/pkg/models"
)

// APIHandler exposes the engine's processRequest/processVote/status
// surface over HTTP, adapted from the teacher's APIHandler (dbStore,
// wsHub wiring kept; the forensics-analysis handlers replaced with
// lock-engine handlers).
type APIHandler struct {
	engine *txlock.Engine
	relay  *relay.Hub
	audit  *auditlog.Store
}

// SetupRouter builds the gin engine. CORS and route-grouping structure
// follow the teacher's SetupRouter near-verbatim.
func SetupRouter(engine *txlock.Engine, relayHub *relay.Hub, audit *auditlog.Store) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &APIHandler{engine: engine, relay: relayHub, audit: audit}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", h.handleHealth)
		pub.GET("/stream", relayHub.Subscribe)
		pub.GET("/locks", h.handleRecentLocks)
		pub.GET("/locks/:txid", h.handleLockStatus)
	}

	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware())
	protected.Use(NewRateLimiter(60, 10).Middleware())
	{
		protected.POST("/requests", h.handleProcessRequest)
		protected.POST("/votes", h.handleProcessVote)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "txlock-engine",
	})
}

// handleProcessRequest accepts a raw transaction (hex-encoded) as a lock
// request. POST /api/v1/requests {"txHex": "..."}
func (h *APIHandler) handleProcessRequest(c *gin.Context) {
	correlationID := uuid.New().String()

	var body struct {
		TxHex string `json:"txHex"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "correlationId": correlationID})
		return
	}

	raw, err := hex.DecodeString(body.TxHex)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tx hex", "correlationId": correlationID})
		return
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to deserialize transaction", "correlationId": correlationID})
		return
	}

	req := txlock.LockRequest{Tx: tx, TimeCreated: time.Now()}
	accepted, err := h.engine.ProcessRequest(req)
	if err != nil {
		if h.audit != nil {
			_ = h.audit.RecordRejection(c.Request.Context(), tx.TxHash().String(), err.Error())
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "correlationId": correlationID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted":      accepted,
		"txid":          tx.TxHash().String(),
		"correlationId": correlationID,
	})
}

// handleProcessVote accepts a committee vote.
// POST /api/v1/votes {"txHash","outpointHash","outpointIndex","collateralHash","collateralIndex","signature"}
func (h *APIHandler) handleProcessVote(c *gin.Context) {
	correlationID := uuid.New().String()

	var body struct {
		TxHash          string `json:"txHash"`
		OutpointHash    string `json:"outpointHash"`
		OutpointIndex   uint32 `json:"outpointIndex"`
		CollateralHash  string `json:"collateralHash"`
		CollateralIndex uint32 `json:"collateralIndex"`
		Signature       string `json:"signature"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "correlationId": correlationID})
		return
	}

	txHash, err := chainhash.NewHashFromStr(body.TxHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid txHash", "correlationId": correlationID})
		return
	}
	opHash, err := chainhash.NewHashFromStr(body.OutpointHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid outpointHash", "correlationId": correlationID})
		return
	}
	collateralHash, err := chainhash.NewHashFromStr(body.CollateralHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid collateralHash", "correlationId": correlationID})
		return
	}
	sig, err := hex.DecodeString(body.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature hex", "correlationId": correlationID})
		return
	}

	v := txlock.Vote{
		TxHash:          *txHash,
		Outpoint:        txlock.NewOutpoint(*opHash, body.OutpointIndex),
		CommitteeId:     txlock.CommitteeId{Collateral: wire.OutPoint{Hash: *collateralHash, Index: body.CollateralIndex}},
		Signature:       sig,
		TimeCreated:     time.Now(),
		ConfirmedHeight: -1,
	}

	accepted, err := h.engine.ProcessVote(c.ClientIP(), v)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "correlationId": correlationID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": accepted, "correlationId": correlationID})
}

// handleLockStatus reports a candidate's lock status.
func (h *APIHandler) handleLockStatus(c *gin.Context) {
	txidStr := c.Param("txid")
	hash, err := chainhash.NewHashFromStr(txidStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid txid"})
		return
	}

	req, found := h.engine.GetTxLockRequest(*hash)
	resp := gin.H{
		"txid":       txidStr,
		"known":      found,
		"isLocked":   h.engine.IsLocked(*hash),
		"isReady":    h.engine.IsReadyToLock(*hash),
		"signatures": h.engine.SignaturesCount(*hash),
	}
	if found {
		resp["tx"] = models.FromWireTx(req.Tx)
	}
	c.JSON(http.StatusOK, resp)
}

// handleRecentLocks returns the most recently completed locks from the
// audit log.
func (h *APIHandler) handleRecentLocks(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit log not connected"})
		return
	}
	completions, err := h.audit.RecentCompletions(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": completions})
}
