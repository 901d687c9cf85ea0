package poker

import (
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mustlammas/planningpoker/estimation"
	"github.com/rs/zerolog/log"
)

type PokerHandler struct {
	registry      *Registry
	manager       *Manager
	catalog       *estimation.Catalog
	tickerCreator PeriodicTickerChannelCreator
	clientOpts    ClientOptions
	upgrader      websocket.Upgrader
}

type createRoomRequest struct {
	Name string `json:"name"`
}

func NewPokerHandler(manager *Manager, catalog *estimation.Catalog, tickerCreator PeriodicTickerChannelCreator, allowedOrigins []string, clientOpts ClientOptions) *PokerHandler {
	return &PokerHandler{
		registry:      manager.Registry(),
		manager:       manager,
		catalog:       catalog,
		tickerCreator: tickerCreator,
		clientOpts:    clientOpts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *PokerHandler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/rooms", h.CreateRoomHandler)
	api.GET("/new", h.CreateRoomHandler)
	api.GET("/rooms/:roomid", h.GetRoomHandler)
	api.GET("/templates", h.TemplatesHandler)

	r.GET("/ws", h.WebsocketHandler)
}

// CreateRoomHandler accepts an optional JSON body with the room name.
func (h *PokerHandler) CreateRoomHandler(ctx *gin.Context) {
	req := createRoomRequest{}
	if ctx.Request.Method == http.MethodPost {
		if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid-request-format"})
			return
		}
	}

	room, err := h.registry.CreateRoom(req.Name)
	if errors.Is(err, ErrCapacityExceeded) {
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("ip", ctx.ClientIP()).Msg("room creation failed")
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}

	ctx.JSON(http.StatusCreated, room.Snapshot())
}

func (h *PokerHandler) GetRoomHandler(ctx *gin.Context) {
	room, err := h.registry.GetRoom(ctx.Param("roomid"))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, room.Snapshot())
}

func (h *PokerHandler) TemplatesHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"default":   h.catalog.Default(),
		"templates": h.catalog.Templates(),
	})
}

// WebsocketHandler upgrades the request and hands the socket to a client.
// Room and username arrive later in the JOIN message.
func (h *PokerHandler) WebsocketHandler(ctx *gin.Context) {
	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("websocket upgrade failed")
		return
	}

	socket := NewWebsocketConnection(conn, 2*h.clientOpts.PingInterval)
	c := NewClient(socket, h.manager, h.tickerCreator, h.clientOpts)
	go c.WritePump()
	go c.ReadPump()
}
