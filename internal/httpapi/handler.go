// internal/httpapi/handler.go
package httpapi

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tamzrod/modbus2mqtt/internal/meter"
	"github.com/tamzrod/modbus2mqtt/internal/status"
)

// Request types.
const (
	TypeDataRequest = "data_request"
	TypeDeviceInfo  = "device_info"
)

// Request is the JSON body of a REST call.
type Request struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// LinkState reports the broker connection.
type LinkState interface {
	TCPConnected() bool
	MQTTConnected() bool
	LostCount() int
}

// Meter is one device slot. A nil Device means the line is disabled.
type Meter struct {
	Name   string
	Device *meter.Device
}

// Handler answers {"type":..,"key":..} requests.
type Handler struct {
	key        string
	meters     []Meter
	link       LinkState
	staleAfter time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewHandler(key string, meters []Meter, link LinkState, staleAfter time.Duration, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		key:        key,
		meters:     meters,
		link:       link,
		staleAfter: staleAfter,
		now:        time.Now,
		log:        log,
	}
}

// Serve handles GET and POST on "/". A missing or wrong key gets 403
// with an empty body.
func (h *Handler) Serve(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug("request body not parsed", zap.Error(err))
	}

	if h.key == "" || subtle.ConstantTimeCompare([]byte(req.Key), []byte(h.key)) != 1 {
		h.log.Warn("rest: invalid key",
			zap.String("remote_addr", c.ClientIP()),
			zap.String("type", req.Type),
		)
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	switch req.Type {
	case TypeDataRequest:
		payload, err := meter.Payload(h.readings()...)
		if err != nil {
			h.log.Error("rest: encode readings", zap.Error(err))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "application/json", payload)

	case TypeDeviceInfo:
		c.JSON(http.StatusOK, h.deviceInfo())

	default:
		c.JSON(http.StatusOK, gin.H{"type": req.Type, "result": "error"})
	}
}

func (h *Handler) readings() []meter.Reading {
	out := make([]meter.Reading, 0, len(h.meters))
	for _, m := range h.meters {
		if m.Device != nil {
			out = append(out, m.Device.Reading())
		}
	}
	return out
}

func (h *Handler) deviceInfo() status.DeviceInfo {
	var l status.Link
	if h.link != nil {
		l = status.Link{
			TCP:  h.link.TCPConnected(),
			MQTT: h.link.MQTTConnected(),
			Lost: h.link.LostCount(),
		}
	}

	now := h.now()
	snaps := make([]status.Snapshot, 0, len(h.meters))
	for _, m := range h.meters {
		snaps = append(snaps, status.Evaluate(m.Name, m.Device, h.staleAfter, now))
	}
	return status.Encode(l, snaps...)
}
