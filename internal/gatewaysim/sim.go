// Package gatewaysim is a scripted stand-in for an Evolution API gateway. It
// serves the instance lifecycle routes courier uses so the dashboard can be
// developed and tested without a real WhatsApp session.
package gatewaysim

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Raw connection states reported by the list route.
const (
	StatusClose      = "close"
	StatusConnecting = "connecting"
	StatusQRCode     = "qrcode"
	StatusOpen       = "open"
)

// Options configure a Sim.
type Options struct {
	// APIKey is the expected apikey header. Empty disables authentication.
	APIKey string
	// PairAfter is how many list calls an instance stays "connecting" before
	// it reports "qrcode". Zero means one.
	PairAfter int
	Logger    *zap.Logger
	Now       func() time.Time
}

// Sim holds the simulated gateway state.
type Sim struct {
	mu        sync.Mutex
	opts      Options
	instances map[string]*simInstance
	fault     fault
	qrPNG     []byte
	engine    *gin.Engine
}

type simInstance struct {
	name        string
	status      string
	polls       int
	owner       string
	profile     string
	messages    int
	contacts    int
	chats       int
	qrCount     int
	pairingCode string
	updatedAt   time.Time
}

type fault struct {
	status    int
	delay     time.Duration
	remaining int
}

// New builds a Sim and its gin engine.
func New(opts Options) *Sim {
	if opts.PairAfter <= 0 {
		opts.PairAfter = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Sim{
		opts:      opts,
		instances: make(map[string]*simInstance),
		qrPNG:     placeholderQR(),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving the gateway routes.
func (s *Sim) Handler() http.Handler {
	return s.engine
}

// Seed adds or replaces an instance with the given raw status.
func (s *Sim) Seed(name, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[name] = &simInstance{name: name, status: status, updatedAt: s.opts.Now()}
}

// Status returns the raw status of name and whether it exists.
func (s *Sim) Status(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[name]
	if !ok {
		return "", false
	}
	return inst.status, true
}

// Scan simulates a phone scanning the QR code for name.
func (s *Sim) Scan(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[name]
	if !ok {
		return fmt.Errorf("instance %q not found", name)
	}
	if inst.status != StatusQRCode {
		return fmt.Errorf("instance %q is %s, not waiting for a scan", name, inst.status)
	}
	inst.status = StatusOpen
	inst.owner = "5511999990000@s.whatsapp.net"
	inst.profile = "Courier Sim"
	inst.messages, inst.contacts, inst.chats = 42, 7, 3
	inst.updatedAt = s.opts.Now()
	return nil
}

// InjectFault makes the next count gateway requests fail with status, after
// waiting delay. A zero status with a delay only slows requests down.
func (s *Sim) InjectFault(status int, delay time.Duration, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fault{status: status, delay: delay, remaining: count}
}

// Serve listens on addr until ctx is cancelled.
func (s *Sim) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:           s.engine,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.opts.Logger.Info("gateway simulator listening", zap.String("addr", listener.Addr().String()))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(listener) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errc
		return nil
	}
}

func (s *Sim) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	api := r.Group("/instance", s.authenticate(), s.injectFaults())
	api.GET("/fetchInstances", s.handleList)
	api.GET("/connect/:name", s.handleConnect)
	api.GET("/qrcode/:name", s.handleQRCode)
	api.POST("/create", s.handleCreate)
	api.DELETE("/logout/:name", s.handleLogout)
	api.DELETE("/delete/:name", s.handleDelete)

	sim := r.Group("/sim")
	sim.POST("/scan/:name", s.handleScan)
	sim.POST("/fail", s.handleFail)
	sim.DELETE("/fail", s.handleClearFail)
	return r
}

func (s *Sim) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.opts.Logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *Sim) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.APIKey != "" && c.GetHeader("apikey") != s.opts.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Sim) injectFaults() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		f := s.fault
		if f.remaining > 0 {
			s.fault.remaining--
		}
		s.mu.Unlock()
		if f.remaining <= 0 {
			c.Next()
			return
		}
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if f.status != 0 {
			c.AbortWithStatusJSON(f.status, gin.H{"status": f.status, "error": "injected fault"})
			return
		}
		c.Next()
	}
}

func (s *Sim) handleList(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.instances))
	for name := range s.instances {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]gin.H, 0, len(names))
	for _, name := range names {
		inst := s.instances[name]
		if inst.status == StatusConnecting {
			inst.polls++
			if inst.polls >= s.opts.PairAfter {
				inst.status = StatusQRCode
				inst.updatedAt = s.opts.Now()
			}
		}
		out = append(out, s.record(inst))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Sim) record(inst *simInstance) gin.H {
	rec := gin.H{
		"id":               "sim-" + inst.name,
		"name":             inst.name,
		"connectionStatus": inst.status,
		"integration":      "WHATSAPP-BAILEYS",
		"updatedAt":        inst.updatedAt.UTC().Format(time.RFC3339),
		"_count": gin.H{
			"Message": inst.messages,
			"Contact": inst.contacts,
			"Chat":    inst.chats,
		},
	}
	if inst.owner != "" {
		rec["ownerJid"] = inst.owner
	}
	if inst.profile != "" {
		rec["profileName"] = inst.profile
	}
	return rec
}

func (s *Sim) handleConnect(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[c.Param("name")]
	if !ok {
		notFound(c, c.Param("name"))
		return
	}
	switch inst.status {
	case StatusOpen:
		c.JSON(http.StatusOK, gin.H{"instance": gin.H{"instanceName": inst.name, "state": StatusOpen}})
		return
	case StatusClose:
		inst.status = StatusConnecting
		inst.polls = 0
		inst.updatedAt = s.opts.Now()
	}
	c.JSON(http.StatusOK, s.pairing(inst))
}

func (s *Sim) handleQRCode(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[c.Param("name")]
	if !ok {
		notFound(c, c.Param("name"))
		return
	}
	if inst.status != StatusQRCode {
		c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "error": "Bad Request",
			"response": gin.H{"message": []string{"instance is not waiting for a QR scan"}}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"qrcode": s.pairing(inst)})
}

func (s *Sim) handleCreate(c *gin.Context) {
	var req struct {
		InstanceName string `json:"instanceName" binding:"required"`
		QRCode       bool   `json:"qrcode"`
		Integration  string `json:"integration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "error": "instanceName is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.instances[req.InstanceName]; exists {
		c.JSON(http.StatusForbidden, gin.H{"status": http.StatusForbidden, "error": "Forbidden",
			"response": gin.H{"message": []string{fmt.Sprintf("This name %q is already in use.", req.InstanceName)}}})
		return
	}
	inst := &simInstance{name: req.InstanceName, status: StatusClose, updatedAt: s.opts.Now()}
	if req.QRCode {
		inst.status = StatusConnecting
	}
	s.instances[inst.name] = inst

	resp := gin.H{"instance": gin.H{"instanceName": inst.name, "status": inst.status}}
	if req.QRCode {
		resp["qrcode"] = s.pairing(inst)
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Sim) handleLogout(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[c.Param("name")]
	if !ok {
		notFound(c, c.Param("name"))
		return
	}
	if inst.status == StatusClose {
		c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "error": "Bad Request",
			"response": gin.H{"message": []string{"The instance is not connected"}}})
		return
	}
	inst.status = StatusClose
	inst.owner, inst.profile = "", ""
	inst.updatedAt = s.opts.Now()
	c.JSON(http.StatusOK, gin.H{"status": "SUCCESS", "error": false, "response": gin.H{"message": "Instance logged out"}})
}

func (s *Sim) handleDelete(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := c.Param("name")
	if _, ok := s.instances[name]; !ok {
		notFound(c, name)
		return
	}
	delete(s.instances, name)
	c.JSON(http.StatusOK, gin.H{"status": "SUCCESS", "error": false, "response": gin.H{"message": "Instance deleted"}})
}

func (s *Sim) handleScan(c *gin.Context) {
	if err := s.Scan(c.Param("name")); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": StatusOpen})
}

func (s *Sim) handleFail(c *gin.Context) {
	var req struct {
		Status int    `json:"status"`
		Delay  string `json:"delay"`
		Count  int    `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	var delay time.Duration
	if req.Delay != "" {
		d, err := time.ParseDuration(req.Delay)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delay"})
			return
		}
		delay = d
	}
	if req.Status != 0 && (req.Status < 100 || req.Status > 599) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	s.InjectFault(req.Status, delay, req.Count)
	c.JSON(http.StatusOK, gin.H{"status": req.Status, "delay": delay.String(), "count": req.Count})
}

func (s *Sim) handleClearFail(c *gin.Context) {
	s.InjectFault(0, 0, 0)
	c.Status(http.StatusNoContent)
}

// pairing returns a connect-style pairing payload. Caller holds s.mu.
func (s *Sim) pairing(inst *simInstance) gin.H {
	inst.qrCount++
	if inst.pairingCode == "" {
		inst.pairingCode = "WZYE-H1YY"
	}
	return gin.H{
		"pairingCode": inst.pairingCode,
		"code":        fmt.Sprintf("2@sim-%s-%d", inst.name, inst.qrCount),
		"base64":      "data:image/png;base64," + base64.StdEncoding.EncodeToString(s.qrPNG),
		"count":       inst.qrCount,
	}
}

func notFound(c *gin.Context, name string) {
	c.JSON(http.StatusNotFound, gin.H{"status": http.StatusNotFound, "error": "Not Found",
		"response": gin.H{"message": []string{fmt.Sprintf("The %q instance does not exist", name)}}})
}

// placeholderQR draws a QR-like finder pattern. It is not a scannable code.
func placeholderQR() []byte {
	const modules, scale = 21, 8
	img := image.NewGray(image.Rect(0, 0, modules*scale, modules*scale))
	dark := func(x, y int) bool {
		for _, o := range [][2]int{{0, 0}, {modules - 7, 0}, {0, modules - 7}} {
			fx, fy := x-o[0], y-o[1]
			if fx >= 0 && fx < 7 && fy >= 0 && fy < 7 {
				ring := fx == 0 || fx == 6 || fy == 0 || fy == 6
				core := fx >= 2 && fx <= 4 && fy >= 2 && fy <= 4
				return ring || core
			}
		}
		return (x*7+y*13)%5 == 0
	}
	for y := 0; y < modules; y++ {
		for x := 0; x < modules; x++ {
			c := color.Gray{Y: 255}
			if dark(x, y) {
				c = color.Gray{Y: 0}
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetGray(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
