package Adhoc

import (
	"RegionOcrServer/logger"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ServiceName = "region-ocr"

type RegisterRequest struct {
	Id        string   `json:"id"`
	Service   string   `json:"service"`
	IP        string   `json:"ip"`
	HTTPPort  int      `json:"httpPort"`
	RPCPort   int      `json:"rpcPort"`
	Labels    []string `json:"labels"`
	TimeStamp int64    `json:"timestamp"`
}

type RegisterResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

type RegServerConfig struct {
	Port     int
	Addr     string
	Interval time.Duration
}

// Announcer periodically registers this node with a registry server at
// http://<addr>:<port>/api/register.
type Announcer struct {
	cfg    RegServerConfig
	client *resty.Client
	id     string
	node   RegisterRequest
}

func NewAnnouncer(cfg RegServerConfig, ip string, httpPort, rpcPort int, labels []string) *Announcer {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	id := uuid.NewString()
	return &Announcer{
		cfg:    cfg,
		client: resty.New().SetTimeout(cfg.Interval),
		id:     id,
		node: RegisterRequest{
			Id:       id,
			Service:  ServiceName,
			IP:       ip,
			HTTPPort: httpPort,
			RPCPort:  rpcPort,
			Labels:   labels,
		},
	}
}

func (a *Announcer) ID() string {
	return a.id
}

func (a *Announcer) url() string {
	return fmt.Sprintf("http://%s:%d/api/register", a.cfg.Addr, a.cfg.Port)
}

// announce sends one heartbeat. Panics are recovered so a bad response never takes the
// service down.
func (a *Announcer) announce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("announce panic recovered: %v", r)
		}
	}()
	req := a.node
	req.TimeStamp = time.Now().Unix()
	var respBody RegisterResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&respBody).
		Post(a.url())
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("server returned error: %s, body: %s", resp.Status(), resp.String())
	}
	if !respBody.Success {
		return fmt.Errorf("registry rejected node %s", a.id)
	}
	return nil
}

// SendAliveMessage announces immediately and then every interval until ctx is done.
func (a *Announcer) SendAliveMessage(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	log := logger.Log().With(zap.String("node", a.id), zap.String("registry", a.url()))
	for {
		if err := a.announce(ctx); err != nil && ctx.Err() == nil {
			log.Warn("registry heartbeat failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			log.Info("SendAliveMessage context cancelled, exiting goroutine.")
			return
		case <-ticker.C:
		}
	}
}

// GetOutboundIP returns the local address used to reach the outside. No packet is sent.
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
