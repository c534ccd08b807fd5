package rtc

import (
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
)

const DefaultSTUN = "stun:stun.l.google.com:19302"

// ICEConfig lists the STUN and optional TURN servers used for every link.
type ICEConfig struct {
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string
}

// TURNServers expands a bare TURN host into its udp and tcp urls.
func (c ICEConfig) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

func (c ICEConfig) Configuration() webrtc.Configuration {
	stun := c.STUNServers
	if len(stun) == 0 {
		stun = []string{DefaultSTUN}
	}
	servers := []webrtc.ICEServer{{URLs: stun}}
	if turn := c.TURNServers(); turn != nil {
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}
	return webrtc.Configuration{ICEServers: servers}
}

// Factory opens pion connections that share one media engine.
type Factory struct {
	api *webrtc.API
	cfg webrtc.Configuration
}

var _ core.MediaConnectionFactory = (*Factory)(nil)

func NewFactory(ice ICEConfig) (*Factory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	return &Factory{
		api: webrtc.NewAPI(webrtc.WithMediaEngine(m)),
		cfg: ice.Configuration(),
	}, nil
}

func (f *Factory) NewMediaConnection(peer domain.UserID) (core.MediaConnection, error) {
	c, err := NewConnection(f.api, f.cfg, peer)
	if err != nil {
		return nil, err
	}
	return c, nil
}
