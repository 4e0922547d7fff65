package peer

import (
	"github.com/BioHazard786/Roomdrop/internal/config"
	"github.com/BioHazard786/Roomdrop/internal/transfer"
	"github.com/BioHazard786/Roomdrop/internal/utils"
	"github.com/pion/webrtc/v4"
)

// Config is what a Session needs to build its peer connection.
type Config struct {
	ICEServers []webrtc.ICEServer
	Policy     webrtc.ICETransportPolicy

	// IncludeLoopback gathers 127.0.0.1 candidates, for same-host peers.
	IncludeLoopback bool

	// LowWaterMark is the buffered-amount-low threshold of the channel.
	LowWaterMark uint64
}

// ConfigFrom derives ICE servers and transport policy from app config.
func ConfigFrom(cfg *config.Config) Config {
	var servers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); len(stun) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		servers = append(servers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || utils.ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	low := cfg.Transfer.LowWaterMark
	if low == 0 {
		low = transfer.DefaultLowWaterMark
	}

	return Config{ICEServers: servers, Policy: policy, LowWaterMark: low}
}

func (c Config) newPeerConnection() (*webrtc.PeerConnection, error) {
	var se webrtc.SettingEngine
	if c.IncludeLoopback {
		se.SetIncludeLoopbackCandidate(true)
	}

	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:         c.ICEServers,
		ICETransportPolicy: c.Policy,
	})
	if err != nil {
		return nil, transfer.NewError("create peer connection", err)
	}
	return pc, nil
}
