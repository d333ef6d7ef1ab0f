// Package transmit gates uplink requests behind explicit authorization.
// Transmitting without a license is illegal in most jurisdictions, so the
// gate is deny-by-default and the hardware path is deliberately not
// implemented: an authorized request is logged, never radiated.
package transmit

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/satwatch/satwatch/internal/config"
)

var (
	// ErrDisabled is returned while transmit support is switched off.
	ErrDisabled = errors.New("transmit is disabled")

	// ErrUnauthorizedFrequency is returned for frequencies outside the
	// configured authorized list.
	ErrUnauthorizedFrequency = errors.New("frequency not in authorized list")
)

// Gate validates uplink requests against the transmit configuration.
type Gate struct {
	cfg config.TransmitConfig
	log *slog.Logger
}

// NewGate creates the authorization gate.
func NewGate(cfg config.TransmitConfig, logger *slog.Logger) *Gate {
	return &Gate{cfg: cfg, log: logger}
}

// Request checks an uplink request and, when authorized, logs what would
// have been transmitted. No RF is ever produced.
func (g *Gate) Request(freqHz int, payload []byte) error {
	if !g.cfg.Enabled {
		return ErrDisabled
	}

	authorized := false
	for _, f := range g.cfg.AuthorizedFreq {
		if f == freqHz {
			authorized = true
			break
		}
	}
	if !authorized {
		g.log.Warn("rejected transmit request", "freq_hz", freqHz)
		return fmt.Errorf("%w: %d Hz", ErrUnauthorizedFrequency, freqHz)
	}

	g.log.Info("transmit request authorized, uplink hardware not implemented",
		"freq_hz", freqHz, "payload_bytes", len(payload))
	return nil
}
