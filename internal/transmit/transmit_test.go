package transmit

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/satwatch/satwatch/internal/config"
)

func TestGateDisabledByDefault(t *testing.T) {
	g := NewGate(config.Default().Transmit, slog.New(slog.DiscardHandler))
	if err := g.Request(437800000, []byte("cq")); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestGateRejectsUnauthorizedFrequency(t *testing.T) {
	cfg := config.TransmitConfig{Enabled: true, AuthorizedFreq: []int{145825000}}
	g := NewGate(cfg, slog.New(slog.DiscardHandler))

	if err := g.Request(437800000, nil); !errors.Is(err, ErrUnauthorizedFrequency) {
		t.Fatalf("err = %v, want ErrUnauthorizedFrequency", err)
	}
	if err := g.Request(145825000, []byte("cq")); err != nil {
		t.Fatalf("authorized frequency rejected: %v", err)
	}
}
