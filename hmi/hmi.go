// Package hmi implements the half-duplex sync between the buffer
// store and the front-panel Modbus/TCP server: push changed ToPanel
// values out to the panel's holding-register block, then pull
// whatever the panel's operator wrote back in as FromPanel values.
// Every value that crosses in either direction is also silently
// mirrored into the other buffer view so the operator's own write
// doesn't echo back as a field change on the next pass.
//
// Grounded on original_source/src/Fncs/Fncs.cpp::ManageMdbSvr.
package hmi

import (
	"time"

	"github.com/hootrhino/mbserver"

	"fieldctl/buffer"
)

// MinPeriod is the shortest interval between successive Push/Pull
// passes — the panel link is half-duplex and sub-150ms syncing buys
// nothing but register churn. The controller's cycle loop is
// responsible for alternating Push/Pull no faster than this, timed
// against the gateway round-robin (SPEC_FULL.md §4.E step 7).
const MinPeriod = 150 * time.Millisecond

// registerBlock is the flat, area-indexed register store a front
// panel exposes. mbServerPanel satisfies it over a real
// mbserver.Server; tests satisfy it with a plain slice.
type registerBlock interface {
	Get(area int) (uint16, bool)
	Set(area int, v uint16) bool
}

// mbServerPanel adapts an mbserver.Server's flat HoldingRegisters
// block to registerBlock.
type mbServerPanel struct{ srv *mbserver.Server }

func (p mbServerPanel) Get(area int) (uint16, bool) {
	if area < 0 || area >= len(p.srv.HoldingRegisters) {
		return 0, false
	}
	return p.srv.HoldingRegisters[area], true
}

func (p mbServerPanel) Set(area int, v uint16) bool {
	if area < 0 || area >= len(p.srv.HoldingRegisters) {
		return false
	}
	p.srv.HoldingRegisters[area] = v
	return true
}

// Server drives one front-panel register block, keyed 1:1 by buffer
// area.
type Server struct {
	Store *buffer.Store
	panel registerBlock
	srv   *mbserver.Server
}

// NewServer starts a Modbus/TCP server on addr backed by a flat
// holding-register block sized for the store's area table.
func NewServer(store *buffer.Store, addr string) (*Server, error) {
	srv := mbserver.NewServer()
	srv.HoldingRegisters = make([]uint16, store.Areas.Size())

	if err := srv.ListenTCP(addr); err != nil {
		return nil, err
	}
	return &Server{Store: store, panel: mbServerPanel{srv}, srv: srv}, nil
}

// Close stops the panel's TCP listener.
func (s *Server) Close() { s.srv.Close() }

// Push drains every area with a pending ToPanel change, writes it into
// the panel's register block, and silently mirrors it into FromPanel
// so the echo the panel will produce on the next poll isn't mistaken
// for a fresh operator write.
func (s *Server) Push() {
	for _, item := range s.Store.Drain(buffer.ToPanel, true) {
		if !s.panel.Set(item.Area, uint16(item.Record.Value)) {
			continue
		}
		s.Store.ResetChanged(item.Area, buffer.ToPanel)
		s.Store.WriteSilent(item.Area, buffer.FromPanel, item.Record.Value)
	}
}

// Pull reads every area declared ReadFromPanel out of the panel's
// register block and, for any that actually changed, writes it into
// FromPanel, forwards it into Field as if it had arrived from the
// field, and silently mirrors it back into ToPanel so an echoed write
// to the panel doesn't loop back as another operator change.
func (s *Server) Pull() {
	for _, a := range s.Store.ReadFromPanelList() {
		raw, ok := s.panel.Get(a)
		if !ok {
			continue
		}
		value := int64(raw)
		if s.Store.Compare(a, buffer.FromPanel, value) == buffer.CompareEqual {
			continue
		}

		s.Store.Write(a, buffer.FromPanel, value)
		if s.Store.Write(a, buffer.Field, value) {
			s.Store.ResetChanged(a, buffer.FromPanel)
		}
		if s.Store.CanWriteToPanel(a) {
			s.Store.WriteSilent(a, buffer.ToPanel, value)
		}
	}
}
