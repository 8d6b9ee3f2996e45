package pnioctl

import (
	"fmt"
	"time"

	"github.com/wtc-scada/pnioctl/ar"
	"github.com/wtc-scada/pnioctl/cyclicio"
	"github.com/wtc-scada/pnioctl/rpcconn"
	"github.com/wtc-scada/pnioctl/strategy"
	"github.com/wtc-scada/pnioctl/wire"
)

// Connect drives station through its full handshake: Discovering →
// Connecting (trying strategies in turn until one succeeds or the table is
// exhausted) → Parameterizing (PrmEnd) → WaitAppReady, registering the
// negotiated IOCRs with the cyclic engine once Connect and PrmEnd both
// succeed. The final Data transition happens asynchronously
// when the RTU's ApplicationReady indication arrives; see
// Controller.handleIndication.
func (c *Controller) Connect(station string, hints strategy.VendorHints, vendorID uint16) error {
	st, ok := c.Station(station)
	if !ok {
		return fmt.Errorf("pnioctl: unknown station %q", station)
	}

	now := time.Now()
	if err := st.AR.RequestDiscovery(now); err != nil {
		return err
	}
	if err := st.AR.DeviceDiscovered(now, vendorID, hints); err != nil {
		return err
	}

	var timing strategy.TimingParams
	for {
		params, err := st.AR.BeginConnect(time.Now())
		if err != nil {
			return err
		}

		header := rpcconn.Header{ObjectUUID: params.ARUUID, ActivityUUID: params.ActivityUUID}
		req := rpcconn.BuildConnectRequest(rpcconn.ConnectRequest{
			Strategy:      params.Strategy,
			Header:        header,
			AR:            rpcconn.ARParams{ARUUID: params.ARUUID, ActivityUUID: params.ActivityUUID, SessionKey: params.SessionKey, Timing: params.Timing},
			Catalogue:     st.Catalogue,
			InputSlot:     st.InputSlot,
			OutputSlot:    st.OutputSlot,
			InputEntries:  st.InputEntries,
			OutputEntries: st.OutputEntries,
		})

		resp, xErr := c.transport.Exchange(st.Remote, req, c.cfg.ExchangeTimeout)
		if xErr != nil {
			if aErr := st.AR.ConnectFailed(time.Now(), rpcconn.TransportTimeout); aErr != nil {
				return aErr
			}
			continue
		}

		result, pErr := rpcconn.ParseConnectResponse(resp, params.Strategy)
		if pErr != nil {
			kind := rpcconn.SendFailed
			if ce, ok := pErr.(*rpcconn.ConnectError); ok {
				kind = ce.Kind
			}
			if aErr := st.AR.ConnectFailed(time.Now(), kind); aErr != nil {
				return aErr
			}
			continue
		}

		inIOCR := rpcconn.BuildIOCR(rpcconn.IOCRInput, rpcconn.FrameIDInputBase, st.InputEntries, st.InputSlot)
		outIOCR := rpcconn.BuildIOCR(rpcconn.IOCROutput, rpcconn.FrameIDOutputBase, st.OutputEntries, st.OutputSlot)
		if err := st.AR.ConnectSucceeded(time.Now(), inIOCR, outIOCR, result); err != nil {
			return err
		}
		timing = params.Timing
		break
	}

	if err := c.sendPrmEnd(st); err != nil {
		return err
	}

	st.Binding = &cyclicio.Binding{
		StationName: st.Name,
		AR:          st.AR,
		DstMAC:      st.MAC,
		SrcMAC:      c.srcMAC,
		Timing:      timing,
	}
	c.engine.Register(st.Binding)
	if c.Collector != nil {
		c.Collector.RegisterBinding(st.Binding)
	}
	return nil
}

// sendPrmEnd builds and exchanges the controller-initiated PrmEnd request,
// retrying within the AR's PrmEndRetryMax before the AR itself moves to
// Error.
func (c *Controller) sendPrmEnd(st *Station) error {
	for {
		req := rpcconn.BuildIOCControlRequest(
			rpcconn.Header{ObjectUUID: st.AR.ARUUID()},
			strategy.AsStored, strategy.Present, rpcconn.CtrlPrmEnd,
		)
		resp, err := c.transport.Exchange(st.Remote, req, c.cfg.ExchangeTimeout)
		if err != nil {
			if aErr := st.AR.PrmEndFailed(time.Now()); aErr != nil {
				return aErr
			}
			if st.AR.State() == ar.Error {
				return fmt.Errorf("pnioctl: %s: PrmEnd failed: %w", st.Name, err)
			}
			continue
		}
		if _, err := rpcconn.ParseIOCControlResponse(resp); err != nil {
			if aErr := st.AR.PrmEndFailed(time.Now()); aErr != nil {
				return aErr
			}
			if st.AR.State() == ar.Error {
				return fmt.Errorf("pnioctl: %s: PrmEnd response: %w", st.Name, err)
			}
			continue
		}
		return st.AR.PrmEndSucceeded(time.Now())
	}
}

// Disconnect requests Release on station's AR and exchanges the Release
// IOCControl request, forcing Idle after ReleaseRetryMax regardless of RTU
// acknowledgement.
func (c *Controller) Disconnect(station string) error {
	st, ok := c.Station(station)
	if !ok {
		return fmt.Errorf("pnioctl: unknown station %q", station)
	}
	if err := st.AR.RequestRelease(time.Now()); err != nil {
		return err
	}
	for {
		req := rpcconn.BuildIOCControlRequest(
			rpcconn.Header{ObjectUUID: st.AR.ARUUID()},
			strategy.AsStored, strategy.Present, rpcconn.CtrlRelease,
		)
		resp, err := c.transport.Exchange(st.Remote, req, c.cfg.ExchangeTimeout)
		if err != nil {
			if aErr := st.AR.ReleaseTimedOut(time.Now()); aErr != nil {
				return aErr
			}
			if st.AR.State() == ar.Idle {
				break
			}
			continue
		}
		if _, err := rpcconn.ParseIOCControlResponse(resp); err != nil {
			if aErr := st.AR.ReleaseTimedOut(time.Now()); aErr != nil {
				return aErr
			}
			if st.AR.State() == ar.Idle {
				break
			}
			continue
		}
		if err := st.AR.ReleaseSucceeded(time.Now()); err != nil {
			return err
		}
		break
	}

	if st.Binding != nil {
		c.engine.Unregister(st.Name)
		if c.Collector != nil {
			c.Collector.UnregisterBinding(st.Name)
		}
		st.Binding = nil
	}
	return nil
}

// handleIndication processes an RTU-initiated ApplicationReady IOCControlReq
// arriving outside of any Exchange call, advancing the matching station's AR
// to Data and replying DONE.
func (c *Controller) handleIndication(ind Indication) {
	parsed, err := rpcconn.ParseIOCControlIndication(ind.Data)
	if err != nil {
		return
	}
	st := c.stationByARUUID(parsed.Header.ObjectUUID)
	if st == nil {
		return
	}
	resp, err := st.AR.ApplicationReady(time.Now(), parsed)
	if err != nil {
		return
	}
	// st.AR.ApplicationReady already drove the AR's observer (arBridge),
	// which published the rtu_state_change event and updated the registry;
	// only the DONE reply remains this method's responsibility.
	c.transport.Reply(ind.Remote, resp)
}

func (c *Controller) stationByARUUID(u wire.UUID) *Station {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, st := range c.stations {
		if st.AR.ARUUID() == u {
			return st
		}
	}
	return nil
}
