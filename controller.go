package pnioctl

import (
	"fmt"
	"sync"
	"time"

	"github.com/wtc-scada/pnioctl/ar"
	"github.com/wtc-scada/pnioctl/bridge"
	"github.com/wtc-scada/pnioctl/cyclicio"
	"github.com/wtc-scada/pnioctl/dcp"
	"github.com/wtc-scada/pnioctl/rawnet"
	"github.com/wtc-scada/pnioctl/strategy"
	"github.com/wtc-scada/pnioctl/wire"
)

// Config bounds the Controller's tunables.
type Config struct {
	AR              ar.Config
	DCP             dcp.Config
	ExchangeTimeout time.Duration
	TickInterval    time.Duration
}

const (
	defaultExchangeTimeout = 2 * time.Second
	defaultTickInterval    = 4 * time.Millisecond
)

// Valid fills unset fields with defaults.
func (c *Config) Valid() error {
	if err := c.AR.Valid(); err != nil {
		return err
	}
	if err := c.DCP.Valid(); err != nil {
		return err
	}
	if c.ExchangeTimeout == 0 {
		c.ExchangeTimeout = defaultExchangeTimeout
	}
	if c.TickInterval == 0 {
		c.TickInterval = defaultTickInterval
	}
	return nil
}

// Controller owns every managed RTU's Application Relationship, drives DCP
// discovery and cyclic I/O over a shared raw socket, exchanges DCE/RPC
// requests over a UDP transport, and exposes the command/status bridge as
// the sole externally-facing surface.
type Controller struct {
	cfg       Config
	srcMAC    wire.MAC
	transport RPCTransport
	dcpCtrl   *dcp.Controller
	engine    *cyclicio.Engine
	store     strategy.StrategyStore

	Queue     *bridge.Queue
	Registry  *bridge.Registry
	Stream    *bridge.Stream
	Collector *bridge.Collector

	mu       sync.RWMutex
	stations map[string]*Station
}

// arBridge adapts ar.Observer to the command/status bridge, publishing
// rtu_state_change events and keeping the registry's ARState current, the way dcp.Observer updates the device cache on every Identify
// response.
type arBridge struct {
	registry *bridge.Registry
	stream   *bridge.Stream
}

func (o *arBridge) StateChanged(stationName string, from, to ar.State) {
	if s, ok := o.registry.Get(stationName); ok {
		s.ARState = to
		s.LastContactTime = time.Now()
		o.registry.Put(s)
	} else {
		o.registry.Put(bridge.Status{Station: stationName, ARState: to, LastContactTime: time.Now()})
	}
	o.stream.Publish(bridge.Event{
		ID:      stationName + ":" + to.String(),
		Kind:    bridge.EventRTUStateChange,
		Station: stationName,
		At:      time.Now(),
		From:    from.String(),
		To:      to.String(),
	})
}

// New returns a Controller driving rawSock for DCP and cyclic traffic and
// transport for DCE/RPC exchanges, bound to srcMAC for outbound frames.
func New(cfg Config, rawSock rawnet.Socket, transport RPCTransport, srcMAC wire.MAC, store strategy.StrategyStore) (*Controller, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if store == nil {
		store = strategy.NewMemStore()
	}

	registry := bridge.NewRegistry()
	stream := bridge.NewStream()

	dcpCtrl, err := dcp.NewController(rawSock, srcMAC, cfg.DCP, nil)
	if err != nil {
		return nil, fmt.Errorf("pnioctl: dcp controller: %w", err)
	}

	c := &Controller{
		cfg:       cfg,
		srcMAC:    srcMAC,
		transport: transport,
		dcpCtrl:   dcpCtrl,
		engine:    cyclicio.New(rawSock),
		store:     store,
		Queue:     bridge.NewQueue(256),
		Registry:  registry,
		Stream:    stream,
		stations:  make(map[string]*Station),
	}
	c.Collector = bridge.NewCollector(registry)
	go c.indicationLoop()
	return c, nil
}

// indicationLoop consumes RTU-initiated requests that are not the response
// to any pending Exchange call — the only one this core's Connect engine
// does not itself elicit is the ApplicationReady IOCControlReq — for the lifetime of the transport.
func (c *Controller) indicationLoop() {
	for ind := range c.transport.Indications() {
		c.handleIndication(ind)
	}
}

// AddRTU registers a new managed Station in Idle state, per AddRTU.
func (c *Controller) AddRTU(sc StationConfig) (*Station, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.stations[sc.Name]; exists {
		return nil, fmt.Errorf("pnioctl: station %q already added", sc.Name)
	}
	a, err := ar.New(sc.Name, c.cfg.AR, c.store, &arBridge{registry: c.Registry, stream: c.Stream})
	if err != nil {
		return nil, err
	}
	st := &Station{
		Name:          sc.Name,
		MAC:           sc.MAC,
		Remote:        sc.Remote,
		AR:            a,
		Catalogue:     sc.Catalogue,
		InputEntries:  sc.InputEntries,
		OutputEntries: sc.OutputEntries,
		InputSlot:     sc.InputSlot,
		OutputSlot:    sc.OutputSlot,
	}
	c.stations[sc.Name] = st
	c.Registry.Put(bridge.Status{Station: sc.Name, ARState: ar.Idle, LastContactTime: time.Now()})
	return st, nil
}

// RemoveRTU tears down bookkeeping for a station. The caller is
// expected to have already disconnected; RemoveRTU does not itself release
// an active AR.
func (c *Controller) RemoveRTU(name string) {
	c.mu.Lock()
	st, ok := c.stations[name]
	if ok {
		delete(c.stations, name)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if st.Binding != nil {
		c.engine.Unregister(name)
	}
	if c.Collector != nil {
		c.Collector.UnregisterBinding(name)
	}
	c.Registry.Remove(name)
}

// Station returns the managed station by name.
func (c *Controller) Station(name string) (*Station, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.stations[name]
	return st, ok
}

// Discover sends a DCP Identify-All broadcast.
func (c *Controller) Discover() error {
	return c.dcpCtrl.IdentifyAll()
}

// DiscoveredDevices returns the current DCP device cache snapshot.
func (c *Controller) DiscoveredDevices() []dcp.Device {
	return c.dcpCtrl.Cache().Snapshot()
}

// SetActuator queues an actuator command for station's next output cycle
//. RtuOffline is returned without queuing anything if
// the station's AR is in Error state.
func (c *Controller) SetActuator(station string, slot, subslot uint16, cmd cyclicio.ActuatorCommand) error {
	st, ok := c.Station(station)
	if !ok {
		return fmt.Errorf("pnioctl: unknown station %q", station)
	}
	if st.Binding == nil {
		return fmt.Errorf("pnioctl: station %q has no cyclic binding yet", station)
	}
	return st.Binding.SetCommand(slot, subslot, cmd)
}

// DispatchRawFrame routes one inbound raw-Ethernet frame to DCP or the
// cyclic engine, the shared receive task's fan-out point. Routing keys on
// the FrameID following the EtherType: the 0xFEFD..0xFEFF range belongs to
// DCP, everything else to the cyclic dispatcher.
func (c *Controller) DispatchRawFrame(frame []byte) error {
	eth, err := wire.ParseEthernet(frame)
	if err != nil {
		return err
	}
	if eth.EtherType != wire.EtherTypeProfinet {
		return nil
	}
	frameID, _, err := wire.Uint16(frame, eth.PayloadOffset)
	if err != nil {
		return err
	}
	if frameID >= dcp.FrameIDGetSetRequest && frameID <= dcp.FrameIDIdentifyResponse {
		return c.dcpCtrl.ProcessFrame(frame)
	}
	return c.engine.Dispatch(frame)
}

// Tick drives the cyclic send path for every station in Data state.
func (c *Controller) Tick(now time.Time) {
	c.engine.Tick(now)
}
