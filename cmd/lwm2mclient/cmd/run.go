package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	lwm2m "github.com/samsamfire/golwm2m"
	"github.com/samsamfire/golwm2m/internal/device"
	"github.com/samsamfire/golwm2m/pkg/coap"
	"github.com/samsamfire/golwm2m/pkg/dm"
	"github.com/samsamfire/golwm2m/pkg/exchange"
	httpgw "github.com/samsamfire/golwm2m/pkg/gateway/http"
	"github.com/samsamfire/golwm2m/pkg/persist"
	"github.com/samsamfire/golwm2m/pkg/registration"
	"github.com/samsamfire/golwm2m/pkg/statemachine"
	udptransport "github.com/samsamfire/golwm2m/pkg/transport/udp"
)

const primarySSID uint16 = 1

var (
	serverHost string
	serverPort uint16
	httpAddr   string
	statePath  string
)

func init() {
	runCmd.Flags().StringVar(&serverHost, "server-host", "127.0.0.1", "LwM2M server or bootstrap server hostname")
	runCmd.Flags().Uint16Var(&serverPort, "server-port", 5683, "LwM2M server or bootstrap server UDP port")
	runCmd.Flags().StringVar(&httpAddr, "http-addr", "127.0.0.1:8081", "address for the local HTTP+JSON inspection gateway")
	runCmd.Flags().StringVar(&statePath, "state-file", "lwm2mclient.state", "path to the persisted server registration state")
	RootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the LwM2M client engine against a configured server",
	RunE:  runEngine,
}

// runEngine assembles a Client the way the teacher's cmd/canopen assembles
// a Node (bus, object dictionary, driver state machine), then drives it
// from a ticker instead of the teacher's two background goroutines, since
// this engine's Step is itself a single cooperative entry point (spec §5).
func runEngine(_ *cobra.Command, _ []string) error {
	cfg, err := lwm2m.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("lwm2mclient: %w", err)
	}

	sessionID := xid.New().String()
	log.Infof("[CLI] starting session=%s endpoint=%s", sessionID, cfg.EndpointName)

	reg := dm.NewRegistry(16)
	dev := device.New("Acme Corp", "lwm2mclient")
	if err := reg.Add(device.Object(dev)); err != nil {
		return fmt.Errorf("lwm2mclient: registering device object: %w", err)
	}
	client := lwm2m.NewClient(reg)
	client.ActiveSSID = primarySSID

	srv, err := loadOrCreateServerState(statePath, primarySSID)
	if err != nil {
		return err
	}
	lifetime := time.Duration(srv.LifetimeSeconds) * time.Second

	drv := registration.NewDriver(primarySSID, false, registration.DefaultRetryPolicy)
	drv.Lifetime = lifetime
	drv.OnStateChange(logRegistrationTransition)
	client.Servers[primarySSID] = drv

	client.Machine.OnTransition(logClientTransition)

	conn := udptransport.New()
	if res, err := conn.Connect(serverHost, serverPort); err != nil || res != lwm2m.NetOK {
		return fmt.Errorf("lwm2mclient: connecting to %s:%d: %w", serverHost, serverPort, err)
	}
	defer conn.Close()

	gateway := httpgw.NewServer(client)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return serveGateway(gctx, gateway, httpAddr)
	})
	if cfg.MetricsEnabled {
		group.Go(func() error {
			return serveMetrics(gctx)
		})
	}
	group.Go(func() error {
		return newEngineSession(client, conn, drv, cfg, statePath).run(gctx)
	})

	if err := group.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	log.Infof("[CLI] session=%s shutting down", sessionID)
	return nil
}

func serveGateway(ctx context.Context, gateway *httpgw.Server, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- gateway.ListenAndServe(addr) }()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: "127.0.0.1:9091", Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}

// engineSession closes over the bits the step loop needs to remember
// between ticks (the registration location path) that don't belong on
// lwm2m.Client itself, since that location is a CLI/transport concern,
// not engine state (spec §6's Conn/Clock split).
type engineSession struct {
	client    *lwm2m.Client
	conn      *udptransport.Conn
	drv       *registration.Driver
	cfg       *lwm2m.Config
	statePath string

	location string
}

func newEngineSession(client *lwm2m.Client, conn *udptransport.Conn, drv *registration.Driver, cfg *lwm2m.Config, statePath string) *engineSession {
	return &engineSession{
		client:    client,
		conn:      conn,
		drv:       drv,
		cfg:       cfg,
		statePath: statePath,
	}
}

// run drives Client.Step on a fixed tick, feeding outbound exchanges and
// registration traffic to conn and inbound datagrams back into the
// engine, the way the teacher's cmd/canopen background goroutine drives
// Node.ProcessSYNC/ProcessTPDO/ProcessRPDO on its own ticker.
func (s *engineSession) run(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	s.drv.Start(time.Now())
	buf := make([]byte, s.conn.InnerMTU())
	outBuf := make([]byte, s.conn.InnerMTU())

	for {
		select {
		case <-ctx.Done():
			s.drv.Deregister()
			return persistServerState(s.statePath, s.drv)
		case now := <-ticker.C:
			s.tick(now, buf, outBuf)
		}
	}
}

func (s *engineSession) tick(now time.Time, recvBuf, sendBuf []byte) {
	toSend, acks, errs := s.client.Step(now)
	for _, err := range errs {
		log.Warnf("[CLI] exchange error: %v", err)
	}
	for _, ex := range toSend {
		s.send(ex.OutMsg, sendBuf)
	}
	for _, ack := range acks {
		s.send(ack, sendBuf)
	}

	if ex, err := s.client.DriveRegistration(now, primarySSID, s.conn.RemoteLabel(), s.cfg.EndpointName, s.drv.Lifetime, s.cfg.LwM2MVersion.String(), s.location); err != nil {
		log.Warnf("[CLI] registration attempt failed: %v", err)
	} else if ex != nil {
		s.track(ex, now)
	}

	for {
		res, n, err := s.conn.Recv(recvBuf)
		if err != nil {
			log.Debugf("[CLI] recv error: %v", err)
			return
		}
		if res != lwm2m.NetOK {
			return
		}
		s.handleInbound(now, recvBuf[:n])
	}
}

// track installs the onResponse hook that turns an Exchange's terminal
// CoAP response into a registration.Driver transition, the step this
// Client/registration split leaves to its caller (spec §5: "engine
// proposes, caller executes I/O and feeds results back").
func (s *engineSession) track(ex *exchange.Exchange, now time.Time) {
	isInitialRegister := s.drv.State == registration.StateRegistering
	ex.OnResponse(func(resp *coap.Message) (bool, error) {
		if resp.Code.Class() == 2 {
			if isInitialRegister {
				s.location = locationPathOf(resp)
			}
			s.drv.Succeeded(now)
		} else {
			s.drv.Failed(now, nil)
		}
		return true, nil
	})
}

func (s *engineSession) send(msg *coap.Message, buf []byte) {
	out, err := coap.Encode(msg, buf)
	if err != nil {
		log.Warnf("[CLI] encoding outbound message: %v", err)
		return
	}
	if _, _, err := s.conn.Send(out); err != nil {
		log.Warnf("[CLI] sending message: %v", err)
	}
}

func (s *engineSession) handleInbound(now time.Time, raw []byte) {
	msg, err := coap.Decode(raw)
	if err != nil {
		log.Warnf("[CLI] decoding inbound datagram: %v", err)
		return
	}
	if msg.Code.IsRequest() {
		resp := s.client.HandleRequest(now, s.conn.RemoteLabel(), msg)
		if resp != nil {
			s.send(resp, make([]byte, s.conn.InnerMTU()))
		}
		return
	}
	s.client.Exchanges.Dispatch(s.conn.RemoteLabel(), msg)
}

func locationPathOf(resp *coap.Message) string {
	var segs []string
	for _, o := range resp.Options.All(coap.OptionLocationPath) {
		segs = append(segs, string(o.Value))
	}
	if len(segs) == 0 {
		return ""
	}
	return strings.Join(segs, "/")
}

func logClientTransition(from, to statemachine.State) {
	log.Infof("[CLI][STATE] %s -> %s", colorState(from), colorState(to))
}

func logRegistrationTransition(s registration.State) {
	log.Infof("[CLI][REGISTRATION] -> %s", color.CyanString(s.String()))
}

func colorState(s statemachine.State) string {
	switch s {
	case statemachine.StateFailure:
		return color.RedString(s.String())
	case statemachine.StateRegistrationSession:
		return color.GreenString(s.String())
	default:
		return color.YellowString(s.String())
	}
}

func loadOrCreateServerState(path string, ssid uint16) (persist.ServerState, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return persist.ServerState{SSID: ssid, LifetimeSeconds: 3600}, nil
		}
		return persist.ServerState{}, fmt.Errorf("lwm2mclient: opening state file: %w", err)
	}
	defer f.Close()
	return persist.LoadServerState(f)
}

func persistServerState(path string, drv *registration.Driver) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("lwm2mclient: saving state file: %w", err)
	}
	defer f.Close()
	state := persist.ServerState{SSID: drv.SSID, LifetimeSeconds: uint32(drv.Lifetime.Seconds())}
	return state.Save(f)
}
