package main

import (
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muxable/avbridge/pkg/backend"
	"github.com/muxable/avbridge/pkg/capture"
	"github.com/muxable/avbridge/pkg/dispatch"
	"github.com/muxable/avbridge/pkg/engine"
	"github.com/muxable/avbridge/pkg/handle"
	"github.com/muxable/avbridge/pkg/pipeline"
	"github.com/muxable/avbridge/pkg/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	addr := flag.String("addr", ":21001", "UDP address or file path to capture from")
	out := flag.String("out", ".", "output directory")
	timeout := flag.Duration("timeout", 5*time.Second, "inactivity timeout")
	segBytes := flag.Int64("seg-bytes", 32<<20, "bytes per output segment")
	rtpWrap := flag.Bool("rtp", false, "source datagrams are RTP-encapsulated")
	metricsAddr := flag.String("metrics", ":8012", "prometheus listen address")
	flag.Parse()

	go func() {
		m := http.NewServeMux()
		m.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Handler: m}
		lis, err := net.Listen("tcp", *metricsAddr)
		if err != nil {
			return
		}
		srv.Serve(lis)
	}()

	ctx := pipeline.New()

	reader, stream, err := capture.NewReader(ctx, *addr, capture.Config{
		Timeout: *timeout,
		RTP:     *rtpWrap,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind capture source")
	}

	registry := handle.NewRegistry()
	dispatcher := dispatch.NewDispatcher(registry,
		backend.InputOpenerFunc(func(h int64, url string) (backend.InputHandler, error) {
			return backend.NewReaderInput(stream), nil
		}),
		backend.FileOutputOpener{Dir: *out},
	)
	mgr := session.NewManager(ctx, &engine.Passthrough{
		SegmentBytes: *segBytes,
		ChunkSize:    tsChunkSize,
	}, dispatcher, session.MaxSessions)

	params := &session.Params{
		Format:          "fmp4-segment",
		DurationTs:      -1,
		StartSegmentStr: "1",
		Type:            session.TypeAll,
	}
	h, err := mgr.Init(params, *addr, reader)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session")
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
			log.Info().Msg("interrupt, cancelling session")
			mgr.Cancel(h)
		case err := <-reader.Err():
			log.Error().Err(err).Msg("capture source failed, cancelling session")
			mgr.Cancel(h)
		}
	}()

	if err := mgr.Run(h); err != nil {
		log.Warn().Err(err).Msg("session did not complete")
	}
	state, err := mgr.Continuity(h)
	if err == nil {
		log.Info().Int64("BytesWritten", state.BytesWritten).Int64("EncodingEndPTS", state.EncodingEndPTS).Msg("recording finished")
	}
	if err := mgr.Release(h); err != nil {
		log.Error().Err(err).Msg("failed to release session")
	}
}

// tsChunkSize keeps one passthrough frame aligned with the conventional
// TS-over-UDP datagram payload.
const tsChunkSize = 1316
