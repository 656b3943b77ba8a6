package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/samdwyer/tilespawner/internal/sshview"
	"github.com/samdwyer/tilespawner/internal/store"
	"github.com/samdwyer/tilespawner/internal/stream"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	sshAddr := fs.String("ssh", "", "SSH listen address (defaults to ssh.addr)")
	httpAddr := fs.String("http", "", "websocket listen address (defaults to http.addr)")
	noSSH := fs.Bool("no-ssh", false, "disable the SSH viewer")
	noHTTP := fs.Bool("no-http", false, "disable the websocket stream")
	record := fs.Bool("record", true, "record walks in the history database")
	_ = fs.Parse(args)

	if *noSSH && *noHTTP {
		return errors.New("nothing to serve: both -no-ssh and -no-http set")
	}
	cfg, pal, err := common.load()
	if err != nil {
		return err
	}
	if *sshAddr != "" {
		cfg.SSH.Addr = *sshAddr
	}
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}
	logger := common.logger(os.Stderr, "serve")

	var sshOpts []sshview.Option
	var streamOpts []stream.Option
	if *record {
		st, err := store.Open(cfg.HistoryDB)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer st.Close()
		sshOpts = append(sshOpts, sshview.WithRecorder(st))
		streamOpts = append(streamOpts, stream.WithRecorder(st))
	}

	errc := make(chan error, 2)

	var sshSrv *sshview.Server
	if !*noSSH {
		sshSrv, err = sshview.NewServer(cfg, pal, append(sshOpts, sshview.WithLogger(logger.WithPrefix("ssh")))...)
		if err != nil {
			return err
		}
		go func() { errc <- sshSrv.ListenAndServe() }()
	}

	var httpSrv *http.Server
	if !*noHTTP {
		handler := stream.NewHandler(cfg, pal, append(streamOpts, stream.WithLogger(logger.WithPrefix("stream")))...)
		httpSrv = stream.NewServer(cfg.HTTP.Addr, handler)
		go func() {
			logger.Info("starting websocket stream", "addr", cfg.HTTP.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
				return
			}
			errc <- nil
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if sshSrv != nil {
		if err := sshSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("could not stop ssh server", "err", err)
		}
	}
	if httpSrv != nil {
		logger.Info("stopping websocket stream")
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("could not stop websocket stream", "err", err)
		}
	}
	return serveErr
}
