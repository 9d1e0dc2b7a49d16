package tcp

/**
 * A tcp server
 */

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"minikv/interface/tcp"
)

// accept retry backoff bounds
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Config stores tcp server properties
type Config struct {
	Address string
}

// ListenAndServeWithSignal binds cfg.Address and serves until SIGHUP, SIGQUIT,
// SIGTERM or SIGINT is received. A bind failure is returned to the caller.
func ListenAndServeWithSignal(cfg *Config, handler tcp.Handler) error {
	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Address, err)
	}
	log.Infof("bind: %s, start listening...", listener.Addr())

	closeChan := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	served := make(chan struct{})
	defer close(served)
	go func() {
		select {
		case sig := <-sigCh:
			log.Infof("received %s", sig)
			close(closeChan)
		case <-served:
		}
	}()

	ListenAndServe(listener, handler, closeChan)
	return nil
}

// ListenAndServe accepts connections until the listener is closed or
// closeChan fires, then closes the handler and waits for every connection
// goroutine to return.
func ListenAndServe(listener net.Listener, handler tcp.Handler, closeChan <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		select {
		case <-closeChan:
			log.Info("shutting down...")
			_ = listener.Close()
		case <-ctx.Done():
		}
	}()

	var waitDone sync.WaitGroup
	defer func() {
		_ = listener.Close()
		cancel()
		_ = handler.Close()
		waitDone.Wait()
	}()

	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// anything else (EMFILE, ECONNABORTED, ...) is retried
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			log.WithError(err).Warnf("accept error, retrying in %v", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		log.Debugf("accepted link from %s", conn.RemoteAddr())
		waitDone.Add(1)
		go func() {
			defer waitDone.Done()
			handler.Handle(ctx, conn)
		}()
	}
}
