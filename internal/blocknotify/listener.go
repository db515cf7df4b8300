// Package blocknotify follows a node's zmqpubhashblock feed so a new chain
// tip triggers a template refresh without waiting for the next poll.
package blocknotify

import (
	"encoding/binary"
	"encoding/hex"
	"sync"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"
	"go.uber.org/zap"
)

const topicHashBlock = "hashblock"

// Notice is one hashblock publication.
type Notice struct {
	Hash     string
	Sequence uint32
}

// Listener subscribes to hashblock on a node's ZMQ endpoint.
type Listener struct {
	endpoint string
	poll     time.Duration
	onBlock  func(Notice)
	logger   *zap.Logger
}

// New returns a Listener for endpoint (e.g. tcp://127.0.0.1:28332).
func New(endpoint string, poll time.Duration, onBlock func(Notice), logger *zap.Logger) *Listener {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{endpoint: endpoint, poll: poll, onBlock: onBlock, logger: logger}
}

// Start connects and delivers notices from a background goroutine until the
// returned stop func is called. The socket lives entirely on that goroutine.
func (l *Listener) Start() (func(), error) {
	socket, err := l.open()
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer socket.Close()
		l.run(socket, done)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}, nil
}

func (l *Listener) open() (*zmq.Socket, error) {
	socket, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, err
	}
	if err = socket.SetSubscribe(topicHashBlock); err != nil {
		goto failure
	}
	// receive timeout bounds how long stop waits
	if err = socket.SetRcvtimeo(l.poll); err != nil {
		goto failure
	}
	if err = socket.SetLinger(0); err != nil {
		goto failure
	}
	if err = socket.Connect(l.endpoint); err != nil {
		goto failure
	}
	l.logger.Info("subscribed to block notifications", zap.String("endpoint", l.endpoint))
	return socket, nil
failure:
	socket.Close()
	return nil, err
}

func (l *Listener) run(socket *zmq.Socket, done <-chan struct{}) {
	var last uint32
	var seen bool
	for {
		select {
		case <-done:
			return
		default:
		}

		parts, err := socket.RecvMessageBytes(0)
		if err != nil {
			if zmq.AsErrno(err) != zmq.Errno(syscall.EAGAIN) {
				l.logger.Debug("block notification receive failed", zap.Error(err))
			}
			continue
		}
		n, ok := ParseHashBlock(parts)
		if !ok {
			l.logger.Debug("ignoring malformed block notification", zap.Int("parts", len(parts)))
			continue
		}
		if seen && n.Sequence != last+1 {
			l.logger.Warn("block notifications skipped", zap.Uint32("expected", last+1), zap.Uint32("got", n.Sequence))
		}
		last, seen = n.Sequence, true

		l.logger.Debug("new chain tip", zap.String("hash", n.Hash), zap.Uint32("seq", n.Sequence))
		if l.onBlock != nil {
			l.onBlock(n)
		}
	}
}

// ParseHashBlock decodes a [topic, 32-byte hash, 4-byte LE sequence] message.
func ParseHashBlock(parts [][]byte) (Notice, bool) {
	if len(parts) != 3 || string(parts[0]) != topicHashBlock {
		return Notice{}, false
	}
	if len(parts[1]) != 32 || len(parts[2]) != 4 {
		return Notice{}, false
	}
	return Notice{
		Hash:     hex.EncodeToString(parts[1]),
		Sequence: binary.LittleEndian.Uint32(parts[2]),
	}, true
}
