package capture

import (
	"context"
	"errors"
)

// FakeSource replays a fixed slice of Datagrams, for tests that exercise
// the ingest loop without a real kernel nflog socket.
type FakeSource struct {
	Datagrams []Datagram
	opened    bool
	closed    bool
	pos       int
}

// ErrExhausted is returned once every queued datagram has been dispatched.
var ErrExhausted = errors.New("capture: fake source exhausted")

func (f *FakeSource) Open() error {
	f.opened = true
	return nil
}

func (f *FakeSource) Dispatch(ctx context.Context) (Datagram, error) {
	if err := ctx.Err(); err != nil {
		return Datagram{}, err
	}
	if f.pos >= len(f.Datagrams) {
		return Datagram{}, ErrExhausted
	}
	dg := f.Datagrams[f.pos]
	f.pos++
	return dg, nil
}

func (f *FakeSource) Close() error {
	f.closed = true
	return nil
}
