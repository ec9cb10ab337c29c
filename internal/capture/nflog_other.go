//go:build !linux

package capture

import (
	"context"
	"fmt"
	"runtime"

	"github.com/yunchih/nfcollect/internal/model"
)

// nflogSource is a stub used on platforms without netfilter NFLOG support.
// The nflog group is accepted only so the constructor signature matches the
// Linux build; it is never used.
type nflogSource struct {
	group uint16
}

// NewNFLOGSource returns a Source that always fails to Open on non-Linux
// platforms, since NFLOG is a Linux netfilter facility.
func NewNFLOGSource(group uint16) Source {
	return &nflogSource{group: group}
}

func (s *nflogSource) Open() error {
	return model.NewFatalError("capture.Open", model.CodeStartup,
		fmt.Errorf("nflog capture is not supported on %s", runtime.GOOS))
}

func (s *nflogSource) Dispatch(ctx context.Context) (Datagram, error) {
	return Datagram{}, fmt.Errorf("nflog capture is not supported on %s", runtime.GOOS)
}

func (s *nflogSource) Close() error {
	return nil
}
