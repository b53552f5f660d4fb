package pollkit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// wakePipe is the self-pipe used to interrupt an idle multiplexer. The read
// end is non-blocking (the drain loop reads until EAGAIN); both ends are
// close-on-exec. No data flows over it beyond wake-up bytes, whose payload is
// ignored.
type wakePipe struct {
	readFD  int
	writeFD int
}

func newWakePipe() (*wakePipe, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, fmt.Errorf(`pollkit: create pipe failed: %w`, err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, fmt.Errorf(`pollkit: pipe nonblock failed: %w`, err)
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	return &wakePipe{readFD: fds[0], writeFD: fds[1]}, nil
}

// write writes buf to the pipe, retrying through EINTR.
func (x *wakePipe) write(buf []byte) (int, error) {
	for {
		n, err := unix.Write(x.writeFD, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// read reads into buf from the pipe, retrying through EINTR.
func (x *wakePipe) read(buf []byte) (int, error) {
	for {
		n, err := unix.Read(x.readFD, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func (x *wakePipe) close() {
	if x.readFD != -1 {
		_ = unix.Close(x.readFD)
		x.readFD = -1
	}
	if x.writeFD != -1 {
		_ = unix.Close(x.writeFD)
		x.writeFD = -1
	}
}
