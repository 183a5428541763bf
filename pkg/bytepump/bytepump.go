// Package bytepump relays bytes between two duplex channels in both
// directions concurrently, with a bounded grace period for graceful
// half-close once one direction finishes.
package bytepump

import (
	"io"
	"time"

	"github.com/kestrelnet/httpsocks5/pkg/constants"
	"github.com/kestrelnet/httpsocks5/pkg/tunnel"
)

// Result reports how many bytes moved in each direction.
type Result struct {
	BytesAToB int64
	BytesBToA int64
}

// Run relays bytes between a and b until both directions finish, using the
// default grace period.
func Run(a, b tunnel.Channel) (Result, error) {
	return run(a, b, constants.PumpGracePeriod)
}

type copyOutcome struct {
	n   int64
	err error
}

func run(a, b tunnel.Channel, gracePeriod time.Duration) (Result, error) {
	doneAB := make(chan copyOutcome, 1) // a -> b
	doneBA := make(chan copyOutcome, 1) // b -> a

	go func() {
		n, err := copyLoop(b, a)
		doneAB <- copyOutcome{n, err}
	}()
	go func() {
		n, err := copyLoop(a, b)
		doneBA <- copyOutcome{n, err}
	}()

	var (
		res            Result
		firstErr       error
		abDone, baDone bool
		timer          *time.Timer
		timerC         <-chan time.Time
	)

	for !abDone || !baDone {
		select {
		case r := <-doneAB:
			res.BytesAToB = r.n
			if r.err != nil && firstErr == nil {
				firstErr = r.err
			}
			abDone = true
			if !baDone && timer == nil {
				timer = time.NewTimer(gracePeriod)
				timerC = timer.C
			}
		case r := <-doneBA:
			res.BytesBToA = r.n
			if r.err != nil && firstErr == nil {
				firstErr = r.err
			}
			baDone = true
			if !abDone && timer == nil {
				timer = time.NewTimer(gracePeriod)
				timerC = timer.C
			}
		case <-timerC:
			a.CancelRead()
			a.CancelWrite()
			b.CancelRead()
			b.CancelWrite()
			timerC = nil
		}
	}
	if timer != nil {
		timer.Stop()
	}

	closeA := a.Close()
	closeB := b.Close()
	if firstErr == nil {
		firstErr = closeA
	}
	if firstErr == nil {
		firstErr = closeB
	}
	return res, firstErr
}

// copyLoop relays src to dst until src reaches EOF or either side errors,
// flushing dst after every write so buffered channel implementations don't
// hold data back from the wire.
func copyLoop(dst, src tunnel.Channel) (int64, error) {
	buf := make([]byte, constants.PumpBufferSize)
	var total int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			total += int64(nw)
			if werr != nil {
				return total, werr
			}
			if ferr := dst.Flush(); ferr != nil {
				return total, ferr
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}
