package internal

import (
	"context"
	"io"
	"time"
)

// Pipeline owns both ends of a source|sink subprocess pipe (extractor stdout
// into transcoder stdin). Early close of either stage is a normal teardown
// path: the sink stops reading once it has the seconds it needs, and the
// source is then killed rather than treated as failed.
type Pipeline struct {
	src     ProcHandle
	srcOut  io.ReadCloser
	sink    ProcHandle
	sinkOut io.ReadCloser
}

// StartPipeline launches source and sink and wires source stdout to sink
// stdin. Both processes are killed when ctx is cancelled.
func StartPipeline(ctx context.Context, runner Runner, srcName string, srcArgs []string, sinkName string, sinkArgs []string) (*Pipeline, error) {
	srcOut, srcH, err := runner.Start(ctx, srcName, srcArgs)
	if err != nil {
		return nil, err
	}
	sinkOut, sinkH, err := runner.StartWithInput(ctx, sinkName, sinkArgs, srcOut)
	if err != nil {
		srcH.Kill()
		srcH.Wait()
		srcOut.Close()
		return nil, err
	}
	return &Pipeline{src: srcH, srcOut: srcOut, sink: sinkH, sinkOut: sinkOut}, nil
}

// Out returns the sink's stdout for pass-through mode. Unused when the sink
// writes to a file.
func (p *Pipeline) Out() io.ReadCloser { return p.sinkOut }

// Wait blocks until the sink finishes, then tears down the source. The sink
// exiting first starves the source of a reader; that broken pipe is the
// expected way a bounded-duration transcode ends, so the source is killed and
// its exit status ignored.
func (p *Pipeline) Wait() error {
	sinkErr := p.sink.Wait()
	p.src.Kill()
	p.src.Wait()
	p.srcOut.Close()
	if sinkErr != nil {
		return sinkErr
	}
	return nil
}

// WaitTimeout is Wait with an upper bound, killing both stages when it fires.
func (p *Pipeline) WaitTimeout(d time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- p.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		p.Close()
		<-done
		return NewError(KindTimeout, "transcode pipeline exceeded "+d.String())
	}
}

// Close force-terminates both stages.
func (p *Pipeline) Close() {
	p.sink.Kill()
	p.src.Kill()
	p.srcOut.Close()
	p.sinkOut.Close()
}
