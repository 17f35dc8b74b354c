package pipeline

import (
	"context"

	"codeaug/internal/logging"
)

// RunOptions configures every stage of Run.
type RunOptions struct {
	Prepare  PrepareOptions
	Process  ProcessOptions
	Complete CompleteOptions
}

// RunResult holds the result of every stage that ran.
type RunResult struct {
	Prepare  *PrepareResult
	Process  *ProcessResult
	Complete *CompleteResult
}

// Errors returns the domain errors of every stage that ran.
func (r *RunResult) Errors() []error {
	var errs []error
	if r.Prepare != nil {
		errs = append(errs, r.Prepare.Errors...)
	}
	if r.Process != nil {
		errs = append(errs, r.Process.Errors...)
	}
	if r.Complete != nil {
		errs = append(errs, r.Complete.Errors...)
	}
	return errs
}

// Run chains Prepare, Process and Complete. A stage reporting domain errors ends the
// run; its result is returned with the later stages left nil.
func Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	out := &RunResult{}
	timer := logging.StartTimer(logging.CategoryPipeline, "Run")
	defer timer.StopWithInfo()

	prep, err := Prepare(ctx, opts.Prepare)
	if err != nil {
		return out, err
	}
	out.Prepare = prep
	if len(prep.Errors) > 0 {
		return out, nil
	}

	proc, err := Process(ctx, opts.Process)
	if err != nil {
		return out, err
	}
	out.Process = proc
	if len(proc.Errors) > 0 {
		return out, nil
	}

	comp, err := Complete(ctx, opts.Complete)
	if err != nil {
		return out, err
	}
	out.Complete = comp
	return out, nil
}
