package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"codeaug/internal/eval"
	"codeaug/internal/logging"
	"codeaug/internal/records"
	"codeaug/internal/types"
)

// ProcessJob evaluates one request file into one response file.
type ProcessJob struct {
	Name         string
	RequestFile  string
	ResponseFile string
	Evaluator    eval.Evaluator
}

// ProcessOptions configures Process.
type ProcessOptions struct {
	Jobs      []ProcessJob
	Streaming bool
}

// ProcessResult summarizes a Process run.
type ProcessResult struct {
	FilesProcessed     int
	GeneratedCodeCount int
	Errors             []error
}

// Process runs every job. Jobs share nothing and run concurrently, each with its own
// evaluation context. Errors are reported in job order.
func Process(ctx context.Context, opts ProcessOptions) (*ProcessResult, error) {
	timer := logging.StartTimer(logging.CategoryProcess, "Process")
	defer timer.Stop()

	results := make([]*ProcessResult, len(opts.Jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range opts.Jobs {
		i, job := i, job
		g.Go(func() error {
			res, err := processJob(gctx, job, opts.Streaming)
			if err != nil {
				return fmt.Errorf("%s: %w", job.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &ProcessResult{}
	for _, res := range results {
		total.FilesProcessed += res.FilesProcessed
		total.GeneratedCodeCount += res.GeneratedCodeCount
		total.Errors = append(total.Errors, res.Errors...)
	}
	return total, nil
}

func processJob(ctx context.Context, job ProcessJob, streaming bool) (*ProcessResult, error) {
	log := logging.Get(logging.CategoryProcess)

	header := &types.RequestHeader{}
	src, err := records.OpenFile[types.SourceFileAugmentingCode](job.RequestFile, header)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	w, err := records.CreateFile[types.SourceFileGeneratedCode](job.ResponseFile, &types.ResponseHeader{}, streaming)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	ectx := eval.NewContext(header)
	result := &ProcessResult{}
	for {
		fileAugCodes, ok, err := src.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ectx.BeginFile(&fileAugCodes)
		srcFile := ectx.SrcFile
		log.Debug("Processing %s", srcFile)
		start := time.Now()

		genCodes, fileErrs, err := evaluateFile(ctx, job.Evaluator, ectx)
		if err != nil {
			return nil, err
		}
		if len(fileErrs) > 0 {
			log.Warn("%d error(s) encountered in %s", len(fileErrs), srcFile)
			result.Errors = append(result.Errors, fileErrs...)
			// A timed out call may still be running against ectx.
			if errors.Is(fileErrs[len(fileErrs)-1], eval.ErrTimedOut) {
				log.Warn("Abandoning bucket %s after evaluation timeout in %s", job.Name, srcFile)
				break
			}
		} else {
			err := w.Write(types.SourceFileGeneratedCode{
				FileID:         fileAugCodes.FileID,
				GeneratedCodes: genCodes,
			})
			if err != nil {
				return nil, err
			}
			result.FilesProcessed++
			result.GeneratedCodeCount += len(genCodes)
		}
		log.Info("Done processing %s in %d ms", srcFile, time.Since(start).Milliseconds())
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return result, nil
}

// evaluateFile evaluates the augmenting codes of the file ectx points at. Domain
// errors are returned in the second result; the error return is reserved for
// cancellation of ctx.
func evaluateFile(ctx context.Context, evaluator eval.Evaluator, ectx *eval.Context) ([]types.GeneratedCode, []error, error) {
	file := ectx.FileAugCodes
	if err := eval.PrepareArgs(file, ectx.SrcFile); err != nil {
		return nil, []error{err}, nil
	}

	genCodes := []types.GeneratedCode{}
	var errs []error
	for i := range file.AugmentingCodes {
		augCode := &file.AugmentingCodes[i]
		if augCode.Processed {
			continue
		}
		ectx.AugCodeIndex = i

		res, err := evaluator.Evaluate(ctx, augCode.FunctionName(), augCode, ectx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			snippet := ""
			if len(augCode.Blocks) > 0 {
				snippet = augCode.Blocks[0].Content
			}
			te := types.NewTaskError(fmt.Sprintf("%s: %v", snippet, err), ectx.SrcFile, augCode.LineNumber, "")
			te.Cause = err
			errs = append(errs, te)
			if errors.Is(err, eval.ErrTimedOut) {
				return nil, errs, nil
			}
			continue
		}
		genCodes = append(genCodes, eval.ConvertResult(res, augCode, file)...)
	}

	if err := eval.ValidateIDs(genCodes); err != nil {
		errs = append(errs, types.NewTaskError(err.Error(), ectx.SrcFile, 0, ""))
	}
	return genCodes, errs, nil
}
