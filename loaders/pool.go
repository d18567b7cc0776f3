package loaders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ZLLentz/whatrecord/configs"
	"github.com/ZLLentz/whatrecord/logs"
	"github.com/ZLLentz/whatrecord/shell"
	"github.com/ZLLentz/whatrecord/syncs"
	"github.com/google/uuid"
)

type LoadState string

const (
	LoadPending   LoadState = "pending"
	LoadRunning   LoadState = "running"
	LoadSucceeded LoadState = "succeeded"
	LoadFailed    LoadState = "failed"
)

// Result is the outcome of one script load.
type Result struct {
	ID      uuid.UUID     `json:"id"`
	Name    string        `json:"name"`
	State   LoadState     `json:"state"`
	Elapsed time.Duration `json:"elapsed"`
	IOC     *shell.LoadedIOC
	Err     error
}

// Load runs every descriptor through the interpreter, bounded by the worker
// count, and merges the completed instances into one container. The returned
// results are in completion order; one per descriptor regardless of failures.
type Load func(ctx context.Context, descriptors []Descriptor) (*shell.Container, []Result)

func (Module) Load(
	numWorkers configs.NumWorkers,
	strict configs.Strict,
	standins configs.StandinDirectories,
	logger logs.Logger,
	newSpan logs.NewSpan,
) Load {
	return func(ctx context.Context, descriptors []Descriptor) (*shell.Container, []Result) {
		sem := syncs.NewSemaphore(int(numWorkers))
		resultChan := make(chan Result)

		// The dispatcher acquires in descriptor order, so a full pool admits
		// pending loads first-come-first-served.
		go func() {
			for _, desc := range descriptors {
				for from, to := range standins {
					if desc.StandinDirectories == nil {
						desc.StandinDirectories = make(map[string]string)
					}
					if _, ok := desc.StandinDirectories[from]; !ok {
						desc.StandinDirectories[from] = to
					}
				}

				sem.Acquire()
				go func() {
					defer sem.Release()
					resultChan <- loadIsolated(ctx, desc, bool(strict), logger, newSpan)
				}()
			}
		}()

		container := shell.NewContainer()
		results := make([]Result, 0, len(descriptors))
		for range descriptors {
			result := <-resultChan
			if result.IOC != nil {
				container.Add(result.IOC)
			}
			results = append(results, result)
		}
		return container, results
	}
}

// loadIsolated runs one load in its own goroutine-level failure domain: a
// panic becomes a failed result, and the instance crosses back to the
// coordinator through its serialized form only.
func loadIsolated(
	ctx context.Context,
	desc Descriptor,
	strict bool,
	logger logs.Logger,
	newSpan logs.NewSpan,
) (result Result) {
	result = Result{
		ID:    uuid.New(),
		Name:  desc.DisplayName(),
		State: LoadRunning,
	}
	t0 := time.Now()

	defer func() {
		result.Elapsed = time.Since(t0)
		if p := recover(); p != nil {
			err := fmt.Errorf("load panic: %v", p)
			md := desc.newMetadata()
			result.State = LoadFailed
			result.Err = err
			result.IOC = shell.NewErroredIOC(md, err)
		}
	}()

	ctx, _ = newSpan(ctx, "")

	// Loads not yet started when the batch is cancelled are abandoned
	// without touching the filesystem; they still get a placeholder entry.
	if err := ctx.Err(); err != nil {
		logger.InfoContext(ctx, "load abandoned", "name", result.Name)
		result.State = LoadFailed
		result.Err = err
		result.IOC = shell.NewErroredIOC(desc.newMetadata(), err)
		return result
	}

	logger.InfoContext(ctx, "loading ioc", "name", result.Name, "script", desc.Script)
	if desc.BinaryIntrospection {
		logger.WarnContext(ctx, "binary introspection not supported", "name", result.Name)
	}

	ioc, err := LoadOne(ctx, desc, strict)
	if err != nil {
		logger.ErrorContext(ctx, "load failed", "name", result.Name, "error", err)
		result.State = LoadFailed
		result.Err = err
	} else {
		result.State = LoadSucceeded
	}

	ioc, transitErr := transit(ioc)
	if transitErr != nil {
		md := desc.newMetadata()
		result.State = LoadFailed
		result.Err = transitErr
		ioc = shell.NewErroredIOC(md, transitErr)
	}
	result.IOC = ioc

	logger.InfoContext(ctx, "load finished",
		"name", result.Name,
		"state", result.State,
		"elapsed", time.Since(t0),
	)
	return result
}

// transit round-trips the instance through its wire form, so the coordinator
// only ever sees data that survives the worker boundary.
func transit(ioc *shell.LoadedIOC) (*shell.LoadedIOC, error) {
	content, err := json.Marshal(ioc)
	if err != nil {
		return nil, fmt.Errorf("encode instance: %w", err)
	}
	decoded := new(shell.LoadedIOC)
	if err := json.Unmarshal(content, decoded); err != nil {
		return nil, fmt.Errorf("decode instance: %w", err)
	}
	return decoded, nil
}
