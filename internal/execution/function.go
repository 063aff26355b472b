package execution

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/puddle/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Invoker invokes a function with a JSON payload and returns its JSON result.
type Invoker interface {
	Invoke(ctx context.Context, payload []byte) ([]byte, error)
}

// Function hosts a function in a pool of sandboxes. Sandboxes are created on
// demand and reused across invocations.
type Function struct {
	def  FunctionDef
	pool *puddle.Pool[*Sandbox]
	sem  *semaphore.Weighted
	seq  atomic.Int64
	log  *zap.Logger
}

var _ Invoker = (*Function)(nil)

type FunctionParams struct {
	// Config is the config of the execution environment.
	Config Config

	// Def describes the hosted function.
	Def FunctionDef

	// Log is the logger to use for the function.
	Log *zap.Logger
}

func NewFunction(params FunctionParams) (*Function, error) {
	if params.Def.Handler == nil {
		return nil, fmt.Errorf("function %s has no handler", params.Def.ID)
	}

	if params.Def.Timeout <= 0 {
		return nil, fmt.Errorf("function %s has no timeout", params.Def.ID)
	}

	maxConcurrency := params.Config.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	f := &Function{
		def: params.Def,
		sem: semaphore.NewWeighted(int64(maxConcurrency)),
		log: params.Log.Named("function").With(zap.String("function", params.Def.ID)),
	}

	pool, err := puddle.NewPool(&puddle.Config[*Sandbox]{
		Constructor: f.createSandbox,
		Destructor:  f.destroySandbox,
		MaxSize:     int32(maxConcurrency),
	})
	if err != nil {
		return nil, err
	}

	f.pool = pool

	return f, nil
}

// Invoke runs a single invocation in a free sandbox. It fails fast with
// ErrThrottled when all sandboxes are busy.
func (f *Function) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	if !f.sem.TryAcquire(1) {
		return nil, ErrThrottled
	}
	defer f.sem.Release(1)

	resource, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("error acquiring sandbox: %w", err)
	}

	requestID := uuid.NewString()

	res, err := resource.Value().Invoke(ctx, requestID, payload)

	if shouldDestroy(err) {
		f.log.Debug("destroying sandbox", zap.String("request_id", requestID), zap.Error(err))
		resource.Destroy()
	} else {
		resource.Release()
	}

	return res, err
}

// Stat returns the pool statistics.
func (f *Function) Stat() *puddle.Stat {
	return f.pool.Stat()
}

// Shutdown closes the pool and destroys all idle sandboxes.
func (f *Function) Shutdown() {
	f.log.Debug("shutting down function")
	f.pool.Close()
}

func (f *Function) createSandbox(context.Context) (*Sandbox, error) {
	id := strconv.FormatInt(f.seq.Add(1), 10)
	f.log.Debug("creating sandbox", zap.String("sandbox", id))
	return newSandbox(id, f.def, f.log), nil
}

func (f *Function) destroySandbox(s *Sandbox) {
	f.log.Debug("sandbox destroyed",
		zap.String("sandbox", s.ID()),
		zap.Int("invocations", s.Invocations()),
	)
}

// shouldDestroy reports whether a sandbox is unusable after err.
func shouldDestroy(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var fnErr *FunctionError
	if errors.As(err, &fnErr) {
		return fnErr.Panicked()
	}

	return false
}
