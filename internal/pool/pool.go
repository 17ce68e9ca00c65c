package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"subseek/internal/cache"
	"subseek/internal/language"
	"subseek/internal/logging"
	"subseek/internal/provider"
	"subseek/internal/services"
	"subseek/internal/subtitle"
	"subseek/internal/video"
)

const (
	defaultTimeout    = 20 * time.Second
	defaultMaxWorkers = 4
)

// ErrClosed is returned by calls made after Terminate.
var ErrClosed = errors.New("provider pool terminated")

// State is the lifecycle position of one provider inside a pool.
type State int

const (
	Uninitialized State = iota
	Initialized
	Terminated
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Terminated:
		return "terminated"
	default:
		return "uninitialized"
	}
}

// Options tune a pool. Zero values pick defaults; a nil Cache disables
// cross-run cooldowns.
type Options struct {
	// Timeout bounds each provider call, including a lazy Initialize.
	Timeout time.Duration
	// MaxWorkers caps concurrent provider calls within one listing.
	MaxWorkers int
	// Cooldown is how long an availability record suppresses a provider
	// in later pools.
	Cooldown time.Duration
	Cache    *cache.Cache
	Logger   *slog.Logger
}

type member struct {
	provider provider.Provider
	name     string

	// initMu serialises Initialize; state is read without it.
	initMu sync.Mutex
	state  atomic.Int32
}

func (m *member) State() State { return State(m.state.Load()) }

// ensure initialises the provider on first use.
func (m *member) ensure(ctx context.Context) error {
	if m.State() == Initialized {
		return nil
	}
	m.initMu.Lock()
	defer m.initMu.Unlock()
	switch m.State() {
	case Initialized:
		return nil
	case Terminated:
		return ErrClosed
	}
	if err := m.provider.Initialize(ctx); err != nil {
		return err
	}
	if !m.state.CompareAndSwap(int32(Uninitialized), int32(Initialized)) {
		// the pool was terminated while Initialize ran
		_ = m.provider.Terminate(context.WithoutCancel(ctx))
		return ErrClosed
	}
	return nil
}

// shutdown marks m terminated and reports whether the provider still needs
// its Terminate call.
func (m *member) shutdown() bool {
	return State(m.state.Swap(int32(Terminated))) == Initialized
}

// Pool fans queries out to a fixed set of providers and isolates their
// failures from each other.
type Pool struct {
	members []*member
	byName  map[string]*member
	opts    Options
	logger  *slog.Logger

	mu        sync.Mutex
	discarded map[string]error
	closed    bool

	// inflight tracks provider calls, including ones abandoned on timeout.
	inflight sync.WaitGroup
}

// New takes ownership of providers; their order is the pool order used
// when merging results.
func New(providers []provider.Provider, opts Options) *Pool {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = defaultMaxWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pool{
		byName:    make(map[string]*member, len(providers)),
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "pool"),
		discarded: make(map[string]error),
	}
	for _, prov := range providers {
		if prov == nil {
			continue
		}
		name := prov.Name()
		if _, dup := p.byName[name]; dup {
			continue
		}
		m := &member{provider: prov, name: name}
		p.members = append(p.members, m)
		p.byName[name] = m
	}
	return p
}

// Names lists the pool's providers in pool order.
func (p *Pool) Names() []string {
	names := make([]string, 0, len(p.members))
	for _, m := range p.members {
		names = append(names, m.name)
	}
	return names
}

// ListSubtitles queries every eligible provider concurrently and returns
// once all of them answered, failed or timed out. Provider failures are
// recorded in the results; the error is only non-nil when the pool itself
// is unusable.
func (p *Pool) ListSubtitles(ctx context.Context, v *video.Video, langs language.Set) (*Results, error) {
	if v == nil {
		return nil, services.Wrap(services.ErrValidation, "pool", "list", "video is nil", nil)
	}
	if p.isClosed() {
		return nil, ErrClosed
	}
	ctx = services.WithVideo(ctx, v.Name())
	logger := logging.WithContext(ctx, p.logger)

	results := newResults()
	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	group.SetLimit(p.opts.MaxWorkers)

	for _, m := range p.members {
		if reason, skip := p.skipReason(ctx, m, v, langs); skip {
			results.skip(m.name, reason)
			attrs := append(logging.DecisionAttrs("provider_selection", "skipped", reason),
				logging.String(logging.FieldProvider, m.name))
			logger.Debug("provider skipped", logging.Args(attrs...)...)
			continue
		}
		results.enlist(m.name)
		group.Go(func() error {
			subs, err := p.listOne(ctx, m, v, m.provider.Capabilities().CheckLanguages(langs))
			mu.Lock()
			results.record(m.name, subs, err)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	logger.Debug("listing complete",
		logging.Int("providers", len(results.Providers)),
		logging.Int("subtitles", len(results.All())),
		logging.Int("failures", len(results.Errors)),
	)
	return results, nil
}

func (p *Pool) skipReason(ctx context.Context, m *member, v *video.Video, langs language.Set) (string, bool) {
	if err := p.discardedErr(m.name); err != nil {
		return "discarded: " + provider.Reason(err), true
	}
	if rec, ok := p.cooldown(ctx, m.name); ok {
		return "cooling down until " + rec.Until.Format(time.RFC3339) + " after " + rec.Reason, true
	}
	if !m.provider.Check(v) {
		return "video unsuitable", true
	}
	if m.provider.Capabilities().CheckLanguages(langs).Len() == 0 {
		return "no supported language requested", true
	}
	return "", false
}

func (p *Pool) listOne(ctx context.Context, m *member, v *video.Video, langs language.Set) ([]*subtitle.Subtitle, error) {
	ctx = services.WithProvider(ctx, m.name)
	start := time.Now()
	subs, err := call(ctx, p, m, "list", func(ctx context.Context) ([]*subtitle.Subtitle, error) {
		return m.provider.ListSubtitles(ctx, v, langs)
	})
	if err != nil {
		p.fail(ctx, m, "list", err)
		return nil, err
	}
	logging.WithContext(ctx, p.logger).Debug("provider listed subtitles",
		logging.Int("subtitles", len(subs)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return subs, nil
}

// DownloadSubtitle fills s through its owning provider. On failure s keeps
// no content and the error is attributed to that provider only.
func (p *Pool) DownloadSubtitle(ctx context.Context, s *subtitle.Subtitle) error {
	if s == nil {
		return services.Wrap(services.ErrValidation, "pool", "download", "subtitle is nil", nil)
	}
	if p.isClosed() {
		return ErrClosed
	}
	m, ok := p.byName[s.Provider]
	if !ok {
		return services.Wrap(services.ErrNotFound, "pool", "download", "unknown provider "+s.Provider, nil)
	}
	if err := p.discardedErr(m.name); err != nil {
		return fmt.Errorf("%s discarded: %w", m.name, err)
	}
	ctx = services.WithProvider(ctx, m.name)

	// The provider works on a copy so an abandoned call cannot fill s late.
	work := *s
	_, err := call(ctx, p, m, "download", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.provider.DownloadSubtitle(ctx, &work)
	})
	if err == nil && !work.HasContent() {
		err = provider.Wrap(provider.ErrTransient, m.name, "download", "provider returned no content", nil)
	}
	if err != nil {
		p.fail(ctx, m, "download", err)
		return err
	}
	s.Format = work.Format
	s.Encoding = work.Encoding
	s.SetContent(work.Content())
	return nil
}

// call runs fn on m with the pool timeout. fn runs on its own goroutine so
// a provider that ignores cancellation cannot hold the caller past the
// deadline; Terminate waits for such stragglers.
func call[T any](ctx context.Context, p *Pool, m *member, op string, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	if !p.enter() {
		var zero T
		return zero, ErrClosed
	}
	go func() {
		defer p.inflight.Done()
		if err := m.ensure(callCtx); err != nil {
			var zero T
			done <- outcome{zero, err}
			return
		}
		value, err := fn(callCtx)
		done <- outcome{value, err}
	}()

	finish := func(out outcome) (T, error) {
		if out.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			out.err = provider.Wrap(provider.ErrTimeout, m.name, op, "exceeded "+p.opts.Timeout.String(), out.err)
		}
		return out.value, out.err
	}
	select {
	case out := <-done:
		return finish(out)
	case <-callCtx.Done():
		select {
		case out := <-done:
			return finish(out)
		default:
		}
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, provider.Wrap(provider.ErrTimeout, m.name, op, "exceeded "+p.opts.Timeout.String(), callCtx.Err())
	}
}

// fail records a provider failure. Discarding kinds remove the provider
// for the rest of the pool's life and may start a cooldown.
func (p *Pool) fail(ctx context.Context, m *member, op string, err error) {
	logger := logging.WithContext(ctx, p.logger)
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
		logger.Debug("provider call cancelled", logging.String("operation", op))
		return
	}
	reason := provider.Reason(err)
	if !provider.IsDiscarding(err) {
		logging.WarnWithContext(logger, "provider call failed", "provider_call_failed",
			logging.String("operation", op),
			logging.String("reason", reason),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the provider is retried on the next call"),
			logging.String(logging.FieldImpact, "results from this provider are missing for this call"),
		)
		return
	}

	p.mu.Lock()
	_, already := p.discarded[m.name]
	if !already {
		p.discarded[m.name] = err
	}
	p.mu.Unlock()
	if already {
		return
	}
	logging.WarnWithContext(logger, "provider discarded", "provider_discarded",
		logging.String("operation", op),
		logging.String("reason", reason),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(err)),
		logging.String(logging.FieldImpact, "provider skipped for the rest of this run"),
	)
	if provider.CooldownFor(err) {
		p.startCooldown(ctx, m.name, reason)
	}
}

func hintFor(err error) string {
	switch provider.Classify(err) {
	case provider.ErrConfiguration:
		return "check the provider settings in config.toml"
	case provider.ErrAuthentication:
		return "check the provider credentials"
	case provider.ErrDownloadLimitExceeded:
		return "wait for the provider quota to reset"
	case provider.ErrServiceUnavailable:
		return "the provider is down; try again later"
	default:
		return "check logs for details"
	}
}

func (p *Pool) discardedErr(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discarded[name]
}

// enter registers an in-flight call unless the pool is terminated. The
// closed check and the Add share p.mu so no Add races Terminate's Wait.
func (p *Pool) enter() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.inflight.Add(1)
	return true
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Terminate shuts every initialised provider down once and waits for
// in-flight calls until ctx ends. Later calls return ErrClosed.
func (p *Pool) Terminate(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		logging.WarnWithContext(p.logger, "abandoning in-flight provider calls", "pool_terminate_timeout",
			logging.Error(ctx.Err()),
			logging.String(logging.FieldImpact, "slow provider calls finish in the background"),
		)
	}

	var errs []error
	for _, m := range p.members {
		if !m.shutdown() {
			continue
		}
		if err := m.provider.Terminate(ctx); err != nil {
			p.logger.Debug("provider terminate failed",
				logging.String(logging.FieldProvider, m.name),
				logging.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
		}
	}
	return errors.Join(errs...)
}

// ProviderStatus describes one provider for reporting.
type ProviderStatus struct {
	Name      string
	State     State
	Discarded bool
	Reason    string
	// CooldownUntil is set while an availability record suppresses the
	// provider.
	CooldownUntil time.Time
}

// Status reports every provider in pool order.
func (p *Pool) Status(ctx context.Context) []ProviderStatus {
	out := make([]ProviderStatus, 0, len(p.members))
	for _, m := range p.members {
		st := ProviderStatus{Name: m.name, State: m.State()}
		if err := p.discardedErr(m.name); err != nil {
			st.Discarded = true
			st.Reason = provider.Reason(err)
		}
		if rec, ok := p.cooldown(ctx, m.name); ok {
			st.CooldownUntil = rec.Until
			if st.Reason == "" {
				st.Reason = rec.Reason
			}
		}
		out = append(out, st)
	}
	return out
}
