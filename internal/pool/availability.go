package pool

import (
	"context"
	"time"

	"subseek/internal/cache"
	"subseek/internal/logging"
)

// availability is the cached record that suppresses a provider across
// pools until Until.
type availability struct {
	Reason string    `json:"reason"`
	Until  time.Time `json:"until"`
}

func availabilityKey(name string) string {
	return cache.Key("pool", "availability", name)
}

// cooldown returns the active availability record for name, if any. The
// cache expires records on its own, so presence means active.
func (p *Pool) cooldown(ctx context.Context, name string) (availability, bool) {
	if p.opts.Cache == nil {
		return availability{}, false
	}
	var rec availability
	ok, err := p.opts.Cache.Get(ctx, availabilityKey(name), &rec)
	if err != nil {
		p.logger.Debug("availability read failed",
			logging.String(logging.FieldProvider, name),
			logging.Error(err),
		)
		return availability{}, false
	}
	return rec, ok
}

func (p *Pool) startCooldown(ctx context.Context, name, reason string) {
	if p.opts.Cache == nil || p.opts.Cooldown <= 0 {
		return
	}
	rec := availability{Reason: reason, Until: time.Now().Add(p.opts.Cooldown).UTC()}
	// the record must outlive a cancelled caller
	ctx = context.WithoutCancel(ctx)
	if err := p.opts.Cache.Set(ctx, availabilityKey(name), rec, p.opts.Cooldown); err != nil {
		logging.WarnWithContext(p.logger, "availability write failed", "availability_write_failed",
			logging.String(logging.FieldProvider, name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache path permissions"),
			logging.String(logging.FieldImpact, "the provider will be retried by the next run"),
		)
		return
	}
	p.logger.Info("provider cooling down",
		logging.String(logging.FieldProvider, name),
		logging.String("reason", reason),
		logging.Duration("cooldown", p.opts.Cooldown),
	)
}

// ClearCooldown removes the availability record for name.
func (p *Pool) ClearCooldown(ctx context.Context, name string) error {
	if p.opts.Cache == nil {
		return nil
	}
	return p.opts.Cache.Delete(ctx, availabilityKey(name))
}
