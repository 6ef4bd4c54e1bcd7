package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stopransomware/victimfeed/internal/database"
	"github.com/stopransomware/victimfeed/internal/mailer"
	"github.com/stopransomware/victimfeed/internal/metrics"
	"github.com/stopransomware/victimfeed/internal/normalize"
)

// VictimFetcher supplies the victim stream a cycle diffs against the
// watermark.
type VictimFetcher interface {
	RecentVictims(ctx context.Context) ([]normalize.VictimRecord, error)
}

// Result holds the outcome of one notification cycle.
type Result struct {
	Subscribers int
	NewVictims  int
	Dispatched  int
	Failed      int
	Advanced    bool
}

// Engine runs the diff-and-notify cycle: fetch victims, diff against the
// watermark, dispatch per-subscriber digests, advance the watermark.
type Engine struct {
	db          *database.DB
	fetcher     VictimFetcher
	mail        mailer.Mailer
	siteBaseURL string
	now         func() time.Time
}

// New creates a notification engine.
func New(db *database.DB, fetcher VictimFetcher, mail mailer.Mailer, siteBaseURL string) *Engine {
	return &Engine{
		db:          db,
		fetcher:     fetcher,
		mail:        mail,
		siteBaseURL: siteBaseURL,
		now:         time.Now,
	}
}

// RunCycle executes one notification pass. Per-subscriber dispatch
// failures are logged and isolated; the watermark still advances so a
// stuck mailbox cannot replay the same diff forever. Only a failed
// victim fetch leaves the watermark untouched.
func (e *Engine) RunCycle(ctx context.Context) (*Result, error) {
	r := &Result{}

	subs, err := e.db.GetActiveSubscriptions()
	if err != nil {
		return r, fmt.Errorf("fetching subscriptions: %w", err)
	}
	r.Subscribers = len(subs)
	if len(subs) == 0 {
		log.Println("notify: no active subscriptions, skipping cycle")
		return r, nil
	}

	fetchTime := e.now()
	victims, err := e.fetcher.RecentVictims(ctx)
	if err != nil {
		// Watermark stays put: this diff has not been processed.
		return r, fmt.Errorf("fetching victims: %w", err)
	}

	watermark, haveWatermark, err := e.db.GetWatermark()
	if err != nil {
		return r, err
	}

	var fresh []normalize.VictimRecord
	if haveWatermark {
		for _, v := range victims {
			if t, ok := v.DiscoveredAt(); ok && t.After(watermark) {
				fresh = append(fresh, v)
			}
		}
	}
	// First cycle ever: establish the watermark without dispatching, so a
	// brand-new deployment does not blast the entire feed at subscribers.
	r.NewVictims = len(fresh)

	for _, sub := range subs {
		relevant := relevantFor(sub, fresh)
		if len(relevant) == 0 {
			continue
		}

		subject, body := ComposeDigest(relevant, UnsubscribeURL(e.siteBaseURL, sub.UnsubscribeToken))
		if err := e.mail.Send(ctx, sub.Email, subject, body); err != nil {
			metrics.Dispatches.WithLabelValues("error").Inc()
			log.Printf("notify: dispatch to %s failed: %v", sub.Email, err)
			r.Failed++
			continue
		}
		metrics.Dispatches.WithLabelValues("ok").Inc()
		r.Dispatched++
	}

	if err := e.db.AdvanceWatermark(fetchTime); err != nil {
		return r, err
	}
	r.Advanced = true

	log.Printf("notify: cycle complete: %d new victims, %d dispatched, %d failed",
		r.NewVictims, r.Dispatched, r.Failed)
	return r, nil
}

// relevantFor filters new victims down to a subscription's countries.
// Nil countries means everything; otherwise the victim's country label
// must exactly match one of the subscription's. Matching is on upstream
// display labels, not ISO codes, which is fragile to upstream renames
// but mirrors what subscribers signed up with.
func relevantFor(sub database.Subscription, victims []normalize.VictimRecord) []normalize.VictimRecord {
	if sub.Countries == nil {
		return victims
	}

	wanted := make(map[string]struct{}, len(sub.Countries))
	for _, c := range sub.Countries {
		wanted[c] = struct{}{}
	}

	var out []normalize.VictimRecord
	for _, v := range victims {
		if v.Country == nil {
			continue
		}
		if _, ok := wanted[*v.Country]; ok {
			out = append(out, v)
		}
	}
	return out
}
