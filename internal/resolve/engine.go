// Package resolve turns the addresses found in a batch of threads into
// companies, customers and thread links, then queues the threads for
// analysis.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/thread-intel/internal/dispatch"
	"github.com/sells-group/thread-intel/internal/identity"
	"github.com/sells-group/thread-intel/internal/model"
	"github.com/sells-group/thread-intel/internal/stage"
	"github.com/sells-group/thread-intel/internal/store"
)

// Skip reasons reported per thread.
const (
	ReasonNoMessages          = "no messages"
	ReasonMessagesUnavailable = "messages unavailable"
	ReasonStageCheckFailed    = "stage check failed"
	ReasonQueueFailed         = "could not queue"
)

const defaultConcurrency = 5

// Dispatcher starts analysis jobs for queued threads.
type Dispatcher interface {
	DispatchAll(ctx context.Context, tenantID string, threadIDs []string) []dispatch.Outcome
}

// Engine resolves entities for batches of threads. It is safe for
// concurrent use.
type Engine struct {
	store       store.EntityStore
	tracker     *stage.Tracker
	dispatcher  Dispatcher
	concurrency int
	newID       func() string
}

// New creates an Engine. A nil dispatcher queues threads without starting
// any jobs.
func New(st store.EntityStore, tracker *stage.Tracker, d Dispatcher, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Engine{
		store:       st,
		tracker:     tracker,
		dispatcher:  d,
		concurrency: concurrency,
		newID:       uuid.NewString,
	}
}

// batch carries the report and per-run lookups shared by the steps.
type batch struct {
	tenantID string
	log      *zap.Logger

	mu  sync.Mutex
	rep *model.ResolutionReport
}

func (b *batch) fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rep.Errors = append(b.rep.Errors, msg)
}

func (b *batch) count(f func(r *model.ResolutionReport)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f(b.rep)
}

// threadAddrs is the set of non-tenant addresses seen in one thread.
type threadAddrs struct {
	id    string
	addrs []string
}

// Resolve runs entity resolution for threadIDs. The only returned error is
// a failure to mark the batch as resolving; everything else is recorded in
// the report and processing continues.
func (e *Engine) Resolve(ctx context.Context, tenantID string, threadIDs []string) (*model.ResolutionReport, error) {
	rep := model.NewResolutionReport()
	ids := dedupe(threadIDs)
	log := zap.L().With(zap.String("tenant", tenantID), zap.Int("threads", len(ids)))
	b := &batch{tenantID: tenantID, log: log, rep: rep}
	if len(ids) == 0 {
		rep.Success = true
		return rep, nil
	}

	// Threads the gate skips keep their stage untouched so a concurrent
	// analysis can still move them on. When the stages cannot be read the
	// whole batch is marked resolving.
	marked, gated, gerr := e.tracker.Gate(ctx, tenantID, ids)
	if gerr != nil {
		log.Warn("resolve: could not read current stages", zap.Error(gerr))
		marked = ids
	}

	if err := e.tracker.Set(ctx, tenantID, model.StageResolving, marked...); err != nil {
		log.Error("resolve: could not mark threads resolving", zap.Error(err))
		b.fail("set stage %s: %v", model.StageResolving, err)
		if ferr := e.tracker.Set(ctx, tenantID, model.StageFailed, marked...); ferr != nil {
			log.Warn("resolve: could not mark threads failed", zap.Error(ferr))
		}
		return rep, err
	}

	self := e.tenantAddress(ctx, tenantID, log)
	msgs, err := e.store.ListMessages(ctx, tenantID, ids)
	if err != nil {
		log.Error("resolve: load messages failed", zap.Error(err))
		b.fail("load messages: %v", err)
		for _, id := range ids {
			rep.SkippedThreads[id] = ReasonMessagesUnavailable
		}
		return rep, nil
	}

	threads, empty := groupAddresses(ids, msgs, self)
	for _, id := range empty {
		rep.SkippedThreads[id] = ReasonNoMessages
	}
	log.Info("resolve: addresses collected", zap.Int("with_messages", len(threads)), zap.Int("empty", len(empty)))

	addrs, domains := distinct(threads)
	companies := e.resolveCompanies(ctx, b, domains)
	customers := e.resolveCustomers(ctx, b, addrs, companies)
	e.linkParticipants(ctx, b, threads, customers)
	e.stampSenders(ctx, b, msgs, customers)
	e.linkCompanies(ctx, b, threads, companies)

	processed := make([]string, len(threads))
	for i, t := range threads {
		processed[i] = t.id
	}
	rep.ProcessedCount = len(ids)
	if gerr != nil {
		b.fail("check stages: %v", gerr)
		for _, id := range processed {
			rep.SkippedThreads[id] = ReasonStageCheckFailed
		}
	} else {
		e.queue(ctx, b, processed, gated)
	}

	rep.Success = true
	log.Info("resolve: batch resolved",
		zap.Int("customers_created", rep.CustomersCreated),
		zap.Int("customers_found", rep.CustomersFound),
		zap.Int("companies_created", rep.CompaniesCreated),
		zap.Int("participants_linked", rep.ParticipantsLinked),
		zap.Int("jobs_triggered", rep.JobsTriggered),
		zap.Int("errors", len(rep.Errors)),
	)
	return rep, nil
}

// tenantAddress returns the tenant's own mailbox, or "" when unknown.
func (e *Engine) tenantAddress(ctx context.Context, tenantID string, log *zap.Logger) string {
	t, err := e.store.GetTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("resolve: tenant not found, own address will not be filtered")
		} else {
			log.Warn("resolve: tenant lookup failed, own address will not be filtered", zap.Error(err))
		}
		return ""
	}
	self, _ := identity.ExtractAddress(t.Email)
	return self
}

// groupAddresses unions the from, to and cc addresses per thread, without
// the tenant's own address. Threads keep input order; threads without any
// message are returned separately.
func groupAddresses(ids []string, msgs []model.Message, self string) ([]threadAddrs, []string) {
	sets := make(map[string]map[string]struct{}, len(ids))
	for _, m := range msgs {
		set, ok := sets[m.ThreadID]
		if !ok {
			set = make(map[string]struct{})
			sets[m.ThreadID] = set
		}
		if from, ok := identity.ExtractAddress(m.From); ok {
			set[from] = struct{}{}
		}
		for _, a := range identity.ExtractAddresses(m.To) {
			set[a] = struct{}{}
		}
		for _, a := range identity.ExtractAddresses(m.Cc) {
			set[a] = struct{}{}
		}
	}

	var threads []threadAddrs
	var empty []string
	for _, id := range ids {
		set, ok := sets[id]
		if !ok {
			empty = append(empty, id)
			continue
		}
		delete(set, self)
		addrs := make([]string, 0, len(set))
		for a := range set {
			addrs = append(addrs, a)
		}
		sort.Strings(addrs)
		threads = append(threads, threadAddrs{id: id, addrs: addrs})
	}
	return threads, empty
}

// distinct returns the sorted distinct addresses and business domains.
func distinct(threads []threadAddrs) (addrs, domains []string) {
	seenAddr := make(map[string]bool)
	seenDomain := make(map[string]bool)
	for _, t := range threads {
		for _, a := range t.addrs {
			if seenAddr[a] {
				continue
			}
			seenAddr[a] = true
			addrs = append(addrs, a)
			d := identity.Domain(a)
			if identity.IsBusinessDomain(d) && !seenDomain[d] {
				seenDomain[d] = true
				domains = append(domains, d)
			}
		}
	}
	sort.Strings(addrs)
	sort.Strings(domains)
	return addrs, domains
}

func (e *Engine) resolveCompanies(ctx context.Context, b *batch, domains []string) map[string]*model.Company {
	out := make(map[string]*model.Company, len(domains))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, domain := range domains {
		g.Go(func() error {
			c := model.Company{
				ID:       e.newID(),
				TenantID: b.tenantID,
				Domain:   domain,
				Name:     identity.CompanyName(domain),
				Status:   model.CompanyStatusActive,
			}
			got, outcome, err := findOrCreate(gctx, steps[model.Company]{
				find:   func(ctx context.Context) (*model.Company, error) { return e.store.FindCompany(ctx, b.tenantID, domain) },
				upsert: func(ctx context.Context) (*model.Company, error) { return e.store.UpsertCompany(ctx, c) },
				insert: func(ctx context.Context) (*model.Company, error) { return e.store.InsertCompany(ctx, c) },
			})
			if outcome == Failed {
				b.log.Error("resolve: company failed", zap.String("domain", domain), zap.Error(err))
				b.fail("resolve company %s: %v", domain, err)
				return nil
			}
			b.log.Debug("resolve: company resolved", zap.String("domain", domain), zap.Stringer("outcome", outcome))
			if outcome == Created {
				b.count(func(r *model.ResolutionReport) { r.CompaniesCreated++ })
			}
			mu.Lock()
			out[domain] = got
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Engine) resolveCustomers(ctx context.Context, b *batch, addrs []string, companies map[string]*model.Company) map[string]*model.Customer {
	out := make(map[string]*model.Customer, len(addrs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, addr := range addrs {
		g.Go(func() error {
			domain := identity.Domain(addr)
			c := model.Customer{
				ID:       e.newID(),
				TenantID: b.tenantID,
				Email:    addr,
				FullName: identity.LocalPart(addr),
				Status:   model.CustomerStatusProspect,
			}
			if co, ok := companies[domain]; ok {
				c.CompanyID = &co.ID
				c.DomainMatch = domain
			}
			got, outcome, err := findOrCreate(gctx, steps[model.Customer]{
				find:   func(ctx context.Context) (*model.Customer, error) { return e.store.FindCustomer(ctx, b.tenantID, addr) },
				upsert: func(ctx context.Context) (*model.Customer, error) { return e.store.UpsertCustomer(ctx, c) },
				insert: func(ctx context.Context) (*model.Customer, error) { return e.store.InsertCustomer(ctx, c) },
			})
			switch outcome {
			case Failed:
				b.log.Error("resolve: customer failed", zap.String("email", addr), zap.Error(err))
				b.fail("resolve customer %s: %v", addr, err)
				return nil
			case Created:
				b.count(func(r *model.ResolutionReport) { r.CustomersCreated++ })
			case Found:
				b.count(func(r *model.ResolutionReport) { r.CustomersFound++ })
				e.attachCompany(gctx, b, got, c.CompanyID)
			}
			mu.Lock()
			out[addr] = got
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// attachCompany sets an existing customer's company when a different one
// was resolved. A set company is never cleared.
func (e *Engine) attachCompany(ctx context.Context, b *batch, c *model.Customer, companyID *string) {
	if companyID == nil || (c.CompanyID != nil && *c.CompanyID == *companyID) {
		return
	}
	if err := e.store.SetCustomerCompany(ctx, b.tenantID, c.ID, *companyID); err != nil {
		b.log.Warn("resolve: update customer company failed", zap.String("customer_id", c.ID), zap.Error(err))
		b.fail("update company of customer %s: %v", c.Email, err)
		return
	}
	c.CompanyID = companyID
}

func (e *Engine) linkParticipants(ctx context.Context, b *batch, threads []threadAddrs, customers map[string]*model.Customer) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, t := range threads {
		g.Go(func() error {
			for _, addr := range t.addrs {
				c, ok := customers[addr]
				if !ok {
					continue
				}
				err := e.store.InsertParticipant(gctx, model.ThreadParticipant{ThreadID: t.id, CustomerID: c.ID, TenantID: b.tenantID})
				if err != nil && !store.IsDuplicate(err) {
					b.log.Warn("resolve: link participant failed", zap.String("thread_id", t.id), zap.String("customer_id", c.ID), zap.Error(err))
					b.fail("link customer %s to thread %s: %v", c.Email, t.id, err)
					continue
				}
				b.count(func(r *model.ResolutionReport) { r.ParticipantsLinked++ })
			}
			return nil
		})
	}
	_ = g.Wait()
}

// stampSenders records the sender's customer id on each message.
func (e *Engine) stampSenders(ctx context.Context, b *batch, msgs []model.Message, customers map[string]*model.Customer) {
	stamped := 0
	for _, m := range msgs {
		from, ok := identity.ExtractAddress(m.From)
		if !ok {
			continue
		}
		c, ok := customers[from]
		if !ok || (m.CustomerID != nil && *m.CustomerID == c.ID) {
			continue
		}
		if err := e.store.SetMessageCustomer(ctx, b.tenantID, m.ID, c.ID); err != nil {
			b.log.Warn("resolve: stamp message sender failed", zap.String("message_id", m.ID), zap.Error(err))
			continue
		}
		stamped++
	}
	b.log.Debug("resolve: message senders stamped", zap.Int("messages", stamped))
}

func (e *Engine) linkCompanies(ctx context.Context, b *batch, threads []threadAddrs, companies map[string]*model.Company) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, t := range threads {
		g.Go(func() error {
			linked := make(map[string]bool)
			for _, addr := range t.addrs {
				co, ok := companies[identity.Domain(addr)]
				if !ok || linked[co.ID] {
					continue
				}
				linked[co.ID] = true
				err := e.store.InsertCompanyLink(gctx, model.ThreadCompanyLink{ThreadID: t.id, CompanyID: co.ID, TenantID: b.tenantID})
				if err != nil && !store.IsDuplicate(err) {
					b.log.Warn("resolve: link company failed", zap.String("thread_id", t.id), zap.String("company_id", co.ID), zap.Error(err))
					b.fail("link company %s to thread %s: %v", co.Domain, t.id, err)
					continue
				}
				b.count(func(r *model.ResolutionReport) { r.CompanyLinks++ })
			}
			return nil
		})
	}
	_ = g.Wait()
}

// queue marks the processed threads that passed the gate queued and
// dispatches their analysis. Threads in skipped were never marked resolving
// and are left alone. A thread whose job could not be started is marked
// failed so a later run picks it up again.
func (e *Engine) queue(ctx context.Context, b *batch, threadIDs []string, skipped map[string]string) {
	if len(threadIDs) == 0 {
		return
	}
	rep := b.rep
	var eligible []string
	for _, id := range threadIDs {
		if reason, ok := skipped[id]; ok {
			rep.SkippedThreads[id] = reason
			continue
		}
		eligible = append(eligible, id)
	}
	if len(eligible) == 0 {
		return
	}

	if err := e.tracker.Set(ctx, b.tenantID, model.StageQueued, eligible...); err != nil {
		b.log.Error("resolve: could not queue threads", zap.Error(err))
		b.fail("set stage %s: %v", model.StageQueued, err)
		for _, id := range eligible {
			rep.SkippedThreads[id] = ReasonQueueFailed
		}
		return
	}
	if e.dispatcher == nil {
		return
	}

	var failed []string
	for _, o := range e.dispatcher.DispatchAll(ctx, b.tenantID, eligible) {
		if o.Err != nil {
			b.fail("trigger analysis for thread %s: %v", o.ThreadID, o.Err)
			failed = append(failed, o.ThreadID)
			continue
		}
		rep.JobsTriggered++
	}
	if len(failed) > 0 {
		if err := e.tracker.Set(ctx, b.tenantID, model.StageFailed, failed...); err != nil {
			b.log.Warn("resolve: could not mark undispatched threads failed", zap.Error(err))
		}
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
