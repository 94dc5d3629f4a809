/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package familystore

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/suparena/familystore/config"
	"github.com/suparena/familystore/datastore"
	storeerrors "github.com/suparena/familystore/errors"
	"github.com/suparena/familystore/family"
	"github.com/suparena/familystore/storagemodels"
)

// State is a step of the demo workflow.
type State int

const (
	StateStart State = iota
	StateConnected
	StateDatabaseReady
	StateContainerReady
	StateItemInserted
	StateAlreadyExists
	StateQueried
	StateDatabaseDeleted
	StateClosed
)

var stateNames = [...]string{
	StateStart:           "Start",
	StateConnected:       "Connected",
	StateDatabaseReady:   "DatabaseReady",
	StateContainerReady:  "ContainerReady",
	StateItemInserted:    "ItemInserted",
	StateAlreadyExists:   "AlreadyExists",
	StateQueried:         "Queried",
	StateDatabaseDeleted: "DatabaseDeleted",
	StateClosed:          "Closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Outcome classifies the result of inserting the sample household.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeAlreadyExists
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "Created"
	case OutcomeAlreadyExists:
		return "AlreadyExists"
	default:
		return "Failed"
	}
}

// InsertResult reports how InsertSample ended. Err is set only for OutcomeFailed.
type InsertResult struct {
	Outcome       Outcome
	ID            string
	RequestCharge float64
	Err           error
}

// Session carries the handles acquired by the workflow from one step to the next.
type Session struct {
	Client    datastore.Client
	Database  datastore.Database
	Container datastore.Container

	Insert     InsertResult
	Households []family.Household

	state   State
	history []State
	closed  bool
}

func newSession() *Session {
	return &Session{state: StateStart, history: []State{StateStart}}
}

// State returns the last state the session reached.
func (s *Session) State() State {
	return s.state
}

// History returns every state the session passed through, in order.
func (s *Session) History() []State {
	return append([]State(nil), s.history...)
}

func (s *Session) advance(st State) {
	s.state = st
	s.history = append(s.history, st)
}

// Runner executes the demo workflow against one backend.
type Runner struct {
	cfg       config.Config
	open      datastore.Opener
	out       io.Writer
	logger    zerolog.Logger
	record    *family.Household
	queryOpts []storagemodels.QueryOption
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput sets where progress lines are printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithOpener replaces the backend lookup by cfg.Backend.
func WithOpener(open datastore.Opener) Option {
	return func(r *Runner) { r.open = open }
}

// WithRecord replaces the sample household inserted by InsertSample.
func WithRecord(h family.Household) Option {
	return func(r *Runner) { r.record = &h }
}

// WithQueryOptions are passed to every query the runner issues.
func WithQueryOptions(opts ...storagemodels.QueryOption) Option {
	return func(r *Runner) { r.queryOpts = append(r.queryOpts, opts...) }
}

// NewRunner creates a Runner for cfg.
func NewRunner(cfg config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		out:    os.Stdout,
		logger: zerolog.Nop(),
	}
	r.open = func(ctx context.Context, o datastore.Options) (datastore.Client, error) {
		return datastore.Open(ctx, r.cfg.Backend, o)
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "workflow").Str("backend", cfg.Backend).Logger()
	return r
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// Run executes the full sequence. The connection is closed exactly once on every path
// after it was opened; steps that completed before a failure are not rolled back.
func (r *Runner) Run(ctx context.Context) (s *Session, err error) {
	s, err = r.OpenConnection(ctx)
	if err != nil {
		s.advance(StateClosed)
		return s, err
	}
	defer func() {
		if cerr := r.Close(s); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err = r.EnsureDatabase(ctx, s); err != nil {
		return s, err
	}
	if err = r.EnsureContainer(ctx, s); err != nil {
		return s, err
	}
	if res := r.InsertSample(ctx, s); res.Outcome == OutcomeFailed {
		return s, res.Err
	}
	if _, err = r.RunQuery(ctx, s); err != nil {
		return s, err
	}
	if err = r.DeleteDatabase(ctx, s); err != nil {
		return s, err
	}
	return s, nil
}

// OpenConnection opens a client for the configured backend. Any failure is a ConnectionError.
func (r *Runner) OpenConnection(ctx context.Context) (*Session, error) {
	s := newSession()

	client, err := r.open(ctx, datastore.Options{
		Endpoint:    r.cfg.Endpoint,
		Key:         r.cfg.Key,
		AccessKeyID: r.cfg.AccessKeyID,
		Region:      r.cfg.Region,
	})
	if err != nil {
		if !storeerrors.IsConnectionError(err) {
			err = storeerrors.NewConnectionError(r.cfg.Endpoint, err)
		}
		r.logger.Error().Err(err).Msg("Failed to open connection")
		return s, err
	}

	s.Client = client
	s.advance(StateConnected)
	r.logger.Debug().Str("endpoint", r.cfg.Endpoint).Msg("Connection opened")
	return s, nil
}

// EnsureDatabase creates the configured database unless it already exists.
func (r *Runner) EnsureDatabase(ctx context.Context, s *Session) error {
	db, resp, err := s.Client.CreateDatabaseIfNotExists(ctx, r.cfg.DatabaseID)
	if err != nil {
		return fmt.Errorf("ensure database %q: %w", r.cfg.DatabaseID, err)
	}

	s.Database = db
	s.advance(StateDatabaseReady)
	if resp.Created {
		r.printf("Created Database: %s\n\n", db.ID())
	} else {
		r.printf("Using existing Database: %s\n\n", db.ID())
	}
	r.logger.Debug().Str("database", db.ID()).Bool("created", resp.Created).Float64("ru", resp.RequestCharge).Msg("Database ready")
	return nil
}

// EnsureContainer creates the configured container unless it already exists.
func (r *Runner) EnsureContainer(ctx context.Context, s *Session) error {
	props := storagemodels.ContainerProperties{ID: r.cfg.ContainerID, PartitionKeyPath: r.cfg.PartitionKeyPath}
	c, resp, err := s.Database.CreateContainerIfNotExists(ctx, props)
	if err != nil {
		return fmt.Errorf("ensure container %q: %w", r.cfg.ContainerID, err)
	}

	s.Container = c
	s.advance(StateContainerReady)
	if resp.Created {
		r.printf("Created Container: %s\n\n", c.ID())
	} else {
		r.printf("Using existing Container: %s\n\n", c.ID())
	}
	r.logger.Debug().Str("container", c.ID()).Str("partitionKey", c.PartitionKeyPath()).Bool("created", resp.Created).Msg("Container ready")
	return nil
}

// InsertSample inserts the sample household. An existing document with the same id and
// surname is reported as OutcomeAlreadyExists and left untouched; other errors yield OutcomeFailed.
func (r *Runner) InsertSample(ctx context.Context, s *Session) InsertResult {
	res := r.insert(ctx, s)
	s.Insert = res

	switch res.Outcome {
	case OutcomeCreated:
		s.advance(StateItemInserted)
		r.printf("Created Item in DB with Id: %s. Operation Consumed %g RUs.\n\n", res.ID, res.RequestCharge)
	case OutcomeAlreadyExists:
		s.advance(StateAlreadyExists)
		r.printf("Item in database with Id: %s already exists\n\n", res.ID)
		r.logger.Info().Str("id", res.ID).Msg("Sample item already exists")
	default:
		r.logger.Error().Err(res.Err).Str("id", res.ID).Msg("Failed to insert sample item")
	}
	return res
}

func (r *Runner) insert(ctx context.Context, s *Session) InsertResult {
	record := r.record
	if record == nil {
		sample, err := family.SampleHousehold()
		if err != nil {
			return InsertResult{Outcome: OutcomeFailed, Err: err}
		}
		record = &sample
	}
	if err := record.Validate(); err != nil {
		return InsertResult{Outcome: OutcomeFailed, ID: record.ID, Err: err}
	}

	resp, err := datastore.CreateItem(ctx, s.Container, record.PartitionKey(), *record)
	switch {
	case err == nil:
		return InsertResult{Outcome: OutcomeCreated, ID: resp.ID, RequestCharge: resp.RequestCharge}
	case storeerrors.IsConflict(err):
		return InsertResult{Outcome: OutcomeAlreadyExists, ID: record.ID}
	default:
		return InsertResult{Outcome: OutcomeFailed, ID: record.ID, Err: fmt.Errorf("insert %q: %w", record.ID, err)}
	}
}

// RunQuery runs the configured query, printing each household as it is read, and stores
// the drained result in the session.
func (r *Runner) RunQuery(ctx context.Context, s *Session) ([]family.Household, error) {
	r.printf("Running query: %s\n\n", r.cfg.Query)

	opts := append([]storagemodels.QueryOption{
		storagemodels.WithProgressHandler(func(p storagemodels.QueryProgress) {
			r.logger.Debug().Int("pages", p.PagesRead).Int64("items", p.ItemsRead).Float64("ru", p.RequestCharge).Msg("Query progress")
		}),
	}, r.queryOpts...)
	it := datastore.QueryItems[family.Household](s.Container, storagemodels.QuerySpec{Text: r.cfg.Query}, opts...)

	households := []family.Household{}
	for it.HasMoreResults() {
		page, err := it.ReadNext(ctx)
		if err != nil {
			return households, fmt.Errorf("query %q: %w", r.cfg.Query, err)
		}
		for _, h := range page.Items {
			households = append(households, h)
			r.printf("\tRead %s\n\n", h)
		}
	}

	s.Households = households
	s.advance(StateQueried)
	return households, nil
}

// DeleteDatabase deletes the session's database and everything in it.
func (r *Runner) DeleteDatabase(ctx context.Context, s *Session) error {
	id := s.Database.ID()
	if _, err := s.Database.Delete(ctx); err != nil {
		return fmt.Errorf("delete database %q: %w", id, err)
	}
	s.advance(StateDatabaseDeleted)
	r.printf("Deleted Database: %s\n\n", id)
	return nil
}

// Close releases the session's client. Later calls are no-ops.
func (r *Runner) Close(s *Session) error {
	if s == nil || s.closed || s.Client == nil {
		return nil
	}
	s.closed = true
	s.advance(StateClosed)
	if err := s.Client.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to close connection")
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}
