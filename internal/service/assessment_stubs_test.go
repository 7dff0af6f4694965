package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vasiprashanti/techlearn-api/internal/models"
	"github.com/vasiprashanti/techlearn-api/pkg/events"
	"github.com/vasiprashanti/techlearn-api/pkg/judge"
	"github.com/vasiprashanti/techlearn-api/pkg/mailer"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type roundRepoStub struct {
	mu        sync.Mutex
	rounds    map[uint]*models.Round
	nextID    uint
	createErr []error
}

func newRoundRepoStub(rounds ...models.Round) *roundRepoStub {
	stub := &roundRepoStub{rounds: make(map[uint]*models.Round)}
	for _, round := range rounds {
		round := round
		stub.nextID++
		if round.ID == 0 {
			round.ID = stub.nextID
		}
		stub.rounds[round.ID] = &round
	}
	return stub
}

func (r *roundRepoStub) Create(ctx context.Context, round *models.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.createErr) > 0 {
		err := r.createErr[0]
		r.createErr = r.createErr[1:]
		if err != nil {
			return err
		}
	}
	r.nextID++
	round.ID = r.nextID
	stored := *round
	r.rounds[round.ID] = &stored
	return nil
}

func (r *roundRepoStub) GetByID(ctx context.Context, id uint) (models.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.rounds[id]
	if !ok {
		return models.Round{}, gorm.ErrRecordNotFound
	}
	return *round, nil
}

func (r *roundRepoStub) GetByAccessKey(ctx context.Context, accessKey string) (models.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, round := range r.rounds {
		if round.AccessKey == accessKey {
			return *round, nil
		}
	}
	return models.Round{}, gorm.ErrRecordNotFound
}

func (r *roundRepoStub) List(ctx context.Context) ([]models.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rounds := make([]models.Round, 0, len(r.rounds))
	for _, round := range r.rounds {
		rounds = append(rounds, *round)
	}
	return rounds, nil
}

func (r *roundRepoStub) SetActive(ctx context.Context, id uint, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.rounds[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	round.IsActive = active
	return nil
}

func (r *roundRepoStub) IncrementAttempts(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.rounds[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	round.AttemptCount++
	return nil
}

func (r *roundRepoStub) attempts(id uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rounds[id].AttemptCount
}

// resultStoreStub mimics the unique (round, identity) index of the real store.
type resultStoreStub struct {
	mu          sync.Mutex
	rounds      *roundRepoStub
	submissions map[string]models.Submission
	saveErr     error
	hideExists  bool
	saves       int
}

func newResultStoreStub(rounds *roundRepoStub) *resultStoreStub {
	return &resultStoreStub{rounds: rounds, submissions: make(map[string]models.Submission)}
}

func submissionKey(roundID uint, identity string) string {
	return fmt.Sprintf("%d:%s", roundID, identity)
}

func (s *resultStoreStub) Save(ctx context.Context, submission *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	key := submissionKey(submission.RoundID, submission.Identity)
	if _, exists := s.submissions[key]; exists {
		return gorm.ErrDuplicatedKey
	}
	s.saves++
	submission.ID = uint(s.saves)
	s.submissions[key] = *submission
	if s.rounds != nil {
		return s.rounds.IncrementAttempts(ctx, submission.RoundID)
	}
	return nil
}

func (s *resultStoreStub) FindByRoundAndIdentity(ctx context.Context, roundID uint, identity string) (models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	submission, ok := s.submissions[submissionKey(roundID, identity)]
	if !ok || s.hideExists {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (s *resultStoreStub) IncrementAttempts(ctx context.Context, roundID uint) error {
	return s.rounds.IncrementAttempts(ctx, roundID)
}

func (s *resultStoreStub) ListScores(ctx context.Context, roundID uint) ([]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var scores []models.Submission
	for _, submission := range s.submissions {
		if submission.RoundID == roundID {
			scores = append(scores, submission)
		}
	}
	return scores, nil
}

func (s *resultStoreStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submissions)
}

// scriptedRunner answers judge calls from a function of the request.
type scriptedRunner struct {
	calls    int32
	inFlight int32
	maxSeen  int32
	delay    time.Duration
	respond  func(ctx context.Context, req judge.RunRequest) judge.Result
}

func (r *scriptedRunner) Run(ctx context.Context, req judge.RunRequest) judge.Result {
	atomic.AddInt32(&r.calls, 1)
	current := atomic.AddInt32(&r.inFlight, 1)
	defer atomic.AddInt32(&r.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&r.maxSeen)
		if current <= seen || atomic.CompareAndSwapInt32(&r.maxSeen, seen, current) {
			break
		}
	}

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return judge.Result{StatusCode: judge.StatusTimeout, StatusText: "timeout", ErrorText: ctx.Err().Error()}
		}
	}
	return r.respond(ctx, req)
}

func (r *scriptedRunner) callCount() int {
	return int(atomic.LoadInt32(&r.calls))
}

// outputsRunner answers with the output registered for the stdin; unknown stdin times out.
func outputsRunner(outputs map[string]string) *scriptedRunner {
	return &scriptedRunner{respond: func(ctx context.Context, req judge.RunRequest) judge.Result {
		out, ok := outputs[req.Stdin]
		if !ok {
			return judge.Result{StatusCode: judge.StatusTimeout, StatusText: "timeout", ErrorText: "judge call timed out"}
		}
		return judge.Result{Accepted: true, Output: out, StatusCode: judge.Judge0StatusAccepted, StatusText: "Accepted"}
	}}
}

func blockingRunner() *scriptedRunner {
	return &scriptedRunner{respond: func(ctx context.Context, req judge.RunRequest) judge.Result {
		<-ctx.Done()
		return judge.Result{StatusCode: judge.StatusTimeout, StatusText: "timeout", ErrorText: ctx.Err().Error()}
	}}
}

type mailerStub struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *mailerStub) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type publisherStub struct {
	mu     sync.Mutex
	events []events.SubmissionStored
	err    error
}

func (p *publisherStub) PublishSubmissionStored(ctx context.Context, event events.SubmissionStored) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

var errStorageDown = errors.New("storage down")

func testCases(prefix string, n int) []models.TestCase {
	cases := make([]models.TestCase, 0, n)
	for i := 1; i <= n; i++ {
		cases = append(cases, models.TestCase{Input: fmt.Sprintf("%s%d", prefix, i), ExpectedOutput: "ok"})
	}
	return cases
}

func testRound(key string, start time.Time, problems ...models.Problem) models.Round {
	round := models.Round{
		Title:           "Weekly Contest",
		ScheduledStart:  start,
		DurationMinutes: 60,
		IsActive:        true,
		AccessKey:       key,
	}
	round.SetProblems(problems)
	return round
}
