package scheduler

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/citystash/pickup-sms/app/services"
	"github.com/citystash/pickup-sms/models"
	"github.com/citystash/pickup-sms/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory repositories with just enough behavior for pipeline runs.

type fakeBookingRepo struct {
	rows    []*models.Booking
	listErr error
}

func (f *fakeBookingRepo) ByFilter(ctx context.Context, filter models.BookingFilter, orderBy string, limit, offset int) ([]*models.Booking, error) {
	return f.rows, nil
}

func (f *fakeBookingRepo) ListPickedUpInWindow(ctx context.Context, from, to time.Time, itemType *string) ([]*models.Booking, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Booking, 0, len(f.rows))
	for _, b := range f.rows {
		if itemType != nil && b.ItemType != *itemType {
			continue
		}
		if b.PickedUpAt.Before(from) || !b.PickedUpAt.Before(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

type fakeJobRunRepo struct {
	runs   []*models.JobRun
	nextID uint
}

func (f *fakeJobRunRepo) ByID(ctx context.Context, id uint) (*models.JobRun, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeJobRunRepo) ByFilter(ctx context.Context, filter models.JobRunFilter, orderBy string, limit, offset int) ([]*models.JobRun, error) {
	return f.runs, nil
}

func (f *fakeJobRunRepo) Save(ctx context.Context, run *models.JobRun) error {
	f.nextID++
	run.ID = f.nextID
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeJobRunRepo) SaveBatch(ctx context.Context, runs []*models.JobRun) error {
	for _, r := range runs {
		if err := f.Save(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeJobRunRepo) Count(ctx context.Context, filter models.JobRunFilter) (int64, error) {
	return int64(len(f.runs)), nil
}

func (f *fakeJobRunRepo) Update(ctx context.Context, run *models.JobRun) error {
	for i, r := range f.runs {
		if r.ID == run.ID {
			f.runs[i] = run
			return nil
		}
	}
	return errors.New("run not found")
}

func (f *fakeJobRunRepo) LatestByFeature(ctx context.Context, feature string) (*models.JobRun, error) {
	for i := len(f.runs) - 1; i >= 0; i-- {
		if f.runs[i].Feature == feature {
			return f.runs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeJobRunRepo) ListRecent(ctx context.Context, limit int) ([]*models.JobRun, error) {
	return f.runs, nil
}

type fakeSendLogRepo struct {
	logs    []*models.SendLog
	saveErr error
}

func (f *fakeSendLogRepo) ByID(ctx context.Context, id uint) (*models.SendLog, error) {
	return nil, nil
}

func (f *fakeSendLogRepo) ByFilter(ctx context.Context, filter models.SendLogFilter, orderBy string, limit, offset int) ([]*models.SendLog, error) {
	return f.logs, nil
}

func (f *fakeSendLogRepo) Save(ctx context.Context, entry *models.SendLog) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeSendLogRepo) SaveBatch(ctx context.Context, entries []*models.SendLog) error {
	for _, e := range entries {
		if err := f.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSendLogRepo) Count(ctx context.Context, filter models.SendLogFilter) (int64, error) {
	return int64(len(f.logs)), nil
}

func (f *fakeSendLogRepo) ListByFeature(ctx context.Context, feature string, limit, offset int) ([]*models.SendLog, error) {
	return f.logs, nil
}

func (f *fakeSendLogRepo) byStatus(status models.SendStatus) []*models.SendLog {
	var out []*models.SendLog
	for _, l := range f.logs {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out
}

type fakeGuardRepo struct {
	claimed map[string]bool
}

func newFakeGuardRepo() *fakeGuardRepo {
	return &fakeGuardRepo{claimed: make(map[string]bool)}
}

func (f *fakeGuardRepo) TryClaim(ctx context.Context, ref string) (bool, error) {
	if f.claimed[ref] {
		return false, nil
	}
	f.claimed[ref] = true
	return true, nil
}

func (f *fakeGuardRepo) Exists(ctx context.Context, ref string) (bool, error) {
	return f.claimed[ref], nil
}

type fakeOptOutRepo struct {
	optedOut map[string]bool
	checkErr error
}

func newFakeOptOutRepo() *fakeOptOutRepo {
	return &fakeOptOutRepo{optedOut: make(map[string]bool)}
}

func (f *fakeOptOutRepo) IsOptedOut(ctx context.Context, phone string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.optedOut[phone], nil
}

func (f *fakeOptOutRepo) Add(ctx context.Context, phone string, source models.OptOutSource, note string) error {
	f.optedOut[phone] = true
	return nil
}

func (f *fakeOptOutRepo) Remove(ctx context.Context, phone string) (bool, error) {
	existed := f.optedOut[phone]
	delete(f.optedOut, phone)
	return existed, nil
}

func (f *fakeOptOutRepo) List(ctx context.Context, limit int) ([]*models.OptOut, error) {
	return nil, nil
}

func (f *fakeOptOutRepo) Search(ctx context.Context, substring string, limit int) ([]*models.OptOut, error) {
	return nil, nil
}

// Fixture plumbing.

type pipelineFixture struct {
	bookings *fakeBookingRepo
	runs     *fakeJobRunRepo
	logs     *fakeSendLogRepo
	guard    *fakeGuardRepo
	optOuts  *fakeOptOutRepo
	links    *services.ReviewLinkStore
	mock     *services.MockSMSService
	pipeline *Pipeline
}

func newPipelineFixture(t *testing.T, dryRun bool) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		bookings: &fakeBookingRepo{},
		runs:     &fakeJobRunRepo{},
		logs:     &fakeSendLogRepo{},
		guard:    newFakeGuardRepo(),
		optOuts:  newFakeOptOutRepo(),
		links:    services.NewReviewLinkStore(),
		mock:     services.NewMockSMSService(),
	}
	f.links.Replace(map[string][]string{
		"london": {"https://g.page/r/london"},
	})
	sender := services.NewThrottledSender(f.mock, 0, dryRun)
	f.pipeline = NewPipeline(
		f.bookings, f.runs, f.logs, f.guard, f.optOuts, f.links,
		sender, "london", log.New(testWriter{t}, "", 0),
	)
	return f
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func pickedUpYesterday(t *testing.T) time.Time {
	t.Helper()
	from, _ := utils.PreviousDayWindow(utils.UTCNow())
	return from.Add(10 * time.Hour)
}

func reviewBooking(ref, phone, city string, pickedUpAt time.Time) *models.Booking {
	return &models.Booking{
		Reference:      ref,
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Phone:          phone,
		City:           city,
		StashpointName: "Waterloo Store",
		ItemType:       models.ItemTypeBag,
		Status:         "completed",
		Paid:           true,
		PickedUpAt:     pickedUpAt,
	}
}

func reviewSpec(t *testing.T) JobSpec {
	t.Helper()
	spec, ok := JobSpecs()[FeatureReviewRequest]
	require.True(t, ok)
	return spec
}

func TestRunSendsToEligibleCandidates(t *testing.T) {
	f := newPipelineFixture(t, false)
	when := pickedUpYesterday(t)
	f.links.Replace(map[string][]string{
		"london": {"https://g.page/r/london"},
	})
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-1", "07911123456", "london", when),
		reviewBooking("BK-2", "+447911123457", "glasgow", when), // unknown city, falls back
		reviewBooking("BK-3", "+14155552671", "london", when),   // non-UK
	}

	counts, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, counts.Fetched)
	assert.Equal(t, 2, counts.Sent)
	assert.Equal(t, 1, counts.SkippedNonUK)
	assert.Equal(t, 0, counts.Failed)

	sent := f.mock.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "+447911123456", sent[0].Recipient)
	assert.Equal(t, "+447911123457", sent[1].Recipient)
	assert.Contains(t, sent[0].Body, "https://g.page/r/london")
	assert.Contains(t, sent[0].Body, "Ada")
	assert.Contains(t, sent[0].Body, "Waterloo Store")
}

func TestRunRecordsFallbackLinkUsage(t *testing.T) {
	f := newPipelineFixture(t, false)
	when := pickedUpYesterday(t)
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-1", "07911123456", "aberdeen", when),
	}

	counts, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Sent)

	sentLogs := f.logs.byStatus(models.SendStatusSent)
	require.Len(t, sentLogs, 1)
	assert.True(t, sentLogs[0].UsedFallbackLink)
}

func TestRunSkipsWhenNoLinkAnywhere(t *testing.T) {
	f := newPipelineFixture(t, false)
	f.links.Replace(map[string][]string{})
	when := pickedUpYesterday(t)
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-1", "07911123456", "london", when),
	}

	counts, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Sent)
	assert.Equal(t, 1, counts.SkippedNoLink)
	assert.Empty(t, f.mock.SentMessages())
}

func TestRunSkipReasonsAreMutuallyExclusive(t *testing.T) {
	f := newPipelineFixture(t, false)
	when := pickedUpYesterday(t)
	f.optOuts.optedOut["+447911123458"] = true
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-1", "", "london", when),             // no phone
		reviewBooking("BK-2", "garbage", "london", when),      // invalid
		reviewBooking("BK-3", "+14155552671", "london", when), // non-UK
		reviewBooking("BK-4", "07911123458", "london", when),  // opted out
		reviewBooking("BK-5", "07911123456", "london", when),  // eligible
	}

	counts, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 5, counts.Fetched)
	assert.Equal(t, 1, counts.Sent)
	assert.Equal(t, 1, counts.SkippedNoPhone)
	assert.Equal(t, 1, counts.SkippedInvalidPhone)
	assert.Equal(t, 1, counts.SkippedNonUK)
	assert.Equal(t, 1, counts.SkippedOptedOut)
	assert.Equal(t, counts.Fetched, counts.Sent+counts.Skipped()+counts.Failed)

	// Every candidate got exactly one log entry.
	assert.Len(t, f.logs.logs, 5)
}

func TestRunGuardStopsDuplicateSends(t *testing.T) {
	f := newPipelineFixture(t, false)
	when := pickedUpYesterday(t)
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-1", "07911123456", "london", when),
		reviewBooking("BK-1", "07911123456", "london", when),
	}

	counts, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Sent)
	assert.Equal(t, 1, counts.SkippedAlreadySent)
	require.Len(t, f.mock.SentMessages(), 1)
}

func TestRunGuardPersistsAcrossRuns(t *testing.T) {
	f := newPipelineFixture(t, false)
	when := pickedUpYesterday(t)
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-1", "07911123456", "london", when),
	}

	counts, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Sent)

	counts, err = f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Sent)
	assert.Equal(t, 1, counts.SkippedAlreadySent)
	assert.Len(t, f.mock.SentMessages(), 1)
}

func TestRunDryRunClaimsNoGuard(t *testing.T) {
	// The fixture's sender is live; only the per-run flag requests dry-run,
	// exactly as an operator trigger on a live deployment does.
	f := newPipelineFixture(t, false)
	when := pickedUpYesterday(t)
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-1", "07911123456", "london", when),
	}

	counts, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Sent)

	// Nothing hit the transport and the guard stayed unclaimed.
	assert.Empty(t, f.mock.SentMessages())
	claimed, err := f.guard.Exists(context.Background(), "BK-1")
	require.NoError(t, err)
	assert.False(t, claimed)

	// The audit trail still looks like a live run.
	sentLogs := f.logs.byStatus(models.SendStatusSent)
	require.Len(t, sentLogs, 1)
	require.NotNil(t, sentLogs[0].ProviderMessageID)
	assert.NotEmpty(t, *sentLogs[0].ProviderMessageID)

	// A later live run still sends: the dry run consumed nothing.
	counts, err = f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Sent)
	require.Len(t, f.mock.SentMessages(), 1)
	assert.Equal(t, "+447911123456", f.mock.SentMessages()[0].Recipient)
}

func TestRunDryRunReportsAlreadySent(t *testing.T) {
	f := newPipelineFixture(t, false)
	when := pickedUpYesterday(t)
	require.NoError(t, errInitGuard(f, "BK-1"))
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-1", "07911123456", "london", when),
	}

	counts, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{DryRun: true})
	require.NoError(t, err)

	// A booking a live run already covered is skipped, not re-counted as
	// sent, so the dry run matches what a live re-run would do.
	assert.Equal(t, 0, counts.Sent)
	assert.Equal(t, 1, counts.SkippedAlreadySent)
	assert.Empty(t, f.mock.SentMessages())

	skipped := f.logs.byStatus(models.SendStatusSkippedAlreadySent)
	require.Len(t, skipped, 1)
	assert.Equal(t, "BK-1", skipped[0].BookingReference)
}

func TestRunSendFailureDoesNotAbort(t *testing.T) {
	f := newPipelineFixture(t, false)
	when := pickedUpYesterday(t)
	f.mock.FailFor("+447911123456", &services.SMSError{Code: 503, Message: "gateway down"})
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-1", "07911123456", "london", when),
		reviewBooking("BK-2", "07911123457", "london", when),
	}

	counts, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Failed)
	assert.Equal(t, 1, counts.Sent)

	failed := f.logs.byStatus(models.SendStatusFailed)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].Error)
	assert.Contains(t, *failed[0].Error, "gateway down")

	// The failed candidate keeps its guard claim; it will not be retried.
	claimed, err := f.guard.Exists(context.Background(), "BK-1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRunAbortsOnInfrastructureError(t *testing.T) {
	f := newPipelineFixture(t, false)
	when := pickedUpYesterday(t)
	f.optOuts.checkErr = errors.New("redis unreachable")
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-1", "07911123456", "london", when),
	}

	_, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{})
	require.Error(t, err)

	// The summary row is stamped with the error and a finish time.
	require.Len(t, f.runs.runs, 1)
	run := f.runs.runs[0]
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "redis unreachable")
	assert.NotNil(t, run.FinishedAt)
}

func TestRunAbortsWhenFetchFails(t *testing.T) {
	f := newPipelineFixture(t, false)
	f.bookings.listErr = errors.New("bookings db down")

	_, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{})
	require.Error(t, err)
	require.Len(t, f.runs.runs, 1)
	require.NotNil(t, f.runs.runs[0].Error)
}

func TestRunSummaryRowLifecycle(t *testing.T) {
	f := newPipelineFixture(t, false)
	when := pickedUpYesterday(t)
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-1", "07911123456", "london", when),
		reviewBooking("BK-2", "+14155552671", "london", when),
	}

	_, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{})
	require.NoError(t, err)

	require.Len(t, f.runs.runs, 1)
	run := f.runs.runs[0]
	assert.Equal(t, string(FeatureReviewRequest), run.Feature)
	assert.Equal(t, 2, run.Fetched)
	assert.Equal(t, 1, run.Sent)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 0, run.Failed)
	assert.NotNil(t, run.FinishedAt)
	assert.Nil(t, run.Error)
}

func TestRunAnchorOverridesWindow(t *testing.T) {
	f := newPipelineFixture(t, false)
	loc := utils.ServiceLocation()
	anchor := time.Date(2025, time.June, 10, 0, 0, 0, 0, loc)
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-OLD", "07911123456", "london", anchor.Add(9*time.Hour)),
		reviewBooking("BK-NEW", "07911123457", "london", pickedUpYesterday(t)),
	}

	counts, err := f.pipeline.Run(context.Background(), reviewSpec(t), RunOptions{Anchor: &anchor})
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Fetched)
	require.Len(t, f.mock.SentMessages(), 1)
	assert.Equal(t, "+447911123456", f.mock.SentMessages()[0].Recipient)
}

func TestRunAnchorRejectedForHourlyJob(t *testing.T) {
	f := newPipelineFixture(t, false)
	spec, ok := JobSpecs()[FeatureLockerReminder]
	require.True(t, ok)

	anchor := utils.UTCNow()
	_, err := f.pipeline.Run(context.Background(), spec, RunOptions{Anchor: &anchor})
	require.Error(t, err)

	// Rejected before any summary row was written.
	assert.Empty(t, f.runs.runs)
}

func TestLockerReminderFiltersByItemTypeAndSkipsGuard(t *testing.T) {
	f := newPipelineFixture(t, false)
	spec, ok := JobSpecs()[FeatureLockerReminder]
	require.True(t, ok)

	from, _ := utils.PreviousHourWindow(utils.UTCNow())
	when := from.Add(10 * time.Minute)

	locker := reviewBooking("BK-L", "07911123456", "london", when)
	locker.ItemType = models.ItemTypeLocker
	bag := reviewBooking("BK-B", "07911123457", "london", when)
	f.bookings.rows = []*models.Booking{locker, bag}

	counts, err := f.pipeline.Run(context.Background(), spec, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Fetched)
	assert.Equal(t, 1, counts.Sent)

	sent := f.mock.SentMessages()
	require.Len(t, sent, 1)
	assert.NotContains(t, sent[0].Body, "http")

	// The hourly job leaves no durable guard rows behind.
	claimed, err := f.guard.Exists(context.Background(), "BK-L")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestPreviewWritesNothing(t *testing.T) {
	f := newPipelineFixture(t, false)
	when := pickedUpYesterday(t)
	require.NoError(t, errInitGuard(f, "BK-2"))
	f.bookings.rows = []*models.Booking{
		reviewBooking("BK-1", "07911123456", "london", when),
		reviewBooking("BK-2", "07911123457", "london", when),
		reviewBooking("BK-3", "+14155552671", "london", when),
	}

	rows, err := f.pipeline.Preview(context.Background(), reviewSpec(t), RunOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, PreviewStatusEligible, rows[0].Status)
	assert.Equal(t, string(models.SendStatusSkippedAlreadySent), rows[1].Status)
	assert.Equal(t, string(models.SendStatusSkippedNonUK), rows[2].Status)

	// No sends, no summary rows, no log entries, no new guard claims.
	assert.Empty(t, f.mock.SentMessages())
	assert.Empty(t, f.runs.runs)
	assert.Empty(t, f.logs.logs)
	claimed, err := f.guard.Exists(context.Background(), "BK-1")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func errInitGuard(f *pipelineFixture, ref string) error {
	_, err := f.guard.TryClaim(context.Background(), ref)
	return err
}
