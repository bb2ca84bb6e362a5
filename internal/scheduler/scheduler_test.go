package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/geoprofile/internal/model"
	"go.uber.org/zap"
)

type fakeFinder struct {
	users []model.User
	err   error
	month time.Month
	days  []int
}

func (f *fakeFinder) FindByBirthday(_ context.Context, month time.Month, days []int) ([]model.User, error) {
	f.month, f.days = month, days
	return f.users, f.err
}

type sentMail struct {
	from, to, subject, body string
}

type fakeSender struct {
	sent   []sentMail
	failTo map[string]bool
}

func (s *fakeSender) Send(_ context.Context, from, to, subject, body string) error {
	if s.failTo[to] {
		return errors.New("smtp: connection refused")
	}
	s.sent = append(s.sent, sentMail{from, to, subject, body})
	return nil
}

func newJob(finder BirthdayFinder, sender *fakeSender, now time.Time) *BirthdayJob {
	job := NewBirthdayJob(finder, sender, "noreply@x.com", time.UTC, zap.NewNop())
	job.now = func() time.Time { return now }
	return job
}

func TestBirthdayJobSendsMail(t *testing.T) {
	finder := &fakeFinder{users: []model.User{
		{ID: 1, Email: "a@x.com", FirstName: "A", LastName: "B"},
	}}
	sender := &fakeSender{}

	sent, failed, err := newJob(finder, sender, time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 0, failed)
	assert.Equal(t, time.June, finder.month)
	assert.Equal(t, []int{15}, finder.days)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, sentMail{"noreply@x.com", "a@x.com", BirthdaySubject, "Happy Birthday A B !"}, sender.sent[0])
}

func TestBirthdayJobContinuesAfterFailure(t *testing.T) {
	finder := &fakeFinder{users: []model.User{
		{ID: 1, Email: "bad@x.com"},
		{ID: 2, Email: "good@x.com"},
	}}
	sender := &fakeSender{failTo: map[string]bool{"bad@x.com": true}}

	sent, failed, err := newJob(finder, sender, time.Now()).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, failed)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "good@x.com", sender.sent[0].to)
}

func TestBirthdayJobLoadError(t *testing.T) {
	finder := &fakeFinder{err: errors.New("db down")}
	_, _, err := newJob(finder, &fakeSender{}, time.Now()).Run(context.Background())
	assert.Error(t, err)
}

func TestBirthdayDays(t *testing.T) {
	assert.Equal(t, []int{28, 29}, BirthdayDays(time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, []int{28}, BirthdayDays(time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, []int{29}, BirthdayDays(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, []int{1}, BirthdayDays(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestNewRejectsBadSpec(t *testing.T) {
	job := newJob(&fakeFinder{}, &fakeSender{}, time.Now())

	_, err := New("not a spec", "UTC", job, zap.NewNop())
	assert.Error(t, err)

	_, err = New("0 8 * * *", "Nowhere/City", job, zap.NewNop())
	assert.Error(t, err)

	s, err := New("0 8 * * *", "UTC", job, zap.NewNop())
	require.NoError(t, err)
	s.Start()
	<-s.Stop().Done()
}
