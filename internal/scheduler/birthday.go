package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/suteetoe/geoprofile/internal/mailer"
	"github.com/suteetoe/geoprofile/internal/model"
	"github.com/suteetoe/geoprofile/prometheus"
	"go.uber.org/zap"
)

// BirthdaySubject is the subject line of the birthday mail
const BirthdaySubject = "Happy Birthday"

// BirthdayFinder loads accounts by birthday
type BirthdayFinder interface {
	FindByBirthday(ctx context.Context, month time.Month, days []int) ([]model.User, error)
}

// BirthdayJob mails every account whose birthday is today
type BirthdayJob struct {
	users  BirthdayFinder
	sender mailer.Sender
	from   string
	log    *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewBirthdayJob creates the job; loc decides which calendar day "today" is
func NewBirthdayJob(users BirthdayFinder, sender mailer.Sender, from string, loc *time.Location, log *zap.Logger) *BirthdayJob {
	if loc == nil {
		loc = time.UTC
	}
	return &BirthdayJob{
		users:  users,
		sender: sender,
		from:   from,
		log:    log,
		loc:    loc,
		now:    time.Now,
	}
}

// Run sends the mails. A failed delivery is logged and counted, and the scan continues.
func (j *BirthdayJob) Run(ctx context.Context) (sent, failed int, err error) {
	today := j.now().In(j.loc)
	prometheus.BirthdayJobLastRun.Set(float64(today.Unix()))

	users, err := j.users.FindByBirthday(ctx, today.Month(), BirthdayDays(today))
	if err != nil {
		j.log.Error("Failed to load birthday accounts", zap.Error(err))
		return 0, 0, err
	}

	for i := range users {
		u := &users[i]
		body := fmt.Sprintf("Happy Birthday %s %s !", u.FirstName, u.LastName)
		if err := j.sender.Send(ctx, j.from, u.Email, BirthdaySubject, body); err != nil {
			failed++
			prometheus.RecordBirthdayMail(false)
			j.log.Warn("Failed to send birthday mail",
				zap.Uint("user_id", u.ID),
				zap.String("email", u.Email),
				zap.Error(err))
			continue
		}
		sent++
		prometheus.RecordBirthdayMail(true)
	}

	j.log.Info("Birthday job finished",
		zap.String("date", today.Format("2006-01-02")),
		zap.Int("matched", len(users)),
		zap.Int("sent", sent),
		zap.Int("failed", failed))
	return sent, failed, nil
}

// BirthdayDays returns the days of today's month whose birthdays fall on today.
// In non-leap years 29 February birthdays are celebrated on 28 February.
func BirthdayDays(today time.Time) []int {
	if today.Month() == time.February && today.Day() == 28 && !isLeap(today.Year()) {
		return []int{28, 29}
	}
	return []int{today.Day()}
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
