package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	service "github.com/okian/duelboard/internal/app"
	"github.com/okian/duelboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeFetcher struct {
	mu      sync.Mutex
	reports []model.ValidatorReport
	battles map[string][]model.BatchReport
	calls   []string
}

func (f *fakeFetcher) FetchReports(context.Context) ([]model.ValidatorReport, error) {
	return f.reports, nil
}

func (f *fakeFetcher) FetchBattles(_ context.Context, hotkey string) ([]model.BatchReport, error) {
	f.mu.Lock()
	f.calls = append(f.calls, hotkey)
	f.mu.Unlock()
	b, ok := f.battles[hotkey]
	if !ok {
		return nil, errors.New("upstream unavailable")
	}
	return b, nil
}

func TestPoller(t *testing.T) {
	ctx := context.Background()

	Convey("Given a poller over a fake upstream", t, func() {
		svc := startService()
		defer func() { _ = svc.Stop(ctx) }()

		f := &fakeFetcher{
			reports: []model.ValidatorReport{{
				Hotkey:   "hk1",
				Metadata: map[model.ParticipantID]model.ParticipantMeta{"1": {Tier: "gold", Score: 1}},
			}},
			battles: map[string][]model.BatchReport{
				"hk1": {batch(1, "1", "2", "10 -> 20", "20 -> 10")},
			},
		}
		p := service.NewPoller(f, svc, service.WithHotkeys("hk2"), service.WithPollConcurrency(2))

		Convey("When polling once", func() {
			res, err := p.PollOnce(ctx)

			Convey("Then every validator is fetched and failures are reported", func() {
				So(res.Validators, ShouldEqual, 2)
				So(res.Ingested.Accepted, ShouldEqual, 1)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "hk2")
				So(len(f.calls), ShouldEqual, 2)
			})

			Convey("Then metadata is stored", func() {
				tr, err := svc.Tiers(ctx, "hk1")
				So(err, ShouldBeNil)
				So(tr.Distribution[0].Tier, ShouldEqual, "gold")
			})

			Convey("Then polling again only finds duplicates", func() {
				again, _ := p.PollOnce(ctx)
				So(again.Ingested.Accepted, ShouldEqual, 0)
				So(again.Ingested.Duplicates, ShouldEqual, 1)
			})
		})
	})
}
